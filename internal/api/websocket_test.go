package api

import (
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"deadzone/internal/game"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

func dialTestFeed(t *testing.T) *websocket.Conn {
	t.Helper()
	engine, err := game.NewEngine(game.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(NewWSHandler(engine, 8))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendMsg marshals a payload into an envelope and writes it as one
// binary frame.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	data, err := msgpack.Marshal(InEnvelope{T: msgType, D: raw})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatal(err)
	}
}

// readMsg reads one reply, checks its type tag and decodes the payload
// into out (which may be nil for payload-free replies).
func readMsg(t *testing.T, conn *websocket.Conn, wantType string, out interface{}) {
	t.Helper()
	frameType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if frameType != websocket.BinaryMessage {
		t.Fatalf("frame type = %d, want binary", frameType)
	}
	var env InEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.T != wantType {
		var e ErrorMsg
		msgpack.Unmarshal(env.D, &e)
		t.Fatalf("reply type = %q (%s), want %q", env.T, e.Msg, wantType)
	}
	if out != nil {
		if err := msgpack.Unmarshal(env.D, out); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFeedSpawnMoveQuery(t *testing.T) {
	conn := dialTestFeed(t)

	sendMsg(t, conn, MsgSpawn, SpawnMsg{Kind: uint8(game.KindPlayer), Team: 1, X: 0, Y: 0, HP: 100})
	var spawned SpawnedMsg
	readMsg(t, conn, MsgSpawned, &spawned)
	if spawned.ID == 0 {
		t.Fatal("spawn returned zero ID")
	}

	sendMsg(t, conn, MsgMove, MoveMsg{ID: spawned.ID, X: 30, Y: 40})
	readMsg(t, conn, MsgOK, nil)

	sendMsg(t, conn, MsgQuery, QueryMsg{X: 30, Y: 40, Radius: 5})
	var result ResultMsg
	readMsg(t, conn, MsgResult, &result)
	if len(result.Entities) != 1 || result.Entities[0].ID != spawned.ID {
		t.Errorf("query = %+v, want the moved entity at (30,40)", result.Entities)
	}

	sendMsg(t, conn, MsgQuery, QueryMsg{X: 0, Y: 0, Radius: 5})
	readMsg(t, conn, MsgResult, &result)
	if len(result.Entities) != 0 {
		t.Errorf("entity still found at old position: %+v", result.Entities)
	}
}

func TestFeedBlast(t *testing.T) {
	conn := dialTestFeed(t)

	sendMsg(t, conn, MsgSpawn, SpawnMsg{Kind: uint8(game.KindEnemy), Team: 2, X: 10, HP: 100})
	var spawned SpawnedMsg
	readMsg(t, conn, MsgSpawned, &spawned)

	sendMsg(t, conn, MsgBlast, BlastMsg{X: 0, Y: 0, Radius: 20, Damage: 100})
	var blast BlastResultMsg
	readMsg(t, conn, MsgBlastResult, &blast)
	if len(blast.Hits) != 1 || blast.Hits[0].ID != spawned.ID {
		t.Fatalf("blast hits = %+v, want entity %d", blast.Hits, spawned.ID)
	}
	if blast.Hits[0].Damage != 50 {
		t.Errorf("damage = %d, want 50 at half radius", blast.Hits[0].Damage)
	}
}

func TestFeedErrorKeepsConnectionOpen(t *testing.T) {
	conn := dialTestFeed(t)

	// Non-finite position is rejected with an error frame.
	sendMsg(t, conn, MsgSpawn, SpawnMsg{Kind: uint8(game.KindPlayer), Team: 1, X: math.Inf(1), HP: 100})
	var errMsg ErrorMsg
	readMsg(t, conn, MsgError, &errMsg)
	if errMsg.Msg == "" {
		t.Error("error frame has empty message")
	}

	// The connection must survive the error.
	sendMsg(t, conn, MsgSpawn, SpawnMsg{Kind: uint8(game.KindPlayer), Team: 1, X: 1, Y: 1, HP: 100})
	readMsg(t, conn, MsgSpawned, nil)
}

func TestFeedRejectsTextFrames(t *testing.T) {
	conn := dialTestFeed(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"stats"}`)); err != nil {
		t.Fatal(err)
	}
	readMsg(t, conn, MsgError, nil)
}

func TestFeedUnknownType(t *testing.T) {
	conn := dialTestFeed(t)

	sendMsg(t, conn, "teleport", RemoveMsg{ID: 1})
	var errMsg ErrorMsg
	readMsg(t, conn, MsgError, &errMsg)
	if !strings.Contains(errMsg.Msg, "teleport") {
		t.Errorf("error %q does not name the unknown type", errMsg.Msg)
	}
}
