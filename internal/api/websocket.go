package api

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"deadzone/internal/game"
	"deadzone/internal/game/spatial"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second

	// MaxWSMessageBytes caps one inbound message; position feeds are tiny
	// and anything larger is a client bug or abuse.
	MaxWSMessageBytes = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("websocket rejected from origin %q", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// WSHandler serves the entity feed: clients stream spawn/move/remove
// commands and issue spatial queries over one msgpack-encoded WebSocket.
// Every message gets a reply; a rejected message (bad position, unknown
// entity) sends an error frame and keeps the connection open.
type WSHandler struct {
	engine  EngineInterface
	limiter *WebSocketRateLimiter
	active  int64 // atomic
}

// NewWSHandler creates the feed handler with a per-IP connection cap.
func NewWSHandler(engine EngineInterface, maxPerIP int) *WSHandler {
	return &WSHandler{
		engine:  engine,
		limiter: NewWebSocketRateLimiter(maxPerIP),
	}
}

// ActiveConnections returns the number of live feed connections.
func (h *WSHandler) ActiveConnections() int {
	return int(atomic.LoadInt64(&h.active))
}

// ServeHTTP upgrades the connection and runs the read loop.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)
	if !h.limiter.Allow(ip) {
		RecordConnectionRejected("ws_limit")
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.limiter.Release(ip)
		log.Printf("websocket upgrade from %s: %v", ip, err)
		return
	}

	count := atomic.AddInt64(&h.active, 1)
	UpdateWSConnections(int(count))
	log.Printf("feed client connected from %s (%d total)", ip, count)

	defer func() {
		conn.Close()
		h.limiter.Release(ip)
		count := atomic.AddInt64(&h.active, -1)
		UpdateWSConnections(int(count))
		log.Printf("feed client disconnected (%d remaining)", count)
	}()

	conn.SetReadLimit(MaxWSMessageBytes)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			h.send(conn, Envelope{T: MsgError, Data: ErrorMsg{Msg: "expected binary msgpack frames"}})
			continue
		}
		IncrementWSMessages()

		var env InEnvelope
		if err := msgpack.Unmarshal(data, &env); err != nil {
			h.send(conn, Envelope{T: MsgError, Data: ErrorMsg{Msg: "malformed envelope"}})
			continue
		}
		h.send(conn, h.dispatch(env))
	}
}

func (h *WSHandler) send(conn *websocket.Conn, env Envelope) {
	data, err := msgpack.Marshal(env)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		conn.Close()
	}
}

// dispatch executes one feed command and builds the reply envelope.
func (h *WSHandler) dispatch(env InEnvelope) Envelope {
	fail := func(err error) Envelope {
		return Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}}
	}

	switch env.T {
	case MsgSpawn:
		var m SpawnMsg
		if err := msgpack.Unmarshal(env.D, &m); err != nil {
			return fail(err)
		}
		if game.Kind(m.Kind) > game.KindItem {
			return Envelope{T: MsgError, Data: ErrorMsg{Msg: "unknown entity kind"}}
		}
		ent, err := h.engine.Spawn(game.Kind(m.Kind), m.Team,
			spatial.Vec{m.X, m.Y, m.Z}, spatial.Vec{}, m.HP, m.Radius)
		if err != nil {
			return fail(err)
		}
		return Envelope{T: MsgSpawned, Data: SpawnedMsg{ID: uint64(ent.ID)}}

	case MsgMove:
		var m MoveMsg
		if err := msgpack.Unmarshal(env.D, &m); err != nil {
			return fail(err)
		}
		if err := h.engine.Move(spatial.ID(m.ID), spatial.Vec{m.X, m.Y, m.Z}); err != nil {
			return fail(err)
		}
		return Envelope{T: MsgOK}

	case MsgRemove:
		var m RemoveMsg
		if err := msgpack.Unmarshal(env.D, &m); err != nil {
			return fail(err)
		}
		h.engine.Despawn(spatial.ID(m.ID))
		return Envelope{T: MsgOK}

	case MsgQuery:
		var m QueryMsg
		if err := msgpack.Unmarshal(env.D, &m); err != nil {
			return fail(err)
		}
		start := time.Now()
		var (
			hits []game.Entity
			err  error
		)
		if m.Dims == 3 {
			hits, err = h.engine.QueryRadius3D(spatial.Vec{m.X, m.Y, m.Z}, m.Radius)
		} else {
			hits, err = h.engine.QueryRadius(spatial.Vec{m.X, m.Y, m.Z}, m.Radius)
		}
		ObserveQuery("query", time.Since(start))
		if err != nil {
			return fail(err)
		}
		return Envelope{T: MsgResult, Data: ResultMsg{Entities: toEntityStates(hits)}}

	case MsgNearest:
		var m NearestMsg
		if err := msgpack.Unmarshal(env.D, &m); err != nil {
			return fail(err)
		}
		start := time.Now()
		target, found, err := h.engine.NearestHostile(spatial.ID(m.ID), m.MaxDist)
		ObserveQuery("nearest", time.Since(start))
		if err != nil {
			return fail(err)
		}
		if !found {
			return Envelope{T: MsgNoTarget}
		}
		return Envelope{T: MsgTarget, Data: toEntityState(target)}

	case MsgBlast:
		var m BlastMsg
		if err := msgpack.Unmarshal(env.D, &m); err != nil {
			return fail(err)
		}
		start := time.Now()
		hits, err := h.engine.ResolveBlast(spatial.Vec{m.X, m.Y, m.Z}, m.Radius, m.Damage)
		ObserveQuery("blast", time.Since(start))
		if err != nil {
			return fail(err)
		}
		out := make([]BlastHitState, len(hits))
		for i, hit := range hits {
			out[i] = BlastHitState{ID: uint64(hit.ID), Damage: hit.Damage, Died: hit.Died}
		}
		return Envelope{T: MsgBlastResult, Data: BlastResultMsg{Hits: out}}

	case MsgStats:
		ground, world := h.engine.IndexStats()
		return Envelope{T: MsgStatsResult, Data: map[string]interface{}{
			"entities": h.engine.Size(),
			"ground":   ground,
			"world":    world,
		}}

	default:
		return Envelope{T: MsgError, Data: ErrorMsg{Msg: "unknown message type: " + env.T}}
	}
}
