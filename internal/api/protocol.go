package api

import (
	"github.com/vmihailenco/msgpack/v5"
)

// WebSocket wire protocol. Messages are msgpack-encoded envelopes: a type
// tag plus a payload. msgpack keeps per-tick position updates compact
// compared to JSON, which matters at 30 updates per second per entity.

// Client -> server message types
const (
	MsgSpawn   = "spawn"
	MsgMove    = "move"
	MsgRemove  = "remove"
	MsgQuery   = "query"
	MsgNearest = "nearest"
	MsgBlast   = "blast"
	MsgStats   = "stats"
)

// Server -> client message types
const (
	MsgSpawned     = "spawned"
	MsgResult      = "result"
	MsgTarget      = "target"
	MsgNoTarget    = "no_target"
	MsgBlastResult = "blast_result"
	MsgStatsResult = "stats_result"
	MsgOK          = "ok"
	MsgError       = "error"
)

// Envelope wraps all outgoing messages with a type field.
type Envelope struct {
	T    string      `msgpack:"t"`
	Data interface{} `msgpack:"d,omitempty"`
}

// InEnvelope is used for incoming messages; RawMessage defers payload
// decoding until the type is known.
type InEnvelope struct {
	T string             `msgpack:"t"`
	D msgpack.RawMessage `msgpack:"d,omitempty"`
}

// SpawnMsg creates an entity.
type SpawnMsg struct {
	Kind   uint8   `msgpack:"k"`
	Team   int     `msgpack:"tm"`
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	Z      float64 `msgpack:"z"`
	HP     int     `msgpack:"hp"`
	Radius float64 `msgpack:"r"`
}

// MoveMsg is the per-tick position feed for one entity.
type MoveMsg struct {
	ID uint64  `msgpack:"id"`
	X  float64 `msgpack:"x"`
	Y  float64 `msgpack:"y"`
	Z  float64 `msgpack:"z"`
}

// RemoveMsg despawns an entity.
type RemoveMsg struct {
	ID uint64 `msgpack:"id"`
}

// QueryMsg is a radius query. Dims selects the index: 2 for the
// horizontal plane, 3 for full 3D.
type QueryMsg struct {
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	Z      float64 `msgpack:"z"`
	Radius float64 `msgpack:"r"`
	Dims   int     `msgpack:"dims"`
}

// NearestMsg asks for the closest hostile to an entity.
type NearestMsg struct {
	ID      uint64  `msgpack:"id"`
	MaxDist float64 `msgpack:"max"`
}

// BlastMsg resolves an explosion.
type BlastMsg struct {
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
	Z      float64 `msgpack:"z"`
	Radius float64 `msgpack:"r"`
	Damage int     `msgpack:"dmg"`
}

// EntityState is one entity in a query result.
type EntityState struct {
	ID     uint64  `msgpack:"id" json:"id"`
	Kind   string  `msgpack:"k" json:"kind"`
	Team   int     `msgpack:"tm" json:"team"`
	X      float64 `msgpack:"x" json:"x"`
	Y      float64 `msgpack:"y" json:"y"`
	Z      float64 `msgpack:"z" json:"z"`
	HP     int     `msgpack:"hp" json:"hp"`
	Radius float64 `msgpack:"r" json:"radius"`
}

// SpawnedMsg acknowledges a spawn with the assigned ID.
type SpawnedMsg struct {
	ID uint64 `msgpack:"id"`
}

// ResultMsg carries query hits.
type ResultMsg struct {
	Entities []EntityState `msgpack:"e"`
}

// BlastHitState is one entity affected by a blast.
type BlastHitState struct {
	ID     uint64 `msgpack:"id" json:"id"`
	Damage int    `msgpack:"dmg" json:"damage"`
	Died   bool   `msgpack:"died" json:"died"`
}

// BlastResultMsg carries blast outcomes.
type BlastResultMsg struct {
	Hits []BlastHitState `msgpack:"h"`
}

// ErrorMsg reports a rejected message. The connection stays open; a bad
// position from one update must not kill the feed.
type ErrorMsg struct {
	Msg string `msgpack:"msg"`
}
