// Package protocol defines the relay wire format: the directive envelope
// written by clients and the JSON bodies exchanged between participants.
package protocol

import (
	"fmt"

	"github.com/landerlink/lander/pkg/geometry"
)

// Kind tags a decoded message body.
type Kind string

// Message kinds, one per accepted body shape.
const (
	KindHostConfirm   Kind = "host_confirm"
	KindPlayerJoin    Kind = "player_join"
	KindWorldSnapshot Kind = "world_snapshot"
	KindCommandBatch  Kind = "command_batch"
	KindGameControl   Kind = "game_control"
)

// Engine is the commanded engine state.
type Engine string

const (
	EngineOff Engine = "off"
	EngineOn  Engine = "on"
)

// Valid reports whether e is a known engine state.
func (e Engine) Valid() bool {
	return e == EngineOff || e == EngineOn
}

// Rotation is the commanded rotation input.
type Rotation string

const (
	RotationOff   Rotation = "off"
	RotationLeft  Rotation = "left"
	RotationRight Rotation = "right"
)

// Valid reports whether r is a known rotation input.
func (r Rotation) Valid() bool {
	return r == RotationOff || r == RotationLeft || r == RotationRight
}

// HostConfirm is sent by the relay to the session that hosts the match.
type HostConfirm struct {
	Host bool `json:"host"`
}

// PlayerJoin announces a new player. Color is assigned by the receiver.
type PlayerJoin struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// WorldSnapshot carries the shared foreground terrain and flag position.
type WorldSnapshot struct {
	Terrain []geometry.Point `json:"terrain"`
	Flag    geometry.Point   `json:"flag"`
}

// CommandPayload is a single stamped control instruction. A zero Tick means
// the command is due immediately.
type CommandPayload struct {
	Engine   Engine   `json:"engine"`
	Rotation Rotation `json:"rotation"`
	Tick     uint64   `json:"tick,omitempty"`
}

// CommandBatch carries the commands of one player.
type CommandBatch struct {
	Token    string           `json:"token"`
	Commands []CommandPayload `json:"commands"`
}

// GameControl signals match lifecycle changes, e.g. {"game":"start"}.
type GameControl struct {
	Game string `json:"game"`
}

// GameStart is the lifecycle value broadcast when the match starts.
const GameStart = "start"

// Message is a decoded body. Exactly one payload field is set, selected by Kind.
type Message struct {
	Kind        Kind
	HostConfirm *HostConfirm
	PlayerJoin  *PlayerJoin
	World       *WorldSnapshot
	Commands    *CommandBatch
	Game        *GameControl
}

// String implements fmt.Stringer for log output.
func (m Message) String() string {
	switch m.Kind {
	case KindPlayerJoin:
		return fmt.Sprintf("%s(token=%s name=%s)", m.Kind, m.PlayerJoin.Token, m.PlayerJoin.Name)
	case KindCommandBatch:
		return fmt.Sprintf("%s(token=%s commands=%d)", m.Kind, m.Commands.Token, len(m.Commands.Commands))
	case KindWorldSnapshot:
		return fmt.Sprintf("%s(points=%d)", m.Kind, len(m.World.Terrain))
	case KindGameControl:
		return fmt.Sprintf("%s(%s)", m.Kind, m.Game.Game)
	default:
		return string(m.Kind)
	}
}
