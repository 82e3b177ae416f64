package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMessage is returned when a body matches none of the known shapes.
var ErrUnknownMessage = errors.New("unknown message shape")

// ErrInvalidDirective is returned for malformed envelope headers.
var ErrInvalidDirective = errors.New("invalid directive")

// DirectiveKind selects how the relay delivers a frame.
type DirectiveKind string

const (
	Broadcast  DirectiveKind = "broadcast"
	To         DirectiveKind = "to"
	Disconnect DirectiveKind = "disconnect"
)

// Directive is the first line of every frame sent to the relay.
type Directive struct {
	Kind   DirectiveKind
	Target string
}

// BroadcastAll addresses every participant.
func BroadcastAll() Directive {
	return Directive{Kind: Broadcast}
}

// DisconnectPlayer asks the relay to drop a participant.
func DisconnectPlayer(token string) Directive {
	return Directive{Kind: Disconnect, Target: token}
}

func (d Directive) String() string {
	return string(d.Kind) + ":" + d.Target
}

// ParseDirective parses a "<directive>:<target>" header line.
func ParseDirective(line string) (Directive, error) {
	kind, target, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok {
		return Directive{}, fmt.Errorf("%w: missing separator in %q", ErrInvalidDirective, line)
	}
	d := Directive{Kind: DirectiveKind(kind), Target: target}
	switch d.Kind {
	case Broadcast:
	case To, Disconnect:
		if target == "" {
			return Directive{}, fmt.Errorf("%w: %s requires a target", ErrInvalidDirective, kind)
		}
	default:
		return Directive{}, fmt.Errorf("%w: unknown directive %q", ErrInvalidDirective, kind)
	}
	return d, nil
}

// Encode builds a relay frame: the directive line, a newline and the JSON body.
func Encode(d Directive, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", d.Kind, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(raw) + len(d.Kind) + len(d.Target) + 2)
	buf.WriteString(d.String())
	buf.WriteByte('\n')
	buf.Write(raw)
	return buf.Bytes(), nil
}

// SplitFrame separates a relay frame into its directive and raw JSON body.
func SplitFrame(frame []byte) (Directive, []byte, error) {
	header, body, ok := bytes.Cut(frame, []byte("\n"))
	if !ok {
		return Directive{}, nil, fmt.Errorf("%w: frame has no body", ErrInvalidDirective)
	}
	d, err := ParseDirective(string(header))
	if err != nil {
		return Directive{}, nil, err
	}
	return d, body, nil
}

// probe captures which fields are present in an incoming body.
type probe struct {
	Host     *bool           `json:"host"`
	Token    *string         `json:"token"`
	Name     *string         `json:"name"`
	Commands json.RawMessage `json:"commands"`
	Terrain  json.RawMessage `json:"terrain"`
	Flag     json.RawMessage `json:"flag"`
	Game     *string         `json:"game"`
}

// Decode parses a message body once into its tagged variant. Bodies that do
// not match a known shape, or carry invalid values, are rejected.
func Decode(data []byte) (Message, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return Message{}, fmt.Errorf("decode body: %w", err)
	}

	switch {
	case p.Host != nil:
		if !*p.Host {
			return Message{}, fmt.Errorf("%w: host flag is false", ErrUnknownMessage)
		}
		return Message{Kind: KindHostConfirm, HostConfirm: &HostConfirm{Host: true}}, nil

	case p.Token != nil && p.Commands != nil:
		batch := CommandBatch{Token: *p.Token}
		if err := json.Unmarshal(p.Commands, &batch.Commands); err != nil {
			return Message{}, fmt.Errorf("decode commands: %w", err)
		}
		for i, c := range batch.Commands {
			if !c.Engine.Valid() || !c.Rotation.Valid() {
				return Message{}, fmt.Errorf("command %d: invalid engine %q or rotation %q", i, c.Engine, c.Rotation)
			}
		}
		if batch.Token == "" {
			return Message{}, fmt.Errorf("%w: empty token", ErrUnknownMessage)
		}
		return Message{Kind: KindCommandBatch, Commands: &batch}, nil

	case p.Token != nil && p.Name != nil:
		if *p.Token == "" {
			return Message{}, fmt.Errorf("%w: empty token", ErrUnknownMessage)
		}
		return Message{Kind: KindPlayerJoin, PlayerJoin: &PlayerJoin{Token: *p.Token, Name: *p.Name}}, nil

	case p.Terrain != nil && p.Flag != nil:
		var w WorldSnapshot
		if err := json.Unmarshal(data, &w); err != nil {
			return Message{}, fmt.Errorf("decode world snapshot: %w", err)
		}
		return Message{Kind: KindWorldSnapshot, World: &w}, nil

	case p.Game != nil:
		return Message{Kind: KindGameControl, Game: &GameControl{Game: *p.Game}}, nil
	}

	return Message{}, ErrUnknownMessage
}
