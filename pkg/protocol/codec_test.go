package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landerlink/lander/pkg/geometry"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		d    Directive
		body any
		want string
	}{
		{"broadcast", BroadcastAll(), GameControl{Game: GameStart}, "broadcast:\n{\"game\":\"start\"}"},
		{"unicast", Directive{Kind: To, Target: "abc"}, HostConfirm{Host: true}, "to:abc\n{\"host\":true}"},
		{"disconnect", DisconnectPlayer("abc"), struct{}{}, "disconnect:abc\n{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.d, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestSplitFrame(t *testing.T) {
	frame, err := Encode(Directive{Kind: To, Target: "p1"}, PlayerJoin{Token: "p1", Name: "Neil"})
	require.NoError(t, err)

	d, body, err := SplitFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, Directive{Kind: To, Target: "p1"}, d)
	assert.JSONEq(t, `{"token":"p1","name":"Neil"}`, string(body))
}

func TestParseDirective_Errors(t *testing.T) {
	for _, line := range []string{"broadcast", "to:", "disconnect:", "shout:all", ""} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseDirective(line)
			assert.ErrorIs(t, err, ErrInvalidDirective)
		})
	}
}

func TestSplitFrame_NoBody(t *testing.T) {
	_, _, err := SplitFrame([]byte("broadcast:"))
	assert.ErrorIs(t, err, ErrInvalidDirective)
}

func TestDecode_HostConfirm(t *testing.T) {
	msg, err := Decode([]byte(`{"host":true}`))
	require.NoError(t, err)
	assert.Equal(t, KindHostConfirm, msg.Kind)
	require.NotNil(t, msg.HostConfirm)
}

func TestDecode_HostFalseRejected(t *testing.T) {
	_, err := Decode([]byte(`{"host":false}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestDecode_PlayerJoin(t *testing.T) {
	msg, err := Decode([]byte(`{"token":"t-1","name":"Buzz"}`))
	require.NoError(t, err)
	assert.Equal(t, KindPlayerJoin, msg.Kind)
	assert.Equal(t, "t-1", msg.PlayerJoin.Token)
	assert.Equal(t, "Buzz", msg.PlayerJoin.Name)
}

func TestDecode_CommandBatch(t *testing.T) {
	body := `{"token":"t-1","commands":[
		{"engine":"on","rotation":"left","tick":12},
		{"engine":"off","rotation":"off"}
	]}`

	msg, err := Decode([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, KindCommandBatch, msg.Kind)
	require.Len(t, msg.Commands.Commands, 2)
	assert.Equal(t, CommandPayload{Engine: EngineOn, Rotation: RotationLeft, Tick: 12}, msg.Commands.Commands[0])
	assert.Equal(t, uint64(0), msg.Commands.Commands[1].Tick)
}

func TestDecode_CommandBatchInvalidValues(t *testing.T) {
	_, err := Decode([]byte(`{"token":"t-1","commands":[{"engine":"boost","rotation":"off","tick":1}]}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"token":"t-1","commands":[{"engine":"on","rotation":"up","tick":1}]}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"token":"t-1","commands":{"engine":"on"}}`))
	assert.Error(t, err)
}

func TestDecode_WorldSnapshot(t *testing.T) {
	w := WorldSnapshot{
		Terrain: []geometry.Point{{X: 0, Y: 10}, {X: 5, Y: 12}},
		Flag:    geometry.Point{X: 5, Y: 12},
	}
	raw, err := json.Marshal(w)
	require.NoError(t, err)

	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindWorldSnapshot, msg.Kind)
	assert.Equal(t, w, *msg.World)
}

func TestDecode_GameControl(t *testing.T) {
	msg, err := Decode([]byte(`{"game":"start"}`))
	require.NoError(t, err)
	assert.Equal(t, KindGameControl, msg.Kind)
	assert.Equal(t, GameStart, msg.Game.Game)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"token only", `{"token":"x"}`},
		{"name only", `{"name":"x"}`},
		{"terrain without flag", `{"terrain":[]}`},
		{"empty token join", `{"token":"","name":"x"}`},
		{"not json", `hello`},
		{"array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMessageString(t *testing.T) {
	msg, err := Decode([]byte(`{"token":"t-1","commands":[{"engine":"on","rotation":"off","tick":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, "command_batch(token=t-1 commands=1)", msg.String())
}
