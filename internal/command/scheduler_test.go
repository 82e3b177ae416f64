package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landerlink/lander/pkg/protocol"
)

func cmd(token string, tick uint64, engine protocol.Engine) Command {
	return Command{Token: token, Engine: engine, Rotation: protocol.RotationOff, Tick: tick}
}

func TestScheduler_DueIsAtOrBefore(t *testing.T) {
	s := NewScheduler(0)
	_, err := s.Enqueue(
		cmd("a", 5, protocol.EngineOn),
		cmd("a", 3, protocol.EngineOff),
		cmd("b", 2, protocol.EngineOn),
		cmd("a", 9, protocol.EngineOn),
	)
	require.NoError(t, err)

	assert.Empty(t, s.Due(2, "a"))
	assert.Equal(t, []Command{cmd("a", 3, protocol.EngineOff)}, s.Due(3, "a"))
	assert.Equal(t, []Command{cmd("a", 5, protocol.EngineOn), cmd("a", 3, protocol.EngineOff)}, s.Due(7, "a"))
	assert.Equal(t, []Command{cmd("b", 2, protocol.EngineOn)}, s.Due(7, "b"))
	assert.Equal(t, 4, s.Len(), "Due must not consume")
}

func TestScheduler_SweepDropsDueAndOverdue(t *testing.T) {
	s := NewScheduler(0)
	_, _ = s.Enqueue(cmd("a", 1, protocol.EngineOn), cmd("b", 4, protocol.EngineOn), cmd("a", 6, protocol.EngineOn))

	assert.Equal(t, 2, s.Sweep(4))
	assert.Equal(t, []Command{cmd("a", 6, protocol.EngineOn)}, s.backlog)
	assert.Equal(t, 0, s.Sweep(5))
	assert.Equal(t, 1, s.Sweep(6))
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_ZeroTickIsImmediate(t *testing.T) {
	s := NewScheduler(0)
	_, _ = s.Enqueue(cmd("a", 0, protocol.EngineOn))

	assert.Len(t, s.Due(0, "a"), 1)
}

// Every command is applied in exactly one tick: the first tick >= its stamp
// at which it is present in the backlog.
func TestScheduler_AtMostOnce(t *testing.T) {
	s := NewScheduler(0)
	applied := map[Command][]uint64{}

	// stamped commands arrive at different ticks; some arrive after their stamp
	arrivals := map[uint64][]Command{
		0:  {cmd("a", 3, protocol.EngineOn)},
		2:  {cmd("b", 1, protocol.EngineOn)}, // late by one tick
		4:  {cmd("a", 10, protocol.EngineOff)},
		11: {cmd("b", 11, protocol.EngineOff)},
	}

	for tick := uint64(0); tick <= 20; tick++ {
		_, err := s.Enqueue(arrivals[tick]...)
		require.NoError(t, err)

		for token, cmds := range s.Release(tick) {
			for _, c := range cmds {
				assert.Equal(t, token, c.Token)
				applied[c] = append(applied[c], tick)
			}
		}

		for _, c := range s.backlog {
			assert.Greater(t, c.Tick, tick, "nothing due may survive its tick")
		}
	}

	assert.Equal(t, []uint64{3}, applied[cmd("a", 3, protocol.EngineOn)])
	assert.Equal(t, []uint64{2}, applied[cmd("b", 1, protocol.EngineOn)])
	assert.Equal(t, []uint64{10}, applied[cmd("a", 10, protocol.EngineOff)])
	assert.Equal(t, []uint64{11}, applied[cmd("b", 11, protocol.EngineOff)])
	assert.Len(t, applied, 4)
}

func TestScheduler_ReleaseKeepsArrivalOrder(t *testing.T) {
	s := NewScheduler(0)
	_, _ = s.Enqueue(
		cmd("a", 2, protocol.EngineOn),
		cmd("a", 1, protocol.EngineOff),
		cmd("a", 2, protocol.EngineOff),
	)

	due := s.Release(2)
	require.Len(t, due["a"], 3)
	assert.Equal(t, protocol.EngineOn, due["a"][0].Engine)
	assert.Equal(t, protocol.EngineOff, due["a"][2].Engine)
	assert.Equal(t, uint64(1), due["a"][1].Tick)
}

func TestScheduler_Cap(t *testing.T) {
	s := NewScheduler(3)

	dropped, err := s.Enqueue(cmd("a", 5, protocol.EngineOn), cmd("a", 6, protocol.EngineOn))
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)

	dropped, err = s.Enqueue(cmd("a", 7, protocol.EngineOn), cmd("a", 8, protocol.EngineOn))
	assert.ErrorIs(t, err, ErrBacklogFull)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 3, s.Len())

	s.Sweep(6)
	dropped, err = s.Enqueue(cmd("a", 9, protocol.EngineOn))
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
}

func TestScheduler_CapIsPerToken(t *testing.T) {
	s := NewScheduler(2)

	dropped, err := s.Enqueue(
		cmd("flood", 1<<40, protocol.EngineOn),
		cmd("flood", 1<<40, protocol.EngineOn),
		cmd("flood", 1<<40, protocol.EngineOn),
	)
	assert.ErrorIs(t, err, ErrBacklogFull)
	assert.Equal(t, 1, dropped)

	dropped, err = s.Enqueue(cmd("b", 3, protocol.EngineOn), cmd("c", 3, protocol.EngineOn))
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, 4, s.Len())

	due := s.Release(3)
	assert.Len(t, due["b"], 1)
	assert.Len(t, due["c"], 1)
	assert.Equal(t, map[string]int{"flood": 2}, s.counts, "swept tokens free their slots")
}

func TestBatchConversion(t *testing.T) {
	batch := &protocol.CommandBatch{
		Token: "p1",
		Commands: []protocol.CommandPayload{
			{Engine: protocol.EngineOn, Rotation: protocol.RotationLeft, Tick: 4},
			{Engine: protocol.EngineOff, Rotation: protocol.RotationRight, Tick: 5},
		},
	}

	cmds := FromBatch(batch)
	require.Len(t, cmds, 2)
	assert.Equal(t, Command{Token: "p1", Engine: protocol.EngineOn, Rotation: protocol.RotationLeft, Tick: 4}, cmds[0])
	assert.Equal(t, Command{Token: "p1", Engine: protocol.EngineOff, Rotation: protocol.RotationRight, Tick: 5}, cmds[1])
}
