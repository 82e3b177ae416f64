package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landerlink/lander/internal/lander"
	"github.com/landerlink/lander/internal/loop"
	"github.com/landerlink/lander/internal/match"
	"github.com/landerlink/lander/pkg/geometry"
)

type fakeWriter struct {
	points []*influxdb2_write.Point
	err    error
}

func (f *fakeWriter) WritePoint(p *influxdb2_write.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, p)
	return nil
}

func snapshot(phase match.Phase) *match.Snapshot {
	a := lander.New("p1", "#ff0000", lander.Spawn, lander.FullFuel)
	b := lander.New("p2", "#00ff00", geometry.Point{X: 1900, Y: 120}, 420)
	b.Outcome = lander.Landed
	b.OnTarget = true
	return &match.Snapshot{
		Tick:    42,
		Phase:   phase,
		Players: []match.Player{{Token: "p1"}, {Token: "p2"}},
		Landers: []lander.Lander{a, b},
		Pending: 3,
		Flag:    geometry.Point{X: 2000, Y: 100},
	}
}

func fields(p *influxdb2_write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *influxdb2_write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestLanderPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := lander.New("p1", "#ff0000", geometry.Point{X: 10, Y: 20}, 500)
	l.Velocity = geometry.Vector{X: 0.5, Y: -1}
	l.BurnTicks = 7

	p := LanderPoint("session-1", 99, l, ts)

	assert.Equal(t, MeasurementLander, p.Name())
	assert.Equal(t, ts, p.Time())
	assert.Equal(t, map[string]string{"session": "session-1", "token": "p1", "outcome": "flying"}, tags(p))

	f := fields(p)
	assert.Equal(t, uint64(99), f["tick"])
	assert.Equal(t, 10.0, f["x"])
	assert.Equal(t, 20.0, f["y"])
	assert.Equal(t, 0.5, f["vx"])
	assert.Equal(t, -1.0, f["vy"])
	assert.Equal(t, 500.0, f["fuel"])
	assert.Equal(t, uint64(7), f["burnTicks"])
	assert.Equal(t, false, f["onTarget"])

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.True(t, strings.HasPrefix(line, "lander,outcome=flying,session=session-1,token=p1 "), line)
	assert.Contains(t, line, "tick=99u")
}

func TestInflux_Observe(t *testing.T) {
	w := &fakeWriter{}
	times := loop.NewTimes()
	times.AddTick(2 * time.Millisecond)
	o := NewInflux(w, "s", times)
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	require.NoError(t, o.Observe(snapshot(match.Started)))

	require.Len(t, w.points, 3)
	assert.Equal(t, "p1", tags(w.points[0])["token"])
	assert.Equal(t, "landed", tags(w.points[1])["outcome"])
	assert.Equal(t, true, fields(w.points[1])["onTarget"])

	lp := w.points[2]
	assert.Equal(t, MeasurementLoop, lp.Name())
	assert.Equal(t, 2.0, fields(lp)["tickMeanMs"])
	assert.Equal(t, int64(3), fields(lp)["pending"])
	for _, p := range w.points {
		assert.Equal(t, fixed, p.Time())
	}
}

func TestInflux_SkipsUntilStarted(t *testing.T) {
	w := &fakeWriter{}
	o := NewInflux(w, "s", nil)

	require.NoError(t, o.Observe(snapshot(match.HostConfirmed)))
	assert.Empty(t, w.points)

	require.NoError(t, o.Observe(snapshot(match.Started)))
	assert.Len(t, w.points, 2)
}

func TestInflux_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("backup unavailable")}
	o := NewInflux(w, "s", nil)

	assert.EqualError(t, o.Observe(snapshot(match.Started)), "backup unavailable")
}

func TestLog_Observe(t *testing.T) {
	var buf bytes.Buffer
	o := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, o.Observe(snapshot(match.Started)))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "match status", rec["msg"])
	assert.Equal(t, 42.0, rec["tick"])
	assert.Equal(t, "started", rec["phase"])
	assert.Equal(t, 1.0, rec["flying"])
	assert.Equal(t, 1.0, rec["landed"])
	assert.Equal(t, 0.0, rec["crashed"])

	focus, ok := rec["focus"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p2", focus["token"])
	assert.Equal(t, "landed", focus["outcome"])
}

func TestLog_ObserveWithoutLanders(t *testing.T) {
	var buf bytes.Buffer
	o := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, o.Observe(&match.Snapshot{Phase: match.HostConfirmed}))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "focus")
	assert.Equal(t, "host_confirmed", rec["phase"])
}
