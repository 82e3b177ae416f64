// Package telemetry holds the snapshot observers: a status line in the log
// and per-lander points for InfluxDB.
package telemetry

import (
	"log/slog"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/landerlink/lander/internal/lander"
	"github.com/landerlink/lander/internal/loop"
	"github.com/landerlink/lander/internal/match"
)

const (
	MeasurementLander = "lander"
	MeasurementLoop   = "loop"
)

// PointWriter is satisfied by *influx.Manager.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Log reports the match state through slog.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Observe logs one status record per snapshot, centred on the lander
// closest to the flag.
func (o *Log) Observe(s *match.Snapshot) error {
	counts := s.Counts()
	attrs := []any{
		"tick", s.Tick,
		"phase", s.Phase,
		"players", len(s.Players),
		"pending", s.Pending,
		"flying", counts[lander.Flying],
		"landed", counts[lander.Landed],
		"crashed", counts[lander.Crashed],
	}
	if l, ok := s.Focus(); ok {
		attrs = append(attrs, slog.Group("focus",
			"token", l.Token,
			"x", l.Position.X,
			"y", l.Position.Y,
			"speed", l.Speed(),
			"fuel", l.Fuel,
			"outcome", l.Outcome,
		))
	}
	o.logger.Info("match status", attrs...)
	return nil
}

// Influx writes a point per lander and one for the loop timings.
type Influx struct {
	writer  PointWriter
	session string
	times   *loop.Times
	now     func() time.Time
}

// NewInflux creates the observer. times may be nil.
func NewInflux(w PointWriter, session string, times *loop.Times) *Influx {
	return &Influx{writer: w, session: session, times: times, now: time.Now}
}

// Observe writes the snapshot. Nothing is written before the match starts.
func (o *Influx) Observe(s *match.Snapshot) error {
	if s.Phase != match.Started {
		return nil
	}
	t := o.now()
	for _, l := range s.Landers {
		if err := o.writer.WritePoint(LanderPoint(o.session, s.Tick, l, t)); err != nil {
			return err
		}
	}
	if o.times == nil {
		return nil
	}
	return o.writer.WritePoint(LoopPoint(o.session, s, o.times.Stats(), t))
}

// LanderPoint converts one lander into a point.
func LanderPoint(session string, tick uint64, l lander.Lander, t time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementLander,
		map[string]string{
			"session": session,
			"token":   l.Token,
			"outcome": string(l.Outcome),
		},
		map[string]any{
			"tick":      tick,
			"x":         l.Position.X,
			"y":         l.Position.Y,
			"vx":        l.Velocity.X,
			"vy":        l.Velocity.Y,
			"angle":     l.Angle,
			"fuel":      l.Fuel,
			"burnTicks": l.BurnTicks,
			"onTarget":  l.OnTarget,
		},
		t,
	)
}

// LoopPoint records the loop health at a snapshot.
func LoopPoint(session string, s *match.Snapshot, stats loop.Stats, t time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementLoop,
		map[string]string{"session": session},
		map[string]any{
			"tick":          s.Tick,
			"players":       len(s.Players),
			"pending":       s.Pending,
			"tickMeanMs":    ms(stats.Tick.Mean),
			"tickMaxMs":     ms(stats.Tick.Max),
			"observeMeanMs": ms(stats.Observe.Mean),
			"observeMaxMs":  ms(stats.Observe.Max),
		},
		t,
	)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
