// Package match holds the replicated state of one game: the generated world,
// the connection phase, the roster and the landers. A Match is driven by a
// single goroutine; other goroutines only read published snapshots.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/landerlink/lander/internal/command"
	"github.com/landerlink/lander/internal/geo"
	"github.com/landerlink/lander/internal/lander"
	"github.com/landerlink/lander/internal/rng"
	"github.com/landerlink/lander/internal/terrain"
	"github.com/landerlink/lander/pkg/geometry"
	"github.com/landerlink/lander/pkg/protocol"
)

// Sender delivers a body to the relay under a directive.
type Sender interface {
	Send(d protocol.Directive, body any) error
}

// ColorFunc derives a player color from a name.
type ColorFunc func(name string) string

// Config is the match setup shared by every participant.
type Config struct {
	Terrain    terrain.Params
	Background terrain.Params
	Flatness   float64
	Physics    lander.Params
	BacklogCap int
	// Horizon is how many ticks past the current one a command may be
	// stamped. 0 disables the check.
	Horizon uint64
	Spawn      geometry.Point
	Fuel       float64
}

// DefaultHorizon is ten seconds of ticks at the default cadence.
const DefaultHorizon = 400

// DefaultConfig returns the standard match setup.
func DefaultConfig() Config {
	return Config{
		Terrain:    terrain.ForegroundParams,
		Background: terrain.BackgroundParams,
		Flatness:   terrain.DefaultFlatness,
		Physics:    lander.DefaultParams,
		BacklogCap: command.DefaultCap,
		Horizon:    DefaultHorizon,
		Spawn:      lander.Spawn,
		Fuel:       lander.FullFuel,
	}
}

// Player is a roster entry. Color is assigned once at join.
type Player struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// World is the immutable generated part of a match.
type World struct {
	Foreground terrain.Terrain
	Background terrain.Terrain
	Flag       geometry.Point
}

// Match is the aggregate state of one game.
type Match struct {
	cfg    Config
	world  World
	sender Sender
	color  ColorFunc
	logger *slog.Logger

	phase     atomic.Int32
	roster    []Player
	landers   []lander.Lander
	scheduler *command.Scheduler
	tick      uint64

	snapshot atomic.Pointer[Snapshot]
}

// New generates the world from src and returns a match awaiting host
// confirmation. The foreground, the background and the flag consume src in
// that order; participants seeded alike get identical worlds. An error here
// is fatal for the match: no tick may run on a broken world.
func New(cfg Config, src rng.Source, sender Sender, color ColorFunc, logger *slog.Logger) (*Match, error) {
	fg, err := terrain.Generate(cfg.Terrain, src)
	if err != nil {
		return nil, fmt.Errorf("generating foreground: %w", err)
	}
	bg, err := terrain.Background(cfg.Background, src)
	if err != nil {
		return nil, fmt.Errorf("generating background: %w", err)
	}
	flag, err := terrain.PlaceFlag(fg, src, cfg.Flatness)
	if err != nil {
		return nil, fmt.Errorf("placing flag: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	m := &Match{
		cfg:       cfg,
		world:     World{Foreground: fg, Background: bg, Flag: flag},
		sender:    sender,
		color:     color,
		logger:    logger,
		scheduler: command.NewScheduler(cfg.BacklogCap),
	}
	m.publish()

	logger.Info("world generated",
		"points", len(fg),
		"width", fg.Width(),
		"flagX", flag.X,
		"flagY", flag.Y,
	)
	return m, nil
}

// NewSessionID returns a random identifier for this client's session.
func NewSessionID() string {
	return uuid.NewString()
}

// World returns the generated terrains and flag.
func (m *Match) World() World {
	return m.world
}

// Phase is safe to call from any goroutine.
func (m *Match) Phase() Phase {
	return Phase(m.phase.Load())
}

// Snapshot returns the latest published state. Safe for concurrent use.
func (m *Match) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Handle applies one inbound message. Messages that are not accepted in the
// current phase return an error wrapping ErrDropped and change nothing.
func (m *Match) Handle(msg protocol.Message) error {
	phase := m.Phase()
	switch {
	case phase == Initializing && msg.Kind == protocol.KindHostConfirm:
		m.setPhase(HostConfirmed)
		m.logger.Info("host confirmed")
	case phase == HostConfirmed && msg.Kind == protocol.KindPlayerJoin:
		return m.join(*msg.PlayerJoin)
	case phase == Started && msg.Kind == protocol.KindCommandBatch:
		return m.enqueue(msg.Commands)
	default:
		return fmt.Errorf("%w: %s in %s", ErrWrongPhase, msg.Kind, phase)
	}
	m.publish()
	return nil
}

func (m *Match) join(p protocol.PlayerJoin) error {
	if slices.ContainsFunc(m.roster, func(e Player) bool { return e.Token == p.Token }) {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.Token)
	}

	player := Player{Token: p.Token, Name: p.Name}
	if m.color != nil {
		player.Color = m.color(p.Name)
	}

	m.roster = append(slices.Clip(m.roster), player)
	m.landers = append(slices.Clip(m.landers), lander.New(player.Token, player.Color, m.cfg.Spawn, m.cfg.Fuel))
	m.publish()

	m.logger.Info("player joined", "token", player.Token, "name", player.Name, "color", player.Color, "players", len(m.roster))

	world := protocol.WorldSnapshot{Terrain: m.world.Foreground, Flag: m.world.Flag}
	if err := m.send(protocol.BroadcastAll(), world); err != nil {
		m.logger.Error("broadcasting world failed", "token", player.Token, "error", err)
	}
	return nil
}

func (m *Match) enqueue(batch *protocol.CommandBatch) error {
	if !slices.ContainsFunc(m.roster, func(e Player) bool { return e.Token == batch.Token }) {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, batch.Token)
	}

	cmds := command.FromBatch(batch)
	var ahead int
	if m.cfg.Horizon > 0 {
		limit := m.tick + m.cfg.Horizon
		cmds = slices.DeleteFunc(cmds, func(c command.Command) bool {
			if c.Tick > limit {
				ahead++
				return true
			}
			return false
		})
	}

	_, err := m.scheduler.Enqueue(cmds...)
	switch {
	case errors.Is(err, command.ErrBacklogFull):
		return fmt.Errorf("%w: %s: %w", ErrDropped, batch.Token, err)
	case err != nil:
		return err
	case ahead > 0:
		return fmt.Errorf("%w: %s: %d of %d past tick %d", ErrBeyondHorizon, batch.Token, ahead, len(batch.Commands), m.tick+m.cfg.Horizon)
	}
	return nil
}

// Start moves a confirmed match into play and announces it to the players.
func (m *Match) Start() error {
	if phase := m.Phase(); phase != HostConfirmed {
		return fmt.Errorf("%w: %s", ErrNotReady, phase)
	}
	m.setPhase(Started)
	m.publish()
	m.logger.Info("match started", "players", len(m.roster))

	if err := m.send(protocol.BroadcastAll(), protocol.GameControl{Game: protocol.GameStart}); err != nil {
		m.logger.Error("broadcasting start failed", "error", err)
	}
	return nil
}

// Step simulates the current tick for every lander in roster order, drops
// every command stamped at or before it and publishes the result. It does
// nothing unless the match is started.
func (m *Match) Step() *Snapshot {
	if m.Phase() != Started {
		return m.Snapshot()
	}

	due := m.scheduler.Release(m.tick)

	next := make([]lander.Lander, len(m.landers))
	w := lander.World{Terrain: m.world.Foreground, Flag: m.world.Flag}
	for i, l := range m.landers {
		next[i] = m.cfg.Physics.Tick(m.tick, due[l.Token], l, w)
		if next[i].Outcome != l.Outcome {
			m.logger.Info("touchdown",
				"token", l.Token,
				"outcome", next[i].Outcome,
				"onTarget", next[i].OnTarget,
				"tick", m.tick,
			)
			m.logFootprint(next[i])
		}
	}
	m.landers = next

	s := m.publishAt(m.tick)
	m.tick++
	return s
}

// Teardown closes the match and asks the relay to disconnect every player.
// Later messages are dropped.
func (m *Match) Teardown() {
	if m.Phase() == Closed {
		return
	}
	m.setPhase(Closed)
	m.publish()

	for _, p := range m.roster {
		if err := m.send(protocol.DisconnectPlayer(p.Token), struct{}{}); err != nil {
			m.logger.Error("disconnect failed", "token", p.Token, "error", err)
		}
	}
	m.logger.Info("match closed", "ticks", m.tick)
}

// logFootprint records where a lander came to rest as WKT, for replaying a
// disputed touchdown.
func (m *Match) logFootprint(l lander.Lander) {
	if !m.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	ring, err := geo.FootprintRing(lander.Footprint(l))
	if err != nil {
		return
	}
	m.logger.Debug("touchdown footprint", "token", l.Token, "wkt", ring.AsText())
}

func (m *Match) setPhase(p Phase) {
	m.phase.Store(int32(p))
}

func (m *Match) send(d protocol.Directive, body any) error {
	if m.sender == nil {
		return nil
	}
	return m.sender.Send(d, body)
}

// publish stores a fresh snapshot. Outside Step the tick of the previous
// snapshot is kept.
func (m *Match) publish() *Snapshot {
	var tick uint64
	if prev := m.snapshot.Load(); prev != nil {
		tick = prev.Tick
	}
	return m.publishAt(tick)
}

func (m *Match) publishAt(tick uint64) *Snapshot {
	s := &Snapshot{
		Tick:    tick,
		Phase:   m.Phase(),
		Players: m.roster,
		Landers: m.landers,
		Pending: m.scheduler.Len(),
		Flag:    m.world.Flag,
	}
	m.snapshot.Store(s)
	return s
}
