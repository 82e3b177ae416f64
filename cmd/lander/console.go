package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/landerlink/lander/internal/lander"
	"github.com/landerlink/lander/internal/loop"
	"github.com/landerlink/lander/internal/match"
)

// controller is what the console drives.
type controller interface {
	Start(ctx context.Context) error
	Snapshot() *match.Snapshot
	Stats() loop.Stats
}

// session runs console requests on the loop goroutine.
type session struct {
	runner *loop.Runner
	match  *match.Match
}

func (s *session) Start(ctx context.Context) error {
	return s.runner.Exec(ctx, (*match.Match).Start)
}

func (s *session) Snapshot() *match.Snapshot {
	return s.match.Snapshot()
}

func (s *session) Stats() loop.Stats {
	return s.runner.Times().Stats()
}

// console reads operator commands, one per line.
type console struct {
	in     io.Reader
	out    io.Writer
	ctl    controller
	quit   func()
	logger *slog.Logger
}

const consoleHelp = `commands:
  start   begin the match once the host is confirmed
  status  print the current snapshot and loop timings
  quit    tear the match down and exit`

// Run reads commands until quit or end of input. Cancelling ctx also stops
// it. End of input leaves the match running.
func (c *console) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.exec(ctx, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// exec runs one command and reports whether the console should keep reading.
func (c *console) exec(ctx context.Context, line string) bool {
	switch strings.ToLower(line) {
	case "":
	case "start":
		if err := c.ctl.Start(ctx); err != nil {
			fmt.Fprintln(c.out, "cannot start:", err)
			return true
		}
		c.logger.Info("Match started from console")
		fmt.Fprintln(c.out, "match started")
	case "status":
		c.status()
	case "quit", "exit":
		c.logger.Info("Quit requested from console")
		c.quit()
		return false
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	default:
		fmt.Fprintf(c.out, "unknown command %q, try help\n", line)
	}
	return true
}

func (c *console) status() {
	s := c.ctl.Snapshot()
	counts := s.Counts()
	fmt.Fprintf(c.out, "tick %d  phase %s  players %d  pending %d  flying %d  landed %d  crashed %d\n",
		s.Tick, s.Phase, len(s.Players), s.Pending,
		counts[lander.Flying], counts[lander.Landed], counts[lander.Crashed])

	if l, ok := s.Focus(); ok {
		fmt.Fprintf(c.out, "focus %s  x %.1f  y %.1f  speed %.2f  fuel %.0f  %s\n",
			l.Token, l.Position.X, l.Position.Y, l.Speed(), l.Fuel, l.Outcome)
	}

	st := c.ctl.Stats()
	fmt.Fprintf(c.out, "tick time mean %s max %s  observe mean %s max %s\n",
		st.Tick.Mean.Round(time.Microsecond), st.Tick.Max.Round(time.Microsecond),
		st.Observe.Mean.Round(time.Microsecond), st.Observe.Max.Round(time.Microsecond))
}
