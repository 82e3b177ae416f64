package command

import "fmt"

// Scheduler is the command backlog of a match. Commands are kept in arrival
// order and released once the simulation reaches their tick; a late command
// is applied on the first tick it is present for, never twice.
//
// The cap applies per token, so a player flooding the backlog only loses
// their own commands.
//
// Scheduler is not safe for concurrent use. It is owned by the tick loop.
type Scheduler struct {
	cap     int
	backlog []Command
	counts  map[string]int
}

// NewScheduler creates a backlog holding at most capacity commands per token.
// A non-positive capacity selects DefaultCap.
func NewScheduler(capacity int) *Scheduler {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Scheduler{cap: capacity, counts: make(map[string]int)}
}

// Enqueue appends cmds in order. Commands whose token is already at the cap
// are dropped and reported through an ErrBacklogFull error carrying the count.
func (s *Scheduler) Enqueue(cmds ...Command) (dropped int, err error) {
	for _, c := range cmds {
		if s.counts[c.Token] >= s.cap {
			dropped++
			continue
		}
		s.counts[c.Token]++
		s.backlog = append(s.backlog, c)
	}
	if dropped > 0 {
		return dropped, fmt.Errorf("%w: dropped %d of %d", ErrBacklogFull, dropped, len(cmds))
	}
	return 0, nil
}

// Due returns the commands for token stamped at or before tick, in arrival
// order. The backlog is left untouched.
func (s *Scheduler) Due(tick uint64, token string) []Command {
	var due []Command
	for _, c := range s.backlog {
		if c.Tick <= tick && c.Token == token {
			due = append(due, c)
		}
	}
	return due
}

// Sweep drops every command stamped at or before tick, applied or not, and
// returns how many were removed.
func (s *Scheduler) Sweep(tick uint64) int {
	kept := s.backlog[:0]
	for _, c := range s.backlog {
		if c.Tick > tick {
			kept = append(kept, c)
			continue
		}
		if s.counts[c.Token]--; s.counts[c.Token] == 0 {
			delete(s.counts, c.Token)
		}
	}
	removed := len(s.backlog) - len(kept)
	clear(s.backlog[len(kept):])
	s.backlog = kept
	return removed
}

// Release groups every command due at tick by token, then sweeps them.
func (s *Scheduler) Release(tick uint64) map[string][]Command {
	due := make(map[string][]Command)
	for _, c := range s.backlog {
		if c.Tick <= tick {
			due[c.Token] = append(due[c.Token], c)
		}
	}
	s.Sweep(tick)
	return due
}

// Len returns the number of pending commands.
func (s *Scheduler) Len() int {
	return len(s.backlog)
}
