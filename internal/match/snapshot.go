package match

import (
	"math"

	"github.com/landerlink/lander/internal/lander"
	"github.com/landerlink/lander/pkg/geometry"
)

// Snapshot is the state published after a tick. Snapshots are never mutated
// once published; readers on other goroutines may hold them indefinitely.
type Snapshot struct {
	Tick    uint64          `json:"tick"`
	Phase   Phase           `json:"phase"`
	Players []Player        `json:"players"`
	Landers []lander.Lander `json:"landers"`
	// Pending is the scheduler backlog after the tick's sweep.
	Pending int            `json:"pending"`
	Flag    geometry.Point `json:"flag"`
}

// Lander returns the lander of token.
func (s *Snapshot) Lander(token string) (lander.Lander, bool) {
	for _, l := range s.Landers {
		if l.Token == token {
			return l, true
		}
	}
	return lander.Lander{}, false
}

// Focus returns the lander horizontally closest to the flag. On a tie the
// earlier roster entry wins.
func (s *Snapshot) Focus() (lander.Lander, bool) {
	if len(s.Landers) == 0 {
		return lander.Lander{}, false
	}
	best := s.Landers[0]
	for _, l := range s.Landers[1:] {
		if math.Abs(s.Flag.X-l.Position.X) < math.Abs(s.Flag.X-best.Position.X) {
			best = l
		}
	}
	return best, true
}

// Counts tallies landers by outcome.
func (s *Snapshot) Counts() map[lander.Outcome]int {
	counts := make(map[lander.Outcome]int, 3)
	for _, l := range s.Landers {
		counts[l.Outcome]++
	}
	return counts
}
