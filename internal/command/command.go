// Package command holds player control intents until the tick they are
// stamped for.
package command

import (
	"errors"
	"fmt"

	"github.com/landerlink/lander/pkg/protocol"
)

// ErrBacklogFull is returned when Enqueue had to drop commands.
var ErrBacklogFull = errors.New("command backlog full")

// DefaultCap bounds the backlog of each player when no cap is configured.
const DefaultCap = 1024

// Command is a single stamped control instruction for one player.
type Command struct {
	Token    string
	Engine   protocol.Engine
	Rotation protocol.Rotation
	// Tick is the first tick the command may take effect; 0 means immediately.
	Tick uint64
}

func (c Command) String() string {
	return fmt.Sprintf("%s@%d(engine=%s rotation=%s)", c.Token, c.Tick, c.Engine, c.Rotation)
}

// FromBatch converts a decoded batch into commands, keeping batch order.
func FromBatch(b *protocol.CommandBatch) []Command {
	cmds := make([]Command, 0, len(b.Commands))
	for _, c := range b.Commands {
		cmds = append(cmds, Command{
			Token:    b.Token,
			Engine:   c.Engine,
			Rotation: c.Rotation,
			Tick:     c.Tick,
		})
	}
	return cmds
}
