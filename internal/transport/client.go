// Package transport connects the host to the relay over a WebSocket. Frames
// sent to the relay carry a directive line; frames received from it are bare
// JSON bodies, decoded once and handed to a callback.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/landerlink/lander/pkg/protocol"
)

const (
	sendChSize = 1024
	writeWait  = 10 * time.Second
)

var (
	// ErrClosed is returned by Send after Close or once the connection is lost.
	ErrClosed = errors.New("relay connection closed")
	// ErrSendBufferFull is returned when the write loop cannot keep up.
	ErrSendBufferFull = errors.New("relay send buffer full")
)

// Handler receives every decoded message, on the read goroutine. It must not
// block; the host pushes into the tick loop's inbox.
type Handler func(protocol.Message)

// Config holds relay connection settings.
type Config struct {
	URL string
	// SendBuffer bounds the frames waiting for the write loop.
	SendBuffer int
}

// Client manages a relay connection with a single write goroutine.
type Client struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	lost   chan struct{} // closed when the read loop ends
	wrote  chan struct{} // closed when the write loop ends
	closed bool

	handler Handler
	logger  *slog.Logger
}

// Dial connects to the relay and starts the read and write loops.
func Dial(ctx context.Context, cfg Config, handler Handler, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.SendBuffer
	if size <= 0 {
		size = sendChSize
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		sendCh:  make(chan []byte, size),
		done:    make(chan struct{}),
		lost:    make(chan struct{}),
		wrote:   make(chan struct{}),
		handler: handler,
		logger:  logger,
	}

	go c.writeLoop()
	go c.readLoop()

	logger.Info("connected to relay", "url", cfg.URL)
	return c, nil
}

// Send encodes body under d and queues it for the write loop. It never
// blocks.
func (c *Client) Send(d protocol.Directive, body any) error {
	data, err := protocol.Encode(d, body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case <-c.lost:
		return ErrClosed
	default:
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrSendBufferFull, d)
	}
}

// Lost is closed when the relay connection ends for any reason other than
// Close.
func (c *Client) Lost() <-chan struct{} {
	return c.lost
}

// writeLoop drains sendCh and writes frames to the WebSocket. It returns on
// error or shutdown; after Close it flushes what is still queued.
func (c *Client) writeLoop() {
	defer close(c.wrote)
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case <-c.lost:
			return
		case data := <-c.sendCh:
			if err := c.write(data); err != nil {
				c.logger.Warn("relay write error", "error", err)
				return
			}
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case data := <-c.sendCh:
			if err := c.write(data); err != nil {
				c.logger.Warn("relay write error during close", "error", err)
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(ws.TextMessage, data)
}

// readLoop decodes relay frames and passes them to the handler. Malformed
// bodies are logged and dropped.
func (c *Client) readLoop() {
	defer close(c.lost)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("relay read error", "error", err)
			}
			return
		}

		msg, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("dropping malformed message", "error", err, "raw", string(frame))
			continue
		}
		c.logger.Debug("message received", "message", msg.String())
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// Close flushes queued frames, sends a close frame and waits for both loops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	<-c.wrote
	_ = c.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)

	err := c.conn.Close()
	<-c.lost
	c.logger.Info("relay connection closed")
	return err
}
