package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"topchat/pkg/protocol"
)

// EndpointPath is the well-known snapshot stream path on the server.
const EndpointPath = "/realtime/cpus"

// DeriveEndpoint turns a page-style http(s) origin into the websocket URL of
// the snapshot stream: the scheme swaps http→ws (https→wss) and an optional
// fixed service port replaces the origin's port.
func DeriveEndpoint(origin string, portOverride int) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	if portOverride > 0 {
		u.Host = u.Hostname() + ":" + strconv.Itoa(portOverride)
	}

	u.Path = EndpointPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// TaggedSnapshot pairs a decoded snapshot with its per-connection sequence
// number. The sequence is the identity the reducer uses to apply each
// carried chat message exactly once.
type TaggedSnapshot struct {
	Seq      uint64
	Snapshot protocol.Snapshot
}

// Outbound is the sender side of a channel as seen by the reducer.
type Outbound interface {
	Send(env protocol.Envelope) error
}

// ChannelOptions tune a single connection.
type ChannelOptions struct {
	WriteTimeout time.Duration
	SendBuffer   int
}

func (o *ChannelOptions) withDefaults() ChannelOptions {
	opts := ChannelOptions{WriteTimeout: 5 * time.Second, SendBuffer: 16}
	if o == nil {
		return opts
	}
	if o.WriteTimeout > 0 {
		opts.WriteTimeout = o.WriteTimeout
	}
	if o.SendBuffer > 0 {
		opts.SendBuffer = o.SendBuffer
	}
	return opts
}

// Channel is one live snapshot stream. Decoded snapshots arrive on
// Snapshots() in strict receive order; outbound envelopes are serialized
// through a single writer goroutine. Malformed inbound payloads are counted
// and skipped, never surfaced as failures.
type Channel struct {
	conn      *websocket.Conn
	opts      ChannelOptions
	sendCh    chan protocol.Envelope
	snapshots chan TaggedSnapshot

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	skipped atomic.Uint64

	mu  sync.Mutex
	err error
}

// Dial connects to the snapshot stream behind the given origin.
func Dial(ctx context.Context, origin string, portOverride int, opts *ChannelOptions) (*Channel, error) {
	endpoint, err := DeriveEndpoint(origin, portOverride)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	return NewChannel(conn, opts), nil
}

// NewChannel wraps an established websocket connection. Used directly by
// tests; production code goes through Dial.
func NewChannel(conn *websocket.Conn, opts *ChannelOptions) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		conn:      conn,
		opts:      opts.withDefaults(),
		sendCh:    make(chan protocol.Envelope, opts.withDefaults().SendBuffer),
		snapshots: make(chan TaggedSnapshot, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	go c.readLoop()
	go c.writeLoop()
	return c
}

// Snapshots delivers tagged snapshots in arrival order. The channel closes
// when the connection dies; Err reports why.
func (c *Channel) Snapshots() <-chan TaggedSnapshot {
	return c.snapshots
}

// Send queues one outbound envelope. The envelope is validated first so an
// empty name or body never reaches the wire.
func (c *Channel) Send(env protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("rejecting outbound message: %w", err)
	}

	select {
	case <-c.ctx.Done():
		return ErrChannelClosed
	default:
	}

	select {
	case c.sendCh <- env:
		return nil
	case <-time.After(c.opts.WriteTimeout):
		return ErrSendTimeout
	case <-c.ctx.Done():
		return ErrChannelClosed
	}
}

// Skipped reports how many inbound payloads failed to decode or validate.
func (c *Channel) Skipped() uint64 {
	return c.skipped.Load()
}

// Err reports the terminal read error, nil while the channel is healthy.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close tears the connection down. Safe to call more than once; no snapshot
// is delivered after Close returns and the read loop has drained.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.snapshots)

	var seq uint64
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			c.cancel()
			return
		}

		var snap protocol.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			c.skipped.Add(1)
			log.Printf("Skipping malformed snapshot: %v", err)
			continue
		}
		if err := snap.Validate(); err != nil {
			c.skipped.Add(1)
			log.Printf("Skipping invalid snapshot: %v", err)
			continue
		}

		seq++
		select {
		case c.snapshots <- TaggedSnapshot{Seq: seq, Snapshot: snap}:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Channel) writeLoop() {
	for {
		select {
		case env := <-c.sendCh:
			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("Failed to encode outbound message: %v", err)
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.setErr(err)
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Channel) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}
