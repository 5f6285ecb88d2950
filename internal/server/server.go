package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"topchat/internal/client"
	"topchat/pkg/protocol"
)

// Options configure a snapshot server.
type Options struct {
	// Interval between snapshot ticks.
	Interval time.Duration
	// WriteTimeout bounds each per-client websocket write.
	WriteTimeout time.Duration
	// SendBuffer sizes each subscriber's snapshot channel.
	SendBuffer int
	// Archive, when non-nil, records chat traffic and connection events.
	Archive Archive
	// Source overrides the host sampler, mainly for tests.
	Source Source
}

// Server ties the sampler, session state, and broadcaster together: one
// generator goroutine builds a snapshot per tick and fans it out, while the
// HTTP handler runs one reader/writer pair per connected client.
type Server struct {
	state       *State
	broadcaster *Broadcaster
	handler     *Handler
	source      Source
	interval    time.Duration

	mu      sync.Mutex
	running bool
}

// New assembles a stopped server. Call Run to start the generator.
func New(opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Source == nil {
		opts.Source = NewHostSampler()
	}

	state := NewState()
	broadcaster := NewBroadcaster(opts.SendBuffer)
	return &Server{
		state:       state,
		broadcaster: broadcaster,
		handler:     NewHandler(state, broadcaster, opts.Archive, opts.WriteTimeout),
		source:      opts.Source,
		interval:    opts.Interval,
	}
}

// Handler returns the HTTP routes: the snapshot stream on its well-known
// path plus a trivial health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(client.EndpointPath, s.handler.HandleStream)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// State exposes session state, primarily for tests and diagnostics.
func (s *Server) State() *State { return s.state }

// Run drives the generator loop until ctx is cancelled: sample the host,
// attach at most one queued chat message, publish. Sampling failures skip
// the tick rather than stopping the stream.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Printf("Snapshot generator started: interval=%s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-ctx.Done():
			log.Println("Snapshot generator stopped")
			return ctx.Err()
		}
	}
}

func (s *Server) tick() {
	sample, err := s.source.Sample()
	if err != nil {
		log.Printf("Skipping tick, sampling failed: %v", err)
		return
	}

	msg := s.state.PopMessage()
	if msg != nil {
		log.Printf("Delivering message: from=%d (%s) to=%d", msg.SenderID, msg.SenderName, msg.RecipientID)
	}

	s.broadcaster.Publish(protocol.Snapshot{
		Hostname: sample.Hostname,
		Datetime: sample.Datetime,
		CPUData:  sample.CPU,
		MemData:  sample.Mem,
		WSCount:  s.state.UserCount(),
		Message:  msg,
	})
}
