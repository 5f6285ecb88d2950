package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// AutoMessenger drives the optional auto-message mode: while enabled it
// alternates composing and sending synthetic chat messages on a fixed
// cadence. The two-phase tick keeps at most one message in flight: a new
// body is only composed once the previous one has cleared the pending slot
// through SendMessage.
type AutoMessenger struct {
	reducer  *Reducer
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	counter uint64
}

// NewAutoMessenger creates a stopped auto-messenger for one reducer.
func NewAutoMessenger(reducer *Reducer, interval time.Duration) *AutoMessenger {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &AutoMessenger{reducer: reducer, interval: interval}
}

// Enable starts the periodic tick with a fresh counter.
func (a *AutoMessenger) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return ErrAutoAlreadyOn
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	a.counter = 0

	go a.run(ctx, a.done)
	return nil
}

// Disable cancels the periodic tick immediately. A composed-but-unsent body
// stays in the pending slot for manual sending but is never auto-sent.
// No-op when already stopped.
func (a *AutoMessenger) Disable() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether the tick is active.
func (a *AutoMessenger) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *AutoMessenger) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.tick()
		case <-ctx.Done():
			return
		}
	}
}

// tick advances the compose/send alternation. Odd counter values compose
// message N; the following even value sends it. A send that fails (channel
// gone, identity not yet known) drops the message rather than queueing it.
func (a *AutoMessenger) tick() {
	a.mu.Lock()
	a.counter++
	n := a.counter/2 + 1
	a.mu.Unlock()

	if a.reducer.HasPendingMessage() {
		if err := a.reducer.SendMessage(); err != nil {
			log.Printf("Auto message dropped: %v", err)
		}
		return
	}
	a.reducer.ComposeMessage(fmt.Sprintf("Auto message %d ...", n))
}
