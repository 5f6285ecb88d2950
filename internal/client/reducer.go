package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"topchat/pkg/protocol"
)

// ViewState is the derived state one panel renders. Copies returned by
// Reducer.State are safe to keep across reducer updates.
type ViewState struct {
	// Latest is the last snapshot received, pause or not. It drives the
	// chat side of the panel, which never freezes.
	Latest *protocol.Snapshot
	// Display is the last snapshot accepted for the CPU/memory side. It
	// equals Latest unless the panel is paused, in which case it is frozen
	// at the pre-pause value.
	Display     *protocol.Snapshot
	Paused      bool
	PausedTicks int

	MessageLog []protocol.ChatMessage
	KnownUsers []protocol.User

	CommittedName  string
	PendingMessage *string
	TargetID       int

	// Waiting is true before the first snapshot and again after the
	// channel dies; the panel shows a waiting indicator instead of data.
	Waiting bool
}

// ReducerOptions tune one reducer instance.
type ReducerOptions struct {
	// LogCapacity bounds the message log; oldest entries are dropped first.
	// Zero keeps the log unbounded.
	LogCapacity int
	// OnNameCommitted is invoked after a rename is accepted, letting the
	// display layer update any title bound to the name. May be nil.
	OnNameCommitted func(name string)
}

// Reducer owns one session's view state. Inbound snapshots and local user
// actions mutate it; certain actions emit envelopes on the outbound channel
// as a side effect. All operations run to completion synchronously.
type Reducer struct {
	mu   sync.Mutex
	out  Outbound
	opts ReducerOptions

	state ViewState

	sessionID int
	usersJSON []byte
	// usersVersion counts wholesale replacements of KnownUsers. The
	// serialization guard keeps it from moving when the server resends an
	// identical roster every tick.
	usersVersion uint64
	// lastMessageSeq is the sequence of the snapshot whose chat message was
	// last appended. Comparing against it applies each carried message
	// exactly once, no matter how often unrelated state changes.
	lastMessageSeq uint64
}

// NewReducer creates a reducer emitting outbound messages on out.
func NewReducer(out Outbound, opts *ReducerOptions) *Reducer {
	r := &Reducer{out: out, state: ViewState{Waiting: true}}
	if opts != nil {
		r.opts = *opts
	}
	return r
}

// OnSnapshot applies one inbound snapshot.
func (r *Reducer) OnSnapshot(ts TaggedSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := ts.Snapshot
	r.state.Latest = &snap
	r.state.Waiting = false
	r.sessionID = snap.WSID

	// Adopt the server-assigned name until the user commits one.
	if r.state.CommittedName == "" {
		r.state.CommittedName = snap.WSUsername
	}

	if users, err := json.Marshal(snap.Users); err == nil && !bytes.Equal(users, r.usersJSON) {
		r.usersJSON = users
		r.state.KnownUsers = append([]protocol.User(nil), snap.Users...)
		r.usersVersion++
	}

	if r.state.Paused {
		r.state.PausedTicks++
	} else {
		r.state.Display = &snap
		r.state.PausedTicks = 0
	}

	if snap.Message != nil && ts.Seq != r.lastMessageSeq {
		r.lastMessageSeq = ts.Seq
		r.appendMessage(*snap.Message)
	}
}

// MarkDisconnected flips the panel back to its waiting state after the
// channel dies. Accumulated state stays visible.
func (r *Reducer) MarkDisconnected() {
	r.mu.Lock()
	r.state.Waiting = true
	r.mu.Unlock()
}

// TogglePause flips the pause flag. Resuming resets the paused tick count
// immediately, not on the next snapshot.
func (r *Reducer) TogglePause() {
	r.mu.Lock()
	r.state.Paused = !r.state.Paused
	if !r.state.Paused {
		r.state.PausedTicks = 0
	}
	r.mu.Unlock()
}

// SetName commits a rename and announces it to the server. Empty names are
// rejected before any state changes.
func (r *Reducer) SetName(name string) error {
	if !protocol.IsValidName(name) {
		if name == "" {
			return protocol.ErrEmptyName
		}
		return protocol.ErrNameTooLong
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == 0 {
		return ErrNoIdentity
	}

	r.state.CommittedName = name
	if err := r.out.Send(protocol.IdentityEnvelope(r.sessionID, name)); err != nil {
		return fmt.Errorf("failed to announce name change: %w", err)
	}
	if r.opts.OnNameCommitted != nil {
		r.opts.OnNameCommitted(name)
	}
	return nil
}

// ComposeMessage stages an outbound chat body. Empty text normalizes to
// "no pending message".
func (r *Reducer) ComposeMessage(text string) {
	r.mu.Lock()
	if text == "" {
		r.state.PendingMessage = nil
	} else {
		r.state.PendingMessage = &text
	}
	r.mu.Unlock()
}

// HasPendingMessage reports whether a composed body is waiting to be sent.
func (r *Reducer) HasPendingMessage() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.PendingMessage != nil
}

// SendMessage emits the pending chat body to the current recipient. The
// pending slot is cleared before the envelope goes out, so a re-entrant
// call observes "nothing pending" rather than double-dispatching.
func (r *Reducer) SendMessage() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.PendingMessage == nil {
		return ErrNoPendingMessage
	}
	if r.sessionID == 0 {
		return ErrNoIdentity
	}

	body := *r.state.PendingMessage
	r.state.PendingMessage = nil

	env := protocol.ChatEnvelope(r.sessionID, r.state.TargetID, r.state.CommittedName, body)
	if err := r.out.Send(env); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	return nil
}

// SetRecipient selects where the next SendMessage goes: 0 broadcasts, a
// nonzero id targets one session from the known users list. Purely local.
func (r *Reducer) SetRecipient(userID int) {
	r.mu.Lock()
	r.state.TargetID = userID
	r.mu.Unlock()
}

// State returns a copy of the current view state for rendering.
func (r *Reducer) State() ViewState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.state
	out.MessageLog = append([]protocol.ChatMessage(nil), r.state.MessageLog...)
	out.KnownUsers = append([]protocol.User(nil), r.state.KnownUsers...)
	return out
}

// UsersVersion counts how many times KnownUsers was replaced. An unchanged
// roster resent by the server must not move it.
func (r *Reducer) UsersVersion() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usersVersion
}

func (r *Reducer) appendMessage(msg protocol.ChatMessage) {
	r.state.MessageLog = append(r.state.MessageLog, msg)
	if limit := r.opts.LogCapacity; limit > 0 && len(r.state.MessageLog) > limit {
		// Drop oldest; copy so the backing array does not pin dropped
		// entries forever.
		trimmed := make([]protocol.ChatMessage, limit)
		copy(trimmed, r.state.MessageLog[len(r.state.MessageLog)-limit:])
		r.state.MessageLog = trimmed
	}
}
