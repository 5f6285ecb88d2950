package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topchat/pkg/protocol"
)

func chatBodies(envs []protocol.Envelope) []string {
	var bodies []string
	for _, env := range envs {
		if env.Message != nil {
			bodies = append(bodies, *env.Message)
		}
	}
	return bodies
}

func waitForChatCount(t *testing.T, out *fakeOutbound, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(chatBodies(out.envelopes())) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d auto messages, got %d", want, len(chatBodies(out.envelopes())))
}

func TestAutoMessengerSendsNumberedSequence(t *testing.T) {
	out := &fakeOutbound{}
	r := NewReducer(out, nil)
	r.OnSnapshot(snapshotAt(1, nil))

	auto := NewAutoMessenger(r, 5*time.Millisecond)
	require.NoError(t, auto.Enable())
	defer auto.Disable()

	waitForChatCount(t, out, 3)
	auto.Disable()

	bodies := chatBodies(out.envelopes())
	require.GreaterOrEqual(t, len(bodies), 3)
	for i, body := range bodies {
		assert.Equal(t, fmt.Sprintf("Auto message %d ...", i+1), body)
	}
}

func TestAutoMessengerOneInFlightAtATime(t *testing.T) {
	out := &fakeOutbound{}
	r := NewReducer(out, nil)
	r.OnSnapshot(snapshotAt(1, nil))

	auto := NewAutoMessenger(r, 5*time.Millisecond)
	require.NoError(t, auto.Enable())
	waitForChatCount(t, out, 2)
	auto.Disable()

	// Composes and sends alternate: the pending slot can hold at most the
	// next message, never a queue.
	assert.False(t, r.HasPendingMessage() && len(chatBodies(out.envelopes())) == 0)
}

func TestAutoMessengerDisableStopsSends(t *testing.T) {
	out := &fakeOutbound{}
	r := NewReducer(out, nil)
	r.OnSnapshot(snapshotAt(1, nil))

	auto := NewAutoMessenger(r, 5*time.Millisecond)
	require.NoError(t, auto.Enable())
	waitForChatCount(t, out, 1)
	auto.Disable()
	require.False(t, auto.Running())

	sent := len(chatBodies(out.envelopes()))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, sent, len(chatBodies(out.envelopes())), "no sends after disable")
}

func TestAutoMessengerEnableTwiceFails(t *testing.T) {
	auto := NewAutoMessenger(NewReducer(&fakeOutbound{}, nil), time.Hour)
	require.NoError(t, auto.Enable())
	defer auto.Disable()

	assert.ErrorIs(t, auto.Enable(), ErrAutoAlreadyOn)
}

func TestAutoMessengerRestartsCounterOnReenable(t *testing.T) {
	out := &fakeOutbound{}
	r := NewReducer(out, nil)
	r.OnSnapshot(snapshotAt(1, nil))

	auto := NewAutoMessenger(r, 5*time.Millisecond)
	require.NoError(t, auto.Enable())
	waitForChatCount(t, out, 2)
	auto.Disable()

	// A leftover composed body must not be auto-sent by the next run.
	r.ComposeMessage("")

	out2 := &fakeOutbound{}
	r2 := NewReducer(out2, nil)
	r2.OnSnapshot(snapshotAt(1, nil))
	auto2 := NewAutoMessenger(r2, 5*time.Millisecond)
	require.NoError(t, auto2.Enable())
	waitForChatCount(t, out2, 1)
	auto2.Disable()

	bodies := chatBodies(out2.envelopes())
	require.NotEmpty(t, bodies)
	assert.Equal(t, "Auto message 1 ...", bodies[0], "fresh run starts numbering at 1")
}

func TestAutoMessengerDropsWhenSendFails(t *testing.T) {
	out := &fakeOutbound{fail: ErrChannelClosed}
	r := NewReducer(out, nil)
	r.OnSnapshot(snapshotAt(1, nil))

	auto := NewAutoMessenger(r, 5*time.Millisecond)
	require.NoError(t, auto.Enable())
	time.Sleep(40 * time.Millisecond)
	auto.Disable()

	// Failed sends are dropped, not queued: at most one composed body
	// waits in the pending slot.
	assert.Empty(t, chatBodies(out.envelopes()))
}
