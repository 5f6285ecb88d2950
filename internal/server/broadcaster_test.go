package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topchat/pkg/protocol"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	b := NewBroadcaster(4)

	ch1 := b.Subscribe(1)
	ch2 := b.Subscribe(2)
	require.Equal(t, 2, b.Subscribers())

	b.Publish(protocol.Snapshot{Hostname: "h", WSCount: 2})

	snap1 := <-ch1
	snap2 := <-ch2
	assert.Equal(t, "h", snap1.Hostname)
	assert.Equal(t, "h", snap2.Hostname)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(4)

	ch := b.Subscribe(1)
	b.Unsubscribe(1)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())
}

func TestResubscribeReplacesOldChannel(t *testing.T) {
	b := NewBroadcaster(4)

	old := b.Subscribe(1)
	fresh := b.Subscribe(1)

	_, open := <-old
	assert.False(t, open)
	require.Equal(t, 1, b.Subscribers())

	b.Publish(protocol.Snapshot{Hostname: "h"})
	snap := <-fresh
	assert.Equal(t, "h", snap.Hostname)
}

func TestSlowSubscriberLosesTicksNotPeers(t *testing.T) {
	b := NewBroadcaster(1)

	slow := b.Subscribe(1)
	fast := b.Subscribe(2)

	// Fill the slow subscriber's buffer, then publish once more.
	b.Publish(protocol.Snapshot{Datetime: "one"})
	<-fast
	b.Publish(protocol.Snapshot{Datetime: "two"})

	assert.Equal(t, "two", (<-fast).Datetime)
	assert.Equal(t, "one", (<-slow).Datetime)
	select {
	case snap := <-slow:
		t.Fatalf("slow subscriber should have lost the tick, got %q", snap.Datetime)
	default:
	}
}
