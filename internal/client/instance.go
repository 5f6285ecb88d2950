package client

import (
	"log"
	"time"
)

// Instance is one independently running panel: a snapshot channel feeding a
// reducer, plus the optional auto-messenger. Each instance owns its state
// exclusively; instances have no ordering relationship to each other.
type Instance struct {
	id      int
	channel *Channel
	reducer *Reducer
	auto    *AutoMessenger
	done    chan struct{}
}

// InstanceOptions tune one instance.
type InstanceOptions struct {
	LogCapacity         int
	AutoMessageInterval time.Duration
	OnNameCommitted     func(name string)
}

// NewInstance wires a channel to a fresh reducer and starts consuming
// snapshots in arrival order.
func NewInstance(id int, channel *Channel, opts *InstanceOptions) *Instance {
	var ropts ReducerOptions
	var autoInterval time.Duration
	if opts != nil {
		ropts.LogCapacity = opts.LogCapacity
		ropts.OnNameCommitted = opts.OnNameCommitted
		autoInterval = opts.AutoMessageInterval
	}

	reducer := NewReducer(channel, &ropts)
	inst := &Instance{
		id:      id,
		channel: channel,
		reducer: reducer,
		auto:    NewAutoMessenger(reducer, autoInterval),
		done:    make(chan struct{}),
	}

	go inst.run()
	return inst
}

func (i *Instance) run() {
	defer close(i.done)

	for ts := range i.channel.Snapshots() {
		i.reducer.OnSnapshot(ts)
	}

	// Channel closed: freeze at last known state and show waiting.
	i.reducer.MarkDisconnected()
	if err := i.channel.Err(); err != nil {
		log.Printf("Instance %d channel closed: %v", i.id, err)
	}
}

// ID returns the registry-assigned instance id.
func (i *Instance) ID() int { return i.id }

// Reducer exposes the instance's view-state reducer for user actions and
// rendering.
func (i *Instance) Reducer() *Reducer { return i.reducer }

// AutoMessenger exposes the instance's auto-message control.
func (i *Instance) AutoMessenger() *AutoMessenger { return i.auto }

// Skipped reports how many inbound payloads this instance's channel has
// dropped as malformed.
func (i *Instance) Skipped() uint64 { return i.channel.Skipped() }

// Close cancels the auto-message timer, closes the channel, and waits for
// the snapshot loop to drain. No event from this instance is observed after
// Close returns.
func (i *Instance) Close() error {
	i.auto.Disable()
	err := i.channel.Close()
	<-i.done
	return err
}
