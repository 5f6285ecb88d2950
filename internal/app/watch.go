package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"topchat/internal/client"
	"topchat/internal/config"
)

// WatchOptions tune a watch run beyond what configuration carries.
type WatchOptions struct {
	// Name, when non-empty, is committed as the display name of every
	// instance once its session id is known.
	Name string
	// Auto enables the auto-message generator on every instance.
	Auto bool
}

// RunWatch connects the configured number of panel instances to a snapshot
// server and logs their view state until ctx is cancelled.
func RunWatch(ctx context.Context, cfg *config.Config, opts WatchOptions) error {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	factory := func(id int) (client.Panel, error) {
		channel, err := client.Dial(ctx, cfg.Watch.Origin, cfg.Watch.PortOverride, &client.ChannelOptions{
			WriteTimeout: cfg.Socket.WriteTimeout,
			SendBuffer:   cfg.Socket.SendBuffer,
		})
		if err != nil {
			return nil, err
		}
		return client.NewInstance(id, channel, &client.InstanceOptions{
			LogCapacity:         cfg.Watch.LogCapacity,
			AutoMessageInterval: cfg.Watch.AutoMessageInterval,
			OnNameCommitted: func(name string) {
				log.Printf("Instance %d name committed: %s", id, name)
			},
		}), nil
	}

	registry := client.NewRegistry(factory)
	defer registry.Close()

	count := cfg.Watch.Instances
	if count <= 0 {
		count = 1
	}
	// Run id distinguishes this watch session's log lines from other runs.
	log.Printf("Watch run %s: %s with %d instance(s)", uuid.NewString(), cfg.Watch.Origin, count)

	g, gctx := errgroup.WithContext(ctx)
	for range count {
		id, err := registry.AddInstance()
		if err != nil {
			return err
		}
		g.Go(func() error { return setupInstance(gctx, registry, id, opts) })
	}

	g.Go(func() error { return logLoop(gctx, registry) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// setupInstance waits for the instance's first snapshot, then applies the
// requested name and auto-message settings.
func setupInstance(ctx context.Context, registry *client.Registry, id int, opts WatchOptions) error {
	panel, ok := registry.Get(id)
	if !ok {
		return nil
	}
	inst, ok := panel.(*client.Instance)
	if !ok {
		return nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for inst.Reducer().State().Latest == nil {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if opts.Name != "" {
		if err := inst.Reducer().SetName(opts.Name); err != nil {
			log.Printf("Instance %d rename failed: %v", id, err)
		}
	}
	if opts.Auto {
		if err := inst.AutoMessenger().Enable(); err != nil {
			log.Printf("Instance %d auto-message enable failed: %v", id, err)
		}
	}
	return nil
}

// logLoop prints a one-line status per instance each second.
func logLoop(ctx context.Context, registry *client.Registry) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, id := range registry.IDs() {
				panel, ok := registry.Get(id)
				if !ok {
					continue
				}
				inst, ok := panel.(*client.Instance)
				if !ok {
					continue
				}
				logInstance(id, inst)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func logInstance(id int, inst *client.Instance) {
	state := inst.Reducer().State()
	if state.Waiting || state.Display == nil {
		log.Printf("Instance %d: waiting for data ...", id)
		return
	}

	snap := state.Display
	status := "live"
	if state.Paused {
		status = fmt.Sprintf("paused (%d ticks)", state.PausedTicks)
	}
	log.Printf("Instance %d: host=%s at=%s cores=%d users=%d chat=%d status=%s",
		id, snap.Hostname, snap.Datetime, len(snap.CPUData), snap.WSCount,
		len(state.MessageLog), status)
}
