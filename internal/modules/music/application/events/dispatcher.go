package events

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher drains the bus and delivers events to the sink. One
// goroutine per event type keeps emission order per guild: two
// TrackEnded events for the same guild are never reordered.
type Dispatcher struct {
	bus  *Bus
	sink Sink

	wg   sync.WaitGroup
	done chan struct{}
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(bus *Bus, sink Sink) *Dispatcher {
	return &Dispatcher{
		bus:  bus,
		sink: sink,
		done: make(chan struct{}),
	}
}

// Start begins draining events in background goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(2)

	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case event, ok := <-d.bus.TrackEnded():
				if !ok {
					return
				}
				d.sink.HandleTrackEnded(ctx, event.GuildID, event.Reason)
			}
		}
	}()

	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case event, ok := <-d.bus.PlayerInactive():
				if !ok {
					return
				}
				d.sink.HandlePlayerInactive(ctx, event.GuildID)
			}
		}
	}()

	slog.Debug("event dispatcher started")
}

// Stop stops the dispatcher and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	close(d.done)
	d.wg.Wait()
	slog.Debug("event dispatcher stopped")
}
