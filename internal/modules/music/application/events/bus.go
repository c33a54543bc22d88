package events

import (
	"log/slog"
	"sync"
)

// DefaultBufferSize is the default buffer size for event channels.
const DefaultBufferSize = 100

// Bus is a channel-based bus carrying asynchronous audio-node events
// from the infrastructure layer to the dispatcher.
type Bus struct {
	trackEnded     chan TrackEndedEvent
	playerInactive chan PlayerInactiveEvent

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a new Bus with the given channel buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		trackEnded:     make(chan TrackEndedEvent, bufferSize),
		playerInactive: make(chan PlayerInactiveEvent, bufferSize),
	}
}

// PublishTrackEnded publishes a TrackEndedEvent.
// Non-blocking: if the buffer is full the event is dropped with a warning.
func (b *Bus) PublishTrackEnded(event TrackEndedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "TrackEnded")
		return
	}

	select {
	case b.trackEnded <- event:
		slog.Debug("published event", "type", "TrackEnded", "guild", event.GuildID, "reason", event.Reason)
	default:
		slog.Warn("event buffer full, dropping event", "type", "TrackEnded", "guild", event.GuildID)
	}
}

// PublishPlayerInactive publishes a PlayerInactiveEvent.
// Non-blocking: if the buffer is full the event is dropped with a warning.
func (b *Bus) PublishPlayerInactive(event PlayerInactiveEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "PlayerInactive")
		return
	}

	select {
	case b.playerInactive <- event:
		slog.Debug("published event", "type", "PlayerInactive", "guild", event.GuildID)
	default:
		slog.Warn("event buffer full, dropping event", "type", "PlayerInactive", "guild", event.GuildID)
	}
}

// TrackEnded returns the channel for TrackEndedEvent.
func (b *Bus) TrackEnded() <-chan TrackEndedEvent {
	return b.trackEnded
}

// PlayerInactive returns the channel for PlayerInactiveEvent.
func (b *Bus) PlayerInactive() <-chan PlayerInactiveEvent {
	return b.playerInactive
}

// Close closes all event channels. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.trackEnded)
	close(b.playerInactive)
}
