package events

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// TrackEndReason describes why the audio node stopped a track.
type TrackEndReason string

const (
	TrackEndFinished   TrackEndReason = "finished"
	TrackEndLoadFailed TrackEndReason = "loadFailed"
	TrackEndStopped    TrackEndReason = "stopped"
	TrackEndReplaced   TrackEndReason = "replaced"
	TrackEndCleanup    TrackEndReason = "cleanup"
)

// ShouldAdvance returns true if the reason calls for advancing the queue.
// Stopped/Replaced/Cleanup mean a command already decided the next state.
func (r TrackEndReason) ShouldAdvance() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// TrackEndedEvent is emitted by the audio node when a track stops.
type TrackEndedEvent struct {
	GuildID snowflake.ID
	Reason  TrackEndReason
}

// PlayerInactiveEvent is emitted when the bot is left alone in its voice
// channel.
type PlayerInactiveEvent struct {
	GuildID snowflake.ID
}

// Sink receives dispatched events. Implemented by the session registry;
// the dispatcher guarantees per-event-type emission order is preserved.
type Sink interface {
	HandleTrackEnded(ctx context.Context, guildID snowflake.ID, reason TrackEndReason)
	HandlePlayerInactive(ctx context.Context, guildID snowflake.ID)
}
