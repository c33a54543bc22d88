package ports

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/domain"
)

// AudioPlayer defines the commands the audio node accepts for a guild's
// player. All methods are network calls and may fail transiently.
type AudioPlayer interface {
	// Play starts playback of the given track, replacing any current one.
	Play(ctx context.Context, guildID snowflake.ID, track *domain.Track) error

	// Stop stops the current playback without destroying the player.
	Stop(ctx context.Context, guildID snowflake.ID) error

	// SetPaused pauses or resumes the current playback.
	SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error

	// SetVolume sets the player volume. Callers clamp to [0,100].
	SetVolume(ctx context.Context, guildID snowflake.ID, volume int) error

	// Seek moves playback to the given position in the current track.
	Seek(ctx context.Context, guildID snowflake.ID, position time.Duration) error

	// Position returns the current playback position, or 0 if the guild
	// has no live player.
	Position(guildID snowflake.ID) time.Duration
}

// VoiceConnection defines voice channel membership operations.
type VoiceConnection interface {
	// JoinChannel connects the bot to the specified voice channel.
	JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error

	// LeaveChannel disconnects the bot and releases the guild's player.
	LeaveChannel(ctx context.Context, guildID snowflake.ID) error
}

// TrackResolver defines the interface for searching/loading tracks on
// the audio node.
type TrackResolver interface {
	// LoadTracks resolves a query (URL or search term) to tracks.
	LoadTracks(ctx context.Context, query string) (*LoadResult, error)
}

// VoiceStateProvider exposes Discord voice state information.
type VoiceStateProvider interface {
	// GetUserVoiceChannel returns the voice channel the user is in, or 0
	// if the user is not in any voice channel.
	GetUserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)

	// CountChannelMembers returns the number of users in a voice channel,
	// excluding the bot itself.
	CountChannelMembers(guildID, channelID snowflake.ID) (int, error)
}

// LoadType represents the shape of a load result.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult represents the result of resolving a query.
type LoadResult struct {
	Type         LoadType
	Tracks       []*TrackInfo
	PlaylistName string
}

// TrackInfo contains information about a loaded track, before it is
// bound to a requester and becomes a domain.Track.
type TrackInfo struct {
	Encoded    string
	Title      string
	Artist     string
	Duration   time.Duration
	URI        string
	ArtworkURL string
	SourceName string
	IsStream   bool
}
