package domain

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Track represents one playable audio item. Tracks are immutable values:
// duplicates are allowed in a queue and equality is by value.
type Track struct {
	Encoded     string // Lavalink encoded track data
	Title       string
	Artist      string
	Duration    time.Duration
	URI         string
	ArtworkURL  string
	SourceName  string // e.g., "youtube", "spotify", "soundcloud"
	IsStream    bool
	RequesterID snowflake.ID // Discord user who requested the track
	EnqueuedAt  time.Time
}

// NewTrack creates a Track stamped with the current time.
func NewTrack(
	encoded string,
	title string,
	artist string,
	duration time.Duration,
	uri string,
	artworkURL string,
	sourceName string,
	isStream bool,
	requesterID snowflake.ID,
) *Track {
	return &Track{
		Encoded:     encoded,
		Title:       title,
		Artist:      artist,
		Duration:    duration,
		URI:         uri,
		ArtworkURL:  artworkURL,
		SourceName:  sourceName,
		IsStream:    isStream,
		RequesterID: requesterID,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// IsValid returns true if the track has the minimum required fields.
func (t *Track) IsValid() bool {
	return t.Encoded != "" && t.Title != ""
}

// FormattedDuration returns the duration as mm:ss, or hh:mm:ss for tracks
// an hour or longer. Live streams have no meaningful duration.
func (t *Track) FormattedDuration() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration renders a playback position or duration as mm:ss (hh:mm:ss
// when an hour or longer).
func FormatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
