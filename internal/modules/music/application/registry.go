package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/application/events"
	"github.com/hotaru-dev/kanade/internal/modules/music/application/ports"
)

// DefaultIdleTimeout is the idle-disconnect countdown applied when no
// timeout is configured.
const DefaultIdleTimeout = 60 * time.Second

// Registry is the process-wide mapping from guild ID to playback session.
// The registry map has its own lock, independent of any session's lock:
// looking up a session for guild A never waits on a slow operation in
// guild B.
//
// Registry also implements events.Sink, routing audio-node events to the
// owning session.
type Registry struct {
	audioPlayer ports.AudioPlayer
	voice       ports.VoiceConnection
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[snowflake.ID]*Session
}

// NewRegistry creates a Registry with explicit audio-node dependencies.
func NewRegistry(
	audioPlayer ports.AudioPlayer,
	voice ports.VoiceConnection,
	idleTimeout time.Duration,
) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		audioPlayer: audioPlayer,
		voice:       voice,
		idleTimeout: idleTimeout,
		sessions:    make(map[snowflake.ID]*Session),
	}
}

// Get returns the session for the guild, or nil if none exists.
func (r *Registry) Get(guildID snowflake.ID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[guildID]
}

// Connect returns the guild's session, creating and connecting one if
// needed. Map insertion happens before the network join, so two
// simultaneous connects for the same guild converge on one session and
// serialize on its lock; the loser either finds it connected to the same
// channel (fine) or a different one (ErrChannelMismatch). A connected
// session is never silently relocated to another channel.
//
// A session whose join failed (or that disconnected) while another
// caller held its pointer reports errSessionDead from connect; that
// caller loops and re-runs the lookup, so a live session is always the
// registered one.
func (r *Registry) Connect(ctx context.Context, guildID, channelID snowflake.ID) (*Session, error) {
	for {
		r.mu.Lock()
		session, exists := r.sessions[guildID]
		if !exists {
			session = newSession(guildID, r.audioPlayer, r.voice, r.idleTimeout, r.Remove)
			r.sessions[guildID] = session
		}
		r.mu.Unlock()

		err := session.connect(ctx, channelID)
		switch {
		case err == nil:
			return session, nil

		case errors.Is(err, errSessionDead):
			continue

		default:
			// Retire the failed session before touching the map: a racing
			// caller may have joined on this pointer in the meantime, in
			// which case it stays registered and connected.
			if session.retire() {
				r.removeIfSame(guildID, session)
			}
			return nil, err
		}
	}
}

// Remove deletes the guild's registry entry. The session itself calls
// this on disconnect.
func (r *Registry) Remove(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}

// removeIfSame deletes the guild's entry only if it still points at the
// given session, so retiring a failed session never evicts a successor.
func (r *Registry) removeIfSame(guildID snowflake.ID, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[guildID] == session {
		delete(r.sessions, guildID)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DisconnectAll tears down every session, used at shutdown.
func (r *Registry) DisconnectAll(ctx context.Context) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if err := s.Disconnect(ctx); err != nil {
			slog.Warn("failed to disconnect session at shutdown", "guild", s.GuildID(), "error", err)
		}
	}
}

// HandleTrackEnded routes a track-end event to the owning session.
func (r *Registry) HandleTrackEnded(ctx context.Context, guildID snowflake.ID, reason events.TrackEndReason) {
	session := r.Get(guildID)
	if session == nil {
		slog.Debug("track ended for unknown session", "guild", guildID)
		return
	}
	session.OnTrackEnded(ctx, reason)
}

// HandlePlayerInactive routes an inactive-player event to the owning session.
func (r *Registry) HandlePlayerInactive(ctx context.Context, guildID snowflake.ID) {
	session := r.Get(guildID)
	if session == nil {
		return
	}
	session.OnPlayerInactive(ctx)
}

// Compile-time check that Registry implements events.Sink.
var _ events.Sink = (*Registry)(nil)
