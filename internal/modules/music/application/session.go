package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/application/events"
	"github.com/hotaru-dev/kanade/internal/modules/music/application/ports"
	"github.com/hotaru-dev/kanade/internal/modules/music/domain"
)

// DefaultVolume is the initial player volume for a new session.
const DefaultVolume = 100

// errSessionDead marks a session that has been removed from the registry
// (failed join or disconnect). A caller still holding the pointer must
// re-run Registry.Connect instead of resurrecting it.
var errSessionDead = errors.New("session is no longer registered")

// EnqueueResult reports how EnqueueOrPlay handled a track.
type EnqueueResult struct {
	Started  bool // true if the track started playing immediately
	Position int  // 1-based queue position when Started is false
}

// SkipResult reports the outcome of a skip.
type SkipResult struct {
	Skipped *domain.Track
	Next    *domain.Track // nil if the queue was exhausted
}

// NowPlayingInfo is a snapshot of the current playback for display.
type NowPlayingInfo struct {
	Track      *domain.Track
	Position   time.Duration
	Paused     bool
	Volume     int
	RepeatMode domain.RepeatMode
}

// QueueView is a snapshot of the queue for display.
type QueueView struct {
	Current     *domain.Track
	Upcoming    []*domain.Track
	TotalQueued int
	RepeatMode  domain.RepeatMode
}

// Session is the playback state machine for one guild's voice connection.
// It owns the queue, the current track, and the idle-disconnect timer.
//
// All state transitions are serialized by the session mutex: a command
// handler and an asynchronous track-end event can never both advance the
// queue. Audio-node calls are issued while the mutex is held, so no other
// mutation interleaves with an in-flight operation on the same session.
// Sessions for different guilds are fully independent.
type Session struct {
	guildID     snowflake.ID
	audioPlayer ports.AudioPlayer
	voice       ports.VoiceConnection
	idleTimeout time.Duration
	detach      func(guildID snowflake.ID)

	mu             sync.Mutex
	dead           bool
	voiceChannelID snowflake.ID
	queue          *domain.Queue
	current        *domain.Track
	repeatMode     domain.RepeatMode
	volume         int
	paused         bool
	connected      bool
	lastActivity   time.Time

	// Idle-disconnect timer. idleGen is bumped on every arm/cancel so a
	// stale timer firing after a new arm cycle is recognized and ignored.
	idleGen   uint64
	idleTimer *time.Timer
}

func newSession(
	guildID snowflake.ID,
	audioPlayer ports.AudioPlayer,
	voice ports.VoiceConnection,
	idleTimeout time.Duration,
	detach func(guildID snowflake.ID),
) *Session {
	return &Session{
		guildID:     guildID,
		audioPlayer: audioPlayer,
		voice:       voice,
		idleTimeout: idleTimeout,
		detach:      detach,
		queue:       domain.NewQueue(),
		volume:      DefaultVolume,
	}
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

// VoiceChannelID returns the voice channel the session is connected to,
// or 0 if not connected.
func (s *Session) VoiceChannelID() snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

// IsConnected reports whether the voice connection is established.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// LastActivity returns the time of the last user-triggered operation.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// connect establishes the voice connection. Called by the registry with
// the session freshly created or already connected; a connected session
// in a different channel is a mismatch, not a relocation.
func (s *Session) connect(ctx context.Context, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dead {
		return errSessionDead
	}

	if s.connected {
		if s.voiceChannelID != channelID {
			return ErrChannelMismatch
		}
		return nil
	}

	if err := s.voice.JoinChannel(ctx, s.guildID, channelID); err != nil {
		return fmt.Errorf("%w: %v", ErrVoiceJoin, err)
	}

	s.connected = true
	s.voiceChannelID = channelID
	s.touchLocked()

	// The session starts out connected with nothing playing, so the
	// idle-disconnect countdown begins immediately.
	s.armIdleLocked()

	slog.Info("voice session connected", "guild", s.guildID, "channel", channelID)
	return nil
}

// EnqueueOrPlay is the single merge point for starting playback: if a
// track is already playing (or paused) the new one is queued, otherwise
// it becomes the current track and a play command is issued. At most one
// track is ever sent to the audio node concurrently per session.
func (s *Session) EnqueueOrPlay(ctx context.Context, track *domain.Track) (*EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNoActiveSession
	}
	s.touchLocked()

	if s.current != nil {
		position := s.queue.Enqueue(track)
		slog.Debug("track queued", "guild", s.guildID, "track", track.Title, "position", position)
		return &EnqueueResult{Position: position}, nil
	}

	s.cancelIdleLocked()

	if err := s.startTrackLocked(ctx, track); err != nil {
		return nil, err
	}

	return &EnqueueResult{Started: true}, nil
}

// OnTrackEnded advances the state machine when the audio node reports a
// track has stopped. Reasons that stem from an explicit command
// (stop/replace/cleanup) are ignored; the command already decided the
// next state.
func (s *Session) OnTrackEnded(ctx context.Context, reason events.TrackEndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.current == nil {
		return
	}
	if !reason.ShouldAdvance() {
		slog.Debug("track ended without advance", "guild", s.guildID, "reason", reason)
		return
	}

	// A failed track is never replayed or re-appended, whatever the
	// repeat mode, to avoid infinite retry loops.
	failed := reason == events.TrackEndLoadFailed

	if err := s.advanceLocked(ctx, !failed, !failed); err != nil {
		slog.Error("failed to advance after track end", "guild", s.guildID, "error", err)
	}
}

// Skip forces an immediate advance regardless of remaining duration.
// Skip always moves forward: RepeatOne never replays the skipped track,
// though RepeatAll still re-appends it to the tail.
func (s *Session) Skip(ctx context.Context) (*SkipResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNoActiveSession
	}
	if s.current == nil {
		return nil, ErrNothingPlaying
	}
	s.touchLocked()

	skipped := s.current
	if err := s.advanceLocked(ctx, false, true); err != nil {
		return nil, err
	}

	return &SkipResult{Skipped: skipped, Next: s.current}, nil
}

// advanceLocked implements the track-advance algorithm. honorRepeatOne
// controls whether RepeatOne replays the current track; reappend controls
// whether RepeatAll re-appends the finished track before popping the next
// one. The finished track is appended immediately upon advance, ahead of
// nothing: tracks enqueued during its playback keep their earlier spots.
func (s *Session) advanceLocked(ctx context.Context, honorRepeatOne, reappend bool) error {
	finished := s.current

	if s.repeatMode == domain.RepeatOne && honorRepeatOne {
		return s.startTrackLocked(ctx, finished)
	}

	if s.repeatMode == domain.RepeatAll && reappend {
		s.queue.Enqueue(finished)
	}

	next := s.queue.DequeueNext()
	if next == nil {
		// Queue exhausted: stop, clear current, start the idle countdown.
		s.current = nil
		s.paused = false
		if err := s.audioPlayer.Stop(ctx, s.guildID); err != nil {
			slog.Warn("failed to stop player", "guild", s.guildID, "error", err)
		}
		s.armIdleLocked()
		slog.Debug("queue exhausted", "guild", s.guildID)
		return nil
	}

	return s.startTrackLocked(ctx, next)
}

// startTrackLocked issues the play command and records the new current
// track. On failure the session drops back to connected-empty.
func (s *Session) startTrackLocked(ctx context.Context, track *domain.Track) error {
	if err := s.audioPlayer.Play(ctx, s.guildID, track); err != nil {
		// Transient node failure: back to connected-empty, session survives.
		s.current = nil
		s.paused = false
		s.armIdleLocked()
		return fmt.Errorf("%w: %v", ErrAudioNodeUnavailable, err)
	}

	s.current = track
	s.paused = false
	slog.Info("track started", "guild", s.guildID, "track", track.Title)
	return nil
}

// Pause pauses playback. Pausing an already-paused session is a no-op.
// Returns the paused state after the call.
func (s *Session) Pause(ctx context.Context) (bool, error) {
	return s.setPaused(ctx, true)
}

// Resume resumes playback. Resuming a playing session is a no-op.
// Returns the paused state after the call.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	return s.setPaused(ctx, false)
}

func (s *Session) setPaused(ctx context.Context, paused bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.current == nil {
		return false, ErrNoActiveSession
	}
	s.touchLocked()

	if s.paused == paused {
		return s.paused, nil
	}

	if err := s.audioPlayer.SetPaused(ctx, s.guildID, paused); err != nil {
		return s.paused, fmt.Errorf("%w: %v", ErrAudioNodeUnavailable, err)
	}

	s.paused = paused
	return s.paused, nil
}

// SetVolume clamps the level to [0,100], forwards it to the audio node
// and returns the applied value. Valid in any connected state.
func (s *Session) SetVolume(ctx context.Context, level int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return 0, ErrNoActiveSession
	}
	s.touchLocked()

	level = max(0, min(100, level))

	if err := s.audioPlayer.SetVolume(ctx, s.guildID, level); err != nil {
		return s.volume, fmt.Errorf("%w: %v", ErrAudioNodeUnavailable, err)
	}

	s.volume = level
	return s.volume, nil
}

// Seek moves playback within the current track. Positions outside
// [0, duration] are rejected without touching the audio node.
func (s *Session) Seek(ctx context.Context, position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNoActiveSession
	}
	if s.current == nil {
		return ErrNothingPlaying
	}
	if position < 0 || position > s.current.Duration {
		return ErrSeekOutOfRange
	}
	s.touchLocked()

	if err := s.audioPlayer.Seek(ctx, s.guildID, position); err != nil {
		return fmt.Errorf("%w: %v", ErrAudioNodeUnavailable, err)
	}
	return nil
}

// SetRepeatMode sets the repeat mode. Valid in any connected state.
func (s *Session) SetRepeatMode(mode domain.RepeatMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeatMode = mode
	s.touchLocked()
}

// RepeatMode returns the current repeat mode.
func (s *Session) RepeatMode() domain.RepeatMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeatMode
}

// ShuffleQueue permutes the upcoming tracks and returns the queue length.
// The current track is held outside the queue and is unaffected.
func (s *Session) ShuffleQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Shuffle()
	s.touchLocked()
	return s.queue.Len()
}

// RemoveTrack removes the track at the given 1-based queue position.
func (s *Session) RemoveTrack(position int) (*domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.queue.RemoveAt(position)
}

// NowPlaying returns a snapshot of the current playback.
func (s *Session) NowPlaying() (*NowPlayingInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.current == nil {
		return nil, ErrNothingPlaying
	}

	return &NowPlayingInfo{
		Track:      s.current,
		Position:   s.audioPlayer.Position(s.guildID),
		Paused:     s.paused,
		Volume:     s.volume,
		RepeatMode: s.repeatMode,
	}, nil
}

// Queue returns a display snapshot of the current track and up to n
// upcoming tracks.
func (s *Session) Queue(n int) *QueueView {
	s.mu.Lock()
	defer s.mu.Unlock()

	upcoming := make([]*domain.Track, 0, n)
	for track := range s.queue.PeekUpcoming(n) {
		upcoming = append(upcoming, track)
	}

	return &QueueView{
		Current:     s.current,
		Upcoming:    upcoming,
		TotalQueued: s.queue.Len(),
		RepeatMode:  s.repeatMode,
	}
}

// OnPlayerInactive handles the audio node reporting that the voice
// channel has no other occupants. The session disconnects unconditionally.
func (s *Session) OnPlayerInactive(ctx context.Context) {
	slog.Info("voice channel inactive, disconnecting", "guild", s.guildID)
	if err := s.Disconnect(ctx); err != nil {
		slog.Warn("failed to disconnect inactive session", "guild", s.guildID, "error", err)
	}
}

// Disconnect tears the session down: cancels the idle timer, releases
// the audio-node player, clears the queue and removes the session from
// the registry. Idempotent.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectLocked(ctx)
}

// retire marks a never-connected session dead so callers racing on its
// lock fall back to Registry.Connect and get a fresh entry. Reports
// whether the session was retired; a session that connected in the
// meantime (another caller's join won) is left alone.
func (s *Session) retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected || s.dead {
		return false
	}
	s.dead = true
	return true
}

func (s *Session) disconnectLocked(ctx context.Context) error {
	if !s.connected {
		return nil
	}

	s.cancelIdleLocked()
	s.dead = true
	s.connected = false
	s.current = nil
	s.paused = false
	s.queue.Clear()

	if err := s.voice.LeaveChannel(ctx, s.guildID); err != nil {
		slog.Warn("failed to leave voice channel", "guild", s.guildID, "error", err)
	}

	s.voiceChannelID = 0
	if s.detach != nil {
		s.detach(s.guildID)
	}

	slog.Info("voice session disconnected", "guild", s.guildID)
	return nil
}

// armIdleLocked starts a fresh idle-disconnect countdown, replacing any
// prior one. Bumping the generation first means a concurrently firing
// old timer can never cancel or act on the new cycle.
func (s *Session) armIdleLocked() {
	s.idleGen++
	gen := s.idleGen

	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, func() {
		s.idleFired(gen)
	})

	slog.Debug("idle timer armed", "guild", s.guildID, "timeout", s.idleTimeout)
}

func (s *Session) cancelIdleLocked() {
	s.idleGen++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// idleFired runs when an idle countdown elapses. A stale generation means
// the timer was cancelled or re-armed after this instance was scheduled.
func (s *Session) idleFired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.idleGen || !s.connected || s.current != nil {
		return
	}

	slog.Info("idle timeout elapsed, disconnecting", "guild", s.guildID)
	if err := s.disconnectLocked(context.Background()); err != nil {
		slog.Warn("failed to disconnect idle session", "guild", s.guildID, "error", err)
	}
}

func (s *Session) touchLocked() {
	s.lastActivity = time.Now().UTC()
}
