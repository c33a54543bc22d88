package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/application/events"
	"github.com/hotaru-dev/kanade/internal/modules/music/domain"
)

const (
	testGuild   snowflake.ID = 100
	testChannel snowflake.ID = 200
)

func newTestSession(t *testing.T, idleTimeout time.Duration) (*Session, *Registry, *mockAudioPlayer, *mockVoiceConnection) {
	t.Helper()

	player := &mockAudioPlayer{}
	voice := &mockVoiceConnection{}
	registry := NewRegistry(player, voice, idleTimeout)

	session, err := registry.Connect(context.Background(), testGuild, testChannel)
	if err != nil {
		t.Fatalf("failed to connect session: %v", err)
	}
	return session, registry, player, voice
}

func TestEnqueueOrPlayStartsFirstTrack(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)

	out, err := session.EnqueueOrPlay(context.Background(), newTrack("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Started {
		t.Errorf("expected first track to start immediately")
	}
	if got := player.playedTitles(); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected played [a], got %v", got)
	}
}

func TestEnqueueOrPlayQueuesWhilePlaying(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	if _, err := session.EnqueueOrPlay(ctx, newTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := session.EnqueueOrPlay(ctx, newTrack("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Started {
		t.Errorf("expected second track to queue, not start")
	}
	if out.Position != 1 {
		t.Errorf("expected queue position 1, got %d", out.Position)
	}
	if got := player.playedTitles(); len(got) != 1 {
		t.Errorf("expected only one play command, got %v", got)
	}
}

func TestEnqueueOrPlayQueuesWhilePaused(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	if _, err := session.EnqueueOrPlay(ctx, newTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := session.Pause(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := session.EnqueueOrPlay(ctx, newTrack("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Started {
		t.Errorf("a paused current track still occupies the player; expected queue")
	}
	if got := player.playedTitles(); len(got) != 1 {
		t.Errorf("expected only one play command, got %v", got)
	}
}

func TestConcurrentEnqueueExactlyOneStarts(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	const n = 8
	results := make([]*EnqueueResult, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := session.EnqueueOrPlay(ctx, newTrack("t"))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = out
		}()
	}
	wg.Wait()

	started := 0
	for _, out := range results {
		if out != nil && out.Started {
			started++
		}
	}
	if started != 1 {
		t.Errorf("expected exactly one track to start, got %d", started)
	}
	if got := player.playedTitles(); len(got) != 1 {
		t.Errorf("expected exactly one play command, got %d", len(got))
	}
}

func TestSkipAdvancesToNext(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))

	out, err := session.Skip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Skipped.Title != "a" {
		t.Errorf("expected to skip a, got %s", out.Skipped.Title)
	}
	if out.Next == nil || out.Next.Title != "b" {
		t.Errorf("expected b to play next, got %+v", out.Next)
	}
	if got := player.playedTitles(); len(got) != 2 || got[1] != "b" {
		t.Errorf("expected played [a b], got %v", got)
	}
}

func TestSkipLastTrackStopsPlayback(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))

	out, err := session.Skip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Next != nil {
		t.Errorf("expected no next track, got %+v", out.Next)
	}
	if player.stopCount() != 1 {
		t.Errorf("expected one stop command, got %d", player.stopCount())
	}
	if _, err := session.NowPlaying(); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("expected ErrNothingPlaying after skipping the last track, got %v", err)
	}
	if !session.IsConnected() {
		t.Errorf("session must stay connected after exhausting the queue")
	}
}

func TestSkipNothingPlaying(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)

	if _, err := session.Skip(context.Background()); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("expected ErrNothingPlaying, got %v", err)
	}
}

func TestNaturalEndAdvances(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))

	session.OnTrackEnded(ctx, events.TrackEndFinished)

	if got := player.playedTitles(); len(got) != 2 || got[1] != "b" {
		t.Errorf("expected played [a b], got %v", got)
	}
}

func TestCommandStopReasonsDoNotAdvance(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))

	for _, reason := range []events.TrackEndReason{
		events.TrackEndStopped, events.TrackEndReplaced, events.TrackEndCleanup,
	} {
		session.OnTrackEnded(ctx, reason)
	}

	if got := player.playedTitles(); len(got) != 1 {
		t.Errorf("expected no advance for command-driven reasons, played %v", got)
	}
}

func TestRepeatOneReplaysOnNaturalEnd(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.SetRepeatMode(domain.RepeatOne)

	for range 3 {
		session.OnTrackEnded(ctx, events.TrackEndFinished)
	}

	got := player.playedTitles()
	if len(got) != 4 {
		t.Fatalf("expected 4 play commands, got %d", len(got))
	}
	for _, title := range got {
		if title != "a" {
			t.Errorf("expected only a to play under repeat one, got %v", got)
		}
	}
}

func TestRepeatOneSkipMovesForward(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))
	session.SetRepeatMode(domain.RepeatOne)

	out, err := session.Skip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Next == nil || out.Next.Title != "b" {
		t.Errorf("skip must move forward under repeat one, got %+v", out.Next)
	}
}

func TestRepeatAllCyclesQueue(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))
	session.EnqueueOrPlay(ctx, newTrack("c"))
	session.SetRepeatMode(domain.RepeatAll)

	for range 3 {
		session.OnTrackEnded(ctx, events.TrackEndFinished)
	}

	want := []string{"a", "b", "c", "a"}
	got := player.playedTitles()
	if len(got) != len(want) {
		t.Fatalf("expected played %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected played %v, got %v", want, got)
		}
	}
}

func TestLoadFailedNeverReplayed(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))
	session.SetRepeatMode(domain.RepeatOne)

	// A failed track must not loop under repeat one.
	session.OnTrackEnded(ctx, events.TrackEndLoadFailed)

	got := player.playedTitles()
	if len(got) != 2 || got[1] != "b" {
		t.Errorf("expected advance past failed track, played %v", got)
	}
}

func TestLoadFailedNotReappendedUnderRepeatAll(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))
	session.SetRepeatMode(domain.RepeatAll)

	session.OnTrackEnded(ctx, events.TrackEndLoadFailed)

	if view := session.Queue(10); view.TotalQueued != 0 {
		t.Errorf("failed track must not be re-appended, queue has %d", view.TotalQueued)
	}
	if got := player.playedTitles(); len(got) != 2 || got[1] != "b" {
		t.Errorf("expected played [a b], got %v", got)
	}
}

func TestPauseResume(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))

	paused, err := session.Pause(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !paused {
		t.Errorf("expected paused state after Pause")
	}

	// Pausing again is a no-op and must not hit the audio node.
	if _, err := session.Pause(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := player.pauseCalls(); len(got) != 1 {
		t.Errorf("expected one SetPaused call, got %d", len(got))
	}

	paused, err = session.Resume(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paused {
		t.Errorf("expected playing state after Resume")
	}
}

func TestPauseWithoutTrack(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)

	if _, err := session.Pause(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
	if _, err := session.Resume(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	tests := []struct {
		input int
		want  int
	}{
		{150, 100},
		{-5, 0},
		{50, 50},
		{0, 0},
		{100, 100},
	}

	for _, tt := range tests {
		got, err := session.SetVolume(ctx, tt.input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("SetVolume(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestSeekBounds(t *testing.T) {
	session, _, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	// newTrack tracks are 3 minutes long.
	session.EnqueueOrPlay(ctx, newTrack("a"))

	if err := session.Seek(ctx, -time.Second); !errors.Is(err, ErrSeekOutOfRange) {
		t.Errorf("expected ErrSeekOutOfRange for negative position, got %v", err)
	}
	if err := session.Seek(ctx, 3*time.Minute+time.Second); !errors.Is(err, ErrSeekOutOfRange) {
		t.Errorf("expected ErrSeekOutOfRange beyond duration, got %v", err)
	}
	if len(player.seeks) != 0 {
		t.Errorf("rejected seeks must not reach the audio node")
	}

	if err := session.Seek(ctx, 90*time.Second); err != nil {
		t.Errorf("unexpected error for in-range seek: %v", err)
	}
	if len(player.seeks) != 1 || player.seeks[0] != 90*time.Second {
		t.Errorf("expected one seek to 1m30s, got %v", player.seeks)
	}
}

func TestSeekNothingPlaying(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)

	if err := session.Seek(context.Background(), time.Second); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("expected ErrNothingPlaying, got %v", err)
	}
}

func TestShuffleLeavesCurrentTrack(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("current"))
	session.EnqueueOrPlay(ctx, newTrack("b"))
	session.EnqueueOrPlay(ctx, newTrack("c"))

	session.ShuffleQueue()

	info, err := session.NowPlaying()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Track.Title != "current" {
		t.Errorf("shuffle must not touch the current track, got %s", info.Track.Title)
	}
	if view := session.Queue(10); view.TotalQueued != 2 {
		t.Errorf("expected 2 queued tracks after shuffle, got %d", view.TotalQueued)
	}
}

func TestRemoveTrack(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("current"))
	session.EnqueueOrPlay(ctx, newTrack("b"))
	session.EnqueueOrPlay(ctx, newTrack("c"))

	removed, err := session.RemoveTrack(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Title != "b" {
		t.Errorf("expected to remove b, got %s", removed.Title)
	}

	if _, err := session.RemoveTrack(5); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestQueueView(t *testing.T) {
	session, _, _, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("current"))
	for _, title := range []string{"b", "c", "d"} {
		session.EnqueueOrPlay(ctx, newTrack(title))
	}
	session.SetRepeatMode(domain.RepeatAll)

	view := session.Queue(2)
	if view.Current == nil || view.Current.Title != "current" {
		t.Errorf("expected current track in view, got %+v", view.Current)
	}
	if len(view.Upcoming) != 2 {
		t.Errorf("expected 2 upcoming tracks, got %d", len(view.Upcoming))
	}
	if view.TotalQueued != 3 {
		t.Errorf("expected 3 total queued, got %d", view.TotalQueued)
	}
	if view.RepeatMode != domain.RepeatAll {
		t.Errorf("expected repeat all in view, got %v", view.RepeatMode)
	}
}

func TestIdleDisconnectAfterTimeout(t *testing.T) {
	_, registry, _, voice := newTestSession(t, 30*time.Millisecond)

	time.Sleep(150 * time.Millisecond)

	if got := registry.Get(testGuild); got != nil {
		t.Errorf("expected idle session to be removed from registry")
	}
	if voice.leaveCount() != 1 {
		t.Errorf("expected one leave call, got %d", voice.leaveCount())
	}
}

func TestIdleTimerCancelledByPlayback(t *testing.T) {
	session, registry, _, _ := newTestSession(t, 60*time.Millisecond)

	// Start playback just before the countdown elapses.
	time.Sleep(20 * time.Millisecond)
	if _, err := session.EnqueueOrPlay(context.Background(), newTrack("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	if got := registry.Get(testGuild); got == nil {
		t.Errorf("session with a playing track must not be idle-disconnected")
	}
	if !session.IsConnected() {
		t.Errorf("expected session to remain connected")
	}
}

func TestIdleTimerRearmsAfterQueueExhausted(t *testing.T) {
	session, registry, _, _ := newTestSession(t, 30*time.Millisecond)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.OnTrackEnded(ctx, events.TrackEndFinished)

	time.Sleep(150 * time.Millisecond)

	if got := registry.Get(testGuild); got != nil {
		t.Errorf("expected session to idle-disconnect after queue exhaustion")
	}
}

func TestPlayFailureKeepsSessionAlive(t *testing.T) {
	session, registry, player, _ := newTestSession(t, time.Minute)
	ctx := context.Background()

	player.playErr = errors.New("node down")

	_, err := session.EnqueueOrPlay(ctx, newTrack("a"))
	if !errors.Is(err, ErrAudioNodeUnavailable) {
		t.Fatalf("expected ErrAudioNodeUnavailable, got %v", err)
	}

	if !session.IsConnected() {
		t.Errorf("session must survive a transient play failure")
	}
	if registry.Get(testGuild) == nil {
		t.Errorf("session must remain registered after a play failure")
	}

	// The node recovers and a retry succeeds.
	player.playErr = nil
	out, err := session.EnqueueOrPlay(ctx, newTrack("a"))
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if !out.Started {
		t.Errorf("expected retry to start playback")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	session, registry, _, voice := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))

	if err := session.Disconnect(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := session.Disconnect(ctx); err != nil {
		t.Fatalf("second disconnect must be a no-op, got %v", err)
	}

	if voice.leaveCount() != 1 {
		t.Errorf("expected one leave call, got %d", voice.leaveCount())
	}
	if registry.Get(testGuild) != nil {
		t.Errorf("expected session removed from registry")
	}
}

func TestDisconnectedSessionCannotReconnect(t *testing.T) {
	session, registry, _, voice := newTestSession(t, time.Minute)
	ctx := context.Background()

	if err := session.Disconnect(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A caller still holding the stale pointer must be sent back to the
	// registry instead of reviving an unregistered session.
	if err := session.connect(ctx, testChannel); !errors.Is(err, errSessionDead) {
		t.Errorf("expected errSessionDead, got %v", err)
	}
	if session.IsConnected() {
		t.Error("dead session must not reconnect")
	}
	if registry.Get(testGuild) != nil {
		t.Error("expected no registered session")
	}
	if voice.joinCount() != 1 {
		t.Errorf("expected no second join, got %d", voice.joinCount())
	}

	// A fresh Connect replaces it cleanly.
	replacement, err := registry.Connect(ctx, testGuild, testChannel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replacement == session {
		t.Error("expected a fresh session instance")
	}
	if got := registry.Get(testGuild); got != replacement {
		t.Errorf("expected replacement to be registered, got %v", got)
	}
}

func TestOnPlayerInactiveDisconnects(t *testing.T) {
	session, registry, _, voice := newTestSession(t, time.Minute)
	ctx := context.Background()

	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.OnPlayerInactive(ctx)

	if voice.leaveCount() != 1 {
		t.Errorf("expected one leave call, got %d", voice.leaveCount())
	}
	if registry.Get(testGuild) != nil {
		t.Errorf("expected session removed from registry")
	}
}

func TestSessionLifecycle(t *testing.T) {
	session, registry, player, voice := newTestSession(t, 30*time.Millisecond)
	ctx := context.Background()

	// Play a, queue b, skip to b, let b finish naturally.
	session.EnqueueOrPlay(ctx, newTrack("a"))
	session.EnqueueOrPlay(ctx, newTrack("b"))

	out, err := session.Skip(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Next == nil || out.Next.Title != "b" {
		t.Fatalf("expected b after skip, got %+v", out.Next)
	}

	session.OnTrackEnded(ctx, events.TrackEndFinished)

	got := player.playedTitles()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected played [a b], got %v", got)
	}

	// The queue is exhausted; the idle countdown tears the session down.
	time.Sleep(150 * time.Millisecond)

	if registry.Get(testGuild) != nil {
		t.Errorf("expected session removed after idle timeout")
	}
	if voice.leaveCount() != 1 {
		t.Errorf("expected one leave call, got %d", voice.leaveCount())
	}
}
