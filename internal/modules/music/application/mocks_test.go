package application

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/domain"
)

// mockAudioPlayer records audio-node commands for assertions.
type mockAudioPlayer struct {
	mu sync.Mutex

	played  []string // track titles in play order
	stops   int
	pauses  []bool
	volumes []int
	seeks   []time.Duration

	position time.Duration

	playErr   error
	pauseErr  error
	volumeErr error
	seekErr   error
}

func (m *mockAudioPlayer) Play(ctx context.Context, guildID snowflake.ID, track *domain.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.played = append(m.played, track.Title)
	return nil
}

func (m *mockAudioPlayer) Stop(ctx context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockAudioPlayer) SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pauseErr != nil {
		return m.pauseErr
	}
	m.pauses = append(m.pauses, paused)
	return nil
}

func (m *mockAudioPlayer) SetVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.volumeErr != nil {
		return m.volumeErr
	}
	m.volumes = append(m.volumes, volume)
	return nil
}

func (m *mockAudioPlayer) Seek(ctx context.Context, guildID snowflake.ID, position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seekErr != nil {
		return m.seekErr
	}
	m.seeks = append(m.seeks, position)
	return nil
}

func (m *mockAudioPlayer) Position(guildID snowflake.ID) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *mockAudioPlayer) playedTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.played))
	copy(result, m.played)
	return result
}

func (m *mockAudioPlayer) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *mockAudioPlayer) pauseCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]bool, len(m.pauses))
	copy(result, m.pauses)
	return result
}

// mockVoiceConnection records join/leave calls. joinErrs is consumed one
// entry per call before joinErr applies, so tests can fail the first
// join and let a retry succeed; joinDelay holds each join open to widen
// race windows.
type mockVoiceConnection struct {
	mu sync.Mutex

	joins  int
	leaves int

	lastChannel snowflake.ID

	joinErrs  []error
	joinErr   error
	joinDelay time.Duration
	leaveErr  error
}

func (m *mockVoiceConnection) JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	m.mu.Lock()
	err := m.joinErr
	if len(m.joinErrs) > 0 {
		err = m.joinErrs[0]
		m.joinErrs = m.joinErrs[1:]
	}
	delay := m.joinDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins++
	m.lastChannel = channelID
	return nil
}

func (m *mockVoiceConnection) LeaveChannel(ctx context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leaveErr != nil {
		return m.leaveErr
	}
	m.leaves++
	return nil
}

func (m *mockVoiceConnection) joinCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joins
}

func (m *mockVoiceConnection) leaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaves
}

func newTrack(title string) *domain.Track {
	return domain.NewTrack("encoded-"+title, title, "artist", 3*time.Minute, "", "", "youtube", false, 1)
}
