package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/application/events"
	"github.com/hotaru-dev/kanade/internal/modules/music/application/ports"
	"github.com/hotaru-dev/kanade/internal/modules/music/domain"
)

// voiceConnectionTimeout is the maximum time to wait for a voice
// connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// pendingVoiceConnection tracks a join waiting for both gateway events.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready once both are in.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer holds voice events until both VoiceStateUpdate and
// VoiceServerUpdate have arrived, since Discord delivers them in either
// order and Lavalink rejects partial voice state.
type voiceEventBuffer struct {
	mu sync.Mutex

	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	hasVoiceServer bool
	token          string
	endpoint       string
}

func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// LavalinkAdapter wraps DisGoLink to implement the audio-node ports.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID
	bus     *events.Bus

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
}

// NewLavalinkAdapter creates a LavalinkAdapter and connects the node.
func NewLavalinkAdapter(
	session *discordgo.Session,
	bus *events.Bus,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := &LavalinkAdapter{
		session:      session,
		botID:        botID,
		bus:          bus,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)
	adapter.link = link

	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

// Link returns the underlying DisGoLink client.
func (c *LavalinkAdapter) Link() disgolink.Client {
	return c.link
}

// JoinChannel connects to a voice channel. It waits for both
// VoiceStateUpdate and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, guildID)
		c.pendingMu.Unlock()
	}()

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-pending.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return fmt.Errorf("timeout waiting for voice connection")
	}
}

// LeaveChannel disconnects from the voice channel and destroys the
// guild's player.
func (c *LavalinkAdapter) LeaveChannel(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.ExistingPlayer(guildID)
	if player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// Play plays a track.
func (c *LavalinkAdapter) Play(
	ctx context.Context,
	guildID snowflake.ID,
	track *domain.Track,
) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithEncodedTrack(track.Encoded)); err != nil {
		return fmt.Errorf("failed to play track: %w", err)
	}

	return nil
}

// Stop stops the current playback.
func (c *LavalinkAdapter) Stop(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}

	return nil
}

// SetPaused pauses or resumes the current playback.
func (c *LavalinkAdapter) SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(paused)); err != nil {
		return fmt.Errorf("failed to set paused state: %w", err)
	}

	return nil
}

// SetVolume sets the player volume.
func (c *LavalinkAdapter) SetVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithVolume(volume)); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}

	return nil
}

// Seek moves playback to the given position.
func (c *LavalinkAdapter) Seek(ctx context.Context, guildID snowflake.ID, position time.Duration) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPosition(lavalink.Duration(position.Milliseconds()))); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

// Position returns the current playback position, or 0 if the guild has
// no live player.
func (c *LavalinkAdapter) Position(guildID snowflake.ID) time.Duration {
	player := c.link.ExistingPlayer(guildID)
	if player == nil {
		return 0
	}
	return time.Duration(player.Position()) * time.Millisecond
}

// LoadTracks resolves a query against the Lavalink node.
func (c *LavalinkAdapter) LoadTracks(
	ctx context.Context,
	query string,
) (*ports.LoadResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	return c.convertLoadResult(result), nil
}

// convertLoadResult converts a Lavalink result to a ports result.
func (c *LavalinkAdapter) convertLoadResult(result *lavalink.LoadResult) *ports.LoadResult {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return &ports.LoadResult{
			Type:   ports.LoadTypeTrack,
			Tracks: []*ports.TrackInfo{c.convertTrack(data)},
		}

	case lavalink.Playlist:
		tracks := make([]*ports.TrackInfo, len(data.Tracks))
		for i, track := range data.Tracks {
			tracks[i] = c.convertTrack(track)
		}
		return &ports.LoadResult{
			Type:         ports.LoadTypePlaylist,
			Tracks:       tracks,
			PlaylistName: data.Info.Name,
		}

	case lavalink.Search:
		tracks := make([]*ports.TrackInfo, len(data))
		for i, track := range data {
			tracks[i] = c.convertTrack(track)
		}
		return &ports.LoadResult{
			Type:   ports.LoadTypeSearch,
			Tracks: tracks,
		}

	case lavalink.Empty:
		return &ports.LoadResult{
			Type: ports.LoadTypeEmpty,
		}

	case lavalink.Exception:
		return &ports.LoadResult{
			Type: ports.LoadTypeError,
		}

	default:
		return &ports.LoadResult{
			Type: ports.LoadTypeEmpty,
		}
	}
}

func (c *LavalinkAdapter) convertTrack(track lavalink.Track) *ports.TrackInfo {
	info := track.Info
	artworkURL := ""
	if info.ArtworkURL != nil {
		artworkURL = *info.ArtworkURL
	}
	uri := ""
	if info.URI != nil {
		uri = *info.URI
	}

	return &ports.TrackInfo{
		Encoded:    track.Encoded,
		Title:      info.Title,
		Artist:     info.Author,
		Duration:   time.Duration(info.Length) * time.Millisecond,
		URI:        uri,
		ArtworkURL: artworkURL,
		SourceName: info.SourceName,
		IsStream:   info.IsStream,
	}
}

// OnVoiceServerUpdate handles Discord voice server updates. Must be
// called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates for the bot
// itself. Must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	sessionID := event.SessionID

	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Disconnects need no VoiceServerUpdate counterpart.
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, sessionID)
		c.clearVoiceBuffer(guildID)
		return
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceState(channelID, sessionID) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(true)
	}
}

func (c *LavalinkAdapter) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

func (c *LavalinkAdapter) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
	)

	c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	if c.bus != nil {
		c.bus.PublishTrackEnded(events.TrackEndedEvent{
			GuildID: player.GuildID(),
			Reason:  convertEndReason(event.Reason),
		})
	}
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

func convertEndReason(reason lavalink.TrackEndReason) events.TrackEndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return events.TrackEndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return events.TrackEndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return events.TrackEndStopped
	case lavalink.TrackEndReasonReplaced:
		return events.TrackEndReplaced
	case lavalink.TrackEndReasonCleanup:
		return events.TrackEndCleanup
	default:
		return events.TrackEndStopped
	}
}

// Ensure LavalinkAdapter implements the audio-node ports.
var (
	_ ports.AudioPlayer     = (*LavalinkAdapter)(nil)
	_ ports.VoiceConnection = (*LavalinkAdapter)(nil)
	_ ports.TrackResolver   = (*LavalinkAdapter)(nil)
)
