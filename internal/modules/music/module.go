package music

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/bot"
	"github.com/hotaru-dev/kanade/internal/modules/music/application"
	"github.com/hotaru-dev/kanade/internal/modules/music/application/events"
	"github.com/hotaru-dev/kanade/internal/modules/music/infrastructure"
	"github.com/hotaru-dev/kanade/internal/modules/music/presentation"
)

// shutdownTimeout bounds the voice teardown at module shutdown.
const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(New())
}

// MusicModule provides voice playback: per-guild queues, a Lavalink
// audio node and the slash-command surface on top of them.
type MusicModule struct {
	config *Config

	bus        *events.Bus
	adapter    *infrastructure.LavalinkAdapter
	voiceState *infrastructure.VoiceStateProvider
	registry   *application.Registry
	dispatcher *events.Dispatcher
	handlers   *presentation.Handlers

	cancel context.CancelFunc
}

// New creates a new MusicModule instance.
func New() *MusicModule {
	return &MusicModule{}
}

// Name returns the module name.
func (m *MusicModule) Name() string {
	return "music"
}

// LoadConfig loads the module configuration from the environment.
func (m *MusicModule) LoadConfig() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init wires the module: event bus, Lavalink adapter, session registry,
// event dispatcher and command handlers.
func (m *MusicModule) Init(deps bot.ModuleDependencies) error {
	m.bus = events.NewBus(events.DefaultBufferSize)

	adapter, err := infrastructure.NewLavalinkAdapter(deps.Session, m.bus, infrastructure.LavalinkConfig{
		Address:  m.config.LavalinkAddress,
		Password: m.config.LavalinkPassword,
	})
	if err != nil {
		return err
	}
	m.adapter = adapter

	m.voiceState = infrastructure.NewVoiceStateProvider(deps.Session)
	m.registry = application.NewRegistry(adapter, adapter, m.config.IdleTimeout)

	m.dispatcher = events.NewDispatcher(m.bus, m.registry)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.dispatcher.Start(ctx)

	m.handlers = presentation.NewHandlers(m.registry, adapter, m.voiceState)

	return nil
}

// Commands returns the slash commands this module provides.
func (m *MusicModule) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command name to handler mapping.
func (m *MusicModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":       m.handlers.HandleJoin,
		"leave":      m.handlers.HandleLeave,
		"play":       m.handlers.HandlePlay,
		"skip":       m.handlers.HandleSkip,
		"pause":      m.handlers.HandlePause,
		"resume":     m.handlers.HandleResume,
		"stop":       m.handlers.HandleStop,
		"queue":      m.handlers.HandleQueue,
		"loop":       m.handlers.HandleLoop,
		"volume":     m.handlers.HandleVolume,
		"shuffle":    m.handlers.HandleShuffle,
		"remove":     m.handlers.HandleRemove,
		"nowplaying": m.handlers.HandleNowPlaying,
		"seek":       m.handlers.HandleSeek,
	}
}

// EventHandlers returns the gateway event handlers this module needs:
// voice events are forwarded to Lavalink, and user voice movements are
// watched for abandoned players.
func (m *MusicModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
			m.adapter.OnVoiceServerUpdate(e)
		},
		func(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
			m.adapter.OnVoiceStateUpdate(e)
			m.checkPlayerInactive(e)
		},
	}
}

// checkPlayerInactive publishes a PlayerInactiveEvent when the session's
// voice channel has no listeners left. Discord sends a VoiceStateUpdate
// for every join/leave/move, so checking the occupant count here catches
// the last listener leaving.
func (m *MusicModule) checkPlayerInactive(e *discordgo.VoiceStateUpdate) {
	guildID, err := snowflake.Parse(e.GuildID)
	if err != nil {
		return
	}

	session := m.registry.Get(guildID)
	if session == nil || !session.IsConnected() {
		return
	}

	channelID := session.VoiceChannelID()
	if channelID == 0 {
		return
	}

	count, err := m.voiceState.CountChannelMembers(guildID, channelID)
	if err != nil {
		slog.Warn("failed to count voice channel members", "guild", guildID, "error", err)
		return
	}

	if count == 0 {
		m.bus.PublishPlayerInactive(events.PlayerInactiveEvent{GuildID: guildID})
	}
}

// Shutdown tears down all sessions and stops the event pipeline.
func (m *MusicModule) Shutdown() error {
	if m.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		m.registry.DisconnectAll(ctx)
	}

	if m.dispatcher != nil {
		m.dispatcher.Stop()
	}
	if m.bus != nil {
		m.bus.Close()
	}
	if m.cancel != nil {
		m.cancel()
	}

	return nil
}

// Compile-time interface checks.
var (
	_ bot.Module             = (*MusicModule)(nil)
	_ bot.ConfigurableModule = (*MusicModule)(nil)
)
