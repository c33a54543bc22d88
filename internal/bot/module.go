package bot

import "github.com/bwmarrin/discordgo"

// InteractionHandler handles a Discord slash-command interaction.
type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error

// EventHandler is a generic handler for any Discord gateway event.
// It must match one of discordgo's handler signatures, e.g.
// func(s *discordgo.Session, e *discordgo.VoiceStateUpdate).
type EventHandler any

// ModuleDependencies provides dependencies available to modules at Init.
// The session is already open: State.User is populated.
type ModuleDependencies struct {
	Session *discordgo.Session
}

// Module defines the interface that all bot modules implement.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// Commands returns the slash commands this module provides.
	Commands() []*discordgo.ApplicationCommand

	// CommandHandlers returns a map of command names to their handlers.
	CommandHandlers() map[string]InteractionHandler

	// EventHandlers returns gateway event handlers for this module.
	EventHandlers() []EventHandler

	// Init initializes the module with the provided dependencies.
	Init(deps ModuleDependencies) error

	// Shutdown gracefully shuts down the module.
	Shutdown() error
}

// ConfigurableModule is an optional interface for modules that load
// their own configuration. LoadConfig runs before Init and before the
// Discord connection is established.
type ConfigurableModule interface {
	LoadConfig() error
}
