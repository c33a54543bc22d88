package presentation

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the music module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "join",
			Description: "Join your voice channel",
		},
		{
			Name:        "leave",
			Description: "Leave the voice channel and clear the queue",
		},
		{
			Name:        "play",
			Description: "Play a track from URL or search (YouTube, Spotify, SoundCloud, ...)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL or search term",
					Required:    true,
				},
			},
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "pause",
			Description: "Pause playback",
		},
		{
			Name:        "resume",
			Description: "Resume playback",
		},
		{
			Name:        "stop",
			Description: "Stop playback and leave the voice channel",
		},
		{
			Name:        "queue",
			Description: "Show the current queue",
		},
		{
			Name:        "loop",
			Description: "Set the repeat mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "Repeat mode",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Off", Value: "off"},
						{Name: "One", Value: "one"},
						{Name: "All", Value: "all"},
					},
				},
			},
		},
		{
			Name:        "volume",
			Description: "Set the playback volume (0-100)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume level (values outside 0-100 are clamped)",
					Required:    true,
				},
			},
		},
		{
			Name:        "shuffle",
			Description: "Shuffle the queue",
		},
		{
			Name:        "remove",
			Description: "Remove a track from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "position",
					Description: "Position of the track to remove (1-indexed, as shown in queue)",
					Required:    true,
					MinValue:    floatPtr(1),
				},
			},
		},
		{
			Name:        "nowplaying",
			Description: "Show the currently playing track",
		},
		{
			Name:        "seek",
			Description: "Seek to a position in the current track",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Position in seconds",
					Required:    true,
					MinValue:    floatPtr(0),
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
