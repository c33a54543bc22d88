package infrastructure

import (
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/modules/music/application/ports"
)

// VoiceStateProvider reads Discord voice state from the gateway cache.
type VoiceStateProvider struct {
	session *discordgo.Session
}

// NewVoiceStateProvider creates a new VoiceStateProvider.
func NewVoiceStateProvider(session *discordgo.Session) *VoiceStateProvider {
	return &VoiceStateProvider{
		session: session,
	}
}

// GetUserVoiceChannel returns the voice channel ID that the user is
// currently in, or 0 if the user is not in a voice channel.
func (v *VoiceStateProvider) GetUserVoiceChannel(
	guildID, userID snowflake.ID,
) (snowflake.ID, error) {
	guild, err := v.session.State.Guild(guildID.String())
	if err != nil {
		return 0, err
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID.String() && vs.ChannelID != "" {
			channelID, err := snowflake.Parse(vs.ChannelID)
			if err != nil {
				return 0, err
			}
			return channelID, nil
		}
	}

	return 0, nil
}

// CountChannelMembers returns how many users sit in the voice channel,
// excluding the bot itself. Used to detect an abandoned player.
func (v *VoiceStateProvider) CountChannelMembers(
	guildID, channelID snowflake.ID,
) (int, error) {
	guild, err := v.session.State.Guild(guildID.String())
	if err != nil {
		return 0, err
	}

	botID := ""
	if v.session.State.User != nil {
		botID = v.session.State.User.ID
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID.String() && vs.UserID != botID {
			count++
		}
	}
	return count, nil
}

// Ensure VoiceStateProvider implements ports.VoiceStateProvider.
var _ ports.VoiceStateProvider = (*VoiceStateProvider)(nil)
