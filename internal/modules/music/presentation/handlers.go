package presentation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hotaru-dev/kanade/internal/bot"
	"github.com/hotaru-dev/kanade/internal/modules/music/application"
	"github.com/hotaru-dev/kanade/internal/modules/music/application/ports"
	"github.com/hotaru-dev/kanade/internal/modules/music/domain"
)

// Embed colors.
const (
	colorSuccess = 0x3498DB
	colorError   = 0xE74C3C
)

// queuePageSize is the number of upcoming tracks shown by /queue.
const queuePageSize = 10

// progressBarWidth is the number of segments in the /nowplaying bar.
const progressBarWidth = 20

// Handlers translates slash commands into session operations.
type Handlers struct {
	registry   *application.Registry
	resolver   ports.TrackResolver
	voiceState ports.VoiceStateProvider
}

// NewHandlers creates new Handlers.
func NewHandlers(
	registry *application.Registry,
	resolver ports.TrackResolver,
	voiceState ports.VoiceStateProvider,
) *Handlers {
	return &Handlers{
		registry:   registry,
		resolver:   resolver,
		voiceState: voiceState,
	}
}

// ensureVoiceSession connects (or reuses) the session for the requester's
// voice channel. The requester must be in a voice channel, and if a
// session already exists it must be in the same channel.
func (h *Handlers) ensureVoiceSession(
	ctx context.Context,
	guildID, userID snowflake.ID,
) (*application.Session, error) {
	channelID, err := h.voiceState.GetUserVoiceChannel(guildID, userID)
	if err != nil {
		return nil, err
	}
	if channelID == 0 {
		return nil, application.ErrUserNotInVoice
	}

	return h.registry.Connect(ctx, guildID, channelID)
}

// sessionFor returns the guild's live session or ErrNoActiveSession.
func (h *Handlers) sessionFor(guildID snowflake.ID) (*application.Session, error) {
	session := h.registry.Get(guildID)
	if session == nil {
		return nil, application.ErrNoActiveSession
	}
	return session, nil
}

// HandleJoin handles the /join command.
func (h *Handlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, userID, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.ensureVoiceSession(context.Background(), guildID, userID)
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Connected to <#%d>.", session.VoiceChannelID()))
}

// HandleLeave handles the /leave command.
func (h *Handlers) HandleLeave(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	if err := session.Disconnect(context.Background()); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Disconnected.")
}

// HandlePlay handles the /play command: resolve the query, connect to
// the requester's channel if needed, and enqueue the result.
func (h *Handlers) HandlePlay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, userID, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}
	query := stringOption(i, "query")

	session, err := h.ensureVoiceSession(ctx, guildID, userID)
	if err != nil {
		return respondError(r, err.Error())
	}

	result, err := h.resolver.LoadTracks(ctx, query)
	if err != nil {
		return respondError(r, application.ErrAudioNodeUnavailable.Error())
	}

	switch result.Type {
	case ports.LoadTypeEmpty, ports.LoadTypeError:
		return respondError(r, application.ErrEmptySearchResult.Error())

	case ports.LoadTypePlaylist:
		added := 0
		for _, info := range result.Tracks {
			if _, err := session.EnqueueOrPlay(ctx, toDomainTrack(info, userID)); err != nil {
				return respondError(r, err.Error())
			}
			added++
		}
		return respondSuccess(r, fmt.Sprintf(
			"Queued **%d tracks** from playlist **%s**.", added, result.PlaylistName,
		))

	default:
		// Single track, or the first match of a search.
		if len(result.Tracks) == 0 {
			return respondError(r, application.ErrEmptySearchResult.Error())
		}
		track := toDomainTrack(result.Tracks[0], userID)

		out, err := session.EnqueueOrPlay(ctx, track)
		if err != nil {
			return respondError(r, err.Error())
		}

		if out.Started {
			return respondSuccess(r, fmt.Sprintf(
				"Now playing %s (%s).", trackLink(track), track.FormattedDuration(),
			))
		}
		return respondSuccess(r, fmt.Sprintf(
			"Queued %s at position %d.", trackLink(track), out.Position,
		))
	}
}

// HandleSkip handles the /skip command.
func (h *Handlers) HandleSkip(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	out, err := session.Skip(context.Background())
	if err != nil {
		return respondError(r, err.Error())
	}

	description := fmt.Sprintf("Skipped **%s**.", out.Skipped.Title)
	if out.Next != nil {
		description += fmt.Sprintf(" Now playing %s.", trackLink(out.Next))
	}
	return respondSuccess(r, description)
}

// HandlePause handles the /pause command.
func (h *Handlers) HandlePause(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	if _, err := session.Pause(context.Background()); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Paused playback.")
}

// HandleResume handles the /resume command.
func (h *Handlers) HandleResume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	if _, err := session.Resume(context.Background()); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Resumed playback.")
}

// HandleStop handles the /stop command: stop playback, clear the queue
// and leave the voice channel.
func (h *Handlers) HandleStop(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	if err := session.Disconnect(context.Background()); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Stopped playback and left the channel.")
}

// HandleQueue handles the /queue command.
func (h *Handlers) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	view := session.Queue(queuePageSize)

	embed := &discordgo.MessageEmbed{
		Title: "Queue",
		Color: colorSuccess,
	}

	if view.Current != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Now playing",
			Value: fmt.Sprintf("%s (%s)",
				trackLink(view.Current), view.Current.FormattedDuration()),
		})
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Now playing",
			Value: "Nothing",
		})
	}

	if len(view.Upcoming) > 0 {
		var lines []string
		for n, track := range view.Upcoming {
			lines = append(lines, fmt.Sprintf("`%d.` **%s** (%s)",
				n+1, track.Title, track.FormattedDuration()))
		}
		if view.TotalQueued > len(view.Upcoming) {
			lines = append(lines, fmt.Sprintf("... and %d more",
				view.TotalQueued-len(view.Upcoming)))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Up next (%d)", view.TotalQueued),
			Value: strings.Join(lines, "\n"),
		})
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Up next",
			Value: "Empty",
		})
	}

	if view.RepeatMode != domain.RepeatOff {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Repeat: " + view.RepeatMode.String(),
		}
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// HandleLoop handles the /loop command.
func (h *Handlers) HandleLoop(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	mode := domain.ParseRepeatMode(stringOption(i, "mode"))
	session.SetRepeatMode(mode)

	switch mode {
	case domain.RepeatOne:
		return respondSuccess(r, "Repeating the current track.")
	case domain.RepeatAll:
		return respondSuccess(r, "Repeating the whole queue.")
	default:
		return respondSuccess(r, "Repeat is off.")
	}
}

// HandleVolume handles the /volume command.
func (h *Handlers) HandleVolume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	level, err := session.SetVolume(context.Background(), intOption(i, "level"))
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Volume set to %d%%.", level))
}

// HandleShuffle handles the /shuffle command.
func (h *Handlers) HandleShuffle(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	count := session.ShuffleQueue()
	if count == 0 {
		return respondError(r, "The queue is empty.")
	}

	return respondSuccess(r, fmt.Sprintf("Shuffled %d tracks.", count))
}

// HandleRemove handles the /remove command.
func (h *Handlers) HandleRemove(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	track, err := session.RemoveTrack(intOption(i, "position"))
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Removed **%s** from the queue.", track.Title))
}

// HandleNowPlaying handles the /nowplaying command.
func (h *Handlers) HandleNowPlaying(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	info, err := session.NowPlaying()
	if err != nil {
		return respondError(r, err.Error())
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Now playing",
		Description: trackLink(info.Track),
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Progress",
				Value: fmt.Sprintf("`%s` %s `%s`",
					domain.FormatDuration(info.Position),
					progressBar(info.Position, info.Track.Duration),
					info.Track.FormattedDuration()),
			},
			{
				Name:   "Requested by",
				Value:  fmt.Sprintf("<@%d>", info.Track.RequesterID),
				Inline: true,
			},
			{
				Name:   "Repeat",
				Value:  info.RepeatMode.String(),
				Inline: true,
			},
			{
				Name:   "Volume",
				Value:  fmt.Sprintf("%d%%", info.Volume),
				Inline: true,
			},
		},
	}
	if info.Track.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: info.Track.ArtworkURL}
	}
	if info.Paused {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Paused"}
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// HandleSeek handles the /seek command.
func (h *Handlers) HandleSeek(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, _, err := interactionIDs(i)
	if err != nil {
		return respondError(r, "Invalid interaction")
	}

	session, err := h.sessionFor(guildID)
	if err != nil {
		return respondError(r, err.Error())
	}

	position := time.Duration(intOption(i, "seconds")) * time.Second
	if err := session.Seek(context.Background(), position); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Moved to %s.", domain.FormatDuration(position)))
}

// interactionIDs parses the guild and user IDs from an interaction.
func interactionIDs(i *discordgo.InteractionCreate) (guildID, userID snowflake.ID, err error) {
	guildID, err = snowflake.Parse(i.GuildID)
	if err != nil {
		return 0, 0, err
	}
	if i.Member == nil || i.Member.User == nil {
		return 0, 0, fmt.Errorf("interaction without member")
	}
	userID, err = snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return 0, 0, err
	}
	return guildID, userID, nil
}

// stringOption returns the named string option, or "".
func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// intOption returns the named integer option, or 0.
func intOption(i *discordgo.InteractionCreate, name string) int {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}

// toDomainTrack binds a loaded track to its requester.
func toDomainTrack(info *ports.TrackInfo, requesterID snowflake.ID) *domain.Track {
	return domain.NewTrack(
		info.Encoded,
		info.Title,
		info.Artist,
		info.Duration,
		info.URI,
		info.ArtworkURL,
		info.SourceName,
		info.IsStream,
		requesterID,
	)
}

// trackLink renders a track as a markdown link, or bold text if it has
// no URI.
func trackLink(track *domain.Track) string {
	if track.URI != "" {
		return fmt.Sprintf("[%s](%s)", track.Title, track.URI)
	}
	return fmt.Sprintf("**%s**", track.Title)
}

// progressBar renders playback progress as filled/empty segments.
func progressBar(position, duration time.Duration) string {
	if duration <= 0 {
		return strings.Repeat("░", progressBarWidth)
	}
	filled := int(float64(position) / float64(duration) * progressBarWidth)
	filled = max(0, min(progressBarWidth, filled))
	return strings.Repeat("▓", filled) + strings.Repeat("░", progressBarWidth-filled)
}

// respondSuccess sends a public success embed.
func respondSuccess(r bot.Responder, description string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: description,
					Color:       colorSuccess,
				},
			},
		},
	})
}

// respondError sends an ephemeral error embed. User errors are replies,
// never failures: the returned error is only the transport error.
func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}
