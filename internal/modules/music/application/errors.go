package application

import "errors"

// User-facing errors for the music module. Handlers map these to embed
// replies; they never terminate the process or tear down a session.
var (
	// ErrUserNotInVoice is returned when the requester is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrChannelMismatch is returned when the requester is in a different
	// voice channel than the session.
	ErrChannelMismatch = errors.New("you must be in the same voice channel as the bot")

	// ErrVoiceJoin is returned when the voice transport could not be established.
	ErrVoiceJoin = errors.New("could not join the voice channel")

	// ErrNoActiveSession is returned when an operation requires a live
	// session with a current track.
	ErrNoActiveSession = errors.New("not connected to a voice channel")

	// ErrNothingPlaying is returned when no track is currently playing.
	ErrNothingPlaying = errors.New("nothing is currently playing")

	// ErrSeekOutOfRange is returned when a seek position is negative or
	// beyond the current track's duration.
	ErrSeekOutOfRange = errors.New("seek position is out of range")

	// ErrEmptySearchResult is returned when a query yields no tracks.
	ErrEmptySearchResult = errors.New("no results found")

	// ErrAudioNodeUnavailable is returned when a command to the audio
	// node fails. The session survives; the user may retry.
	ErrAudioNodeUnavailable = errors.New("the audio node is unavailable")
)
