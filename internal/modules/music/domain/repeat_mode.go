package domain

// RepeatMode governs what happens when the current track finishes.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Default: advance through the queue once
	RepeatOne                   // Replay the current track indefinitely
	RepeatAll                   // Re-append finished tracks, cycling the whole queue
)

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// ParseRepeatMode converts a string to a RepeatMode. Unknown values map
// to RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "one":
		return RepeatOne
	case "all":
		return RepeatAll
	default:
		return RepeatOff
	}
}
