package domain

import (
	"errors"
	"iter"
	"math/rand/v2"
)

// ErrIndexOutOfRange is returned when a queue position does not exist.
var ErrIndexOutOfRange = errors.New("queue position out of range")

// Queue is an ordered FIFO collection of tracks for one playback session.
// The currently playing track is held by the session, not the queue, so
// repeat-mode handling lives in the session's advance algorithm and the
// queue stays a plain FIFO.
//
// Queue is not safe for concurrent use; the owning session serializes
// access.
type Queue struct {
	tracks []*Track
}

// NewQueue creates a new empty Queue.
func NewQueue() *Queue {
	return &Queue{
		tracks: make([]*Track, 0),
	}
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Enqueue appends a track to the end of the queue and returns the new
// length, which is also the track's 1-based queue position.
func (q *Queue) Enqueue(track *Track) int {
	q.tracks = append(q.tracks, track)
	return len(q.tracks)
}

// DequeueNext removes and returns the front track, or nil if the queue
// is empty.
func (q *Queue) DequeueNext() *Track {
	if q.IsEmpty() {
		return nil
	}
	track := q.tracks[0]
	q.tracks = q.tracks[1:]
	return track
}

// RemoveAt removes and returns the track at the given 1-based position,
// preserving the order of the remaining tracks. The queue is left
// unmodified if the position is out of range.
func (q *Queue) RemoveAt(position int) (*Track, error) {
	if position < 1 || position > q.Len() {
		return nil, ErrIndexOutOfRange
	}

	index := position - 1
	track := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return track, nil
}

// Shuffle permutes the queued tracks uniformly at random in place.
// No-op on empty or singleton queues.
func (q *Queue) Shuffle() {
	if q.Len() < 2 {
		return
	}
	rand.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
}

// PeekUpcoming returns an iterator over up to n upcoming tracks in queue
// order without mutating the queue. The sequence is restartable: ranging
// over it twice yields the same tracks.
func (q *Queue) PeekUpcoming(n int) iter.Seq[*Track] {
	return func(yield func(*Track) bool) {
		for i, track := range q.tracks {
			if i >= n {
				return
			}
			if !yield(track) {
				return
			}
		}
	}
}

// Tracks returns a copy of all queued tracks.
func (q *Queue) Tracks() []*Track {
	result := make([]*Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Clear removes all tracks and returns the number removed.
func (q *Queue) Clear() int {
	count := len(q.tracks)
	q.tracks = make([]*Track, 0)
	return count
}
