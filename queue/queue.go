package queue

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"lavabeat/models"
)

// Queue is the playback state of a single guild. All methods are safe for
// concurrent use; none of them perform I/O.
type Queue struct {
	GuildID string

	mu          sync.Mutex
	pending     []*models.Track
	current     *models.Track
	previous    *models.Track
	playing     bool
	paused      bool
	loop        LoopMode
	volume      int
	session     models.Session
	textChannel string
	intn        func(n int) int
}

// Snapshot is a point-in-time copy of a queue, safe to read without locks.
type Snapshot struct {
	GuildID   string
	Pending   []*models.Track
	Current   *models.Track
	Previous  *models.Track
	Playing   bool
	Paused    bool
	Loop      LoopMode
	Volume    int
	Connected bool
}

func newQueue(guildID string, volume int) *Queue {
	return &Queue{
		GuildID: guildID,
		loop:    LoopOff,
		volume:  volume,
		intn:    rand.IntN,
	}
}

// Enqueue appends tracks to the pending list. Every appended track starts with
// RetryCount 0 and records originalQuery, falling back to its own title.
func (q *Queue) Enqueue(tracks []*models.Track, requester models.Requester, originalQuery string) []*models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	added := make([]*models.Track, 0, len(tracks))
	for _, t := range tracks {
		if t == nil {
			continue
		}
		item := t.Clone()
		item.Requester = requester
		item.RetryCount = 0
		item.OriginalQuery = originalQuery
		if item.OriginalQuery == "" {
			item.OriginalQuery = item.Title
		}
		item.AddedAt = now
		q.pending = append(q.pending, item)
		added = append(added, item)
	}
	return added
}

// Advance moves the queue to its next state and returns the new current track,
// or nil when the queue went idle.
func (q *Queue) Advance() *models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.paused = false

	if q.current != nil {
		q.previous = q.current
		switch q.loop {
		case LoopTrack:
			q.playing = true
			return q.current
		case LoopQueue:
			q.pending = append(q.pending, q.current)
		}
	}

	if len(q.pending) == 0 {
		q.current = nil
		q.playing = false
		return nil
	}

	q.current = q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.playing = true
	return q.current
}

// Remove drops the pending entry at the 1-indexed position.
func (q *Queue) Remove(pos int) (*models.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if pos < 1 || pos > len(q.pending) {
		return nil, models.ErrInvalidPosition
	}
	removed := q.pending[pos-1]
	q.pending = slices.Delete(q.pending, pos-1, pos)
	return removed, nil
}

// Move relocates the pending entry at from to position to (both 1-indexed).
func (q *Queue) Move(from, to int) (*models.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	if from < 1 || from > n || to < 1 || to > n {
		return nil, models.ErrInvalidPosition
	}
	track := q.pending[from-1]
	q.pending = slices.Delete(q.pending, from-1, from)
	q.pending = slices.Insert(q.pending, to-1, track)
	return track, nil
}

// Shuffle applies a Fisher-Yates permutation to the pending list.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := len(q.pending) - 1; i > 0; i-- {
		j := q.intn(i + 1)
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	}
}

func (q *Queue) SetLoopMode(mode LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = mode
}

// SetVolume stores the level; range checks belong to the caller.
func (q *Queue) SetVolume(level int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.volume = level
}

// Clear empties the pending list and leaves current untouched.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	q.pending = nil
	return n
}

// Reset clears pending and current and marks the queue idle.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.current = nil
	q.playing = false
	q.paused = false
}

// ForceIdle drops current without touching previous or pending.
func (q *Queue) ForceIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
	q.playing = false
	q.paused = false
}

// Rewind puts current back at the front of the pending list and idles the
// queue. It is used when a track could not be handed to the node at all.
func (q *Queue) Rewind() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil {
		q.pending = slices.Insert(q.pending, 0, q.current)
	}
	q.current = nil
	q.playing = false
	q.paused = false
}

// Requeue prepares a failed track for another attempt: the handle is replaced,
// the retry counter bumped and the track pushed to the front. A copy already
// pending, as loop=queue leaves behind, is dropped first. When the track is
// current the queue is forced idle so the next Advance picks it up again.
func (q *Queue) Requeue(track *models.Track, encoded string, via models.Provider) {
	q.mu.Lock()
	defer q.mu.Unlock()

	track.Encoded = encoded
	track.RetryCount++
	track.MarkTried(via)
	q.pending = slices.DeleteFunc(q.pending, func(t *models.Track) bool { return t == track })
	q.pending = slices.Insert(q.pending, 0, track)
	if q.current == track {
		q.current = nil
		q.playing = false
		q.paused = false
	}
}

func (q *Queue) Current() *models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

func (q *Queue) Previous() *models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.previous
}

func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

func (q *Queue) SetPaused(paused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = paused
}

func (q *Queue) Loop() LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

func (q *Queue) Volume() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.volume
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Session() models.Session {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.session
}

func (q *Queue) SetSession(s models.Session) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.session = s
}

// TextChannel is where asynchronous playback notices for this guild are posted.
func (q *Queue) TextChannel() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.textChannel
}

func (q *Queue) SetTextChannel(channelID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.textChannel = channelID
}

// Pending returns a copy of the pending list.
func (q *Queue) Pending() []*models.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Page returns one page of the pending list (1-indexed) and the page count.
func (q *Queue) Page(page, size int) ([]*models.Track, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if size <= 0 {
		size = 10
	}
	pages := (len(q.pending) + size - 1) / size
	if pages == 0 {
		return nil, 0
	}
	page = min(max(page, 1), pages)
	start := (page - 1) * size
	end := min(start+size, len(q.pending))
	return slices.Clone(q.pending[start:end]), pages
}

func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{
		GuildID:   q.GuildID,
		Pending:   slices.Clone(q.pending),
		Current:   q.current,
		Previous:  q.previous,
		Playing:   q.playing,
		Paused:    q.paused,
		Loop:      q.loop,
		Volume:    q.volume,
		Connected: q.session != nil,
	}
}
