package handlers

import (
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	hintCooldown = 5 * time.Minute
	hintChance   = 0.15
)

// Hints appends an occasional tip to successful replies, at most one per guild
// every hintCooldown. Tips listed under the triggering command are preferred.
type Hints struct {
	mu      sync.Mutex
	shown   map[string]time.Time
	chance  float32
	byCmd   map[string][]string
	general []string
	now     func() time.Time
}

func NewHints() *Hints {
	return &Hints{
		shown:  make(map[string]time.Time),
		chance: hintChance,
		now:    time.Now,
		byCmd: map[string][]string{
			"play": {
				"/queue move 5 1 bumps a song to the front",
				"Spotify and Apple Music links work with /play too",
				"/loop queue replays the whole queue when it runs out",
			},
			"queue": {
				"/queue 2 shows the next page",
				"/remove 3 drops the third song from the queue",
			},
			"nowplaying": {
				"/seek 1:30 jumps to a position in the current song",
				"/lyrics without a query looks up the current song",
			},
		},
		general: []string{
			"/shuffle randomizes the current queue",
			"/history top shows the most played songs in this server",
			"/volume adjusts the playback volume (0-100)",
		},
	}
}

// For returns a formatted tip for a reply to command, or "".
func (h *Hints) For(guildID, command string) string {
	if rand.Float32() >= h.chance {
		return ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if last, ok := h.shown[guildID]; ok && now.Sub(last) < hintCooldown {
		return ""
	}

	tips := h.byCmd[command]
	if len(tips) == 0 {
		tips = h.general
	}
	if len(tips) == 0 {
		return ""
	}
	h.shown[guildID] = now

	tip := tips[rand.IntN(len(tips))]
	log.WithFields(log.Fields{"module": "handlers", "guildID": guildID}).Debugf("Showing hint: %s", tip)
	return "💡 Pro tip: " + tip
}
