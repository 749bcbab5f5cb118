package queue

import (
	"fmt"
	"strings"
)

// LoopMode decides what happens to the current track when it ends.
type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

// ParseLoopMode accepts off, track or queue (case-insensitive).
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "0":
		return LoopOff, nil
	case "track", "song", "1":
		return LoopTrack, nil
	case "queue", "all", "2":
		return LoopQueue, nil
	}
	return LoopOff, fmt.Errorf("unknown loop mode %q", s)
}
