package models

import (
	"context"
	"time"
)

// Session is a live connection between the bot and one voice channel on a
// playback node. A queue owns at most one.
type Session interface {
	GuildID() string
	ChannelID() string
	PlayTrack(ctx context.Context, encoded string) error
	StopTrack(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool) error
	Seek(ctx context.Context, position time.Duration) error
	// SetVolume applies the level (0-100) as a node volume filter.
	SetVolume(ctx context.Context, level int) error
	Destroy(ctx context.Context) error
}
