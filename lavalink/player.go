package lavalink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"lavabeat/models"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

type eventKind string

const (
	eventStarted eventKind = "started"
	eventEnded   eventKind = "ended"
	eventFailed  eventKind = "failed"
)

type event struct {
	kind    eventKind
	encoded string
	reason  models.EndReason
	err     error
}

// Player is the node-side player of one guild. It implements models.Session.
type Player struct {
	client    *Client
	guildID   string
	channelID string
	handler   EventHandler

	events    chan event
	done      chan struct{}
	closeOnce sync.Once

	ready     chan struct{}
	readyOnce sync.Once
	voiceMu   sync.Mutex
	voice     voiceUpdate

	position atomic.Int64
}

var _ models.Session = (*Player)(nil)

func newPlayer(c *Client, guildID, channelID string, handler EventHandler) *Player {
	p := &Player{
		client:    c,
		guildID:   guildID,
		channelID: channelID,
		handler:   handler,
		events:    make(chan event, 100),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
	}
	p.listenForEvents()
	return p
}

func (p *Player) GuildID() string   { return p.guildID }
func (p *Player) ChannelID() string { return p.channelID }

// Position is the last playback position reported by the node.
func (p *Player) Position() time.Duration {
	return time.Duration(p.position.Load()) * time.Millisecond
}

func (p *Player) notify(e event) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.events <- e:
	default:
		msg := "Player event channel is full for guild " + p.guildID
		sentry.CaptureMessage(msg)
		log.Warn(msg)
	}
}

func (p *Player) listenForEvents() {
	go func() {
		for {
			select {
			case <-p.done:
				return
			case e := <-p.events:
				p.dispatch(e)
			}
		}
	}()
}

func (p *Player) dispatch(e event) {
	log.WithFields(log.Fields{
		"module":  "lavalink",
		"guildID": p.guildID,
		"event":   e.kind,
	}).Trace("dispatching player event")

	ctx := context.Background()
	switch e.kind {
	case eventStarted:
		p.handler.OnTrackStarted(ctx, p.guildID, e.encoded)
	case eventEnded:
		p.handler.OnTrackEnded(ctx, p.guildID, e.encoded, e.reason)
	case eventFailed:
		p.handler.OnTrackFailed(ctx, p.guildID, e.encoded, e.err)
	}
}

func (p *Player) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Player) PlayTrack(ctx context.Context, encoded string) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{
		Track:  &trackUpdate{Encoded: &encoded},
		Paused: new(bool),
	})
}

func (p *Player) StopTrack(ctx context.Context) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Track: &trackUpdate{}})
}

func (p *Player) SetPaused(ctx context.Context, paused bool) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Paused: &paused})
}

func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	ms := position.Milliseconds()
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{Position: &ms})
}

// SetVolume maps 0-100 onto the node's volume filter, where 1.0 is unchanged.
func (p *Player) SetVolume(ctx context.Context, level int) error {
	return p.client.updatePlayer(ctx, p.guildID, playerUpdate{
		Filters: &filters{Volume: float64(level) / 100},
	})
}

// Destroy removes the node player and leaves the voice channel.
func (p *Player) Destroy(ctx context.Context) error {
	p.client.removePlayer(p)

	err := p.client.destroyPlayer(ctx, p.guildID)
	if leaveErr := p.client.gateway.ChannelVoiceJoinManual(p.guildID, "", false, true); leaveErr != nil && err == nil {
		err = leaveErr
	}
	return err
}
