package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lavabeat/controller"
	"lavabeat/models"
)

func (m *Manager) handlePlay(ctx context.Context, cmd Command, r *onceResponder) (Reply, error) {
	query := cmd.Text()
	if cmd.VoiceChannelID == "" {
		return Reply{}, models.ErrNotInVoiceChannel
	}
	if query == "" {
		return Reply{}, models.ErrEmptyQuery
	}

	r.send(Reply{Content: fmt.Sprintf("🔍 Searching for \"**%s**\"...", query)})

	res, err := m.Controller.Play(ctx, controller.PlayRequest{
		GuildID:        cmd.GuildID,
		VoiceChannelID: cmd.VoiceChannelID,
		TextChannelID:  cmd.ChannelID,
		Requester:      cmd.User,
		Query:          query,
	})
	if err != nil {
		return Reply{}, err
	}

	return Reply{
		Content: m.hints.For(cmd.GuildID, "play"),
		Embed:   addedEmbed(res, cmd.User),
	}, nil
}

func addedEmbed(res *controller.PlayResult, requester models.Requester) *Embed {
	if res.CollectionName != "" || len(res.Tracks) != 1 {
		title := "🎵 Added to Queue"
		if res.CollectionName != "" {
			title = "🎵 Added Playlist: " + res.CollectionName
		}
		return &Embed{
			Title:       title,
			Description: fmt.Sprintf("Added **%d** songs to queue.", len(res.Tracks)),
			Color:       colorAdded,
		}
	}

	track := res.Tracks[0]
	duration := "🔴 Live"
	if track.Duration > 0 {
		duration = FormatDuration(track.Length())
	}
	embed := &Embed{
		Title:       "🎵 Added to Queue",
		URL:         track.URI,
		Description: fmt.Sprintf("**%s**", track.Title),
		Color:       colorAdded,
		Thumbnail:   thumbnail(track),
		Fields: []Field{
			{Name: "Duration", Value: duration, Inline: true},
			{Name: "Requested by", Value: requester.Mention(), Inline: true},
		},
	}
	if res.Position > 0 {
		embed.Fields = append(embed.Fields, Field{Name: "Position in queue", Value: strconv.Itoa(res.Position), Inline: true})
	}
	return embed
}

func (m *Manager) handleSkip(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if _, err := m.Controller.Skip(ctx, cmd.GuildID); err != nil {
		return Reply{}, err
	}
	return Reply{Content: "⏭️ Skipped!"}, nil
}

// stop and leave always confirm, there is nothing to undo without a session.
func (m *Manager) handleStop(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if err := m.Controller.Stop(ctx, cmd.GuildID); err != nil && !errors.Is(err, models.ErrNothingPlaying) {
		return Reply{}, err
	}
	return Reply{Content: "⏹️ Stopped and cleared queue!"}, nil
}

func (m *Manager) handleLeave(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if err := m.Controller.Leave(ctx, cmd.GuildID); err != nil && !errors.Is(err, models.ErrNothingPlaying) {
		return Reply{}, err
	}
	return Reply{Content: "👋 Left the voice channel!"}, nil
}

func (m *Manager) handlePause(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if err := m.Controller.Pause(ctx, cmd.GuildID); err != nil {
		return Reply{}, err
	}
	return Reply{Content: "⏸️ Paused!"}, nil
}

func (m *Manager) handleResume(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if err := m.Controller.Resume(ctx, cmd.GuildID); err != nil {
		return Reply{}, err
	}
	return Reply{Content: "▶️ Resumed!"}, nil
}

func (m *Manager) handleSeek(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	seconds, err := parseSeconds(cmd.Arg(0))
	if err != nil {
		return Reply{}, models.ErrInvalidPosition
	}
	if err := m.Controller.Seek(ctx, cmd.GuildID, seconds); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("⏩ Seeked to %d seconds!", seconds)}, nil
}

// parseSeconds accepts plain seconds or a m:ss / h:mm:ss timestamp.
func parseSeconds(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

const volumeStep = 10

func (m *Manager) handleVolume(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if cmd.Arg(0) == "" {
		volume := m.Controller.Store().Get(cmd.GuildID).Volume()
		return Reply{Content: fmt.Sprintf("🔊 Current volume: %d%%", volume)}, nil
	}

	var level int
	switch arg := strings.ToLower(cmd.Arg(0)); arg {
	case "up", "down":
		level = m.Controller.Store().Get(cmd.GuildID).Volume()
		if arg == "up" {
			level = min(level+volumeStep, 100)
		} else {
			level = max(level-volumeStep, 0)
		}
	default:
		n, err := strconv.Atoi(strings.TrimSuffix(arg, "%"))
		if err != nil {
			return Reply{}, models.ErrInvalidVolume
		}
		level = n
	}
	if err := m.Controller.SetVolume(ctx, cmd.GuildID, level); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("🔊 Volume set to %d%%", level)}, nil
}

// handleToggle pauses a playing guild and resumes a paused one.
func (m *Manager) handleToggle(ctx context.Context, cmd Command, r *onceResponder) (Reply, error) {
	if m.Controller.State(cmd.GuildID) == controller.Paused {
		return m.handleResume(ctx, cmd, r)
	}
	return m.handlePause(ctx, cmd, r)
}

func (m *Manager) handleJoin(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	created, err := m.Controller.EnsureConnected(ctx, cmd.GuildID, cmd.VoiceChannelID)
	if err != nil {
		return Reply{}, err
	}
	m.Controller.Store().Get(cmd.GuildID).SetTextChannel(cmd.ChannelID)
	if !created {
		return Reply{Content: "✅ Already connected!"}, nil
	}
	return Reply{Content: fmt.Sprintf("✅ Joined <#%s>!", cmd.VoiceChannelID)}, nil
}

// positioner is implemented by sessions that track the node's playhead.
type positioner interface {
	Position() time.Duration
}

func (m *Manager) handleNowPlaying(_ context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	snap := m.Controller.Store().Get(cmd.GuildID).Snapshot()
	if snap.Current == nil {
		return Reply{}, models.ErrNothingPlaying
	}

	var position time.Duration
	if p, ok := m.Controller.Store().Get(cmd.GuildID).Session().(positioner); ok {
		position = p.Position()
	}

	return Reply{
		Embed: BuildNowPlayingEmbed(NowPlayingMetadata{
			Track:    snap.Current,
			Position: position,
			Paused:   snap.Paused,
			Volume:   snap.Volume,
			Loop:     snap.Loop.String(),
		}),
		Controls: &Controls{GuildID: cmd.GuildID, Playing: !snap.Paused},
		Content:  m.hints.For(cmd.GuildID, "nowplaying"),
	}, nil
}
