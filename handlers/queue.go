package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"lavabeat/models"
	"lavabeat/queue"
)

func (m *Manager) handleQueue(_ context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	switch strings.ToLower(cmd.Arg(0)) {
	case "remove", "rm":
		return m.queueRemove(cmd)
	case "move", "mv":
		return m.queueMove(cmd)
	}

	page := 1
	if cmd.Arg(0) != "" {
		n, err := strconv.Atoi(cmd.Arg(0))
		if err != nil {
			return Reply{}, usage("Usage: queue [page | remove <position> | move <from> <to>]")
		}
		page = n
	}
	return m.queueView(cmd.GuildID, page)
}

func (m *Manager) queueView(guildID string, page int) (Reply, error) {
	q := m.Controller.Store().Get(guildID)
	snap := q.Snapshot()
	if snap.Current == nil && len(snap.Pending) == 0 {
		return Reply{}, ErrQueueEmpty
	}

	items, pages := q.Page(page, m.pageSize)
	page = min(max(page, 1), max(pages, 1))

	embed := &Embed{
		Title: "🎶 Music Queue",
		Color: colorInfo,
		Footer: fmt.Sprintf("Page %d/%d | %d songs | Loop: %s | Volume: %d%%",
			page, max(pages, 1), len(snap.Pending), snap.Loop, snap.Volume),
	}
	if snap.Current != nil {
		embed.Fields = append(embed.Fields, Field{
			Name:  "Now Playing",
			Value: fmt.Sprintf("**%s** | Requested by: %s", snap.Current.Title, snap.Current.Requester.Mention()),
		})
	}

	if len(items) == 0 {
		embed.Description = "No more songs in queue."
		return Reply{Content: m.hints.For(guildID, "queue"), Embed: embed}, nil
	}

	var desc strings.Builder
	desc.WriteString("**Up Next:**\n")
	offset := (page - 1) * m.pageSize
	for i, track := range items {
		desc.WriteString(trackLine(offset+i+1, track))
		desc.WriteByte('\n')
	}
	if rest := len(snap.Pending) - offset - len(items); rest > 0 {
		fmt.Fprintf(&desc, "...and %d more", rest)
	}
	embed.Description = truncate(desc.String(), 4096)
	return Reply{Content: m.hints.For(guildID, "queue"), Embed: embed}, nil
}

func (m *Manager) queueRemove(cmd Command) (Reply, error) {
	pos, err := strconv.Atoi(cmd.Arg(1))
	if err != nil {
		return Reply{}, models.ErrInvalidPosition
	}
	track, err := m.Controller.Store().Get(cmd.GuildID).Remove(pos)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("🗑️ Removed **%s** from the queue", track.Title)}, nil
}

func (m *Manager) queueMove(cmd Command) (Reply, error) {
	from, err := strconv.Atoi(cmd.Arg(1))
	if err != nil {
		return Reply{}, models.ErrInvalidPosition
	}
	to, err := strconv.Atoi(cmd.Arg(2))
	if err != nil {
		return Reply{}, models.ErrInvalidPosition
	}
	track, err := m.Controller.Store().Get(cmd.GuildID).Move(from, to)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("↕️ Moved **%s** to position %d", track.Title, to)}, nil
}

func (m *Manager) handleClear(_ context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	m.Controller.Store().Get(cmd.GuildID).Clear()
	return Reply{Content: "🗑️ Queue cleared!"}, nil
}

func (m *Manager) handleShuffle(_ context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	q := m.Controller.Store().Get(cmd.GuildID)
	if q.Len() < 2 {
		return Reply{}, usage("Not enough songs to shuffle!")
	}
	q.Shuffle()
	return Reply{Content: "🔀 Queue shuffled!"}, nil
}

func (m *Manager) handleLoop(_ context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	mode, err := queue.ParseLoopMode(cmd.Arg(0))
	if err != nil {
		return Reply{}, usage("Loop mode must be off, track or queue!")
	}
	m.Controller.Store().Get(cmd.GuildID).SetLoopMode(mode)
	return Reply{Content: fmt.Sprintf("🔁 Loop mode set to: **%s**", mode)}, nil
}
