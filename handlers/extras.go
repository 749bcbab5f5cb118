package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lavabeat/lyrics"
	"lavabeat/models"

	log "github.com/sirupsen/logrus"
)

const (
	historyLimit = 10
	embedLimit   = 4096
)

func (m *Manager) handleLyrics(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	query := cmd.Text()
	if query == "" {
		if current := m.Controller.Store().Get(cmd.GuildID).Current(); current != nil {
			query = current.Title
			if current.Author != "" && !strings.Contains(current.Title, current.Author) {
				query = current.Author + " " + current.Title
			}
		}
	}
	if query == "" {
		return Reply{}, models.ErrEmptyQuery
	}
	if m.lyrics == nil {
		return Reply{}, lyrics.ErrNoLyrics
	}

	l, err := m.lyrics.Search(ctx, query)
	if err != nil {
		if !errors.Is(err, lyrics.ErrNoLyrics) {
			log.WithFields(log.Fields{
				"module":  "handlers",
				"method":  "handleLyrics",
				"guildID": cmd.GuildID,
			}).Warnf("lyrics lookup for %q failed: %v", query, err)
		}
		return Reply{}, err
	}

	return Reply{Embed: &Embed{
		Title:       "Lyrics for " + l.Title(),
		Description: truncate(l.Text, embedLimit),
		Color:       colorInfo,
		Footer:      "Lyrics from lrclib.net",
	}}, nil
}

func (m *Manager) handleHistory(ctx context.Context, cmd Command, _ *onceResponder) (Reply, error) {
	if m.history == nil {
		return Reply{}, usage("History is not enabled on this bot")
	}

	if strings.EqualFold(cmd.Arg(0), "top") {
		records, err := m.history.GetMostPlayed(ctx, cmd.GuildID, historyLimit)
		if err != nil {
			return Reply{}, err
		}
		if len(records) == 0 {
			return Reply{Content: "No songs have been played yet."}, nil
		}
		var desc strings.Builder
		for i, r := range records {
			fmt.Fprintf(&desc, "%d. **%s** | %d plays\n", i+1, r.Title, r.PlayCount)
		}
		return Reply{Embed: &Embed{
			Title:       "🏆 Most Played",
			Description: truncate(desc.String(), embedLimit),
			Color:       colorInfo,
		}}, nil
	}

	records, err := m.history.GetHistory(ctx, cmd.GuildID, historyLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(records) == 0 {
		return Reply{Content: "No songs have been played yet."}, nil
	}
	var desc strings.Builder
	for i, r := range records {
		requester := r.RequestedByUsername
		if r.RequestedByUserID != "" {
			requester = "<@" + r.RequestedByUserID + ">"
		}
		fmt.Fprintf(&desc, "%d. **%s** | %s | <t:%d:R>\n", i+1, r.Title, requester, r.PlayedAt.Unix())
	}
	return Reply{Embed: &Embed{
		Title:       "📜 Recently Played",
		Description: truncate(desc.String(), embedLimit),
		Color:       colorInfo,
	}}, nil
}

var helpText = strings.Join([]string{
	"**🎵 Music Commands**",
	"`play <query|url>` Play a song or add it to the queue",
	"`skip` Skip the current song",
	"`stop` Stop playback and clear the queue",
	"`pause` / `resume` Pause or resume playback",
	"`nowplaying` Show the current song",
	"`queue [page]` Show the queue",
	"`queue remove <pos>` / `queue move <from> <to>` Edit the queue",
	"`clear` Clear the queue",
	"`shuffle` Shuffle the queue",
	"`loop <off|track|queue>` Set the loop mode",
	"`seek <seconds|m:ss>` Seek in the current song",
	"`volume [0-100]` Show or set the volume",
	"`join` / `leave` Join or leave your voice channel",
	"`lyrics [query]` Show lyrics",
	"`history [top]` Recently or most played songs",
	"`ping` Check if the bot is alive",
}, "\n")

func (m *Manager) handleHelp(context.Context, Command, *onceResponder) (Reply, error) {
	return Reply{Content: helpText, Ephemeral: true}, nil
}

func (m *Manager) handlePing(context.Context, Command, *onceResponder) (Reply, error) {
	return Reply{Content: "Pong! 🏓"}, nil
}
