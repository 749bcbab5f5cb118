package handlers

import (
	"fmt"
	"strings"
	"time"

	"lavabeat/models"
	"lavabeat/youtube"
)

// ProgressBarWidth is the number of characters in the progress bar
const ProgressBarWidth = 15

const (
	colorPlaying = 0x1DB954
	colorPaused  = 0x808080
	colorAdded   = 0x00FF00
	colorInfo    = 0x0099FF
)

// NowPlayingMetadata contains all info for a now-playing card
type NowPlayingMetadata struct {
	Track    *models.Track
	Position time.Duration
	Paused   bool
	Volume   int
	Loop     string
}

// BuildNowPlayingEmbed creates the now-playing card for the current track.
func BuildNowPlayingEmbed(metadata NowPlayingMetadata) *Embed {
	track := metadata.Track

	artist := track.Author
	if artist == "" {
		artist = ExtractArtistFromTitle(track.Title)
	}

	color := colorPlaying
	status := "▶️ Playing"
	if metadata.Paused {
		color = colorPaused
		status = "⏸️ Paused"
	}

	var desc strings.Builder
	if track.URI != "" {
		fmt.Fprintf(&desc, "**[%s](%s)**\n", track.Title, track.URI)
	} else {
		fmt.Fprintf(&desc, "**%s**\n", track.Title)
	}
	if artist != track.Title {
		fmt.Fprintf(&desc, "**Artist:** %s\n", artist)
	}

	duration := "🔴 Live"
	if track.Duration > 0 {
		duration = FormatDuration(track.Length())
	}

	embed := &Embed{
		Title:       "🎶 Now Playing",
		URL:         track.URI,
		Description: desc.String(),
		Color:       color,
		Thumbnail:   thumbnail(track),
		Fields: []Field{
			{Name: "Duration", Value: duration, Inline: true},
			{Name: "Requested by", Value: track.Requester.Mention(), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d%%", metadata.Volume), Inline: true},
			{Name: "Status", Value: status, Inline: true},
		},
		Footer: RenderProgressBar(metadata.Position, track.Length(), ProgressBarWidth),
	}
	if metadata.Loop != "" && metadata.Loop != "off" {
		embed.Fields = append(embed.Fields, Field{Name: "Loop", Value: metadata.Loop, Inline: true})
	}
	return embed
}

// thumbnail prefers the node's artwork and falls back to the YouTube still.
func thumbnail(track *models.Track) string {
	if track.ArtworkURL != "" {
		return track.ArtworkURL
	}
	if id := youtube.ParseLink(track.URI).VideoID; id != "" {
		return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", id)
	}
	return ""
}

// RenderProgressBar creates a Unicode progress bar
func RenderProgressBar(current, total time.Duration, width int) string {
	if total == 0 {
		return strings.Repeat("░", width) + " 0:00 / 0:00"
	}

	percentage := min(float64(current)/float64(total), 1.0)
	filled := min(int(percentage*float64(width)), width)

	bar := strings.Repeat("▓", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s / %s", bar, FormatDuration(current), FormatDuration(total))
}

// FormatDuration formats duration as MM:SS or HH:MM:SS
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

var titleSuffixes = []string{
	"(Official Video)", "(Official Music Video)", "(Official Audio)",
	"(Lyrics)", "(Lyric Video)", "(Audio)", "(Visualizer)",
	"[Official Video]", "[Official Music Video]", "[Official Audio]",
	"[Lyrics]", "[Lyric Video]", "[Audio]",
}

var featuring = []string{" ft.", " feat.", " ft ", " feat ", " featuring "}

// ExtractArtistFromTitle guesses the artist of an "Artist - Song" style title.
func ExtractArtistFromTitle(title string) string {
	cleaned := title
	for _, suffix := range titleSuffixes {
		cleaned = strings.Replace(cleaned, suffix, "", 1)
	}
	cleaned = strings.TrimSpace(cleaned)

	artist, _, ok := strings.Cut(cleaned, " - ")
	if !ok {
		return cleaned
	}
	artist = strings.TrimSpace(artist)
	for _, feat := range featuring {
		if idx := strings.Index(strings.ToLower(artist), feat); idx != -1 {
			artist = strings.TrimSpace(artist[:idx])
		}
	}
	if artist == "" {
		return cleaned
	}
	return artist
}

// trackLine renders one queue entry as "N. **title** (m:ss)".
func trackLine(pos int, track *models.Track) string {
	duration := "live"
	if track.Duration > 0 {
		duration = FormatDuration(track.Length())
	}
	return fmt.Sprintf("%d. **%s** (%s)", pos, track.Title, duration)
}

// truncate caps s at limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
