package discord

import (
	"strings"

	"lavabeat/handlers"

	"github.com/bwmarrin/discordgo"
)

// ParseButtonCustomID extracts action and guildID from button custom ID
// Format: "np:action:guildID"
func ParseButtonCustomID(customID string) (action, guildID string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != "np" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func buttonID(action, guildID string) string {
	return "np:" + action + ":" + guildID
}

func getPlayPauseEmoji(isPlaying bool) string {
	if isPlaying {
		return "⏸️"
	}
	return "▶️"
}

// BuildPlaybackButtons renders the now-playing controls for a guild.
func BuildPlaybackButtons(guildID string, isPlaying bool) []discordgo.MessageComponent {
	button := func(action, emoji, label string, style discordgo.ButtonStyle) discordgo.Button {
		return discordgo.Button{
			Label:    label,
			Style:    style,
			Emoji:    &discordgo.ComponentEmoji{Name: emoji},
			CustomID: buttonID(action, guildID),
		}
	}

	prev := button("prev", "⏮️", "", discordgo.SecondaryButton)
	prev.Disabled = true

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			prev,
			button("playpause", getPlayPauseEmoji(isPlaying), "", discordgo.PrimaryButton),
			button("skip", "⏭️", "", discordgo.SecondaryButton),
			button("stop", "⏹️", "", discordgo.DangerButton),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button("voldown", "🔉", "Vol -", discordgo.SecondaryButton),
			button("volup", "🔊", "Vol +", discordgo.SecondaryButton),
			button("queue", "📜", "Queue", discordgo.SecondaryButton),
			button("shuffle", "🔀", "Shuffle", discordgo.SecondaryButton),
		}},
	}
}

// buttonCommands maps a control button to the chat command it runs.
var buttonCommands = map[string]struct {
	name string
	args []string
}{
	"playpause": {name: "toggle"},
	"skip":      {name: "skip"},
	"stop":      {name: "stop"},
	"voldown":   {name: "volume", args: []string{"down"}},
	"volup":     {name: "volume", args: []string{"up"}},
	"queue":     {name: "queue"},
	"shuffle":   {name: "shuffle"},
}

func commandForButton(customID string) (name string, args []string, guildID string, ok bool) {
	action, guildID, ok := ParseButtonCustomID(customID)
	if !ok {
		return "", nil, "", false
	}
	cmd, ok := buttonCommands[action]
	if !ok {
		return "", nil, "", false
	}
	return cmd.name, cmd.args, guildID, true
}

func toEmbed(e *handlers.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return embed
}

// messageParts converts a reply into the pieces every discord send call takes.
func messageParts(reply handlers.Reply) (string, []*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embeds := []*discordgo.MessageEmbed{}
	if embed := toEmbed(reply.Embed); embed != nil {
		embeds = append(embeds, embed)
	}
	components := []discordgo.MessageComponent{}
	if reply.Controls != nil {
		components = BuildPlaybackButtons(reply.Controls.GuildID, reply.Controls.Playing)
	}
	return reply.Content, embeds, components
}
