package discord

import (
	"strconv"
	"strings"

	"lavabeat/models"

	"github.com/bwmarrin/discordgo"
)

func stringOption(name, description string, required bool, choices ...string) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
	for _, c := range choices {
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c})
	}
	return opt
}

func intOption(name, description string, required bool, minValue, maxValue float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    &minValue,
		MaxValue:    maxValue,
	}
}

// Commands are the slash commands registered for the application. Option order
// is the argument order the handlers see.
var Commands = []*discordgo.ApplicationCommand{
	{Name: "play", Description: "Play a song or add it to the queue", Options: []*discordgo.ApplicationCommandOption{
		stringOption("query", "Song name or URL", true),
	}},
	{Name: "skip", Description: "Skip the current song"},
	{Name: "stop", Description: "Stop playback and clear the queue"},
	{Name: "pause", Description: "Pause playback"},
	{Name: "resume", Description: "Resume playback"},
	{Name: "queue", Description: "Show the queue", Options: []*discordgo.ApplicationCommandOption{
		intOption("page", "Page number", false, 1, 1000),
	}},
	{Name: "remove", Description: "Remove a song from the queue", Options: []*discordgo.ApplicationCommandOption{
		intOption("position", "Position in the queue", true, 1, 10000),
	}},
	{Name: "move", Description: "Move a song in the queue", Options: []*discordgo.ApplicationCommandOption{
		intOption("from", "Current position", true, 1, 10000),
		intOption("to", "New position", true, 1, 10000),
	}},
	{Name: "nowplaying", Description: "Show the current song"},
	{Name: "volume", Description: "Show or set the volume", Options: []*discordgo.ApplicationCommandOption{
		intOption("level", "Volume level (0-100)", false, 0, 100),
	}},
	{Name: "join", Description: "Join your voice channel"},
	{Name: "leave", Description: "Leave the voice channel"},
	{Name: "clear", Description: "Clear the queue"},
	{Name: "shuffle", Description: "Shuffle the queue"},
	{Name: "loop", Description: "Set the loop mode", Options: []*discordgo.ApplicationCommandOption{
		stringOption("mode", "Loop mode", true, "off", "track", "queue"),
	}},
	{Name: "seek", Description: "Seek in the current song", Options: []*discordgo.ApplicationCommandOption{
		stringOption("position", "Seconds or m:ss", true),
	}},
	{Name: "lyrics", Description: "Show lyrics for a song", Options: []*discordgo.ApplicationCommandOption{
		stringOption("query", "Song name, defaults to the current song", false),
	}},
	{Name: "history", Description: "Recently or most played songs", Options: []*discordgo.ApplicationCommandOption{
		stringOption("view", "What to show", false, "recent", "top"),
	}},
	{Name: "help", Description: "List the commands"},
	{Name: "ping", Description: "Check if the bot is alive"},
}

// queueSubcommands are slash commands that map onto "queue <sub> ...".
var queueSubcommands = map[string]bool{"remove": true, "move": true}

// commandFromSlash flattens slash command options into positional arguments in
// declaration order.
func commandFromSlash(data discordgo.ApplicationCommandInteractionData) (string, []string) {
	given := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		given[opt.Name] = opt
	}

	var args []string
	for _, def := range declaredOptions(data.Name) {
		opt, ok := given[def.Name]
		if !ok {
			break
		}
		args = append(args, optionValue(opt))
	}

	if queueSubcommands[data.Name] {
		return "queue", append([]string{data.Name}, args...)
	}
	return data.Name, args
}

func declaredOptions(name string) []*discordgo.ApplicationCommandOption {
	for _, c := range Commands {
		if c.Name == name {
			return c.Options
		}
	}
	return nil
}

func optionValue(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(opt.IntValue(), 10)
	case discordgo.ApplicationCommandOptionBoolean:
		return strconv.FormatBool(opt.BoolValue())
	default:
		return opt.StringValue()
	}
}

// parsePrefixed splits a "!name args..." message. ok is false for anything
// that is not a command.
func parsePrefixed(prefix, content string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func requesterFromUser(u *discordgo.User) models.Requester {
	if u == nil {
		return models.Requester{}
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return models.Requester{ID: u.ID, Name: name}
}
