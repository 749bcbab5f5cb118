// Package handlers maps normalized chat commands onto the queue store, the
// resolver and the playback controller and builds the reply for each one.
// Front ends only translate their input into a Command and implement Responder.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lavabeat/controller"
	"lavabeat/database"
	"lavabeat/lyrics"
	"lavabeat/models"
	"lavabeat/sentryhelper"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Command is one user invocation, whatever front end it came from.
type Command struct {
	Name    string
	Args    []string
	GuildID string
	// ChannelID is the text channel the command was issued in.
	ChannelID string
	// VoiceChannelID is the requester's current voice channel, empty if none.
	VoiceChannelID string
	User           models.Requester
}

// Arg returns the i-th argument or an empty string.
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Text joins every argument back into the text the user typed.
func (c Command) Text() string {
	return strings.TrimSpace(strings.Join(c.Args, " "))
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	URL         string
	Description string
	Color       int
	Thumbnail   string
	Fields      []Field
	Footer      string
}

// Controls asks the front end to attach playback buttons for the guild.
type Controls struct {
	GuildID string
	Playing bool
}

type Reply struct {
	Content   string
	Embed     *Embed
	Controls  *Controls
	Ephemeral bool
}

// Responder delivers replies for one invocation.
type Responder interface {
	Reply(reply Reply) error
	EditReply(reply Reply) error
}

type LyricsSearcher interface {
	Search(ctx context.Context, query string) (*lyrics.Lyrics, error)
}

type HistoryReader interface {
	GetHistory(ctx context.Context, guildID string, limit int) ([]database.SongHistoryRecord, error)
	GetMostPlayed(ctx context.Context, guildID string, limit int) ([]database.MostPlayedRecord, error)
}

const genericError = "❌ An error occurred while processing your command"

var (
	ErrQueueEmpty = errors.New("queue is empty")
	errUsage      = errors.New("usage")
)

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

type Manager struct {
	Controller *controller.Controller
	lyrics     LyricsSearcher
	history    HistoryReader
	hints      *Hints
	pageSize   int
}

func NewManager(c *controller.Controller, lyrics LyricsSearcher, history HistoryReader, pageSize int) *Manager {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Manager{
		Controller: c,
		lyrics:     lyrics,
		history:    history,
		hints:      NewHints(),
		pageSize:   pageSize,
	}
}

type handlerFunc func(ctx context.Context, cmd Command, r *onceResponder) (Reply, error)

func (m *Manager) handler(name string) (handlerFunc, bool) {
	handlers := map[string]handlerFunc{
		"play":       m.handlePlay,
		"skip":       m.handleSkip,
		"stop":       m.handleStop,
		"pause":      m.handlePause,
		"resume":     m.handleResume,
		"toggle":     m.handleToggle,
		"queue":      m.handleQueue,
		"nowplaying": m.handleNowPlaying,
		"volume":     m.handleVolume,
		"join":       m.handleJoin,
		"leave":      m.handleLeave,
		"clear":      m.handleClear,
		"shuffle":    m.handleShuffle,
		"loop":       m.handleLoop,
		"seek":       m.handleSeek,
		"lyrics":     m.handleLyrics,
		"history":    m.handleHistory,
		"help":       m.handleHelp,
		"ping":       m.handlePing,
	}
	h, ok := handlers[resolveAlias(name)]
	return h, ok
}

var aliases = map[string]string{
	"p":     "play",
	"s":     "skip",
	"next":  "skip",
	"q":     "queue",
	"np":    "nowplaying",
	"vol":   "volume",
	"dc":    "leave",
	"ly":    "lyrics",
	"purge": "clear",
}

func resolveAlias(name string) string {
	name = strings.ToLower(name)
	if full, ok := aliases[name]; ok {
		return full
	}
	return name
}

// Dispatch runs one command and replies exactly once. Panics and unexpected
// errors turn into a single generic reply.
func (m *Manager) Dispatch(ctx context.Context, cmd Command, responder Responder) {
	once := &onceResponder{Responder: responder}

	ctx, transaction := sentryhelper.StartCommandTransaction(ctx, cmd.Name, cmd.GuildID, cmd.User.ID)
	defer transaction.Finish()

	logger := log.WithFields(log.Fields{
		"module":  "handlers",
		"command": cmd.Name,
		"guildID": cmd.GuildID,
	})

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in %s: %v", cmd.Name, rec)
			logger.Errorf("Panic in command handling: %v", rec)
			sentryhelper.CaptureException(ctx, err)
			transaction.Status = sentry.SpanStatusInternalError
			once.send(Reply{Content: genericError, Ephemeral: true})
		}
	}()

	h, ok := m.handler(cmd.Name)
	if !ok {
		once.send(Reply{Content: "Sorry, I don't know how to handle this command", Ephemeral: true})
		return
	}

	logger.Debugf("Received command: %s %v", cmd.Name, cmd.Args)
	sentryhelper.AddBreadcrumb(ctx, &sentry.Breadcrumb{
		Category: "command",
		Message:  strings.TrimSpace(cmd.Name + " " + cmd.Text()),
		Level:    sentry.LevelInfo,
	})
	reply, err := h(ctx, cmd, once)
	if err != nil {
		msg, known := userMessage(resolveAlias(cmd.Name), err)
		if !known {
			logger.Errorf("Error handling command: %v", err)
			sentryhelper.CaptureException(ctx, err)
			transaction.Status = sentry.SpanStatusInternalError
		}
		reply = Reply{Content: msg, Ephemeral: true}
	} else {
		transaction.Status = sentry.SpanStatusOK
	}
	once.send(reply)
}

// onceResponder sends the first payload as a reply and every later one as an
// edit of it, so a handler can post progress and then its result.
type onceResponder struct {
	Responder
	mu   sync.Mutex
	sent bool
}

func (o *onceResponder) send(reply Reply) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	if o.sent {
		err = o.Responder.EditReply(reply)
	} else {
		err = o.Responder.Reply(reply)
	}
	o.sent = true
	if err != nil {
		log.WithField("module", "handlers").Errorf("Error sending reply: %v", err)
	}
}

// userMessage maps the errors users can cause to a short reply.
func userMessage(command string, err error) (string, bool) {
	var joinErr *controller.JoinError
	var startErr *controller.StartError
	switch {
	case errors.Is(err, models.ErrNotInVoiceChannel) && command == "join":
		return "❌ You need to be in a voice channel!", true
	case errors.Is(err, models.ErrNotInVoiceChannel):
		return "❌ You need to be in a voice channel to play music!", true
	case errors.Is(err, models.ErrEmptyQuery) && command == "lyrics":
		return "❌ Please provide a song name!", true
	case errors.Is(err, models.ErrEmptyQuery):
		return "❌ Please provide a song name or URL!", true
	case errors.Is(err, models.ErrNoBackendNode):
		return "❌ No Lavalink node available!", true
	case errors.As(err, &joinErr):
		return "❌ Failed to join voice channel!", true
	case errors.As(err, &startErr):
		return fmt.Sprintf("⚠️ **%s** is queued but couldn't start. It will be tried again with the next play.", startErr.Title), true
	case errors.Is(err, lyrics.ErrNoLyrics):
		return "❌ No lyrics found!", true
	case command == "lyrics":
		return "❌ Error fetching lyrics!", true
	case errors.Is(err, models.ErrNotFound):
		return "❌ No tracks found!", true
	case errors.Is(err, models.ErrProviderError):
		return "❌ Error searching for song!", true
	case errors.Is(err, models.ErrInvalidPosition) && command == "seek":
		return "❌ Invalid seek position!", true
	case errors.Is(err, models.ErrInvalidPosition):
		return "❌ Invalid position!", true
	case errors.Is(err, models.ErrInvalidVolume):
		return "❌ Volume must be between 0 and 100!", true
	case errors.Is(err, models.ErrNothingPlaying):
		return "❌ Nothing is playing!", true
	case errors.Is(err, ErrQueueEmpty):
		return "❌ Queue is empty!", true
	case errors.Is(err, errUsage):
		return "❌ " + strings.TrimPrefix(err.Error(), errUsage.Error()+": "), true
	}
	return genericError, false
}
