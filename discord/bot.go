// Package discord is the chat front end: it turns slash commands, control
// buttons and prefixed messages into handler commands and delivers the replies.
package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"lavabeat/handlers"

	"github.com/bwmarrin/discordgo"
	sentry "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Dispatcher runs one command and replies through the responder.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd handlers.Command, responder handlers.Responder)
}

type Options struct {
	AppID string
	// PublicKey is the hex encoded application key used to verify HTTP
	// interactions.
	PublicKey string
	Prefix    string
	// CommandGuildID registers slash commands on one guild instead of globally.
	CommandGuildID string
}

type Bot struct {
	session    *discordgo.Session
	dispatcher Dispatcher
	options    Options
	publicKey  ed25519.PublicKey
}

func NewBot(session *discordgo.Session, dispatcher Dispatcher, options Options) (*Bot, error) {
	b := &Bot{session: session, dispatcher: dispatcher, options: options}
	if options.PublicKey != "" {
		key, err := hex.DecodeString(options.PublicKey)
		if err != nil || len(key) != ed25519.PublicKeySize {
			return nil, errors.New("invalid discord public key")
		}
		b.publicKey = key
	}
	return b, nil
}

// NewSession creates the gateway session with the intents the bot relies on.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	session.StateEnabled = true
	return session, nil
}

// Open connects to the gateway and registers the slash commands.
func (b *Bot) Open() error {
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onMessageCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway: %w", err)
	}
	log.WithField("module", "discord").Infof("Connected to gateway as %s", b.session.State.User.Username)

	if b.options.AppID == "" {
		return nil
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.options.AppID, b.options.CommandGuildID, Commands); err != nil {
		sentry.CaptureException(err)
		log.WithField("module", "discord").Errorf("Error registering commands: %v", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// UserID is the bot's own user, known once the gateway is open.
func (b *Bot) UserID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

func (b *Bot) voiceChannel(guildID, userID string) string {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil {
		return ""
	}
	return vs.ChannelID
}

// deferral acknowledges an interaction. Button presses answer privately.
func deferral(i *discordgo.Interaction) *discordgo.InteractionResponse {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if i.Type == discordgo.InteractionMessageComponent {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return resp
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(ic.Interaction, deferral(ic.Interaction)); err != nil {
		log.WithField("module", "discord").Errorf("Error deferring interaction: %v", err)
		return
	}
	b.handleInteraction(ic.Interaction)
}

func (b *Bot) handleInteraction(i *discordgo.Interaction) {
	var (
		name string
		args []string
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name, args = commandFromSlash(i.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		var guildID string
		var ok bool
		name, args, guildID, ok = commandForButton(i.MessageComponentData().CustomID)
		if !ok || guildID != i.GuildID {
			return
		}
	default:
		return
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	requester := requesterFromUser(user)

	cmd := handlers.Command{
		Name:           name,
		Args:           args,
		GuildID:        i.GuildID,
		ChannelID:      i.ChannelID,
		VoiceChannelID: b.voiceChannel(i.GuildID, requester.ID),
		User:           requester,
	}
	b.dispatcher.Dispatch(context.Background(), cmd, &interactionResponder{
		session:     b.session,
		interaction: i,
		ephemeral:   i.Type == discordgo.InteractionMessageComponent,
	})
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	name, args, ok := parsePrefixed(b.options.Prefix, m.Content)
	if !ok {
		return
	}

	requester := requesterFromUser(m.Author)
	cmd := handlers.Command{
		Name:           name,
		Args:           args,
		GuildID:        m.GuildID,
		ChannelID:      m.ChannelID,
		VoiceChannelID: b.voiceChannel(m.GuildID, requester.ID),
		User:           requester,
	}
	b.dispatcher.Dispatch(context.Background(), cmd, &messageResponder{session: s, trigger: m.Message})
}

// HandleHTTPInteraction serves the interactions endpoint for applications that
// receive interactions over HTTP instead of the gateway.
func (b *Bot) HandleHTTPInteraction(c *gin.Context) {
	logger := log.WithFields(log.Fields{
		"module": "discord",
		"method": "HandleHTTPInteraction",
	})

	if len(b.publicKey) != ed25519.PublicKeySize || !discordgo.VerifyInteraction(c.Request, b.publicKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid request signature"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		logger.Errorf("Error reading body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	var interaction discordgo.Interaction
	if err := json.Unmarshal(body, &interaction); err != nil {
		logger.Errorf("Error unmarshalling interaction: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse interaction"})
		return
	}

	if interaction.Type == discordgo.InteractionPing {
		c.JSON(http.StatusOK, discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
		return
	}

	c.JSON(http.StatusOK, deferral(&interaction))
	go b.handleInteraction(&interaction)
}
