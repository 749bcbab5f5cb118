package discord

import (
	"lavabeat/handlers"

	"github.com/bwmarrin/discordgo"
)

// interactionResponder answers a deferred interaction. Every send edits the
// deferred reply, except ephemeral ones on a public deferral which replace it
// with a private followup.
type interactionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	ephemeral   bool
}

func (r *interactionResponder) Reply(reply handlers.Reply) error     { return r.send(reply) }
func (r *interactionResponder) EditReply(reply handlers.Reply) error { return r.send(reply) }

func (r *interactionResponder) send(reply handlers.Reply) error {
	content, embeds, components := messageParts(reply)

	if reply.Ephemeral && !r.ephemeral {
		if err := r.session.InteractionResponseDelete(r.interaction); err != nil {
			return err
		}
		_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content:    content,
			Embeds:     embeds,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		})
		return err
	}

	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

// messageResponder answers a prefixed chat command by replying to it and then
// editing that reply.
type messageResponder struct {
	session *discordgo.Session
	trigger *discordgo.Message
	sent    *discordgo.Message
}

func (r *messageResponder) Reply(reply handlers.Reply) error {
	content, embeds, components := messageParts(reply)
	msg, err := r.session.ChannelMessageSendComplex(r.trigger.ChannelID, &discordgo.MessageSend{
		Content:    content,
		Embeds:     embeds,
		Components: components,
		Reference:  r.trigger.Reference(),
	})
	if err != nil {
		return err
	}
	r.sent = msg
	return nil
}

func (r *messageResponder) EditReply(reply handlers.Reply) error {
	if r.sent == nil {
		return r.Reply(reply)
	}
	content, embeds, components := messageParts(reply)
	_, err := r.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         r.sent.ID,
		Channel:    r.sent.ChannelID,
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

// ChannelAnnouncer posts playback notices to a text channel.
type ChannelAnnouncer struct {
	session *discordgo.Session
}

func NewAnnouncer(session *discordgo.Session) *ChannelAnnouncer {
	return &ChannelAnnouncer{session: session}
}

func (a *ChannelAnnouncer) Announce(channelID, content string) error {
	_, err := a.session.ChannelMessageSend(channelID, content)
	return err
}
