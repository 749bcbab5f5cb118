package lavalink

import (
	"context"

	"github.com/bwmarrin/discordgo"
	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

func (c *Client) voiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}
	c.onVoiceState(v.GuildID, v.ChannelID, v.SessionID)
}

func (c *Client) voiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	c.onVoiceServer(v.GuildID, v.Token, v.Endpoint)
}

func (c *Client) onVoiceState(guildID, channelID, sessionID string) {
	p := c.player(guildID)
	if p == nil {
		return
	}
	if channelID == "" {
		log.WithFields(log.Fields{
			"module":  "lavalink",
			"guildID": guildID,
		}).Warn("bot left the voice channel")
		return
	}

	p.voiceMu.Lock()
	p.voice.SessionID = sessionID
	p.voiceMu.Unlock()
	p.forwardVoice()
}

func (c *Client) onVoiceServer(guildID, token, endpoint string) {
	p := c.player(guildID)
	if p == nil {
		return
	}

	p.voiceMu.Lock()
	p.voice.Token = token
	p.voice.Endpoint = endpoint
	p.voiceMu.Unlock()
	p.forwardVoice()
}

// forwardVoice hands the voice credentials to the node once both halves have
// arrived from the gateway.
func (p *Player) forwardVoice() {
	p.voiceMu.Lock()
	voice := p.voice
	p.voiceMu.Unlock()

	if voice.SessionID == "" || voice.Token == "" || voice.Endpoint == "" {
		return
	}

	if err := p.client.updatePlayer(context.Background(), p.guildID, playerUpdate{Voice: &voice}); err != nil {
		sentry.CaptureException(err)
		log.WithFields(log.Fields{
			"module":  "lavalink",
			"guildID": p.guildID,
		}).Errorf("forwarding voice credentials: %v", err)
		return
	}
	p.readyOnce.Do(func() { close(p.ready) })
}
