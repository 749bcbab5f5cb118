package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"lavabeat/models"

	"github.com/bwmarrin/discordgo"
	sentry "github.com/getsentry/sentry-go"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	clientName     = "lavabeat/1.0"
	reconnectDelay = 5 * time.Second
	voiceTimeout   = 10 * time.Second
)

// EventHandler receives player lifecycle events for one guild. Calls for the
// same guild are never concurrent and arrive in node order.
type EventHandler interface {
	OnTrackStarted(ctx context.Context, guildID string, encoded string)
	OnTrackEnded(ctx context.Context, guildID string, encoded string, reason models.EndReason)
	OnTrackFailed(ctx context.Context, guildID string, encoded string, err error)
}

// VoiceGateway asks the chat gateway to move the bot in or out of a voice
// channel. An empty channel id leaves.
type VoiceGateway interface {
	ChannelVoiceJoinManual(guildID, channelID string, mute, deaf bool) error
}

// Client talks to a single Lavalink node.
type Client struct {
	config  NodeConfig
	gateway VoiceGateway
	http    *http.Client

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	players   map[string]*Player
}

// NewClient creates a node client and registers the voice forwarding handlers
// on the discord session.
func NewClient(session *discordgo.Session, config NodeConfig) *Client {
	c := newClient(config, session)
	session.AddHandler(c.voiceStateUpdate)
	session.AddHandler(c.voiceServerUpdate)
	return c
}

func newClient(config NodeConfig, gateway VoiceGateway) *Client {
	if config.Name == "" {
		config.Name = "main"
	}
	return &Client{
		config:  config,
		gateway: gateway,
		http:    &http.Client{Timeout: 10 * time.Second},
		players: make(map[string]*Player),
	}
}

// Available reports whether the node is connected and has sent its ready op.
func (c *Client) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID != ""
}

func (c *Client) session() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return "", models.ErrNoBackendNode
	}
	return c.sessionID, nil
}

// Connect keeps the websocket to the node open until ctx is cancelled,
// reconnecting after every failure.
func (c *Client) Connect(ctx context.Context, userID string) error {
	logger := log.WithFields(log.Fields{
		"module": "lavalink",
		"node":   c.config.Name,
	})

	for {
		err := c.connectOnce(ctx, userID)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Errorf("node connection failed: %v", err)
		}
		logger.Warnf("disconnected from node, retrying in %s", reconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) connectOnce(ctx context.Context, userID string) error {
	headers := http.Header{}
	headers.Set("Authorization", c.config.Password)
	headers.Set("User-Id", userID)
	headers.Set("Client-Name", clientName)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.config.websocketURL(), headers)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.websocketURL(), err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.sessionID = ""
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	logger := log.WithFields(log.Fields{
		"module": "lavalink",
		"node":   c.config.Name,
	})

	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warnf("dropping malformed node message: %v", err)
		return
	}

	switch msg.Op {
	case "ready":
		c.mu.Lock()
		c.sessionID = msg.SessionID
		c.mu.Unlock()
		logger.Infof("node ready, session %s (resumed=%v)", msg.SessionID, msg.Resumed)
	case "playerUpdate":
		var state playerState
		if err := json.Unmarshal(msg.State, &state); err != nil {
			return
		}
		if p := c.player(msg.GuildID); p != nil {
			p.position.Store(state.Position)
		}
	case "stats":
		logger.Tracef("node stats: %d players", msg.Players)
	case "event":
		c.handleEvent(msg)
	default:
		logger.Debugf("unknown node op: %s", msg.Op)
	}
}

func (c *Client) handleEvent(msg message) {
	logger := log.WithFields(log.Fields{
		"module":  "lavalink",
		"guildID": msg.GuildID,
		"event":   msg.Type,
	})

	p := c.player(msg.GuildID)
	if p == nil {
		logger.Debug("event for unknown player")
		return
	}

	var encoded string
	if msg.Track != nil {
		encoded = msg.Track.Encoded
	}

	switch msg.Type {
	case "TrackStartEvent":
		p.notify(event{kind: eventStarted, encoded: encoded})
	case "TrackEndEvent":
		p.notify(event{kind: eventEnded, encoded: encoded, reason: models.EndReason(msg.Reason)})
	case "TrackExceptionEvent":
		perr := &models.PlaybackError{Encoded: encoded, Message: "unknown exception"}
		if msg.Exception != nil {
			perr.Message = msg.Exception.Message
			perr.Severity = msg.Exception.Severity
			perr.Cause = msg.Exception.Cause
		}
		p.notify(event{kind: eventFailed, encoded: encoded, err: perr})
	case "TrackStuckEvent":
		p.notify(event{kind: eventFailed, encoded: encoded, err: &models.PlaybackError{
			Encoded:  encoded,
			Message:  fmt.Sprintf("track stuck for %dms", msg.Threshold),
			Severity: "suspicious",
		}})
	case "WebSocketClosedEvent":
		logger.Warnf("voice websocket closed with code %d: %s", msg.Code, msg.Reason)
	default:
		logger.Debug("unknown event type")
	}
}

func (c *Client) player(guildID string) *Player {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.players[guildID]
}

// Join moves the bot into the voice channel and returns a player once the node
// has the voice credentials. Events for the guild are delivered to handler.
func (c *Client) Join(ctx context.Context, guildID, channelID string, handler EventHandler) (models.Session, error) {
	if !c.Available() {
		return nil, models.ErrNoBackendNode
	}

	p := c.player(guildID)
	if p == nil || p.channelID != channelID {
		if p != nil {
			p.close()
		}
		p = newPlayer(c, guildID, channelID, handler)
		c.mu.Lock()
		c.players[guildID] = p
		c.mu.Unlock()
	}

	if err := c.gateway.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		c.removePlayer(p)
		return nil, fmt.Errorf("joining voice channel: %w", err)
	}

	timeout, cancel := context.WithTimeout(ctx, voiceTimeout)
	defer cancel()
	select {
	case <-p.ready:
		return p, nil
	case <-timeout.Done():
		c.removePlayer(p)
		_ = c.gateway.ChannelVoiceJoinManual(guildID, "", false, true)
		return nil, fmt.Errorf("waiting for voice credentials: %w", timeout.Err())
	}
}

func (c *Client) removePlayer(p *Player) {
	c.mu.Lock()
	if c.players[p.guildID] == p {
		delete(c.players, p.guildID)
	}
	c.mu.Unlock()
	p.close()
}

// LoadTracks resolves an identifier (URL or "<prefix>search:<query>") on the node.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	span := sentry.StartSpan(ctx, "lavalink.loadtracks")
	span.Description = identifier
	defer span.Finish()

	if !c.Available() {
		return nil, models.ErrNoBackendNode
	}

	endpoint := c.config.restURL() + "/loadtracks?identifier=" + url.QueryEscape(identifier)
	var result LoadResult
	if err := c.do(span.Context(), http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/sessions/%s/players/%s", c.config.restURL(), sessionID, guildID)
	return c.do(ctx, http.MethodPatch, endpoint, body, nil)
}

func (c *Client) destroyPlayer(ctx context.Context, guildID string) error {
	sessionID, err := c.session()
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/sessions/%s/players/%s", c.config.restURL(), sessionID, guildID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.config.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		return fmt.Errorf("%s %s: status %d: %s", method, req.URL.Path, resp.StatusCode, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

// Close drops every player and the node connection.
func (c *Client) Close() {
	c.mu.Lock()
	players := c.players
	c.players = make(map[string]*Player)
	conn := c.conn
	c.mu.Unlock()

	for _, p := range players {
		p.close()
	}
	if conn != nil {
		conn.Close()
	}
}
