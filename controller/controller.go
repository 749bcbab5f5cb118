package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"lavabeat/lavalink"
	"lavabeat/models"
	"lavabeat/queue"
	"lavabeat/resolver"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

const DefaultMaxRetries = 4

// Node opens playback sessions on a voice channel.
type Node interface {
	Join(ctx context.Context, guildID, channelID string, handler lavalink.EventHandler) (models.Session, error)
}

type Resolver interface {
	Resolve(ctx context.Context, raw string) (*resolver.Result, error)
	Fallback(ctx context.Context, query string) (*resolver.Result, error)
}

// Announcer posts playback notices that are not a reply to any command.
type Announcer interface {
	Announce(channelID, content string) error
}

type History interface {
	RecordPlay(ctx context.Context, guildID string, track *models.Track) error
}

// JoinError is a failure to open a voice session on the node.
type JoinError struct {
	Err error
}

func (e *JoinError) Error() string { return "joining voice channel: " + e.Err.Error() }
func (e *JoinError) Unwrap() error { return e.Err }

// StartError is a track the node refused to start. The track stays at the
// front of the pending list.
type StartError struct {
	Title string
	Err   error
}

func (e *StartError) Error() string { return fmt.Sprintf("starting %q: %v", e.Title, e.Err) }
func (e *StartError) Unwrap() error { return e.Err }

// State is the playback state of one guild.
type State int

const (
	Idle State = iota
	ConnectedIdle
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case ConnectedIdle:
		return "connected"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// PlayRequest is a normalized play command.
type PlayRequest struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	Requester      models.Requester
	Query          string
}

type PlayResult struct {
	Tracks         []*models.Track
	CollectionName string
	// Position is the 1-indexed place of the first added track in the pending
	// list, or 0 when it started playing right away.
	Position int
}

// Controller drives the playback node for every guild and implements
// lavalink.EventHandler. Commands and node callbacks of one guild are
// serialized by a per-guild guard; different guilds never block each other.
type Controller struct {
	store      *queue.Store
	node       Node
	resolver   Resolver
	announcer  Announcer
	history    History
	maxRetries int

	mutex  sync.Mutex
	guards map[string]*sync.Mutex
}

var _ lavalink.EventHandler = (*Controller)(nil)

func New(store *queue.Store, node Node, r Resolver) *Controller {
	return &Controller{
		store:      store,
		node:       node,
		resolver:   r,
		maxRetries: DefaultMaxRetries,
		guards:     make(map[string]*sync.Mutex),
	}
}

func (c *Controller) WithAnnouncer(a Announcer) *Controller {
	c.announcer = a
	return c
}

func (c *Controller) WithHistory(h History) *Controller {
	c.history = h
	return c
}

// WithMaxRetries sets how many re-resolutions a failing track gets before the
// fallback providers are tried.
func (c *Controller) WithMaxRetries(n int) *Controller {
	if n >= 0 {
		c.maxRetries = n
	}
	return c
}

func (c *Controller) Store() *queue.Store {
	return c.store
}

func (c *Controller) guard(guildID string) *sync.Mutex {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if g, ok := c.guards[guildID]; ok {
		return g
	}
	g := &sync.Mutex{}
	c.guards[guildID] = g
	return g
}

func (c *Controller) lock(guildID string) func() {
	g := c.guard(guildID)
	g.Lock()
	return g.Unlock
}

func (c *Controller) State(guildID string) State {
	q, ok := c.store.Lookup(guildID)
	if !ok {
		return Idle
	}
	snap := q.Snapshot()
	switch {
	case !snap.Connected:
		return Idle
	case snap.Paused:
		return Paused
	case snap.Playing:
		return Playing
	default:
		return ConnectedIdle
	}
}

// EnsureConnected opens a session on channelID unless the guild already has
// one. It reports whether a new session was created.
func (c *Controller) EnsureConnected(ctx context.Context, guildID, channelID string) (bool, error) {
	if channelID == "" {
		return false, models.ErrNotInVoiceChannel
	}
	defer c.lock(guildID)()
	return c.ensureConnected(ctx, c.store.Get(guildID), channelID)
}

func (c *Controller) ensureConnected(ctx context.Context, q *queue.Queue, channelID string) (bool, error) {
	if q.Session() != nil {
		return false, nil
	}

	logger := log.WithFields(log.Fields{
		"module":    "controller",
		"method":    "ensureConnected",
		"guildID":   q.GuildID,
		"channelID": channelID,
	})

	session, err := c.node.Join(ctx, q.GuildID, channelID, c)
	if err != nil {
		if !errors.Is(err, models.ErrNoBackendNode) {
			sentry.CaptureException(err)
		}
		logger.Errorf("Error joining voice channel: %v", err)
		return false, &JoinError{Err: err}
	}
	q.SetSession(session)
	logger.Debug("session opened")
	return true, nil
}

// Play resolves the request, enqueues the result and starts playback when the
// guild was idle.
func (c *Controller) Play(ctx context.Context, req PlayRequest) (*PlayResult, error) {
	if req.VoiceChannelID == "" {
		return nil, models.ErrNotInVoiceChannel
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, models.ErrEmptyQuery
	}

	defer c.lock(req.GuildID)()

	logger := log.WithFields(log.Fields{
		"module":  "controller",
		"method":  "Play",
		"guildID": req.GuildID,
	})

	res, err := c.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	q := c.store.Get(req.GuildID)
	if _, err := c.ensureConnected(ctx, q, req.VoiceChannelID); err != nil {
		return nil, err
	}
	if req.TextChannelID != "" {
		q.SetTextChannel(req.TextChannelID)
	}

	added := q.Enqueue(res.Tracks, req.Requester, res.Query)
	logger.Tracef("enqueued %d tracks for %q", len(added), query)

	if !q.Playing() {
		if err := c.playNext(ctx, q); err != nil {
			return nil, err
		}
	}

	result := &PlayResult{Tracks: added, CollectionName: res.CollectionName}
	if len(added) > 0 {
		result.Position = slices.Index(q.Pending(), added[0]) + 1
	}
	return result, nil
}

// PlayNext advances the guild's queue and plays whatever became current.
func (c *Controller) PlayNext(ctx context.Context, guildID string) error {
	defer c.lock(guildID)()
	return c.playNext(ctx, c.store.Get(guildID))
}

func (c *Controller) playNext(ctx context.Context, q *queue.Queue) error {
	if next := q.Advance(); next == nil {
		log.WithFields(log.Fields{
			"module":  "controller",
			"method":  "playNext",
			"guildID": q.GuildID,
		}).Trace("no more songs in queue, going idle")
		return nil
	}
	return c.playCurrent(ctx, q)
}

// PlayCurrent sends the current track to the node and applies the volume.
func (c *Controller) PlayCurrent(ctx context.Context, guildID string) error {
	defer c.lock(guildID)()
	return c.playCurrent(ctx, c.store.Get(guildID))
}

func (c *Controller) playCurrent(ctx context.Context, q *queue.Queue) error {
	session := q.Session()
	current := q.Current()
	if session == nil || current == nil {
		return models.ErrNothingPlaying
	}

	logger := log.WithFields(log.Fields{
		"module":  "controller",
		"method":  "playCurrent",
		"guildID": q.GuildID,
	})
	logger.Debugf("playing: %s", current.Title)

	if err := session.PlayTrack(ctx, current.Encoded); err != nil {
		q.Rewind()
		sentry.CaptureException(err)
		logger.Errorf("Error starting track: %v", err)
		return &StartError{Title: current.Title, Err: err}
	}
	if err := session.SetVolume(ctx, q.Volume()); err != nil {
		logger.Warnf("Error applying volume: %v", err)
	}
	return nil
}

func (c *Controller) OnTrackStarted(ctx context.Context, guildID string, encoded string) {
	defer c.lock(guildID)()

	q, ok := c.store.Lookup(guildID)
	if !ok {
		return
	}
	current := q.Current()
	if current == nil || (encoded != "" && current.Encoded != encoded) {
		return
	}

	log.WithFields(log.Fields{
		"module":  "controller",
		"guildID": guildID,
	}).Infof("now playing: %s", current.Title)

	if c.history == nil {
		return
	}
	if err := c.history.RecordPlay(ctx, guildID, current); err != nil {
		log.Warnf("Error recording play for guild %s: %v", guildID, err)
	}
}

// OnTrackEnded advances the queue after a track finished or was stopped. Ends
// of a track that is no longer current are ignored.
func (c *Controller) OnTrackEnded(ctx context.Context, guildID string, encoded string, reason models.EndReason) {
	if !reason.ShouldAdvance() {
		return
	}
	defer c.lock(guildID)()

	q, ok := c.store.Lookup(guildID)
	if !ok {
		return
	}
	current := q.Current()
	if current == nil || (encoded != "" && current.Encoded != encoded) {
		return
	}
	if err := c.playNext(ctx, q); err != nil {
		log.WithFields(log.Fields{
			"module":  "controller",
			"method":  "OnTrackEnded",
			"guildID": guildID,
		}).Errorf("Error playing next track: %v", err)
	}
}

// OnTrackFailed runs the recovery protocol for a node-reported playback
// failure: re-resolve and retry, then the fallback providers, then skip.
func (c *Controller) OnTrackFailed(ctx context.Context, guildID string, encoded string, cause error) {
	defer c.lock(guildID)()

	q, ok := c.store.Lookup(guildID)
	if !ok {
		return
	}

	logger := log.WithFields(log.Fields{
		"module":  "controller",
		"method":  "OnTrackFailed",
		"guildID": guildID,
	})
	logger.Warnf("Track exception: %v", cause)

	failed := failedTrack(q, encoded)
	if failed == nil {
		c.progress(ctx, q)
		return
	}

	if failed.RetryCount < c.maxRetries {
		res, err := c.resolver.Resolve(ctx, failed.OriginalQuery)
		if err == nil && len(res.Tracks) > 0 {
			logger.Infof("playback failed for %q (attempt %d/%d), retrying", failed.Title, failed.RetryCount+1, c.maxRetries)
			q.Requeue(failed, res.Tracks[0].Encoded, res.Provider)
			c.progress(ctx, q)
			return
		}
		logger.Warnf("re-resolving %q failed: %v", failed.OriginalQuery, err)
	}

	c.fallback(ctx, q, failed)
}

func (c *Controller) fallback(ctx context.Context, q *queue.Queue, failed *models.Track) {
	logger := log.WithFields(log.Fields{
		"module":  "controller",
		"method":  "fallback",
		"guildID": q.GuildID,
	})

	// drop the dead track so a loop mode does not bring it back
	if q.Current() == failed {
		q.ForceIdle()
	}

	res, err := c.resolver.Fallback(ctx, failed.OriginalQuery)
	if err == nil && len(res.Tracks) > 0 {
		logger.Infof("found %q on %s", res.Tracks[0].Title, res.Provider)
		q.Enqueue(res.Tracks, failed.Requester, failed.OriginalQuery)
		c.progress(ctx, q)
		return
	}

	logger.Warnf("all fallback attempts failed for %q, skipping", failed.OriginalQuery)
	c.announce(q, fmt.Sprintf("❌ Couldn't play **%s**, skipping it.", failed.Title))
	c.progress(ctx, q)
}

// progress starts the next track unless something is already playing.
func (c *Controller) progress(ctx context.Context, q *queue.Queue) {
	if q.Playing() {
		return
	}
	if err := c.playNext(ctx, q); err != nil {
		log.WithFields(log.Fields{
			"module":  "controller",
			"guildID": q.GuildID,
		}).Errorf("Error playing next track: %v", err)
	}
}

func (c *Controller) announce(q *queue.Queue, content string) {
	channelID := q.TextChannel()
	if c.announcer == nil || channelID == "" {
		return
	}
	go func() {
		if err := c.announcer.Announce(channelID, content); err != nil {
			log.Warnf("Error announcing to %s: %v", channelID, err)
		}
	}()
}

// failedTrack matches the node's handle against current, then previous. An
// event without a handle blames current, then previous.
func failedTrack(q *queue.Queue, encoded string) *models.Track {
	current, previous := q.Current(), q.Previous()
	if encoded == "" {
		if current != nil {
			return current
		}
		return previous
	}
	for _, t := range []*models.Track{current, previous} {
		if t != nil && t.Encoded == encoded {
			return t
		}
	}
	return nil
}

// Skip stops the current track; the node's end event advances the queue.
func (c *Controller) Skip(ctx context.Context, guildID string) (*models.Track, error) {
	defer c.lock(guildID)()

	q := c.store.Get(guildID)
	session := q.Session()
	current := q.Current()
	if session == nil || current == nil {
		return nil, models.ErrNothingPlaying
	}
	if err := session.StopTrack(ctx); err != nil {
		return nil, fmt.Errorf("stopping track: %w", err)
	}
	return current, nil
}

// Stop clears the queue and stops the node. The session stays connected.
func (c *Controller) Stop(ctx context.Context, guildID string) error {
	defer c.lock(guildID)()
	return c.stop(ctx, c.store.Get(guildID))
}

func (c *Controller) stop(ctx context.Context, q *queue.Queue) error {
	session := q.Session()
	if session == nil {
		return models.ErrNothingPlaying
	}
	q.Reset()
	if err := session.StopTrack(ctx); err != nil {
		return fmt.Errorf("stopping track: %w", err)
	}
	return nil
}

// Leave stops playback, destroys the session and forgets it.
func (c *Controller) Leave(ctx context.Context, guildID string) error {
	defer c.lock(guildID)()

	q := c.store.Get(guildID)
	session := q.Session()
	if session == nil {
		return models.ErrNothingPlaying
	}

	logger := log.WithFields(log.Fields{
		"module":  "controller",
		"method":  "Leave",
		"guildID": guildID,
	})

	if err := c.stop(ctx, q); err != nil {
		logger.Warnf("Error stopping before leave: %v", err)
	}
	q.SetSession(nil)
	if err := session.Destroy(ctx); err != nil {
		sentry.CaptureException(err)
		logger.Errorf("Error destroying session: %v", err)
		return err
	}
	return nil
}

func (c *Controller) Pause(ctx context.Context, guildID string) error {
	return c.setPaused(ctx, guildID, true)
}

func (c *Controller) Resume(ctx context.Context, guildID string) error {
	return c.setPaused(ctx, guildID, false)
}

func (c *Controller) setPaused(ctx context.Context, guildID string, paused bool) error {
	defer c.lock(guildID)()

	q := c.store.Get(guildID)
	session := q.Session()
	if session == nil || q.Current() == nil {
		return models.ErrNothingPlaying
	}
	if err := session.SetPaused(ctx, paused); err != nil {
		return err
	}
	q.SetPaused(paused)
	return nil
}

// Seek moves the current track to the given second.
func (c *Controller) Seek(ctx context.Context, guildID string, seconds int) error {
	if seconds < 0 {
		return models.ErrInvalidPosition
	}
	defer c.lock(guildID)()

	q := c.store.Get(guildID)
	session := q.Session()
	current := q.Current()
	if session == nil || current == nil {
		return models.ErrNothingPlaying
	}
	if current.Duration > 0 && seconds > current.Duration {
		return models.ErrInvalidPosition
	}
	return session.Seek(ctx, time.Duration(seconds)*time.Second)
}

// SetVolume stores the level and re-applies it on the node when connected.
func (c *Controller) SetVolume(ctx context.Context, guildID string, level int) error {
	if level < 0 || level > 100 {
		return models.ErrInvalidVolume
	}
	defer c.lock(guildID)()

	q := c.store.Get(guildID)
	q.SetVolume(level)
	if session := q.Session(); session != nil {
		return session.SetVolume(ctx, level)
	}
	return nil
}
