package controller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"lavabeat/lavalink"
	"lavabeat/models"
	"lavabeat/queue"
	"lavabeat/resolver"
)

type fakeSession struct {
	mu        sync.Mutex
	played    []string
	stops     int
	paused    []bool
	volumes   []int
	seeks     []time.Duration
	destroyed bool
	playErr   error
}

func (s *fakeSession) GuildID() string   { return "g" }
func (s *fakeSession) ChannelID() string { return "voice" }

func (s *fakeSession) PlayTrack(_ context.Context, encoded string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.played = append(s.played, encoded)
	return nil
}

func (s *fakeSession) StopTrack(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSession) SetPaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = append(s.paused, paused)
	return nil
}

func (s *fakeSession) Seek(_ context.Context, position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, position)
	return nil
}

func (s *fakeSession) SetVolume(_ context.Context, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, level)
	return nil
}

func (s *fakeSession) Destroy(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	return nil
}

type fakeNode struct {
	session *fakeSession
	joins   int
	err     error
}

func (n *fakeNode) Join(_ context.Context, _, _ string, _ lavalink.EventHandler) (models.Session, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.joins++
	return n.session, nil
}

type fakeResolver struct {
	results   map[string]*resolver.Result
	fallbacks map[string]*resolver.Result
	resolved  []string
	fellBack  []string
}

func (r *fakeResolver) Resolve(_ context.Context, raw string) (*resolver.Result, error) {
	r.resolved = append(r.resolved, raw)
	if res, ok := r.results[raw]; ok {
		return res, nil
	}
	return nil, models.ErrNotFound
}

func (r *fakeResolver) Fallback(_ context.Context, query string) (*resolver.Result, error) {
	r.fellBack = append(r.fellBack, query)
	if res, ok := r.fallbacks[query]; ok {
		return res, nil
	}
	return nil, models.ErrNotFound
}

type fakeAnnouncer struct {
	messages chan string
}

func (a *fakeAnnouncer) Announce(_, content string) error {
	a.messages <- content
	return nil
}

func result(query string, encoded ...string) *resolver.Result {
	res := &resolver.Result{Query: query, Provider: models.ProviderYouTube}
	for _, e := range encoded {
		res.Tracks = append(res.Tracks, &models.Track{Title: "title-" + e, Encoded: e})
	}
	return res
}

func newTestController(r *fakeResolver) (*Controller, *fakeSession) {
	session := &fakeSession{}
	c := New(queue.NewStore(100), &fakeNode{session: session}, r)
	return c, session
}

func play(t *testing.T, c *Controller, query string) *PlayResult {
	t.Helper()
	res, err := c.Play(context.Background(), PlayRequest{
		GuildID:        "g",
		VoiceChannelID: "voice",
		TextChannelID:  "text",
		Query:          query,
	})
	if err != nil {
		t.Fatalf("Play(%q) error = %v", query, err)
	}
	return res
}

func (s *fakeSession) playedHandles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.played)
}

func TestPlayValidation(t *testing.T) {
	tests := []struct {
		name string
		req  PlayRequest
		want error
	}{
		{"not in voice", PlayRequest{GuildID: "g", Query: "song"}, models.ErrNotInVoiceChannel},
		{"empty query", PlayRequest{GuildID: "g", VoiceChannelID: "voice", Query: "  "}, models.ErrEmptyQuery},
		{"not found", PlayRequest{GuildID: "g", VoiceChannelID: "voice", Query: "missing"}, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(&fakeResolver{})
			if _, err := c.Play(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if c.State("g") != Idle {
				t.Errorf("State() = %v, want idle", c.State("g"))
			}
		})
	}
}

func TestPlayWithoutNode(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"a": result("a", "A")}}
	c := New(queue.NewStore(100), &fakeNode{err: models.ErrNoBackendNode}, r)
	_, err := c.Play(context.Background(), PlayRequest{GuildID: "g", VoiceChannelID: "voice", Query: "a"})
	if !errors.Is(err, models.ErrNoBackendNode) {
		t.Errorf("err = %v, want ErrNoBackendNode", err)
	}
	if c.Store().Get("g").Len() != 0 {
		t.Error("nothing should be enqueued without a session")
	}
}

func TestPlayStartsWhenIdle(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{
		"a": result("a", "A"),
		"b": result("b", "B"),
	}}
	c, session := newTestController(r)
	c.Store().Get("g").SetVolume(40)

	if res := play(t, c, "a"); res.Position != 0 {
		t.Errorf("first Position = %d, want 0", res.Position)
	}
	if res := play(t, c, "b"); res.Position != 1 {
		t.Errorf("second Position = %d, want 1", res.Position)
	}

	if got := session.playedHandles(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("played = %v, want [A]", got)
	}
	if !slices.Equal(session.volumes, []int{40}) {
		t.Errorf("volumes = %v, want [40]", session.volumes)
	}
	if c.State("g") != Playing {
		t.Errorf("State() = %v, want playing", c.State("g"))
	}
	if q := c.Store().Get("g"); q.TextChannel() != "text" {
		t.Errorf("TextChannel() = %q", q.TextChannel())
	}
}

func TestEndEventsPlayInOrder(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"abc": result("abc", "A", "B", "C")}}
	c, session := newTestController(r)

	play(t, c, "abc")
	for _, encoded := range []string{"A", "B", "C"} {
		c.OnTrackEnded(context.Background(), "g", encoded, models.EndFinished)
	}

	if got := session.playedHandles(); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("played = %v, want [A B C]", got)
	}
	q := c.Store().Get("g")
	if q.Playing() || q.Current() != nil {
		t.Error("queue should be idle after the last track")
	}
	if c.State("g") != ConnectedIdle {
		t.Errorf("State() = %v, want connected", c.State("g"))
	}
}

func TestEndEventFiltering(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		reason  models.EndReason
		advance bool
	}{
		{"finished", "A", models.EndFinished, true},
		{"stopped", "A", models.EndStopped, true},
		{"without handle", "", models.EndFinished, true},
		{"load failed", "A", models.EndLoadFailed, false},
		{"replaced", "A", models.EndReplaced, false},
		{"cleanup", "A", models.EndCleanup, false},
		{"stale handle", "old", models.EndFinished, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResolver{results: map[string]*resolver.Result{"ab": result("ab", "A", "B")}}
			c, _ := newTestController(r)
			play(t, c, "ab")

			c.OnTrackEnded(context.Background(), "g", tt.encoded, tt.reason)

			advanced := c.Store().Get("g").Current().Encoded == "B"
			if advanced != tt.advance {
				t.Errorf("advanced = %v, want %v", advanced, tt.advance)
			}
		})
	}
}

func TestRecoveryRetriesUntilLimit(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		wantRetry  bool
	}{
		{"third failure retries", 3, true},
		{"fourth failure falls back", 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResolver{
				results:   map[string]*resolver.Result{"song": result("song", "A")},
				fallbacks: map[string]*resolver.Result{"song": result("Song Band", "SC")},
			}
			c, session := newTestController(r)
			play(t, c, "song")
			q := c.Store().Get("g")
			current := q.Current()
			current.RetryCount = tt.retryCount
			r.results["song"] = result("song", "A2")

			c.OnTrackFailed(context.Background(), "g", "A", models.ErrPlaybackException)

			played := session.playedHandles()
			if tt.wantRetry {
				if q.Current() != current || current.RetryCount != tt.retryCount+1 {
					t.Errorf("current = %+v, want the same track with one more retry", q.Current())
				}
				if played[len(played)-1] != "A2" {
					t.Errorf("played = %v, want the re-resolved handle last", played)
				}
				if len(r.fellBack) != 0 {
					t.Error("fallback should not run while retries remain")
				}
				return
			}
			if !slices.Equal(r.fellBack, []string{"song"}) {
				t.Errorf("fallback queries = %v", r.fellBack)
			}
			if q.Current() == nil || q.Current().Encoded != "SC" || q.Current().RetryCount != 0 {
				t.Errorf("current = %+v, want the fallback track", q.Current())
			}
			if q.Current().OriginalQuery != "song" {
				t.Errorf("OriginalQuery = %q, want the failed track's query", q.Current().OriginalQuery)
			}
		})
	}
}

func TestRecoveryForEndedTrack(t *testing.T) {
	tests := []struct {
		name string
		loop queue.LoopMode
	}{
		{"loop off", queue.LoopOff},
		{"loop queue", queue.LoopQueue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResolver{results: map[string]*resolver.Result{"ab": result("ab", "A", "B")}}
			c, session := newTestController(r)
			q := c.Store().Get("g")
			q.SetLoopMode(tt.loop)
			play(t, c, "ab")
			ended := q.Current()

			c.OnTrackEnded(context.Background(), "g", "A", models.EndFinished)
			r.results["ab"] = result("ab", "A2")
			c.OnTrackFailed(context.Background(), "g", "A", models.ErrPlaybackException)

			if cur := q.Current(); cur == nil || cur.Encoded != "B" {
				t.Errorf("current = %+v, B should keep playing", cur)
			}
			pending := q.Pending()
			if len(pending) != 1 || pending[0] != ended {
				t.Fatalf("pending = %v, want the ended track once", pending)
			}
			if ended.Encoded != "A2" || ended.RetryCount != 1 {
				t.Errorf("encoded = %q, retries = %d", ended.Encoded, ended.RetryCount)
			}
			if got := session.playedHandles(); !slices.Equal(got, []string{"A", "B"}) {
				t.Errorf("played = %v", got)
			}
		})
	}
}

func TestRecoveryFallsBackWhenReResolveFails(t *testing.T) {
	r := &fakeResolver{
		results:   map[string]*resolver.Result{"song": result("song", "A")},
		fallbacks: map[string]*resolver.Result{},
	}
	c, _ := newTestController(r)
	play(t, c, "song")
	delete(r.results, "song")

	c.OnTrackFailed(context.Background(), "g", "A", models.ErrPlaybackException)

	if !slices.Equal(r.fellBack, []string{"song"}) {
		t.Errorf("fallback queries = %v", r.fellBack)
	}
}

func TestRecoveryGivesUpAndAnnounces(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"ab": result("ab", "A", "B")}}
	c, session := newTestController(r)
	announcer := &fakeAnnouncer{messages: make(chan string, 1)}
	c.WithAnnouncer(announcer).WithMaxRetries(0)
	q := c.Store().Get("g")
	q.SetLoopMode(queue.LoopTrack)
	play(t, c, "ab")

	c.OnTrackFailed(context.Background(), "g", "A", models.ErrPlaybackException)

	if got := session.playedHandles(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("played = %v, want [A B]", got)
	}
	select {
	case msg := <-announcer.messages:
		if msg == "" {
			t.Error("empty announcement")
		}
	case <-time.After(time.Second):
		t.Error("expected a give-up announcement")
	}
}

func TestRecoveryWithoutFailedTrack(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"a": result("a", "A")}}
	c, session := newTestController(r)
	play(t, c, "a")

	c.OnTrackFailed(context.Background(), "g", "unknown", models.ErrPlaybackException)

	if len(r.fellBack) != 0 || len(r.resolved) != 1 {
		t.Errorf("resolved %v, fell back %v", r.resolved, r.fellBack)
	}
	if got := session.playedHandles(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("played = %v, the playing track should be left alone", got)
	}
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		level   int
		wantErr error
	}{
		{150, models.ErrInvalidVolume},
		{-1, models.ErrInvalidVolume},
		{0, nil},
		{100, nil},
	}
	for _, tt := range tests {
		c, _ := newTestController(&fakeResolver{})
		err := c.SetVolume(context.Background(), "g", tt.level)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("SetVolume(%d) = %v, want %v", tt.level, err, tt.wantErr)
		}
		if tt.wantErr == nil && c.Store().Get("g").Volume() != tt.level {
			t.Errorf("Volume() = %d, want %d", c.Store().Get("g").Volume(), tt.level)
		}
	}
}

func TestSetVolumeAppliesToSession(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"a": result("a", "A")}}
	c, session := newTestController(r)
	play(t, c, "a")

	if err := c.SetVolume(context.Background(), "g", 25); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(session.volumes, []int{100, 25}) {
		t.Errorf("volumes = %v", session.volumes)
	}
}

func TestCommandsWithoutSession(t *testing.T) {
	c, _ := newTestController(&fakeResolver{})
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["skip"] = c.Skip(ctx, "g")
	checks["stop"] = c.Stop(ctx, "g")
	checks["leave"] = c.Leave(ctx, "g")
	checks["pause"] = c.Pause(ctx, "g")
	checks["resume"] = c.Resume(ctx, "g")
	checks["seek"] = c.Seek(ctx, "g", 10)

	for name, err := range checks {
		if !errors.Is(err, models.ErrNothingPlaying) {
			t.Errorf("%s: err = %v, want ErrNothingPlaying", name, err)
		}
	}
}

func TestPauseSeekSkip(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"ab": result("ab", "A", "B")}}
	c, session := newTestController(r)
	ctx := context.Background()
	play(t, c, "ab")
	c.Store().Get("g").Current().Duration = 180

	if err := c.Pause(ctx, "g"); err != nil {
		t.Fatal(err)
	}
	if c.State("g") != Paused {
		t.Errorf("State() = %v, want paused", c.State("g"))
	}
	if err := c.Resume(ctx, "g"); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(session.paused, []bool{true, false}) {
		t.Errorf("paused = %v", session.paused)
	}

	if err := c.Seek(ctx, "g", 200); !errors.Is(err, models.ErrInvalidPosition) {
		t.Errorf("Seek past the end = %v", err)
	}
	if err := c.Seek(ctx, "g", 90); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(session.seeks, []time.Duration{90 * time.Second}) {
		t.Errorf("seeks = %v", session.seeks)
	}

	skipped, err := c.Skip(ctx, "g")
	if err != nil || skipped.Encoded != "A" || session.stops != 1 {
		t.Fatalf("Skip() = %v, %v (stops %d)", skipped, err, session.stops)
	}
	c.OnTrackEnded(ctx, "g", "A", models.EndStopped)
	if c.Store().Get("g").Current().Encoded != "B" {
		t.Error("the stop event should advance to B")
	}
}

func TestStopAndLeave(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"ab": result("ab", "A", "B")}}
	c, session := newTestController(r)
	ctx := context.Background()
	play(t, c, "ab")

	if err := c.Stop(ctx, "g"); err != nil {
		t.Fatal(err)
	}
	// the node confirms the stop; the queue is already empty
	c.OnTrackEnded(ctx, "g", "A", models.EndStopped)
	if c.State("g") != ConnectedIdle || c.Store().Get("g").Len() != 0 {
		t.Errorf("State() = %v after stop", c.State("g"))
	}

	if err := c.Leave(ctx, "g"); err != nil {
		t.Fatal(err)
	}
	if !session.destroyed || c.State("g") != Idle {
		t.Errorf("destroyed = %v, state = %v", session.destroyed, c.State("g"))
	}

	// the next play reconnects
	play(t, c, "ab")
	if n := c.node.(*fakeNode).joins; n != 2 {
		t.Errorf("joins = %d, want 2", n)
	}
}

func TestPlayTrackFailureKeepsTrack(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"a": result("a", "A")}}
	c, session := newTestController(r)
	session.playErr = errors.New("node unreachable")

	_, err := c.Play(context.Background(), PlayRequest{GuildID: "g", VoiceChannelID: "voice", Query: "a"})
	var startErr *StartError
	if !errors.As(err, &startErr) || startErr.Title != "title-A" {
		t.Fatalf("err = %v, want a StartError for title-A", err)
	}
	q := c.Store().Get("g")
	if q.Playing() || q.Len() != 1 {
		t.Errorf("playing = %v, pending = %d; the track should wait at the front", q.Playing(), q.Len())
	}
}

type fakeHistory struct {
	plays []string
}

func (h *fakeHistory) RecordPlay(_ context.Context, _ string, track *models.Track) error {
	h.plays = append(h.plays, track.Title)
	return nil
}

func TestTrackStartRecordsHistory(t *testing.T) {
	r := &fakeResolver{results: map[string]*resolver.Result{"a": result("a", "A")}}
	c, _ := newTestController(r)
	history := &fakeHistory{}
	c.WithHistory(history)
	play(t, c, "a")

	c.OnTrackStarted(context.Background(), "g", "A")
	c.OnTrackStarted(context.Background(), "g", "stale")

	if !slices.Equal(history.plays, []string{"title-A"}) {
		t.Errorf("plays = %v", history.plays)
	}
}

func TestGuildsDoNotBlockEachOther(t *testing.T) {
	c, _ := newTestController(&fakeResolver{})
	unlock := c.lock("one")
	defer unlock()

	done := make(chan struct{})
	go func() {
		_ = c.SetVolume(context.Background(), "two", 50)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a locked guild blocked another guild")
	}
}
