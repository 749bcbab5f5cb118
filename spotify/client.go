package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lavabeat/models"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

var ErrInvalidURL = errors.New("invalid Spotify URL")

// Link is the catalog entity a Spotify link or URI refers to.
type Link struct {
	Kind string
	ID   spotifyclient.ID
}

var linkKinds = map[string]bool{"track": true, "album": true, "playlist": true, "artist": true}

// Client is the catalog client for Spotify. Calls are rate limited so a burst
// of playlist requests cannot exhaust the app's quota.
type Client struct {
	api     *spotifyclient.Client
	limiter *rate.Limiter
}

// NewClient authenticates with the client-credentials flow. The returned
// client refreshes its token on its own.
func NewClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := config.Token(ctx); err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("spotify auth: %w", err)
	}

	return &Client{
		api:     spotifyclient.New(config.Client(context.Background())),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}, nil
}

func (c *Client) Name() models.Provider {
	return models.ProviderSpotify
}

func (c *Client) Match(raw string) bool {
	_, err := ParseLink(raw)
	return err == nil
}

// Lookup returns the track a Spotify link points at. Collections yield their
// first track, with the collection name attached.
func (c *Client) Lookup(ctx context.Context, raw string) (*models.CatalogTrack, error) {
	link, err := ParseLink(raw)
	if err != nil {
		return nil, err
	}

	switch link.Kind {
	case "track":
		return c.getTrack(ctx, link.ID)
	case "album":
		return c.getAlbumFirst(ctx, link.ID)
	case "playlist":
		return c.getPlaylistFirst(ctx, link.ID)
	default:
		return c.getArtistTop(ctx, link.ID)
	}
}

// Search returns the best catalog match for free text.
func (c *Client) Search(ctx context.Context, query string) (*models.CatalogTrack, error) {
	span := sentry.StartSpan(ctx, "spotify.search")
	span.Description = "Search Spotify API"
	span.SetTag("query", query)
	defer span.Finish()

	if err := c.limiter.Wait(span.Context()); err != nil {
		return nil, err
	}

	results, err := c.api.Search(span.Context(), query, spotifyclient.SearchTypeTrack, spotifyclient.Limit(1))
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, models.ErrNotFound
	}
	track := results.Tracks.Tracks[0]
	return &models.CatalogTrack{Title: track.Name, Artist: firstArtist(track.Artists)}, nil
}

func (c *Client) getTrack(ctx context.Context, trackID spotifyclient.ID) (*models.CatalogTrack, error) {
	log.Tracef("Fetching track from Spotify API: %s", trackID)

	span := sentry.StartSpan(ctx, "spotify.get_track")
	span.Description = "Get track from Spotify API"
	span.SetTag("track_id", string(trackID))
	defer span.Finish()

	if err := c.limiter.Wait(span.Context()); err != nil {
		return nil, err
	}

	track, err := c.api.GetTrack(span.Context(), trackID)
	if err != nil {
		log.Errorf("Failed to fetch Spotify track %s: %v", trackID, err)
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	log.Debugf("Successfully fetched Spotify track: '%s'", track.Name)
	span.Status = sentry.SpanStatusOK
	return &models.CatalogTrack{Title: track.Name, Artist: firstArtist(track.Artists)}, nil
}

func (c *Client) getAlbumFirst(ctx context.Context, albumID spotifyclient.ID) (*models.CatalogTrack, error) {
	span := sentry.StartSpan(ctx, "spotify.get_album")
	span.Description = "Get album from Spotify API"
	span.SetTag("album_id", string(albumID))
	defer span.Finish()

	if err := c.limiter.Wait(span.Context()); err != nil {
		return nil, err
	}

	album, err := c.api.GetAlbum(span.Context(), albumID)
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, classifyError("album", err)
	}

	span.Status = sentry.SpanStatusOK
	if len(album.Tracks.Tracks) == 0 {
		return nil, errors.New("album is empty")
	}
	first := album.Tracks.Tracks[0]
	artist := firstArtist(first.Artists)
	if artist == "" {
		artist = firstArtist(album.Artists)
	}
	return &models.CatalogTrack{Title: first.Name, Artist: artist, CollectionName: album.Name}, nil
}

func (c *Client) getPlaylistFirst(ctx context.Context, playlistID spotifyclient.ID) (*models.CatalogTrack, error) {
	log.Tracef("Fetching playlist from Spotify API: %s", playlistID)

	span := sentry.StartSpan(ctx, "spotify.get_playlist_tracks")
	span.Description = "Get playlist tracks from Spotify API"
	span.SetTag("playlist_id", string(playlistID))
	defer span.Finish()

	if err := c.limiter.Wait(span.Context()); err != nil {
		return nil, err
	}

	playlist, err := c.api.GetPlaylist(span.Context(), playlistID)
	if err != nil {
		log.Errorf("Failed to fetch Spotify playlist %s: %v", playlistID, err)
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, classifyError("playlist", err)
	}

	if err := c.limiter.Wait(span.Context()); err != nil {
		return nil, err
	}

	// podcasts and episodes have no Track, so look past the first item
	items, err := c.api.GetPlaylistItems(span.Context(), playlistID, spotifyclient.Limit(10))
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	for _, item := range items.Items {
		if item.Track.Track == nil {
			continue
		}
		track := item.Track.Track
		return &models.CatalogTrack{
			Title:          track.Name,
			Artist:         firstArtist(track.Artists),
			CollectionName: playlist.Name,
		}, nil
	}

	log.Warnf("Spotify playlist %s has no playable tracks", playlistID)
	return nil, errors.New("playlist contains no playable tracks")
}

func (c *Client) getArtistTop(ctx context.Context, artistID spotifyclient.ID) (*models.CatalogTrack, error) {
	span := sentry.StartSpan(ctx, "spotify.get_artist_top_songs")
	span.Description = "Get artist top songs from Spotify API"
	span.SetTag("artist_id", string(artistID))
	defer span.Finish()

	if err := c.limiter.Wait(span.Context()); err != nil {
		return nil, err
	}

	tracks, err := c.api.GetArtistsTopTracks(span.Context(), artistID, "US")
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	if len(tracks) == 0 {
		return nil, models.ErrNotFound
	}
	artist := firstArtist(tracks[0].Artists)
	return &models.CatalogTrack{Title: tracks[0].Name, Artist: artist, CollectionName: artist}, nil
}

func firstArtist(artists []spotifyclient.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

// zmb3/spotify does not expose typed errors, the status lives in the message
func classifyError(kind string, err error) error {
	errStr := err.Error()
	if strings.Contains(errStr, "404") || strings.Contains(errStr, "Not Found") {
		return fmt.Errorf("%s not found", kind)
	}
	if strings.Contains(errStr, "403") || strings.Contains(errStr, "Forbidden") {
		return fmt.Errorf("%s is private or not accessible", kind)
	}
	return err
}

// ParseLink accepts open.spotify.com links, with or without a scheme, and
// spotify:<kind>:<id> URIs.
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "spotify:"); ok {
		kind, id, _ := strings.Cut(rest, ":")
		return newLink(kind, id)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	if host != "spotify.com" && !strings.HasSuffix(host, ".spotify.com") {
		return Link{}, ErrInvalidURL
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 {
		log.Warnf("Invalid Spotify URL format (too few parts): %s", raw)
		return Link{}, ErrInvalidURL
	}
	return newLink(parts[0], parts[1])
}

func newLink(kind, id string) (Link, error) {
	if !linkKinds[kind] || id == "" {
		return Link{}, ErrInvalidURL
	}
	return Link{Kind: kind, ID: spotifyclient.ID(id)}, nil
}
