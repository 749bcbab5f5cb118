package applemusic

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"lavabeat/models"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Client reads song metadata from public Apple Music pages. There is no
// search: Apple Music links are resolved, then searched on an audio provider.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: 10 * time.Second}}
}

func (s *Client) Name() models.Provider {
	return models.ProviderAppleMusic
}

func (s *Client) Match(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && IsAppleMusicHost(u.Host)
}

// Lookup returns the linked song, or the first song of a linked album or
// playlist together with the collection name.
func (s *Client) Lookup(ctx context.Context, raw string) (*models.CatalogTrack, error) {
	link, err := ParseLink(raw)
	if err != nil {
		return nil, err
	}

	span := sentry.StartSpan(ctx, "applemusic.lookup")
	span.Description = "Get metadata from Apple Music via web scraping"
	span.SetTag("country", link.Country)
	span.SetTag("kind", string(link.Kind))
	span.SetTag("id", link.ID)
	defer span.Finish()

	if link.Kind == KindArtist {
		span.Status = sentry.SpanStatusUnimplemented
		return nil, errors.New("artist links are not supported")
	}

	page, err := s.fetchPage(span.Context(), raw)
	if err != nil {
		log.Errorf("Failed to fetch Apple Music page: %v", err)
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	first := page.Tracks[0]
	result := &models.CatalogTrack{Title: first.Title, Artist: first.Artist()}
	if link.Kind != KindSong {
		result.CollectionName = page.Collection
	}

	log.Debugf("Successfully fetched Apple Music track: '%s' by %s", result.Title, result.Artist)
	span.Status = sentry.SpanStatusOK
	span.SetData("track_title", result.Title)
	span.SetData("collection", result.CollectionName)
	return result, nil
}
