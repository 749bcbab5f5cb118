package youtube

import (
	"context"

	"lavabeat/models"

	sentry "github.com/getsentry/sentry-go"
	"github.com/raitonoberu/ytmusic"
)

// MusicCatalog searches YouTube Music for song metadata. It needs no
// credentials and stands in for Spotify when Spotify is not configured.
type MusicCatalog struct{}

func NewMusicCatalog() *MusicCatalog {
	return &MusicCatalog{}
}

func (m *MusicCatalog) Name() models.Provider {
	return models.ProviderYouTubeMusic
}

func (m *MusicCatalog) Search(ctx context.Context, query string) (*models.CatalogTrack, error) {
	span := sentry.StartSpan(ctx, "ytmusic.search")
	span.Description = "Search YouTube Music"
	span.SetTag("query", query)
	defer span.Finish()

	type outcome struct {
		track *models.CatalogTrack
		err   error
	}
	done := make(chan outcome, 1)

	// the ytmusic client takes no context
	go func() {
		result, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			done <- outcome{err: err}
			return
		}
		for _, t := range result.Tracks {
			if t.Title == "" {
				continue
			}
			track := &models.CatalogTrack{Title: t.Title}
			if len(t.Artists) > 0 {
				track.Artist = t.Artists[0].Name
			}
			done <- outcome{track: track}
			return
		}
		done <- outcome{err: models.ErrNotFound}
	}()

	select {
	case <-ctx.Done():
		span.Status = sentry.SpanStatusDeadlineExceeded
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			span.Status = sentry.SpanStatusNotFound
			return nil, out.err
		}
		span.Status = sentry.SpanStatusOK
		return out.track, nil
	}
}
