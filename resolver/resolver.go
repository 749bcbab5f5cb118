// Package resolver turns a user query or link into playable tracks, walking a
// fixed chain of providers until one of them returns something.
package resolver

import (
	"context"
	"errors"
	"strings"

	"lavabeat/models"

	log "github.com/sirupsen/logrus"
)

// AudioProvider returns tracks the playback node can play.
type AudioProvider interface {
	Name() models.Provider
	Search(ctx context.Context, query string) (*models.LoadResult, error)
	Load(ctx context.Context, uri string) (*models.LoadResult, error)
}

// CatalogLookup resolves a catalog service link to song metadata.
type CatalogLookup interface {
	Name() models.Provider
	Match(raw string) bool
	Lookup(ctx context.Context, raw string) (*models.CatalogTrack, error)
}

// CatalogSearcher finds song metadata for free text.
type CatalogSearcher interface {
	Name() models.Provider
	Search(ctx context.Context, query string) (*models.CatalogTrack, error)
}

// Result is a successful resolution.
type Result struct {
	Tracks         []*models.Track
	CollectionName string
	// Query is the text the tracks were found with, stamped on every track.
	Query    string
	Provider models.Provider
}

type Resolver struct {
	primary  AudioProvider
	tertiary AudioProvider
	catalogs []CatalogLookup
	searcher CatalogSearcher
}

// New builds a resolver. tertiary and searcher may be nil, which skips the
// matching fallback stage.
func New(primary, tertiary AudioProvider, searcher CatalogSearcher, catalogs ...CatalogLookup) *Resolver {
	return &Resolver{
		primary:  primary,
		tertiary: tertiary,
		catalogs: catalogs,
		searcher: searcher,
	}
}

type request struct {
	text           string
	uri            bool
	collectionName string
}

// Resolve runs the full chain: catalog link lookup, primary provider, then
// catalog search plus primary search, then the tertiary provider.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.ErrEmptyQuery
	}

	logger := log.WithFields(log.Fields{
		"module": "resolver",
		"query":  raw,
	})

	req := r.classify(ctx, raw)

	var lastErr *models.ProviderError
	attempt := func(p AudioProvider, text string, uri bool) (*Result, error) {
		var (
			res *models.LoadResult
			err error
		)
		if uri {
			res, err = p.Load(ctx, text)
		} else {
			res, err = p.Search(ctx, text)
		}
		if err != nil {
			if errors.Is(err, models.ErrNoBackendNode) {
				return nil, err
			}
			logger.Warnf("%s failed: %v", p.Name(), err)
			lastErr = &models.ProviderError{Provider: p.Name(), Message: err.Error()}
			return nil, nil
		}
		if res.Kind == models.ResultError {
			lastErr = res.Err
			return nil, nil
		}
		if !res.Playable() {
			lastErr = nil
			return nil, nil
		}
		return normalize(res, text, req.collectionName, p.Name()), nil
	}

	// primary
	if res, err := attempt(r.primary, req.text, req.uri); res != nil || err != nil {
		return res, err
	}

	// (a) catalog search, then primary search with the catalog's metadata
	if r.searcher != nil {
		if track, err := r.searcher.Search(ctx, req.text); err != nil {
			logger.Debugf("catalog search failed: %v", err)
		} else if track != nil && track.Title != "" {
			if res, err := attempt(r.primary, track.Query(), false); res != nil || err != nil {
				return res, err
			}
		}
	}

	// (b) tertiary search with the request text
	if r.tertiary != nil {
		if res, err := attempt(r.tertiary, req.text, false); res != nil || err != nil {
			return res, err
		}
	}

	logger.Info("no provider returned a track")
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, models.ErrNotFound
}

// Fallback searches the catalog for query and resolves the catalog's
// "<title> <artist>" on the tertiary provider only.
func (r *Resolver) Fallback(ctx context.Context, query string) (*Result, error) {
	if r.searcher == nil || r.tertiary == nil {
		return nil, models.ErrNotFound
	}

	track, err := r.searcher.Search(ctx, query)
	if err != nil || track == nil || track.Title == "" {
		return nil, models.ErrNotFound
	}

	text := track.Query()
	res, err := r.tertiary.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	if res.Kind == models.ResultError {
		return nil, res.Err
	}
	if !res.Playable() {
		return nil, models.ErrNotFound
	}
	return normalize(res, text, "", r.tertiary.Name()), nil
}

func (r *Resolver) classify(ctx context.Context, raw string) request {
	uri := hasScheme(raw)

	for _, catalog := range r.catalogs {
		if !catalog.Match(raw) {
			continue
		}
		track, err := catalog.Lookup(ctx, raw)
		if err != nil || track == nil || track.Title == "" {
			log.WithFields(log.Fields{
				"module":  "resolver",
				"catalog": catalog.Name(),
			}).Warnf("catalog lookup failed for %s: %v", raw, err)
			return request{text: raw, uri: uri}
		}
		return request{text: track.Query(), collectionName: track.CollectionName}
	}

	return request{text: raw, uri: uri}
}

func hasScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func normalize(res *models.LoadResult, query, collectionName string, provider models.Provider) *Result {
	selected := res.Selected()
	tracks := make([]*models.Track, 0, len(selected))
	for _, t := range selected {
		track := t.Clone()
		track.OriginalQuery = query
		if track.Source == "" {
			track.Source = provider
		}
		track.MarkTried(provider)
		tracks = append(tracks, track)
	}

	if collectionName == "" && res.Kind == models.ResultPlaylist {
		collectionName = res.CollectionName
	}
	return &Result{
		Tracks:         tracks,
		CollectionName: collectionName,
		Query:          query,
		Provider:       provider,
	}
}
