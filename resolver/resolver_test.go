package resolver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"lavabeat/models"
)

type call struct {
	op    string
	query string
}

type fakeProvider struct {
	name    models.Provider
	results map[string]*models.LoadResult
	errs    map[string]error
	calls   []call
}

func (f *fakeProvider) Name() models.Provider { return f.name }

func (f *fakeProvider) lookup(op, query string) (*models.LoadResult, error) {
	f.calls = append(f.calls, call{op, query})
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	if res, ok := f.results[query]; ok {
		return res, nil
	}
	return &models.LoadResult{Kind: models.ResultEmpty}, nil
}

func (f *fakeProvider) Search(_ context.Context, query string) (*models.LoadResult, error) {
	return f.lookup("search", query)
}

func (f *fakeProvider) Load(_ context.Context, uri string) (*models.LoadResult, error) {
	return f.lookup("load", uri)
}

type fakeCatalog struct {
	name    models.Provider
	prefix  string
	links   map[string]*models.CatalogTrack
	search  map[string]*models.CatalogTrack
	queries []string
}

func (f *fakeCatalog) Name() models.Provider { return f.name }

func (f *fakeCatalog) Match(raw string) bool { return strings.Contains(raw, f.prefix) }

func (f *fakeCatalog) Lookup(_ context.Context, raw string) (*models.CatalogTrack, error) {
	if t, ok := f.links[raw]; ok {
		return t, nil
	}
	return nil, errors.New("lookup failed")
}

func (f *fakeCatalog) Search(_ context.Context, query string) (*models.CatalogTrack, error) {
	f.queries = append(f.queries, query)
	if t, ok := f.search[query]; ok {
		return t, nil
	}
	return nil, models.ErrNotFound
}

func searchResult(provider models.Provider, titles ...string) *models.LoadResult {
	res := &models.LoadResult{Kind: models.ResultSearch}
	for _, title := range titles {
		res.Tracks = append(res.Tracks, &models.Track{Title: title, Encoded: "enc-" + title, Source: provider})
	}
	return res
}

func TestResolveEmptyQuery(t *testing.T) {
	r := New(&fakeProvider{name: models.ProviderYouTube}, nil, nil)
	if _, err := r.Resolve(context.Background(), "   "); !errors.Is(err, models.ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestResolvePrimarySearchTakesFirstHit(t *testing.T) {
	primary := &fakeProvider{
		name:    models.ProviderYouTube,
		results: map[string]*models.LoadResult{"daft punk": searchResult(models.ProviderYouTube, "One More Time", "Aerodynamic")},
	}
	res, err := New(primary, nil, nil).Resolve(context.Background(), "daft punk")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tracks) != 1 || res.Tracks[0].Title != "One More Time" {
		t.Fatalf("tracks = %+v", res.Tracks)
	}
	if res.Tracks[0].OriginalQuery != "daft punk" {
		t.Errorf("OriginalQuery = %q", res.Tracks[0].OriginalQuery)
	}
	if !res.Tracks[0].HasTried(models.ProviderYouTube) {
		t.Error("winning provider not recorded")
	}
}

func TestResolvePlaylistKeepsAllTracks(t *testing.T) {
	uri := "https://www.youtube.com/playlist?list=PL1"
	playlist := searchResult(models.ProviderYouTube, "a", "b", "c")
	playlist.Kind = models.ResultPlaylist
	playlist.CollectionName = "Mix"
	primary := &fakeProvider{name: models.ProviderYouTube, results: map[string]*models.LoadResult{uri: playlist}}

	res, err := New(primary, nil, nil).Resolve(context.Background(), uri)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tracks) != 3 || res.CollectionName != "Mix" {
		t.Errorf("got %d tracks, collection %q", len(res.Tracks), res.CollectionName)
	}
	if primary.calls[0] != (call{"load", uri}) {
		t.Errorf("first call = %+v, want a direct load", primary.calls[0])
	}
}

func TestResolveCatalogLinkRewritesQuery(t *testing.T) {
	spotify := &fakeCatalog{
		name:   models.ProviderSpotify,
		prefix: "spotify.com",
		links: map[string]*models.CatalogTrack{
			"https://open.spotify.com/album/A": {Title: "Song", Artist: "Artist", CollectionName: "Album"},
		},
	}
	primary := &fakeProvider{
		name:    models.ProviderYouTube,
		results: map[string]*models.LoadResult{"Song Artist": searchResult(models.ProviderYouTube, "Song (Official)")},
	}

	res, err := New(primary, nil, nil, spotify).Resolve(context.Background(), "https://open.spotify.com/album/A")
	if err != nil {
		t.Fatal(err)
	}
	if res.CollectionName != "Album" || res.Query != "Song Artist" {
		t.Errorf("collection %q query %q", res.CollectionName, res.Query)
	}
	if primary.calls[0] != (call{"search", "Song Artist"}) {
		t.Errorf("primary call = %+v, want a search", primary.calls[0])
	}
}

func TestResolveCatalogLookupFailureFallsBackToURI(t *testing.T) {
	spotify := &fakeCatalog{name: models.ProviderSpotify, prefix: "spotify.com"}
	primary := &fakeProvider{name: models.ProviderYouTube}

	_, _ = New(primary, nil, nil, spotify).Resolve(context.Background(), "https://open.spotify.com/track/broken")
	if primary.calls[0] != (call{"load", "https://open.spotify.com/track/broken"}) {
		t.Errorf("primary call = %+v", primary.calls[0])
	}
}

func TestResolveFallsThroughToTertiary(t *testing.T) {
	// primary search is empty, the catalog has a hit and only the tertiary
	// provider finds audio
	catalog := &fakeCatalog{
		name:   models.ProviderSpotify,
		prefix: "spotify.com",
		links:  map[string]*models.CatalogTrack{"spotify.com/track/XYZ": {Title: "Catalog Title", Artist: "Catalog Artist"}},
		search: map[string]*models.CatalogTrack{"Catalog Title Catalog Artist": {Title: "Catalog Title", Artist: "Catalog Artist"}},
	}
	primary := &fakeProvider{name: models.ProviderYouTube}
	tertiary := &fakeProvider{
		name:    models.ProviderSoundCloud,
		results: map[string]*models.LoadResult{"Catalog Title Catalog Artist": searchResult(models.ProviderSoundCloud, "SC Track")},
	}

	res, err := New(primary, tertiary, catalog, catalog).Resolve(context.Background(), "spotify.com/track/XYZ")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Tracks) != 1 || res.Tracks[0].Title != "SC Track" {
		t.Fatalf("tracks = %+v", res.Tracks)
	}
	if got := res.Tracks[0].OriginalQuery; got != "Catalog Title Catalog Artist" {
		t.Errorf("OriginalQuery = %q", got)
	}
	if res.Provider != models.ProviderSoundCloud {
		t.Errorf("Provider = %q", res.Provider)
	}
	// primary search with the link text, then again after the catalog search
	if len(primary.calls) != 2 {
		t.Errorf("primary called %d times, want 2", len(primary.calls))
	}
}

func TestResolveCatalogSearchRescuesPrimary(t *testing.T) {
	catalog := &fakeCatalog{
		name:   models.ProviderSpotify,
		search: map[string]*models.CatalogTrack{"nevr gona": {Title: "Never Gonna Give You Up", Artist: "Rick Astley"}},
	}
	primary := &fakeProvider{
		name: models.ProviderYouTube,
		results: map[string]*models.LoadResult{
			"Never Gonna Give You Up Rick Astley": searchResult(models.ProviderYouTube, "Rick Astley - Never Gonna Give You Up"),
		},
	}
	tertiary := &fakeProvider{name: models.ProviderSoundCloud}

	res, err := New(primary, tertiary, catalog).Resolve(context.Background(), "nevr gona")
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != models.ProviderYouTube || res.Query != "Never Gonna Give You Up Rick Astley" {
		t.Errorf("provider %q query %q", res.Provider, res.Query)
	}
	if len(tertiary.calls) != 0 {
		t.Error("tertiary provider should not be tried after a hit")
	}
}

func TestResolveAllStagesFail(t *testing.T) {
	tests := []struct {
		name      string
		tertiary  *fakeProvider
		wantIs    error
		wantMatch string
	}{
		{
			name:     "empty everywhere",
			tertiary: &fakeProvider{name: models.ProviderSoundCloud},
			wantIs:   models.ErrNotFound,
		},
		{
			name: "last stage errors",
			tertiary: &fakeProvider{
				name:    models.ProviderSoundCloud,
				results: map[string]*models.LoadResult{"x": {Kind: models.ResultError, Err: &models.ProviderError{Provider: models.ProviderSoundCloud, Message: "rate limited"}}},
			},
			wantIs:    models.ErrProviderError,
			wantMatch: "rate limited",
		},
		{
			name:      "last stage transport failure",
			tertiary:  &fakeProvider{name: models.ProviderSoundCloud, errs: map[string]error{"x": fmt.Errorf("dial tcp: refused")}},
			wantIs:    models.ErrProviderError,
			wantMatch: "refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &fakeProvider{name: models.ProviderYouTube}
			_, err := New(primary, tt.tertiary, nil).Resolve(context.Background(), "x")
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v, want %v", err, tt.wantIs)
			}
			if tt.wantMatch != "" && !strings.Contains(err.Error(), tt.wantMatch) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantMatch)
			}
		})
	}
}

func TestResolveStopsWithoutNode(t *testing.T) {
	primary := &fakeProvider{name: models.ProviderYouTube, errs: map[string]error{"x": models.ErrNoBackendNode}}
	tertiary := &fakeProvider{name: models.ProviderSoundCloud}
	if _, err := New(primary, tertiary, nil).Resolve(context.Background(), "x"); !errors.Is(err, models.ErrNoBackendNode) {
		t.Errorf("err = %v, want ErrNoBackendNode", err)
	}
	if len(tertiary.calls) != 0 {
		t.Error("no fallback should run without a node")
	}
}

func TestFallback(t *testing.T) {
	catalog := &fakeCatalog{
		name:   models.ProviderSpotify,
		search: map[string]*models.CatalogTrack{"song": {Title: "Song", Artist: "Band"}},
	}
	tertiary := &fakeProvider{
		name:    models.ProviderSoundCloud,
		results: map[string]*models.LoadResult{"Song Band": searchResult(models.ProviderSoundCloud, "Song by Band")},
	}
	primary := &fakeProvider{name: models.ProviderYouTube}
	r := New(primary, tertiary, catalog)

	res, err := r.Fallback(context.Background(), "song")
	if err != nil {
		t.Fatal(err)
	}
	if res.Tracks[0].OriginalQuery != "Song Band" || len(primary.calls) != 0 {
		t.Errorf("query %q, primary calls %d", res.Tracks[0].OriginalQuery, len(primary.calls))
	}

	if _, err := r.Fallback(context.Background(), "unknown"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if !slices.Equal(catalog.queries, []string{"song", "unknown"}) {
		t.Errorf("catalog queries = %v", catalog.queries)
	}
}
