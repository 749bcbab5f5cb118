package models

// ResultKind is the shape of a provider response.
type ResultKind string

const (
	ResultEmpty    ResultKind = "empty"
	ResultTrack    ResultKind = "track"
	ResultSearch   ResultKind = "search"
	ResultPlaylist ResultKind = "playlist"
	ResultError    ResultKind = "error"
)

// LoadResult is a provider response normalized to Track descriptors.
type LoadResult struct {
	Kind           ResultKind
	Tracks         []*Track
	CollectionName string
	Err            *ProviderError
}

// Playable reports whether the result yields at least one track.
func (r *LoadResult) Playable() bool {
	return r != nil && r.Kind != ResultEmpty && r.Kind != ResultError && len(r.Tracks) > 0
}

// Selected returns the tracks a request should enqueue: only the first hit of
// a search, every member of a playlist.
func (r *LoadResult) Selected() []*Track {
	if !r.Playable() {
		return nil
	}
	if r.Kind == ResultSearch {
		return r.Tracks[:1]
	}
	return r.Tracks
}

// CatalogTrack is song metadata from a catalog service, used to build a search
// query for an audio provider.
type CatalogTrack struct {
	Title          string
	Artist         string
	CollectionName string
}

// Query renders the metadata as "<title> <artist>".
func (c CatalogTrack) Query() string {
	if c.Artist == "" {
		return c.Title
	}
	return c.Title + " " + c.Artist
}
