package applemusic

// TrackInfo is the song metadata scraped from a catalog page.
type TrackInfo struct {
	Title   string
	Artists []string
	Album   string
}

func (t TrackInfo) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// pageInfo is the structured data found on a catalog page. Single-song pages
// have exactly one track and no collection name.
type pageInfo struct {
	Collection string
	Tracks     []TrackInfo
}
