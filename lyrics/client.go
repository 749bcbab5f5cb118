package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

var ErrNoLyrics = errors.New("no lyrics found")

var timestamps = regexp.MustCompile(`\[\d+:\d+\.\d+\]\s?`)

type SearchResult struct {
	ID           int    `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	AlbumName    string `json:"albumName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// Lyrics is the text of the best lrclib match.
type Lyrics struct {
	Track  string
	Artist string
	Text   string
}

func (l *Lyrics) Title() string {
	if l.Artist == "" {
		return l.Track
	}
	return l.Track + " - " + l.Artist
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: "https://lrclib.net",
	}
}

// Search returns the lyrics of the first lrclib hit. Synced lyrics are
// stripped of their timestamps when no plain text exists.
func (c *Client) Search(ctx context.Context, query string) (*Lyrics, error) {
	span := sentry.StartSpan(ctx, "lyrics.search")
	span.Description = "Search lrclib"
	span.SetTag("query", query)
	defer span.Finish()

	u := fmt.Sprintf("%s/api/search?q=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(span.Context(), http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "lavabeat (https://github.com/lavabeat)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("lrclib API returned status %d", resp.StatusCode)
	}

	var results []SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"module": "lyrics"}).Tracef("lrclib returned %d results for %q", len(results), query)
	if len(results) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return nil, ErrNoLyrics
	}

	res := results[0]
	text := res.PlainLyrics
	if text == "" && res.SyncedLyrics != "" {
		text = strings.TrimSpace(timestamps.ReplaceAllString(res.SyncedLyrics, ""))
	}
	if text == "" {
		span.Status = sentry.SpanStatusNotFound
		return nil, ErrNoLyrics
	}

	span.Status = sentry.SpanStatusOK
	return &Lyrics{Track: res.TrackName, Artist: res.ArtistName, Text: text}, nil
}
