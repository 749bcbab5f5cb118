package applemusic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ldEntity is the subset of schema.org JSON-LD that catalog pages embed.
type ldEntity struct {
	Type     string          `json:"@type"`
	Name     string          `json:"name"`
	ByArtist json.RawMessage `json:"byArtist"`
	InAlbum  *ldEntity       `json:"inAlbum"`
	Track    []ldEntity      `json:"track"`
	Tracks   []ldEntity      `json:"tracks"`
}

func (e *ldEntity) artists() []string {
	if len(e.ByArtist) == 0 {
		return nil
	}

	var one struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(e.ByArtist, &one); err == nil && one.Name != "" {
		return []string{one.Name}
	}

	var many []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(e.ByArtist, &many); err != nil {
		return nil
	}
	artists := make([]string, 0, len(many))
	for _, a := range many {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	return artists
}

func (e *ldEntity) trackInfo(fallbackArtists []string, album string) TrackInfo {
	info := TrackInfo{Title: e.Name, Artists: e.artists(), Album: album}
	if len(info.Artists) == 0 {
		info.Artists = fallbackArtists
	}
	if e.InAlbum != nil && e.InAlbum.Name != "" {
		info.Album = e.InAlbum.Name
	}
	return info
}

func (s *Client) fetchPage(ctx context.Context, pageURL string) (*pageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	// Set realistic User-Agent to avoid blocks
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	log.Tracef("Fetching Apple Music page: %s", pageURL)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page, err := extractFromJSONLD(doc)
	if err == nil {
		return page, nil
	}
	log.Debugf("JSON-LD extraction failed (%v), trying Open Graph fallback", err)

	info, err := extractFromOpenGraph(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract metadata: %w", err)
	}
	return &pageInfo{Tracks: []TrackInfo{*info}}, nil
}

// extractFromJSONLD reads the first recording, album or playlist block.
func extractFromJSONLD(doc *goquery.Document) (*pageInfo, error) {
	var page *pageInfo

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		var entity ldEntity
		if err := json.Unmarshal([]byte(sel.Text()), &entity); err != nil {
			log.Tracef("Failed to parse JSON-LD block %d: %v", i, err)
			return true
		}

		switch entity.Type {
		case "MusicRecording":
			if entity.Name == "" {
				return true
			}
			page = &pageInfo{Tracks: []TrackInfo{entity.trackInfo(nil, "")}}
		case "MusicAlbum", "MusicPlaylist":
			members := entity.Track
			if len(members) == 0 {
				members = entity.Tracks
			}
			album := ""
			if entity.Type == "MusicAlbum" {
				album = entity.Name
			}
			page = &pageInfo{Collection: entity.Name}
			for _, m := range members {
				if m.Name != "" {
					page.Tracks = append(page.Tracks, m.trackInfo(entity.artists(), album))
				}
			}
		default:
			return true
		}
		return false
	})

	if page == nil || len(page.Tracks) == 0 {
		return nil, errors.New("no JSON-LD music data found")
	}
	if len(page.Tracks[0].Artists) == 0 {
		return nil, errors.New("no artist data found in JSON-LD")
	}
	return page, nil
}

// extractFromOpenGraph extracts metadata from Open Graph meta tags
func extractFromOpenGraph(doc *goquery.Document) (*TrackInfo, error) {
	title, _ := doc.Find("meta[property='og:title']").Attr("content")
	if title == "" {
		title, _ = doc.Find("meta[name='twitter:title']").Attr("content")
	}
	if title == "" {
		return nil, errors.New("no title found in Open Graph tags")
	}

	var artist string
	for _, sel := range []string{
		"meta[property='music:musician_description']",
		"meta[name='apple:description']",
	} {
		if artist, _ = doc.Find(sel).Attr("content"); artist != "" {
			break
		}
	}

	// page titles look like "Track Name - Artist Name on Apple Music"
	if artist == "" {
		pageTitle := doc.Find("title").First().Text()
		if _, rest, ok := strings.Cut(pageTitle, " - "); ok {
			artist = strings.TrimSpace(strings.TrimSuffix(rest, " on Apple Music"))
		}
	}
	if artist == "" {
		return nil, errors.New("no artist found in Open Graph tags or page title")
	}

	album, _ := doc.Find("meta[property='music:album']").Attr("content")
	return &TrackInfo{
		Title:   strings.TrimSuffix(title, " on Apple Music"),
		Artists: []string{artist},
		Album:   album,
	}, nil
}
