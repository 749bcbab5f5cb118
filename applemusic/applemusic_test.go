package applemusic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Link
		wantErr bool
	}{
		{"album", "https://music.apple.com/us/album/the-dark-side-of-the-moon/1441165866", Link{"us", KindAlbum, "1441165866"}, false},
		{"playlist", "https://music.apple.com/us/playlist/90s-alternative/pl.u-8VoLGjY1l8", Link{"us", KindPlaylist, "pl.u-8VoLGjY1l8"}, false},
		{"song shared from album", "https://music.apple.com/us/album/album-name/123456789?i=1646389445", Link{"us", KindSong, "1646389445"}, false},
		{"song page", "https://music.apple.com/gb/song/bohemian-rhapsody/1440806041", Link{"gb", KindSong, "1440806041"}, false},
		{"itunes host", "https://itunes.apple.com/us/album/album-name/123456789", Link{"us", KindAlbum, "123456789"}, false},
		{"artist", "https://music.apple.com/us/artist/queen/3296287", Link{"us", KindArtist, "3296287"}, false},
		{"lookalike host", "https://music.apple.com.example.org/us/album/x/1", Link{}, true},
		{"other host", "https://example.com/album/id123", Link{}, true},
		{"no id", "https://music.apple.com/us/album/no-id-here", Link{}, true},
		{"playlist without pl prefix", "https://music.apple.com/us/playlist/mix/12345", Link{}, true},
		{"unknown kind", "https://music.apple.com/us/station/radio/12345", Link{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLink() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

const albumPage = `<html><head>
<script type="application/ld+json">{"@type":"MusicAlbum","name":"Night Drive","byArtist":{"@type":"MusicGroup","name":"The Cars"},
"tracks":[{"@type":"MusicRecording","name":"Drive"},{"@type":"MusicRecording","name":"Magic","byArtist":[{"name":"Ric Ocasek"}]}]}</script>
</head><body></body></html>`

const songPage = `<html><head>
<script type="application/ld+json">not json</script>
<script type="application/ld+json">{"@type":"MusicRecording","name":"Drive","byArtist":[{"name":"The Cars"},{"name":"Guest"}],"inAlbum":{"name":"Heartbeat City"}}</script>
</head></html>`

const ogPage = `<html><head><title>Drive - The Cars on Apple Music</title>
<meta property="og:title" content="Drive">
</head></html>`

func serve(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestFetchPage(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantCollection string
		wantTitles     []string
		wantArtist     string
	}{
		{"album", albumPage, "Night Drive", []string{"Drive", "Magic"}, "The Cars"},
		{"song", songPage, "", []string{"Drive"}, "The Cars"},
		{"open graph", ogPage, "", []string{"Drive"}, "The Cars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := NewClient().fetchPage(context.Background(), serve(t, tt.body))
			if err != nil {
				t.Fatalf("fetchPage() error = %v", err)
			}
			if page.Collection != tt.wantCollection {
				t.Errorf("Collection = %q, want %q", page.Collection, tt.wantCollection)
			}
			if len(page.Tracks) != len(tt.wantTitles) {
				t.Fatalf("got %d tracks, want %d", len(page.Tracks), len(tt.wantTitles))
			}
			for i, title := range tt.wantTitles {
				if page.Tracks[i].Title != title {
					t.Errorf("track %d = %q, want %q", i, page.Tracks[i].Title, title)
				}
			}
			if got := page.Tracks[0].Artist(); got != tt.wantArtist {
				t.Errorf("Artist() = %q, want %q", got, tt.wantArtist)
			}
		})
	}
}

func TestFetchPageWithoutMetadata(t *testing.T) {
	if _, err := NewClient().fetchPage(context.Background(), serve(t, "<html></html>")); err == nil {
		t.Error("expected an error for a page without metadata")
	}
}

func TestMatch(t *testing.T) {
	c := NewClient()
	if !c.Match("https://music.apple.com/us/album/x/1") {
		t.Error("music.apple.com should match")
	}
	if c.Match("https://open.spotify.com/track/abc") {
		t.Error("spotify should not match")
	}
}
