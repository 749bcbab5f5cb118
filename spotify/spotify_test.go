package spotify

import (
	"testing"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		raw     string
		want    Link
		wantErr bool
	}{
		{"https://open.spotify.com/track/0VjIjW4GlUZAMYd2vXMi3b", Link{"track", "0VjIjW4GlUZAMYd2vXMi3b"}, false},
		{"https://open.spotify.com/track/0VjIjW4GlUZAMYd2vXMi3b?si=abc123", Link{"track", "0VjIjW4GlUZAMYd2vXMi3b"}, false},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", Link{"playlist", "37i9dQZF1DXcBWIGoYBM5M"}, false},
		{"https://open.spotify.com/intl-de/album/4yP0hdKOZPNshxUOjY0cZj", Link{"album", "4yP0hdKOZPNshxUOjY0cZj"}, false},
		{"open.spotify.com/artist/4NHQPlJsbc7kbJTwq0B3lD", Link{"artist", "4NHQPlJsbc7kbJTwq0B3lD"}, false},
		{"spotify:track:XYZ", Link{"track", "XYZ"}, false},
		{"spotify:episode:XYZ", Link{}, true},
		{"https://notspotify.com/track/abc", Link{}, true},
		{"https://example.com/track/abc", Link{}, true},
		{"https://open.spotify.com/track/", Link{}, true},
		{"https://open.spotify.com/wrong/abc", Link{}, true},
		{"never gonna give you up", Link{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLink(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLink() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	c := &Client{}
	if !c.Match("https://open.spotify.com/track/abc") {
		t.Error("track link should match")
	}
	if c.Match("https://www.youtube.com/watch?v=abc") {
		t.Error("youtube link should not match")
	}
}
