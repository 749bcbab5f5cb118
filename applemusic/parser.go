package applemusic

import (
	"errors"
	"net/url"
	"strings"
)

// Kind is the catalog entity an Apple Music link points at.
type Kind string

const (
	KindSong     Kind = "song"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindArtist   Kind = "artist"
)

var ErrNotAppleMusic = errors.New("not an Apple Music link")

// Link is a parsed catalog link: /<country>/<kind>/<slug>/<id>. A song shared
// from an album page keeps the album path and carries the song in ?i=.
type Link struct {
	Country string
	Kind    Kind
	ID      string
}

// ParseLink extracts the entity a catalog link refers to.
func ParseLink(raw string) (Link, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Link{}, err
	}
	if !IsAppleMusicHost(u.Host) {
		return Link{}, ErrNotAppleMusic
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return Link{}, errors.New("incomplete Apple Music link")
	}
	link := Link{Country: segments[0], Kind: Kind(segments[1]), ID: segments[len(segments)-1]}

	if song := u.Query().Get("i"); song != "" && link.Kind == KindAlbum {
		link.Kind = KindSong
		link.ID = song
	}

	switch link.Kind {
	case KindPlaylist:
		if strings.HasPrefix(link.ID, "pl.") {
			return link, nil
		}
	case KindSong, KindAlbum, KindArtist:
		if isNumeric(link.ID) {
			return link, nil
		}
	}
	return Link{}, errors.New("could not parse Apple Music link")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsAppleMusicHost accepts music.apple.com and the legacy itunes.apple.com.
func IsAppleMusicHost(host string) bool {
	switch strings.ToLower(host) {
	case "music.apple.com", "itunes.apple.com", "geo.music.apple.com":
		return true
	}
	return false
}
