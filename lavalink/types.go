// Package lavalink is a small Lavalink v4 client: track loading over REST,
// player updates over REST and lifecycle events over the node websocket.
package lavalink

import (
	"encoding/json"
	"fmt"

	"lavabeat/models"
)

// NodeConfig holds configuration for a Lavalink node
type NodeConfig struct {
	Name     string
	Host     string
	Port     int
	Password string
	Secure   bool
}

func (c NodeConfig) restURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/v4", scheme, c.Host, c.Port)
}

func (c NodeConfig) websocketURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, c.Host, c.Port)
}

// TrackInfo contains information about a track
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
	SourceName string `json:"sourceName"`
}

// Track is a playable track; Encoded is the opaque handle sent back on play.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

type LoadType string

const (
	LoadTrack    LoadType = "track"
	LoadPlaylist LoadType = "playlist"
	LoadSearch   LoadType = "search"
	LoadEmpty    LoadType = "empty"
	LoadError    LoadType = "error"
)

// Exception is the error payload lavalink returns for failed loads and playback.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// LoadResult is the normalized response of /v4/loadtracks.
type LoadResult struct {
	LoadType     LoadType
	Tracks       []Track
	PlaylistName string
	Exception    *Exception
}

// Empty reports whether the result carries nothing playable.
func (r *LoadResult) Empty() bool {
	return r == nil || r.LoadType == LoadEmpty || r.LoadType == LoadError || len(r.Tracks) == 0
}

type playlistData struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

func (r *LoadResult) UnmarshalJSON(b []byte) error {
	var raw struct {
		LoadType LoadType        `json:"loadType"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*r = LoadResult{LoadType: raw.LoadType}
	switch raw.LoadType {
	case LoadTrack:
		var t Track
		if err := json.Unmarshal(raw.Data, &t); err != nil {
			return fmt.Errorf("decoding track: %w", err)
		}
		r.Tracks = []Track{t}
	case LoadPlaylist:
		var p playlistData
		if err := json.Unmarshal(raw.Data, &p); err != nil {
			return fmt.Errorf("decoding playlist: %w", err)
		}
		r.Tracks = p.Tracks
		r.PlaylistName = p.Info.Name
	case LoadSearch:
		if err := json.Unmarshal(raw.Data, &r.Tracks); err != nil {
			return fmt.Errorf("decoding search results: %w", err)
		}
	case LoadError:
		var e Exception
		if err := json.Unmarshal(raw.Data, &e); err != nil {
			return fmt.Errorf("decoding exception: %w", err)
		}
		r.Exception = &e
	case LoadEmpty:
	default:
		return fmt.Errorf("unknown load type %q", raw.LoadType)
	}
	return nil
}

// websocket payloads

type message struct {
	Op        string          `json:"op"`
	Type      string          `json:"type"`
	GuildID   string          `json:"guildId"`
	SessionID string          `json:"sessionId"`
	Resumed   bool            `json:"resumed"`
	Track     *Track          `json:"track"`
	Reason    string          `json:"reason"`
	Exception *Exception      `json:"exception"`
	Threshold int64           `json:"thresholdMs"`
	Code      int             `json:"code"`
	State     json.RawMessage `json:"state"`
	Players   int             `json:"players"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
}

// player update payloads (PATCH /sessions/{sessionId}/players/{guildId})

type voiceUpdate struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type trackUpdate struct {
	Encoded *string `json:"encoded"`
}

type filters struct {
	Volume float64 `json:"volume"`
}

type playerUpdate struct {
	Track    *trackUpdate `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Filters  *filters     `json:"filters,omitempty"`
	Voice    *voiceUpdate `json:"voice,omitempty"`
}

// Normalize converts the node response into descriptors tagged with source.
func (r *LoadResult) Normalize(source models.Provider) *models.LoadResult {
	out := &models.LoadResult{CollectionName: r.PlaylistName}
	if r.LoadType == LoadError {
		out.Kind = models.ResultError
		msg := "unknown error"
		if r.Exception != nil {
			msg = r.Exception.Message
		}
		out.Err = &models.ProviderError{Provider: source, Message: msg}
		return out
	}
	if r.Empty() {
		out.Kind = models.ResultEmpty
		return out
	}

	switch r.LoadType {
	case LoadTrack:
		out.Kind = models.ResultTrack
	case LoadPlaylist:
		out.Kind = models.ResultPlaylist
	default:
		out.Kind = models.ResultSearch
	}
	for _, t := range r.Tracks {
		out.Tracks = append(out.Tracks, t.toModel(source))
	}
	return out
}

func (t Track) toModel(source models.Provider) *models.Track {
	track := &models.Track{
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		URI:        t.Info.URI,
		ArtworkURL: t.Info.ArtworkURL,
		Encoded:    t.Encoded,
		Source:     source,
	}
	if !t.Info.IsStream {
		track.Duration = int(t.Info.Length / 1000)
	}
	track.MarkTried(source)
	return track
}
