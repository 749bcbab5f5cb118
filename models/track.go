package models

import (
	"slices"
	"time"
)

// Provider tags the backend a track was resolved through.
type Provider string

const (
	ProviderYouTube    Provider = "youtube"
	ProviderSpotify    Provider = "spotify"
	ProviderAppleMusic Provider = "applemusic"
	ProviderSoundCloud Provider = "soundcloud"

	ProviderYouTubeMusic Provider = "ytmusic"
)

// Requester is the chat user who asked for a track.
type Requester struct {
	ID   string
	Name string
}

// Mention renders the requester the way discord expects in message content.
func (r Requester) Mention() string {
	if r.ID == "" {
		return r.Name
	}
	return "<@" + r.ID + ">"
}

// Track is a normalized, playable queue entry.
//
// Encoded is the node-specific handle and is never inspected outside the lavalink
// package. RetryCount and TriedProviders are only touched by the recovery protocol.
type Track struct {
	Title          string
	Author         string
	URI            string
	Duration       int // seconds
	ArtworkURL     string
	Requester      Requester
	Encoded        string
	OriginalQuery  string
	RetryCount     int
	TriedProviders []Provider
	Source         Provider
	AddedAt        time.Time
}

// Length returns the track duration as a time.Duration.
func (t *Track) Length() time.Duration {
	return time.Duration(t.Duration) * time.Second
}

// HasTried reports whether the provider was already attempted for this track.
func (t *Track) HasTried(p Provider) bool {
	return slices.Contains(t.TriedProviders, p)
}

// MarkTried records a provider attempt, keeping TriedProviders a set.
func (t *Track) MarkTried(p Provider) {
	if p == "" || t.HasTried(p) {
		return
	}
	t.TriedProviders = append(t.TriedProviders, p)
}

// Clone returns a copy that shares nothing mutable with t.
func (t *Track) Clone() *Track {
	c := *t
	c.TriedProviders = slices.Clone(t.TriedProviders)
	return &c
}
