// Package soundcloud is the last-resort audio provider, searched through the
// playback node's scsearch source.
package soundcloud

import (
	"context"
	"strings"

	"lavabeat/lavalink"
	"lavabeat/models"

	log "github.com/sirupsen/logrus"
)

const searchPrefix = "scsearch:"

type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (*lavalink.LoadResult, error)
}

type Provider struct {
	node Loader
}

func NewProvider(node Loader) *Provider {
	return &Provider{node: node}
}

func (p *Provider) Name() models.Provider {
	return models.ProviderSoundCloud
}

func (p *Provider) Search(ctx context.Context, query string) (*models.LoadResult, error) {
	log.WithFields(log.Fields{"module": "soundcloud", "function": "Search"}).Tracef("searching for %q", query)
	return p.load(ctx, searchPrefix+query)
}

// Load only accepts soundcloud links; anything else is searched as text.
func (p *Provider) Load(ctx context.Context, uri string) (*models.LoadResult, error) {
	if !IsSoundCloudURL(uri) {
		return p.Search(ctx, uri)
	}
	return p.load(ctx, uri)
}

func (p *Provider) load(ctx context.Context, identifier string) (*models.LoadResult, error) {
	result, err := p.node.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return result.Normalize(models.ProviderSoundCloud), nil
}

func IsSoundCloudURL(raw string) bool {
	raw = strings.ToLower(raw)
	return strings.HasPrefix(raw, "https://soundcloud.com/") ||
		strings.HasPrefix(raw, "https://on.soundcloud.com/") ||
		strings.HasPrefix(raw, "https://m.soundcloud.com/")
}
