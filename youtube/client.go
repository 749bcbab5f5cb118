package youtube

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lavabeat/lavalink"
	"lavabeat/models"

	sentry "github.com/getsentry/sentry-go"
	"github.com/ppalone/ytsearch"
	log "github.com/sirupsen/logrus"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

const searchPrefix = "ytsearch:"

// Loader loads identifiers on the playback node.
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (*lavalink.LoadResult, error)
}

// Link holds the ids found in a YouTube link. Either may be empty.
type Link struct {
	VideoID    string
	PlaylistID string
}

// Video is a video search hit.
type Video struct {
	VideoID  string
	Title    string
	Duration time.Duration
}

func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// Provider is the primary audio provider. Free text is matched to a video
// first (Data API with a key, the public search page without one) and falls
// back to the node's ytsearch source.
type Provider struct {
	node     Loader
	apiKey   string
	searcher *ytsearch.Client
}

func NewProvider(node Loader, apiKey string) *Provider {
	return &Provider{node: node, apiKey: apiKey}
}

// WithPageSearch enables the keyless search used when no API key is set.
func (p *Provider) WithPageSearch() *Provider {
	p.searcher = ytsearch.NewClient(nil)
	return p
}

func (p *Provider) Name() models.Provider {
	return models.ProviderYouTube
}

func (p *Provider) Search(ctx context.Context, query string) (*models.LoadResult, error) {
	logger := log.WithFields(log.Fields{"module": "youtube", "function": "Search"})

	if p.apiKey != "" || p.searcher != nil {
		videos, err := p.Query(ctx, query)
		if err != nil {
			logger.Warnf("video search failed, using node search: %v", err)
		} else if len(videos) > 0 {
			result, err := p.Load(ctx, videos[0].URL())
			if err == nil && result.Playable() {
				result.Kind = models.ResultSearch
				return result, nil
			}
		}
	}

	return p.load(ctx, searchPrefix+query)
}

func (p *Provider) Load(ctx context.Context, uri string) (*models.LoadResult, error) {
	return p.load(ctx, uri)
}

func (p *Provider) load(ctx context.Context, identifier string) (*models.LoadResult, error) {
	result, err := p.node.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return result.Normalize(models.ProviderYouTube), nil
}

// Query finds music videos shorter than an hour.
func (p *Provider) Query(ctx context.Context, query string) ([]Video, error) {
	if p.apiKey == "" {
		return p.pageSearch(ctx, query)
	}
	return p.apiSearch(ctx, query)
}

func (p *Provider) pageSearch(ctx context.Context, query string) ([]Video, error) {
	if p.searcher == nil {
		return nil, nil
	}

	span := sentry.StartSpan(ctx, "youtube.page_search")
	span.Description = "Search YouTube results page"
	span.SetTag("query", query)
	defer span.Finish()

	result, err := p.searcher.Search(span.Context(), query)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("error searching YouTube: %w", err)
	}

	videos := make([]Video, 0, len(result.Results))
	for _, v := range result.Results {
		if v.VideoID == "" {
			continue
		}
		videos = append(videos, Video{VideoID: v.VideoID, Title: v.Title})
	}
	span.Status = sentry.SpanStatusOK
	return videos, nil
}

func (p *Provider) apiSearch(ctx context.Context, query string) ([]Video, error) {
	logger := log.WithFields(log.Fields{"module": "youtube", "function": "Query"})

	span := sentry.StartSpan(ctx, "youtube.search")
	span.Description = "Search YouTube API"
	span.SetTag("query", query)
	defer span.Finish()

	service, err := ytapi.NewService(span.Context(), option.WithAPIKey(p.apiKey))
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("error creating YouTube client: %w", err)
	}

	response, err := service.Search.List([]string{"snippet"}).
		Q(query).
		MaxResults(5).
		Type("video").
		VideoCategoryId("10").
		Context(span.Context()).
		Do()
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("error querying YouTube: %w", err)
	}

	ids := make([]string, 0, len(response.Items))
	titles := make(map[string]string)
	for _, item := range response.Items {
		if item.Id.Kind == "youtube#video" {
			ids = append(ids, item.Id.VideoId)
			titles[item.Id.VideoId] = html.UnescapeString(item.Snippet.Title)
		}
	}
	if len(ids) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return nil, nil
	}

	details, err := service.Videos.List([]string{"contentDetails"}).Id(ids...).Context(span.Context()).Do()
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("error getting video details: %w", err)
	}

	durations := make(map[string]time.Duration, len(details.Items))
	for _, item := range details.Items {
		durations[item.Id] = parseYoutubeDuration(item.ContentDetails.Duration)
	}

	// keep search order, the details call does not preserve it
	videos := make([]Video, 0, len(ids))
	for _, id := range ids {
		d, ok := durations[id]
		if !ok || d >= time.Hour {
			continue
		}
		videos = append(videos, Video{VideoID: id, Title: titles[id], Duration: d})
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("results_count", len(videos))
	logger.Tracef("found %d videos", len(videos))
	return videos, nil
}

// ParseLink reads watch, playlist, shorts and youtu.be links. Anything else
// yields an empty Link.
func ParseLink(raw string) Link {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}
	}

	q := u.Query()
	switch strings.ToLower(u.Host) {
	case "youtu.be":
		return Link{VideoID: strings.Trim(u.Path, "/"), PlaylistID: q.Get("list")}
	case "www.youtube.com", "youtube.com", "m.youtube.com", "music.youtube.com":
		if id, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
			return Link{VideoID: strings.Trim(id, "/")}
		}
		return Link{VideoID: q.Get("v"), PlaylistID: q.Get("list")}
	}
	return Link{}
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

func parseYoutubeDuration(iso string) time.Duration {
	m := isoDuration.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	var d time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		d += time.Duration(n) * unit
	}
	return d
}
