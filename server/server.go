// Package server exposes the HTTP side of the bot: a health check, a read-only
// queue view, the legal pages discord links to and, when configured, the
// interactions endpoint.
package server

import (
	"net/http"
	"time"

	"lavabeat/models"
	"lavabeat/queue"
	"lavabeat/sentry"

	"github.com/gin-gonic/gin"
)

// NodeStatus reports whether the playback node is usable.
type NodeStatus interface {
	Available() bool
}

// trackView leaves out node handles and who requested the track; the route is
// unauthenticated.
type trackView struct {
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	URI        string `json:"uri,omitempty"`
	Duration   int    `json:"durationSeconds"`
	Source     string `json:"source,omitempty"`
	RetryCount int    `json:"retryCount,omitempty"`
}

type queueView struct {
	GuildID   string      `json:"guildId"`
	Current   *trackView  `json:"current"`
	Pending   []trackView `json:"pending"`
	Playing   bool        `json:"playing"`
	Paused    bool        `json:"paused"`
	Loop      string      `json:"loop"`
	Volume    int         `json:"volume"`
	Connected bool        `json:"connected"`
}

func viewTrack(t *models.Track) trackView {
	return trackView{
		Title:      t.Title,
		Author:     t.Author,
		URI:        t.URI,
		Duration:   t.Duration,
		Source:     string(t.Source),
		RetryCount: t.RetryCount,
	}
}

func viewQueue(snap queue.Snapshot) queueView {
	v := queueView{
		GuildID:   snap.GuildID,
		Pending:   make([]trackView, 0, len(snap.Pending)),
		Playing:   snap.Playing,
		Paused:    snap.Paused,
		Loop:      snap.Loop.String(),
		Volume:    snap.Volume,
		Connected: snap.Connected,
	}
	if snap.Current != nil {
		current := viewTrack(snap.Current)
		v.Current = &current
	}
	for _, t := range snap.Pending {
		v.Pending = append(v.Pending, viewTrack(t))
	}
	return v
}

// NewRouter builds the HTTP routes. interactions may be nil when the bot only
// receives interactions over the gateway.
func NewRouter(store *queue.Store, node NodeStatus, interactions gin.HandlerFunc) *gin.Engine {
	started := time.Now()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), sentry.GetSentryGin())

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		if !node.Available() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ok":     status == http.StatusOK,
			"node":   node.Available(),
			"guilds": len(store.Guilds()),
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})

	router.GET("/guilds/:guildId/queue", func(c *gin.Context) {
		q, ok := store.Lookup(c.Param("guildId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "No queue for this guild"})
			return
		}
		c.JSON(http.StatusOK, viewQueue(q.Snapshot()))
	})

	router.GET("/privacy", servePage(privacyPolicy))
	router.GET("/terms", servePage(termsOfService))

	if interactions != nil {
		router.POST("/discord/interactions", interactions)
	}

	return router
}
