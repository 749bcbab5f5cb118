package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lavabeat/models"
	"lavabeat/queue"

	"github.com/gin-gonic/gin"
)

type fakeNode bool

func (n fakeNode) Available() bool { return bool(n) }

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		node fakeNode
		want int
	}{
		{"node up", true, http.StatusOK},
		{"node down", false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(queue.NewStore(100), tt.node, nil)
			if w := get(t, router, "/health"); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestQueueView(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := queue.NewStore(70)
	q := store.Get("g1")
	q.Enqueue([]*models.Track{
		{Title: "One", Encoded: "secret-1", Duration: 60},
		{Title: "Two", Encoded: "secret-2"},
	}, models.Requester{ID: "7", Name: "ann"}, "query")
	q.Advance()

	router := NewRouter(store, fakeNode(true), nil)

	if w := get(t, router, "/guilds/unknown/queue"); w.Code != http.StatusNotFound {
		t.Errorf("unknown guild status = %d", w.Code)
	}

	w := get(t, router, "/guilds/g1/queue")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var view queueView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Current == nil || view.Current.Title != "One" {
		t.Errorf("current = %+v", view.Current)
	}
	if len(view.Pending) != 1 || view.Pending[0].Title != "Two" || view.Volume != 70 || !view.Playing {
		t.Errorf("view = %+v", view)
	}
	for _, private := range []string{"secret-", "ann", `"7"`} {
		if strings.Contains(w.Body.String(), private) {
			t.Errorf("body exposes %q", private)
		}
	}
}

func TestInteractionsRouteOptional(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := NewRouter(queue.NewStore(100), fakeNode(true), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/discord/interactions", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without a handler", w.Code)
	}

	called := false
	router = NewRouter(queue.NewStore(100), fakeNode(true), func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/discord/interactions", nil))
	if !called || w.Code != http.StatusOK {
		t.Errorf("handler called = %v, status = %d", called, w.Code)
	}
}

func TestLegalPages(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := NewRouter(queue.NewStore(100), fakeNode(true), nil)
	for path, title := range map[string]string{"/privacy": "Privacy Policy", "/terms": "Terms of Service"} {
		t.Run(path, func(t *testing.T) {
			w := get(t, router, path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), "<h1>"+title+"</h1>") {
				t.Errorf("body missing title %q", title)
			}
		})
	}
}
