package discord

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"lavabeat/handlers"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
)

func intValue(name string, v float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: v}
}

func stringValue(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func TestCommandFromSlash(t *testing.T) {
	tests := []struct {
		name     string
		data     discordgo.ApplicationCommandInteractionData
		wantName string
		wantArgs []string
	}{
		{
			name:     "play",
			data:     discordgo.ApplicationCommandInteractionData{Name: "play", Options: []*discordgo.ApplicationCommandInteractionDataOption{stringValue("query", "never gonna")}},
			wantName: "play",
			wantArgs: []string{"never gonna"},
		},
		{
			name:     "no options",
			data:     discordgo.ApplicationCommandInteractionData{Name: "skip"},
			wantName: "skip",
		},
		{
			name:     "move keeps declared order",
			data:     discordgo.ApplicationCommandInteractionData{Name: "move", Options: []*discordgo.ApplicationCommandInteractionDataOption{intValue("to", 1), intValue("from", 4)}},
			wantName: "queue",
			wantArgs: []string{"move", "4", "1"},
		},
		{
			name:     "remove",
			data:     discordgo.ApplicationCommandInteractionData{Name: "remove", Options: []*discordgo.ApplicationCommandInteractionDataOption{intValue("position", 2)}},
			wantName: "queue",
			wantArgs: []string{"remove", "2"},
		},
		{
			name:     "volume",
			data:     discordgo.ApplicationCommandInteractionData{Name: "volume", Options: []*discordgo.ApplicationCommandInteractionDataOption{intValue("level", 35)}},
			wantName: "volume",
			wantArgs: []string{"35"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := commandFromSlash(tt.data)
			if name != tt.wantName || !slices.Equal(args, tt.wantArgs) {
				t.Errorf("commandFromSlash() = %q, %q; want %q, %q", name, args, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestCommandsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Commands {
		if seen[c.Name] {
			t.Errorf("duplicate command %q", c.Name)
		}
		seen[c.Name] = true
		if c.Description == "" {
			t.Errorf("command %q has no description", c.Name)
		}
	}
}

func TestParsePrefixed(t *testing.T) {
	tests := []struct {
		content  string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"!play never  gonna", "play", []string{"never", "gonna"}, true},
		{"!SKIP", "skip", []string{}, true},
		{"!", "", nil, false},
		{"hello there", "", nil, false},
		{"?play x", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := parsePrefixed("!", tt.content)
			if ok != tt.wantOK || name != tt.wantName || !slices.Equal(args, tt.wantArgs) {
				t.Errorf("parsePrefixed(%q) = %q, %q, %v", tt.content, name, args, ok)
			}
		})
	}
}

func TestRequesterFromUser(t *testing.T) {
	if got := requesterFromUser(&discordgo.User{ID: "1", Username: "ann", GlobalName: "Ann"}); got.Name != "Ann" || got.ID != "1" {
		t.Errorf("requester = %+v", got)
	}
	if got := requesterFromUser(&discordgo.User{ID: "2", Username: "bob"}); got.Name != "bob" {
		t.Errorf("requester = %+v", got)
	}
	if got := requesterFromUser(nil); got.ID != "" {
		t.Errorf("requester = %+v", got)
	}
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, handlers.Command, handlers.Responder) {}

func TestHandleHTTPInteraction(t *testing.T) {
	gin.SetMode(gin.TestMode)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	session, err := discordgo.New("Bot test")
	if err != nil {
		t.Fatal(err)
	}
	bot, err := NewBot(session, nopDispatcher{}, Options{PublicKey: hex.EncodeToString(pub)})
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.POST("/discord/interactions", bot.HandleHTTPInteraction)

	body := []byte(`{"id":"1","type":1}`)
	send := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/discord/interactions", bytes.NewReader(body))
		req.Header.Set("X-Signature-Ed25519", signature)
		req.Header.Set("X-Signature-Timestamp", "1700000000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	valid := hex.EncodeToString(ed25519.Sign(priv, append([]byte("1700000000"), body...)))
	if w := send(valid); w.Code != http.StatusOK || w.Body.String() != `{"type":1}` {
		t.Errorf("ping = %d %s", w.Code, w.Body.String())
	}

	forged := hex.EncodeToString(ed25519.Sign(priv, []byte("something else")))
	if w := send(forged); w.Code != http.StatusUnauthorized {
		t.Errorf("forged signature = %d, want 401", w.Code)
	}
}

func TestNewBotRejectsBadKey(t *testing.T) {
	if _, err := NewBot(nil, nopDispatcher{}, Options{PublicKey: "zz"}); err == nil {
		t.Error("expected error for malformed key")
	}
}
