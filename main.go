package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lavabeat/applemusic"
	appConfig "lavabeat/config"
	"lavabeat/controller"
	"lavabeat/database"
	"lavabeat/discord"
	"lavabeat/handlers"
	"lavabeat/lavalink"
	"lavabeat/lyrics"
	"lavabeat/queue"
	"lavabeat/resolver"
	"lavabeat/sentry"
	"lavabeat/server"
	"lavabeat/soundcloud"
	"lavabeat/spotify"
	"lavabeat/youtube"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warnf("Error loading .env file: %v", err)
	}
	appConfig.NewConfig()

	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"module", "method", "guildID"},
	})
	log.SetLevel(appConfig.Config.Options.LogLevel)

	sentry.Init(appConfig.Config.Sentry)
	defer sentry.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func newResolver(ctx context.Context, node *lavalink.Client) *resolver.Resolver {
	cfg := appConfig.Config

	primary := youtube.NewProvider(node, cfg.Youtube.APIKey).WithPageSearch()
	tertiary := soundcloud.NewProvider(node)
	catalogs := []resolver.CatalogLookup{applemusic.NewClient()}

	var searcher resolver.CatalogSearcher
	if cfg.Spotify.IsEnabled() {
		client, err := spotify.NewClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
		if err != nil {
			log.WithField("module", "main").Errorf("Spotify disabled: %v", err)
		} else {
			searcher = client
			catalogs = append(catalogs, client)
		}
	}
	if searcher == nil && cfg.Youtube.MusicSearch {
		searcher = youtube.NewMusicCatalog()
	}

	return resolver.New(primary, tertiary, searcher, catalogs...)
}

func run(ctx context.Context) error {
	cfg := appConfig.Config
	logger := log.WithField("module", "main")

	session, err := discord.NewSession(cfg.Discord.BotToken)
	if err != nil {
		return err
	}

	node := lavalink.NewClient(session, lavalink.NodeConfig{
		Host:     cfg.Lavalink.Host,
		Port:     cfg.Lavalink.Port,
		Password: cfg.Lavalink.Password,
		Secure:   cfg.Lavalink.Secure,
	})
	defer node.Close()

	store := queue.NewStore(cfg.Options.DefaultVolume)
	ctrl := controller.New(store, node, newResolver(ctx, node)).
		WithAnnouncer(discord.NewAnnouncer(session)).
		WithMaxRetries(cfg.Options.MaxRetries)

	var history handlers.HistoryReader
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.Errorf("History disabled: %v", err)
	} else {
		defer db.Close()
		ctrl.WithHistory(db)
		history = db
	}

	manager := handlers.NewManager(ctrl, lyrics.New(), history, cfg.Options.QueuePageSize)

	bot, err := discord.NewBot(session, manager, discord.Options{
		AppID:          cfg.Discord.AppID,
		PublicKey:      cfg.Discord.PublicKey,
		Prefix:         cfg.Discord.Prefix,
		CommandGuildID: cfg.Discord.CommandGuildID,
	})
	if err != nil {
		return err
	}
	if err := bot.Open(); err != nil {
		return err
	}
	defer bot.Close()

	var interactions gin.HandlerFunc
	if cfg.Discord.PublicKey != "" {
		interactions = bot.HandleHTTPInteraction
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Options.Port,
		Handler: server.NewRouter(store, node, interactions),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return node.Connect(ctx, bot.UserID())
	})
	g.Go(func() error {
		logger.Infof("Starting server on :%s", cfg.Options.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
