package config

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

type ConfigStruct struct {
	Discord  DiscordConfig
	Lavalink LavalinkConfig
	Options  Options
	Youtube  YoutubeConfig
	Spotify  SpotifyConfig
	Database DatabaseConfig
	Sentry   SentryConfig
}

type DiscordConfig struct {
	BotToken  string
	AppID     string
	PublicKey string
	// CommandGuildID registers slash commands on a single guild, handy while
	// developing since global commands take a while to propagate.
	CommandGuildID string
	Prefix         string
}

type LavalinkConfig struct {
	Host     string
	Port     int
	Password string
	Secure   bool
}

type YoutubeConfig struct {
	APIKey string
	// MusicSearch enables YouTube Music as the free text catalog searcher when
	// Spotify is not configured.
	MusicSearch bool
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	Enabled      bool
}

type DatabaseConfig struct {
	Path string
}

type SentryConfig struct {
	DSN     string
	Release string
}

type Options struct {
	Port          string
	DefaultVolume int
	MaxRetries    int
	QueuePageSize int
	LogLevel      log.Level
}

func (s *SpotifyConfig) IsEnabled() bool {
	return s.Enabled && s.ClientID != "" && s.ClientSecret != ""
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Discord: DiscordConfig{
			BotToken:       os.Getenv("DISCORD_BOT_TOKEN"),
			AppID:          os.Getenv("DISCORD_APP_ID"),
			PublicKey:      os.Getenv("DISCORD_PUBLIC_KEY"),
			CommandGuildID: os.Getenv("DISCORD_COMMAND_GUILD_ID"),
			Prefix:         getPrefix(),
		},
		Lavalink: LavalinkConfig{
			Host:     getString("LAVALINK_HOST", "localhost"),
			Port:     getLavalinkPort(),
			Password: getString("LAVALINK_PASSWORD", "youshallnotpass"),
			Secure:   os.Getenv("LAVALINK_SECURE") == "true",
		},
		Options: Options{
			Port:          getString("PORT", "8080"),
			DefaultVolume: getDefaultVolume(),
			MaxRetries:    getMaxRetries(),
			QueuePageSize: getQueuePageSize(),
			LogLevel:      getLogLevel(),
		},
		Youtube: YoutubeConfig{
			APIKey:      os.Getenv("YOUTUBE_API_KEY"),
			MusicSearch: os.Getenv("YOUTUBE_MUSIC_SEARCH") != "false",
		},
		Spotify: SpotifyConfig{
			ClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
			ClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
			Enabled:      os.Getenv("SPOTIFY_ENABLED") == "true",
		},
		Database: DatabaseConfig{
			Path: os.Getenv("DB_PATH"),
		},
		Sentry: SentryConfig{
			DSN:     os.Getenv("SENTRY_DSN"),
			Release: os.Getenv("RELEASE"),
		},
	}

	Config = config
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getInt reads a positive integer, returning fallback when unset or invalid.
func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getPrefix() string {
	prefix := os.Getenv("COMMAND_PREFIX")
	if prefix == "" {
		return "!"
	}
	if prefix == "none" {
		return ""
	}
	return prefix
}

func getLavalinkPort() int {
	port := getInt("LAVALINK_PORT", 2333)
	if port > 65535 {
		return 2333
	}
	return port
}

func getDefaultVolume() int {
	volume, err := strconv.Atoi(os.Getenv("DEFAULT_VOLUME"))
	if err != nil || volume < 0 || volume > 100 {
		return 100
	}
	return volume
}

func getMaxRetries() int {
	retries, err := strconv.Atoi(os.Getenv("MAX_PLAYBACK_RETRIES"))
	if err != nil || retries < 0 {
		return 4
	}
	if retries > 10 {
		return 10
	}
	return retries
}

func getQueuePageSize() int {
	size := getInt("QUEUE_PAGE_SIZE", 10)
	if size > 25 {
		return 25 // embed description limit
	}
	return size
}

func getLogLevel() log.Level {
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return log.InfoLevel
	}
	return level
}
