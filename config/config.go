package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DataDir       string
	DownloadsDir  string
	ScratchDir    string
	APIKeys       []string
	AuthSecret    string
	AdminUser     string
	AdminPassword string
	YtDlpPath     string
	FFmpegPath    string
	SweepInterval time.Duration
	DownloadTTL   time.Duration
	ScratchTTL    time.Duration
	Version       string
}

// Load reads configuration from the environment, with a .env file applied
// first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	authSecret := os.Getenv("AUTH_SECRET")
	if authSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required")
	}

	apiKeys := splitKeys(getEnv("API_KEYS", ""))
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("API_KEYS is required (comma-separated)")
	}

	sweepInterval, err := getDuration("SWEEP_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	downloadTTL, err := getDuration("DOWNLOAD_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	scratchTTL, err := getDuration("SCRATCH_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("DATA_DIR", "./data")
	return &Config{
		Port:          getEnv("PORT", "8080"),
		DataDir:       dataDir,
		DownloadsDir:  getEnv("DOWNLOADS_DIR", filepath.Join(dataDir, "downloads")),
		ScratchDir:    getEnv("SCRATCH_DIR", filepath.Join(dataDir, "scratch")),
		APIKeys:       apiKeys,
		AuthSecret:    authSecret,
		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		YtDlpPath:     getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		SweepInterval: sweepInterval,
		DownloadTTL:   downloadTTL,
		ScratchTTL:    scratchTTL,
		Version:       getEnv("VERSION", "dev"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
