// Package config loads client settings from the environment and an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is used when no prediction service URL is configured.
const DefaultBaseURL = "http://localhost:5000"

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration

	// Camera
	CameraDevice string
	FFmpegPath   string

	// Voice
	AudioCommand   []string
	DeepgramAPIKey string
	SpeechLanguage string

	HistoryPath string
	LogPath     string
	LogLevel    string
	SentryDSN   string
	Environment string
}

// Load reads envFile (if present) and then the process environment.
// A missing .env file is not an error.
func Load(envFile string) Config {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	timeout, err := time.ParseDuration(getenv("MINDCHECK_HTTP_TIMEOUT", "30s"))
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return Config{
		BaseURL:     strings.TrimRight(getenv("MINDCHECK_API_BASE_URL", DefaultBaseURL), "/"),
		HTTPTimeout: timeout,

		CameraDevice: getenv("MINDCHECK_CAMERA_DEVICE", "/dev/video0"),
		FFmpegPath:   getenv("MINDCHECK_FFMPEG_PATH", "ffmpeg"),

		AudioCommand:   strings.Fields(getenv("MINDCHECK_AUDIO_COMMAND", "arecord -q -f S16_LE -r 16000 -c 1 -t raw")),
		DeepgramAPIKey: getenv("DEEPGRAM_API_KEY", ""),
		SpeechLanguage: getenv("MINDCHECK_SPEECH_LANGUAGE", "en-US"),

		HistoryPath: getenv("MINDCHECK_HISTORY_PATH", filepath.Join(dataDir(), "history.sqlite")),
		LogPath:     getenv("MINDCHECK_LOG_PATH", filepath.Join(dataDir(), "mindcheck.log")),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		SentryDSN:   getenv("SENTRY_DSN", ""),
		Environment: getenv("ENVIRONMENT", "development"),
	}
}

// dataDir is where the history journal and logs live by default.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mindcheck"
	}
	return filepath.Join(home, ".mindcheck")
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
