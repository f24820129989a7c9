package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// DataDir is the root under which bundles, the task registry and
	// trajectory output live.
	DataDir string

	// Browser shape used for capture and sandbox contexts.
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	BrowserChannel string
	UserDataDir    string

	// BodyCapBytes caps recorded request/response bodies; anything larger
	// is truncated and flagged, never dropped.
	BodyCapBytes int

	// ScrollQuiet is how long scroll input must stay silent before a
	// coalesced scroll step is emitted.
	ScrollQuiet time.Duration

	// ScreenshotThrottle limits screenshot frequency during capture.
	ScreenshotThrottle time.Duration

	// Optional LLM settings for the checkpoint annotator.
	APIKey string
	Model  string
	Url    string

	// Debug switches the logger to debug level.
	Debug bool
}

// LoadConfig loads configuration from a .env file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:            getEnvOrDefault("WEBENV_DATA_DIR", "data"),
		Headless:           getEnvBool("WEBENV_HEADLESS", false),
		ViewportWidth:      getEnvInt("WEBENV_VIEWPORT_WIDTH", 1920),
		ViewportHeight:     getEnvInt("WEBENV_VIEWPORT_HEIGHT", 1080),
		BrowserChannel:     getEnvOrDefault("WEBENV_BROWSER_CHANNEL", "chromium"),
		UserDataDir:        getEnvOrDefault("WEBENV_USER_DATA_DIR", ""),
		BodyCapBytes:       getEnvInt("WEBENV_BODY_CAP_BYTES", 1<<20),
		ScrollQuiet:        getEnvDuration("WEBENV_SCROLL_QUIET_MS", 250*time.Millisecond),
		ScreenshotThrottle: getEnvDuration("WEBENV_SCREENSHOT_THROTTLE_MS", 500*time.Millisecond),
		APIKey:             getEnvOrDefault("API_KEY", ""),
		Model:              getEnvOrDefault("MODEL", "gpt-4o-mini"),
		Url:                getEnvOrDefault("URL", ""),
		Debug:              getEnvBool("WEBENV_DEBUG", false),
	}

	if cfg.BodyCapBytes <= 0 {
		return nil, fmt.Errorf("WEBENV_BODY_CAP_BYTES must be positive")
	}
	return cfg, nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
