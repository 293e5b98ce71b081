package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// OutputFileName is written one directory above the executable unless OUTPUT_PATH is set.
const OutputFileName = "offers_new.json"

const defaultFeedURL = "https://bkwebsitethc.grameenphone.com/api/star-offers-list?star_status=all&star_offer_categories=all&offer_areas=all&search_offer=&page_number=1"

type Config struct {
	FeedURL          string
	OutputPath       string
	Timeout          time.Duration
	StageTempFile    bool
	HTTPAddr         string
	RefreshInterval  time.Duration // 0 disables background refresh
	RabbitURI        string        // empty disables offers.updated events
	RabbitExchange   string
	RabbitRoutingKey string
}

const (
	FeedURL             = "FEED_URL"
	OutputPath          = "OUTPUT_PATH"
	Timeout             = "TIMEOUT"
	StageTempFile       = "STAGE_TEMP_FILE"
	HTTPAddr            = "HTTP_ADDR"
	RefreshInterval     = "REFRESH_INTERVAL"
	RabbitURIEnv        = "RABBIT_URI"
	RabbitExchangeEnv   = "RABBIT_EXCHANGE"
	RabbitRoutingKeyEnv = "RABBIT_ROUTING_KEY"
)

// Load reads an optional .env file from the working directory and then the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var cfg Config

	cfg.FeedURL = getEnv(FeedURL, defaultFeedURL)
	cfg.OutputPath = getEnv(OutputPath, DefaultOutputPath())
	cfg.HTTPAddr = getEnv(HTTPAddr, ":8080")
	cfg.RabbitURI = getEnv(RabbitURIEnv, "")
	cfg.RabbitExchange = getEnv(RabbitExchangeEnv, "offers.sync")
	cfg.RabbitRoutingKey = getEnv(RabbitRoutingKeyEnv, "offers.updated")

	var err error
	if cfg.StageTempFile, err = getEnvBool(StageTempFile, true); err != nil {
		return cfg, fmt.Errorf("invalid %v: %w", StageTempFile, err)
	}
	timeoutStr := getEnv(Timeout, "30s")
	if cfg.Timeout, err = time.ParseDuration(timeoutStr); err != nil {
		return cfg, fmt.Errorf("invalid %v: %w", Timeout, err)
	}
	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("invalid %v: must be positive, got %v", Timeout, cfg.Timeout)
	}
	refreshStr := getEnv(RefreshInterval, "0s")
	if cfg.RefreshInterval, err = time.ParseDuration(refreshStr); err != nil {
		return cfg, fmt.Errorf("invalid %v: %w", RefreshInterval, err)
	}
	if cfg.RefreshInterval < 0 {
		return cfg, fmt.Errorf("invalid %v: must not be negative, got %v", RefreshInterval, cfg.RefreshInterval)
	}

	return cfg, nil
}

// DefaultOutputPath resolves OutputFileName in the parent of the directory holding the running binary.
func DefaultOutputPath() string {
	exe, err := os.Executable()
	if err != nil {
		return OutputFileName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(filepath.Dir(exe)), OutputFileName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, err
	}
	return b, nil
}
