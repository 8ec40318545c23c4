// Package ops loads runtime configuration shared by the cmd binaries.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"main/internal/runner"
	"main/internal/session"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Feed      FeedConfig      `json:"feed"`
	Runner    RunnerConfig    `json:"runner"`
	Journal   JournalConfig   `json:"journal"`
	Profiling ProfilingConfig `json:"profiling"`
}

// FeedConfig describes one orderbook feed and its snapshot channel.
type FeedConfig struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Depth    int    `json:"depth"`
	Channel  string `json:"channel"`
	Display  bool   `json:"display"`
}

// RunnerConfig describes one order runner and its request channel.
type RunnerConfig struct {
	Venue           string `json:"venue"`
	Channel         string `json:"channel"`
	Category        string `json:"category"`
	RecvWindowMs    int    `json:"recvWindowMs"`
	SubmitTimeoutMs int    `json:"submitTimeoutMs"`
	PollIntervalMs  int    `json:"pollIntervalMs"`
}

// JournalConfig holds the optional Postgres order journal settings.
type JournalConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// ProfilingConfig holds the optional pyroscope settings.
type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Feed      FeedSpec
	Runner    RunnerSpec
	Journal   JournalConfig
	Profiling ProfilingConfig
}

// FeedSpec is the resolved feed definition.
type FeedSpec struct {
	Exchange string
	Symbol   string
	Depth    int
	Channel  string
	Display  bool
}

// RunnerSpec is the resolved runner definition.
type RunnerSpec struct {
	Venue         string
	Channel       string
	Category      string
	RecvWindow    int
	SubmitTimeout time.Duration
	PollInterval  time.Duration
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	feed, err := resolveFeed(cfg.Feed)
	if err != nil {
		return Loaded{}, err
	}
	run, err := resolveRunner(cfg.Runner)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Feed:      feed,
		Runner:    run,
		Journal:   cfg.Journal,
		Profiling: cfg.Profiling,
	}, nil
}

// SnapshotChannelName builds the default snapshot channel name for a feed.
func SnapshotChannelName(exchange, symbol string, depth int) string {
	return fmt.Sprintf("orderbook_%s_%s_%d",
		strings.ToLower(exchange), strings.ToLower(symbol), depth)
}

// RequestChannelName builds the default request channel name for a venue.
func RequestChannelName(venue string) string {
	return strings.ToLower(venue) + "_order"
}

func resolveFeed(cfg FeedConfig) (FeedSpec, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "binance"
	}
	if cfg.Symbol == "" {
		return FeedSpec{}, fmt.Errorf("feed symbol is empty")
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 10
	}
	if cfg.Channel == "" {
		cfg.Channel = SnapshotChannelName(cfg.Exchange, cfg.Symbol, cfg.Depth)
	}
	return FeedSpec{
		Exchange: cfg.Exchange,
		Symbol:   cfg.Symbol,
		Depth:    cfg.Depth,
		Channel:  cfg.Channel,
		Display:  cfg.Display,
	}, nil
}

func resolveRunner(cfg RunnerConfig) (RunnerSpec, error) {
	switch strings.ToLower(cfg.Venue) {
	case "", "binance":
		cfg.Venue = "binance"
	case "bybit":
		cfg.Venue = "bybit"
	default:
		return RunnerSpec{}, fmt.Errorf("unknown venue: %s", cfg.Venue)
	}
	if cfg.Channel == "" {
		cfg.Channel = RequestChannelName(cfg.Venue)
	}
	if cfg.Category == "" {
		cfg.Category = "linear"
	}
	if cfg.RecvWindowMs <= 0 {
		cfg.RecvWindowMs = 5000
	}
	timeout := session.DefaultSubmitTimeout
	if cfg.SubmitTimeoutMs > 0 {
		timeout = time.Duration(cfg.SubmitTimeoutMs) * time.Millisecond
	}
	poll := runner.DefaultPollInterval
	if cfg.PollIntervalMs > 0 {
		poll = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	return RunnerSpec{
		Venue:         cfg.Venue,
		Channel:       cfg.Channel,
		Category:      cfg.Category,
		RecvWindow:    cfg.RecvWindowMs,
		SubmitTimeout: timeout,
		PollInterval:  poll,
	}, nil
}
