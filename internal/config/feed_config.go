package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Orphan policies for records that disappear from the feed.
const (
	OrphanDrop = "drop"
	OrphanKeep = "keep"
)

// FeedConfig holds the published sheet and sync schedule settings.
type FeedConfig struct {
	// URL of the published CSV. Empty disables the periodic sync.
	URL          string
	SyncInterval time.Duration
	Timeout      time.Duration
	OrphanPolicy string
	// HeaderAliases is an optional YAML file of extra column labels.
	HeaderAliases string
}

// Enabled reports whether a feed is configured.
func (f FeedConfig) Enabled() bool {
	return f.URL != ""
}

func loadFeedConfig() (FeedConfig, error) {
	interval, err := getDurationEnv("FEED_SYNC_INTERVAL_MINUTES", 30, time.Minute)
	if err != nil {
		return FeedConfig{}, err
	}
	timeout, err := getDurationEnv("FEED_TIMEOUT_SECONDS", 60, time.Second)
	if err != nil {
		return FeedConfig{}, err
	}

	policy := strings.ToLower(getEnv("FEED_ORPHAN_POLICY", OrphanDrop))
	if policy != OrphanDrop && policy != OrphanKeep {
		return FeedConfig{}, fmt.Errorf("FEED_ORPHAN_POLICY: expected %q or %q, got %q", OrphanDrop, OrphanKeep, policy)
	}

	return FeedConfig{
		URL:           strings.TrimSpace(os.Getenv("FEED_URL")),
		SyncInterval:  interval,
		Timeout:       timeout,
		OrphanPolicy:  policy,
		HeaderAliases: os.Getenv("FEED_HEADER_ALIASES"),
	}, nil
}
