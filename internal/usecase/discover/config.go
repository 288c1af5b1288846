package discover

import (
	"eventscout/pkg/config"
)

// Defaults for pipeline settings.
const (
	defaultMaxPages    = 25
	defaultParallelism = 4
)

// LoadConfigFromEnv reads DISCOVER_QUERIES, DISCOVER_FEEDS,
// DISCOVER_MAX_PAGES, and DISCOVER_PARALLELISM. Queries and feeds are
// comma-separated lists.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Queries:          config.GetEnvStringList("DISCOVER_QUERIES", []string{"developer conference 2026", "tech meetup"}),
		FeedURLs:         config.GetEnvStringList("DISCOVER_FEEDS", nil),
		MaxPages:         config.GetEnvInt("DISCOVER_MAX_PAGES", defaultMaxPages),
		CrawlParallelism: config.GetEnvInt("DISCOVER_PARALLELISM", defaultParallelism),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
