package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: ":memory:", // in-memory database for tests
		},
		Feed: FeedConfig{
			HTTPTimeout:   5 * time.Second,
			UserAgent:     "skim-test/1.0",
			RetentionDays: 365,
		},
		Search: SearchConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}
