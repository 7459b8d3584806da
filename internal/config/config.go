package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Practice struct {
		TTL              string `yaml:"ttl"`
		MaxQuestionCount int    `yaml:"max_question_count"`
		SweepInterval    string `yaml:"sweep_interval"`
	} `yaml:"practice"`
	Questions struct {
		File     string `yaml:"file"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"questions"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	if c.Practice.MaxQuestionCount < 0 {
		return fmt.Errorf("practice.max_question_count must not be negative, got %d", c.Practice.MaxQuestionCount)
	}
	durations := map[string]string{
		"redis.ttl":               c.Redis.TTL,
		"practice.ttl":            c.Practice.TTL,
		"practice.sweep_interval": c.Practice.SweepInterval,
		"questions.cache_ttl":     c.Questions.CacheTTL,
	}
	for name, raw := range durations {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Practice.TTL != "" {
		if d, _ := time.ParseDuration(c.Practice.TTL); d <= 0 {
			return fmt.Errorf("practice.ttl must be positive, got %q", c.Practice.TTL)
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
