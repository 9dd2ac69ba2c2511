package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Plurk    PlurkConfig    `yaml:"plurk"`
	Comet    CometConfig    `yaml:"comet"`
	Matching MatchingConfig `yaml:"matching"`
	OTel     OTelConfig     `yaml:"otel"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Discord  DiscordConfig  `yaml:"discord"`
	Loki     LokiConfig     `yaml:"loki"`
}

type PlurkConfig struct {
	APIBase            string           `yaml:"api_base"`
	RequestTimeout     time.Duration    `yaml:"request_timeout"`
	FriendSyncInterval time.Duration    `yaml:"friend_sync_interval"`
	Credentials        PlurkCredentials `yaml:"-"` // from env only
}

type CometConfig struct {
	Retry          bool          `yaml:"retry"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	WakeURL        string        `yaml:"wake_url"`
}

type MatchingConfig struct {
	MaxContentLength int `yaml:"max_content_length"`
}

type OTelConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type DiscordConfig struct {
	Enabled   bool     `yaml:"enabled"`
	BotToken  string   `yaml:"-"` // from env only
	ChannelID string   `yaml:"-"` // from env only
	Events    []string `yaml:"events"`
}

type LokiConfig struct {
	Enabled bool        `yaml:"enabled"`
	Events  interface{} `yaml:"events"` // "all" or []string
}

func defaultConfig() Config {
	return Config{
		Plurk: PlurkConfig{
			APIBase:            defaultAPIBase,
			RequestTimeout:     30 * time.Second,
			FriendSyncInterval: 10 * time.Second,
		},
		Comet: CometConfig{
			Retry:          true,
			RetryDelay:     defaultRetryDelay,
			RequestTimeout: 90 * time.Second,
		},
		Matching: MatchingConfig{
			MaxContentLength: defaultMaxContentLength,
		},
		OTel: OTelConfig{
			ServiceName: "plurk-matchbot",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Interval: 15 * time.Second,
		},
		Discord: DiscordConfig{
			Enabled: true,
			Events:  []string{"matched", "error"},
		},
		Loki: LokiConfig{
			Enabled: true,
			Events:  "all",
		},
	}
}

func loadConfig() (Config, error) {
	cfg := defaultConfig()

	configPath := envOr("CONFIG_PATH", "/etc/plurk-matchbot/config.yaml")
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}
	// config file is optional; a missing file is not an error

	// Env overrides (secrets + runtime values)
	cfg.Plurk.Credentials = PlurkCredentials{
		ConsumerKey:    os.Getenv("PLURK_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("PLURK_CONSUMER_SECRET"),
		Token:          os.Getenv("PLURK_TOKEN"),
		TokenSecret:    os.Getenv("PLURK_TOKEN_SECRET"),
	}
	if v := os.Getenv("PLURK_API_BASE"); v != "" {
		cfg.Plurk.APIBase = v
	}
	cfg.Discord.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.Discord.ChannelID = os.Getenv("DISCORD_CHANNEL_ID")

	creds := cfg.Plurk.Credentials
	for name, v := range map[string]string{
		"PLURK_CONSUMER_KEY":    creds.ConsumerKey,
		"PLURK_CONSUMER_SECRET": creds.ConsumerSecret,
		"PLURK_TOKEN":           creds.Token,
		"PLURK_TOKEN_SECRET":    creds.TokenSecret,
	} {
		if v == "" {
			return cfg, fmt.Errorf("%s env is required", name)
		}
	}

	if cfg.Comet.RetryDelay <= 0 {
		return cfg, fmt.Errorf("comet.retry_delay must be positive, got %s", cfg.Comet.RetryDelay)
	}
	if cfg.Plurk.FriendSyncInterval <= 0 {
		return cfg, fmt.Errorf("plurk.friend_sync_interval must be positive, got %s", cfg.Plurk.FriendSyncInterval)
	}

	if cfg.Discord.BotToken != "" && cfg.Discord.ChannelID == "" {
		return cfg, fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_BOT_TOKEN is set")
	}

	if cfg.Discord.BotToken == "" {
		cfg.Discord.Enabled = false
	}

	return cfg, nil
}

// lokiEventAllowed reports whether BotEvents of eventType are logged to OTel (→ Loki).
func (c *Config) lokiEventAllowed(eventType string) bool {
	return c.Loki.Enabled && eventListed(c.Loki.Events, eventType)
}

// discordEventAllowed reports whether BotEvents of eventType are posted to Discord.
func (c *Config) discordEventAllowed(eventType string) bool {
	return c.Discord.Enabled && eventListed(c.Discord.Events, eventType)
}

// eventListed matches eventType against a filter decoded from YAML: a single event name
// or "all", or a list of names that may contain "all".
func eventListed(filter interface{}, eventType string) bool {
	switch f := filter.(type) {
	case string:
		return f == "all" || f == eventType
	case []string:
		for _, e := range f {
			if e == "all" || e == eventType {
				return true
			}
		}
	case []interface{}:
		for _, v := range f {
			if e, ok := v.(string); ok && (e == "all" || e == eventType) {
				return true
			}
		}
	}
	return false
}

// envOr returns the env value for key, or fallback when it is unset or empty.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
