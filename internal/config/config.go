package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all SDK configuration (file + env overrides).
type Config struct {
	Project struct {
		ID      string `mapstructure:"id"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"project"`

	Client struct {
		LogLevel          string `mapstructure:"log_level"`
		RefreshSeconds    int    `mapstructure:"refresh_seconds"`
		MinRefreshSeconds int    `mapstructure:"min_refresh_seconds"`
		StorePath         string `mapstructure:"store_path"`
		Disabled          bool   `mapstructure:"disabled"`
	} `mapstructure:"client"`

	Device struct {
		Platform   string `mapstructure:"platform"`
		OSVersion  string `mapstructure:"os_version"`
		AppVersion string `mapstructure:"app_version"`
	} `mapstructure:"device"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("notifly")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("NOTIFLY")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Client.LogLevel == "" {
		c.Client.LogLevel = "info"
	}
	if c.Client.RefreshSeconds <= 0 {
		c.Client.RefreshSeconds = 900
	}
	if c.Client.MinRefreshSeconds <= 0 {
		c.Client.MinRefreshSeconds = 60
	}
	if c.Client.StorePath == "" {
		c.Client.StorePath = "notifly.db"
	}
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Client.RefreshSeconds) * time.Second
}

func (c Config) MinRefreshInterval() time.Duration {
	return time.Duration(c.Client.MinRefreshSeconds) * time.Second
}
