// Package config loads the lattice daemon's configuration: a YAML file
// (searched for the way the teacher's CLI root command does, via viper)
// overridden by LATTICE_-prefixed environment variables.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// LatticeConfig is the daemon-wide configuration a host or control client
// needs: which lattice namespace to join, how to reach the bus and
// metadata store, and this host's own identity and labels (spec.md §3,
// §4.4).
type LatticeConfig struct {
	Lattice          string            `mapstructure:"lattice"`
	TopicPrefix      string            `mapstructure:"topic_prefix"`
	HostID           string            `mapstructure:"host_id"`
	FriendlyName     string            `mapstructure:"friendly_name"`
	Labels           map[string]string `mapstructure:"labels"`
	RedisAddr        string            `mapstructure:"redis_addr"`
	ClusterIssuers   []string          `mapstructure:"cluster_issuers"`
	CronEnabled      bool              `mapstructure:"cron_enabled"`
	CronJobs         []CronJobConfig   `mapstructure:"cron_jobs"`
	RequestTimeoutMS int               `mapstructure:"request_timeout_ms"`
	AuctionWindowMS  int               `mapstructure:"auction_window_ms"`
	LogLevel         string            `mapstructure:"log_level"`
}

// CronJobConfig statically declares one distributed-cron job to register
// at startup (spec.md §4.6) — the config-driven stand-in for the
// link-driven registration this daemon doesn't yet derive from metadata
// watches; see cmd/latticed's startCron.
type CronJobConfig struct {
	TargetID string `mapstructure:"target_id"`
	LinkName string `mapstructure:"link_name"`
	JobName  string `mapstructure:"job_name"`
	CronExpr string `mapstructure:"cron_expression"`
}

var (
	instance *LatticeConfig
	once     sync.Once
	mu       sync.RWMutex
)

// Load reads the configuration once per process. cfgFile, when non-empty,
// names an explicit config file; otherwise viper searches the working
// directory for lattice.{yaml,yml,json}, mirroring the teacher's
// cobra/viper initConfig.
func Load(cfgFile string) (*LatticeConfig, error) {
	var err error
	once.Do(func() {
		instance, err = load(cfgFile)
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func load(cfgFile string) (*LatticeConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("LATTICE")
	v.AutomaticEnv()

	v.SetDefault("lattice", "default")
	v.SetDefault("topic_prefix", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("cron_enabled", false)
	v.SetDefault("request_timeout_ms", 2000)
	v.SetDefault("auction_window_ms", 5000)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("lattice")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg LatticeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if cfg.HostID == "" {
		cfg.HostID = uuid.NewString()
	}
	if cfg.Labels == nil {
		cfg.Labels = make(map[string]string)
	}

	return &cfg, nil
}

// RequestTimeout is RequestTimeoutMS as a time.Duration.
func (c *LatticeConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// AuctionWindow is AuctionWindowMS as a time.Duration.
func (c *LatticeConfig) AuctionWindow() time.Duration {
	return time.Duration(c.AuctionWindowMS) * time.Millisecond
}

// SetLabel mutates this host's own label map and persists nothing to
// disk: labels live for the process lifetime and are advertised over
// the bus, not round-tripped through the config file (spec.md §3: "the
// host's own labels, mutated only by the host itself").
func (c *LatticeConfig) SetLabel(key, value string) {
	mu.Lock()
	defer mu.Unlock()
	if c.Labels == nil {
		c.Labels = make(map[string]string)
	}
	c.Labels[key] = value
}

// Reset clears the package-level singleton, for tests that need a fresh
// Load() within the same process.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}
