// Package config loads loom settings from a YAML or JSON file with
// LOOM_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/loom/pkg/history"
	"github.com/aretw0/loom/pkg/stage"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "LOOM_"

// Config is the complete loom configuration.
type Config struct {
	LogLevel string        `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	History  HistoryConfig `yaml:"history" json:"history" mapstructure:"history"`
	Stage    StageConfig   `yaml:"stage" json:"stage" mapstructure:"stage"`
	Store    StoreConfig   `yaml:"store" json:"store" mapstructure:"store"`
	Server   ServerConfig  `yaml:"server" json:"server" mapstructure:"server"`
}

// HistoryConfig configures the session history log.
type HistoryConfig struct {
	SyncDelayMS    int  `yaml:"sync_delay_ms" json:"sync_delay_ms" mapstructure:"sync_delay_ms"`
	DisableRewrite bool `yaml:"disable_rewrite" json:"disable_rewrite" mapstructure:"disable_rewrite"`
}

// StageConfig configures frame budgets. Lanes maps a priority name (high,
// normal, low) to its budget in milliseconds.
type StageConfig struct {
	TickMS        int            `yaml:"tick_ms" json:"tick_ms" mapstructure:"tick_ms"`
	MaxFrameMS    int            `yaml:"max_frame_ms" json:"max_frame_ms" mapstructure:"max_frame_ms"`
	NoActivityMS  int            `yaml:"no_activity_ms" json:"no_activity_ms" mapstructure:"no_activity_ms"`
	DeactivatedMS int            `yaml:"deactivated_ms" json:"deactivated_ms" mapstructure:"deactivated_ms"`
	Lanes         map[string]int `yaml:"lanes" json:"lanes" mapstructure:"lanes"`
}

// StoreConfig selects and configures the snapshot store.
type StoreConfig struct {
	Backend       string   `yaml:"backend" json:"backend" mapstructure:"backend"`
	Dir           string   `yaml:"dir" json:"dir" mapstructure:"dir"`
	RedisAddr     string   `yaml:"redis_addr" json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string   `yaml:"redis_password" json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int      `yaml:"redis_db" json:"redis_db" mapstructure:"redis_db"`
	Prefix        string   `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	TTLSeconds    int      `yaml:"ttl_seconds" json:"ttl_seconds" mapstructure:"ttl_seconds"`
	LockTTLSecs   int      `yaml:"lock_ttl_seconds" json:"lock_ttl_seconds" mapstructure:"lock_ttl_seconds"`
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key" mapstructure:"encryption_key"`
	Redact        []string `yaml:"redact" json:"redact" mapstructure:"redact"`
}

// ServerConfig configures `loom serve`.
type ServerConfig struct {
	Address string `yaml:"address" json:"address" mapstructure:"address"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Stage: StageConfig{
			TickMS:        16,
			MaxFrameMS:    int(stage.DefaultMaxComputationTimePerFrame / time.Millisecond),
			NoActivityMS:  int(stage.DefaultMaxComputationTimeNoActivity / time.Millisecond),
			DeactivatedMS: int(stage.DefaultMaxComputationTimeDeactivated / time.Millisecond),
		},
		Store: StoreConfig{
			Backend:     BackendFile,
			Dir:         ".loom/sessions",
			RedisAddr:   "localhost:6379",
			Prefix:      "loom:session:",
			LockTTLSecs: 30,
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}

// Load reads path (YAML unless the extension is .json), fills zero values
// from Default and applies environment overrides. An empty path or a missing
// file yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			var file Config
			if strings.ToLower(filepath.Ext(path)) == ".json" {
				err = json.Unmarshal(data, &file)
			} else {
				err = yaml.Unmarshal(data, &file)
			}
			if err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			cfg = merge(cfg, file)
		}
	}
	if err := ApplyEnv(&cfg, os.Environ()); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// merge overlays the non-zero fields of file on base.
func merge(base, file Config) Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	set(&base.LogLevel, file.LogLevel)

	setInt(&base.History.SyncDelayMS, file.History.SyncDelayMS)
	base.History.DisableRewrite = file.History.DisableRewrite

	setInt(&base.Stage.TickMS, file.Stage.TickMS)
	setInt(&base.Stage.MaxFrameMS, file.Stage.MaxFrameMS)
	setInt(&base.Stage.NoActivityMS, file.Stage.NoActivityMS)
	setInt(&base.Stage.DeactivatedMS, file.Stage.DeactivatedMS)
	if len(file.Stage.Lanes) > 0 {
		base.Stage.Lanes = file.Stage.Lanes
	}

	set(&base.Store.Backend, file.Store.Backend)
	set(&base.Store.Dir, file.Store.Dir)
	set(&base.Store.RedisAddr, file.Store.RedisAddr)
	set(&base.Store.RedisPassword, file.Store.RedisPassword)
	setInt(&base.Store.RedisDB, file.Store.RedisDB)
	set(&base.Store.Prefix, file.Store.Prefix)
	setInt(&base.Store.TTLSeconds, file.Store.TTLSeconds)
	setInt(&base.Store.LockTTLSecs, file.Store.LockTTLSecs)
	set(&base.Store.EncryptionKey, file.Store.EncryptionKey)
	if len(file.Store.Redact) > 0 {
		base.Store.Redact = file.Store.Redact
	}

	set(&base.Server.Address, file.Server.Address)
	return base
}

// envKeys maps environment variables to config paths.
var envKeys = map[string][]string{
	"LOOM_LOG_LEVEL":               {"log_level"},
	"LOOM_HISTORY_SYNC_DELAY_MS":   {"history", "sync_delay_ms"},
	"LOOM_HISTORY_DISABLE_REWRITE": {"history", "disable_rewrite"},
	"LOOM_STAGE_TICK_MS":           {"stage", "tick_ms"},
	"LOOM_STAGE_MAX_FRAME_MS":      {"stage", "max_frame_ms"},
	"LOOM_STORE_BACKEND":           {"store", "backend"},
	"LOOM_STORE_DIR":               {"store", "dir"},
	"LOOM_STORE_REDIS_ADDR":        {"store", "redis_addr"},
	"LOOM_STORE_REDIS_PASSWORD":    {"store", "redis_password"},
	"LOOM_STORE_REDIS_DB":          {"store", "redis_db"},
	"LOOM_STORE_PREFIX":            {"store", "prefix"},
	"LOOM_STORE_TTL_SECONDS":       {"store", "ttl_seconds"},
	"LOOM_STORE_ENCRYPTION_KEY":    {"store", "encryption_key"},
	"LOOM_SERVER_ADDRESS":          {"server", "address"},
}

// ApplyEnv decodes LOOM_* entries of environ ("KEY=value") onto cfg.
// Values are weakly typed, so "true" and "250" land in bool and int fields.
func ApplyEnv(cfg *Config, environ []string) error {
	overrides := map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path, known := envKeys[key]
		if !known {
			continue
		}
		node := overrides
		for _, p := range path[:len(path)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[p] = child
			}
			node = child
		}
		node[path[len(path)-1]] = value
	}
	if len(overrides) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(overrides); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	for name := range c.Stage.Lanes {
		if _, ok := parsePriority(name); !ok {
			return fmt.Errorf("unknown stage lane %q", name)
		}
	}
	if c.History.SyncDelayMS < 0 {
		return fmt.Errorf("history sync delay must not be negative")
	}
	return nil
}

func parsePriority(name string) (stage.Priority, bool) {
	for _, p := range []stage.Priority{stage.PriorityHigh, stage.PriorityNormal, stage.PriorityLow} {
		if p.String() == strings.ToLower(name) {
			return p, true
		}
	}
	return 0, false
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// TickInterval is the interval of the stock tick source.
func (c Config) TickInterval() time.Duration { return ms(c.Stage.TickMS) }

// ApplyStage sets the frame and lane budgets on s.
func (c Config) ApplyStage(s *stage.Stage) {
	s.SetMaxComputationTimePerFrame(ms(c.Stage.MaxFrameMS))
	s.SetNoActivityBudget(ms(c.Stage.NoActivityMS))
	s.SetDeactivatedBudget(ms(c.Stage.DeactivatedMS))
	for name, budget := range c.Stage.Lanes {
		if p, ok := parsePriority(name); ok {
			s.SetTaskPriorityTimeAllocation(p, ms(budget))
		}
	}
}

// HistoryOptions returns the history log options described by c.
func (c Config) HistoryOptions() []history.Option {
	return []history.Option{
		history.WithSyncDelay(ms(c.History.SyncDelayMS)),
		history.WithHistoryRewrite(!c.History.DisableRewrite),
	}
}

// StoreTTL is the snapshot expiry for the redis backend.
func (c Config) StoreTTL() time.Duration {
	return time.Duration(c.Store.TTLSeconds) * time.Second
}

// LockTTL is the distributed lock expiry.
func (c Config) LockTTL() time.Duration {
	return time.Duration(c.Store.LockTTLSecs) * time.Second
}
