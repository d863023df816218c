// Package config loads the ffspoints configuration file.
//
// The file is YAML. Unknown keys are rejected, missing keys keep their
// defaults, and the merged result is checked against an embedded CUE
// schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ffspoints/internal/ancestry"
	"github.com/roach88/ffspoints/internal/engine"
	"github.com/roach88/ffspoints/internal/store"
	"github.com/roach88/ffspoints/internal/weights"
)

//go:embed schema.cue
var schemaSource string

// Config holds every tunable of a run.
type Config struct {
	Database         string        `yaml:"database" json:"database"`
	GhostDatabase    string        `yaml:"ghost_database,omitempty" json:"ghost_database,omitempty"`
	MaxWriteAttempts int           `yaml:"max_write_attempts" json:"max_write_attempts"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	BusyTimeout      time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	FlushChunkSize   int           `yaml:"flush_chunk_size" json:"flush_chunk_size"`
	SuccessCacheSize int           `yaml:"success_cache_size" json:"success_cache_size"`
	MaxTraceDepth    int           `yaml:"max_trace_depth" json:"max_trace_depth"`
	CommitEvery      int           `yaml:"commit_every" json:"commit_every"`
	Seed             uint64        `yaml:"seed" json:"seed"`
	WeightMode       string        `yaml:"weight_mode" json:"weight_mode"`
	LogLevel         string        `yaml:"log_level" json:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database:         "ffspoints.db",
		MaxWriteAttempts: store.DefaultMaxWriteAttempts,
		RetryBackoff:     store.DefaultRetryBackoff,
		BusyTimeout:      store.DefaultBusyTimeout,
		FlushChunkSize:   store.DefaultFlushChunkSize,
		SuccessCacheSize: store.DefaultSuccessCacheSize,
		MaxTraceDepth:    ancestry.DefaultMaxDepth,
		CommitEvery:      engine.DefaultCommitEvery,
		Seed:             1,
		WeightMode:       weights.ModeEnrich.String(),
		LogLevel:         "info",
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML from r over the defaults and validates the result.
// An empty document yields the defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Mode returns the parsed weight mode.
func (c Config) Mode() (weights.Mode, error) {
	return weights.ParseMode(c.WeightMode)
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// StoreOptions returns the store options for the real point store.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithMaxWriteAttempts(c.MaxWriteAttempts),
		store.WithRetryBackoff(c.RetryBackoff),
		store.WithBusyTimeout(c.BusyTimeout),
		store.WithFlushChunkSize(c.FlushChunkSize),
		store.WithSuccessCacheSize(c.SuccessCacheSize),
	}
}

// GhostStoreOptions returns the store options for the ghost store. Ghost
// points reference origins that live in the real store.
func (c Config) GhostStoreOptions() []store.Option {
	return append(c.StoreOptions(), store.WithoutOriginCheck())
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
