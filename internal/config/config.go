// Package config loads the client configuration.
//
// Values are layered, from lowest to highest priority: defaults, the YAML
// config file, the environment (AGX_* vars, optionally loaded from a .env
// file) and the command line flags. The last two are resolved by the command
// line parser, so this package only merges the file under them.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/agenciai/agx/internal/conventions"
	"github.com/agenciai/agx/internal/poll"
	"github.com/agenciai/agx/internal/session"
	"github.com/agenciai/agx/internal/taskclient/rest"
)

// Config is the client configuration.
type Config struct {
	APIURL         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	LogCapacity    int
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		APIURL:         rest.DefaultBaseURL,
		PollInterval:   poll.DefaultInterval,
		RequestTimeout: rest.DefaultRequestTimeout,
		LogCapacity:    session.DefaultLogCapacity,
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return conventions.ConfigPath(conventions.DataDir())
}

// LoadDotEnv loads the env files into the environment, already set vars are
// not overridden. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("could not load %s: %w", p, err)
		}
	}
	return nil
}

// FileYAMLRepository loads the configuration from YAML files.
type FileYAMLRepository struct {
	fs fs.FS
}

// NewFileYAMLRepository returns a new YAML repository over the file system.
func NewFileYAMLRepository(filesystem fs.FS) *FileYAMLRepository {
	return &FileYAMLRepository{fs: filesystem}
}

// GetConfig loads the config file at path. A missing file is only an error if
// required is set, otherwise the defaults are returned.
func (r *FileYAMLRepository) GetConfig(ctx context.Context, path string, required bool) (Config, error) {
	cfg := Default()

	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return Config{}, ctx.Err()
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := fc.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FileConfig is the YAML structure of the config file.
type FileConfig struct {
	APIURL         string `yaml:"api_url"`
	PollInterval   string `yaml:"poll_interval"`
	RequestTimeout string `yaml:"request_timeout"`
	LogCapacity    int    `yaml:"log_capacity"`
}

func (c FileConfig) apply(cfg *Config) error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api_url %q must be an http(s) URL", c.APIURL)
		}
		cfg.APIURL = c.APIURL
	}

	if c.PollInterval != "" {
		d, err := time.ParseDuration(c.PollInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("poll_interval %q must be a positive duration", c.PollInterval)
		}
		cfg.PollInterval = d
	}

	if c.RequestTimeout != "" {
		d, err := time.ParseDuration(c.RequestTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("request_timeout %q must be a positive duration", c.RequestTimeout)
		}
		cfg.RequestTimeout = d
	}

	if c.LogCapacity < 0 {
		return fmt.Errorf("log_capacity can't be negative")
	}
	if c.LogCapacity > 0 {
		cfg.LogCapacity = c.LogCapacity
	}

	return nil
}

// Overrides are the values set by the environment or the flags, zero values
// are unset.
type Overrides struct {
	APIURL       string
	PollInterval time.Duration
}

// Merge returns the config with the overrides applied on top.
func (c Config) Merge(o Overrides) Config {
	if o.APIURL != "" {
		c.APIURL = o.APIURL
	}
	if o.PollInterval > 0 {
		c.PollInterval = o.PollInterval
	}
	return c
}
