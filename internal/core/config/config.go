// Package config holds the runtime settings of the archive service.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zeusync/metacore/internal/core/observability/log"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log      LogConfig      `json:"log" yaml:"log"`
	Assets   AssetsConfig   `json:"assets" yaml:"assets"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	LiveLink LiveLinkConfig `json:"livelink" yaml:"livelink"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type AssetsConfig struct {
	Backend   string `json:"backend" yaml:"backend"`
	Root      string `json:"root,omitempty" yaml:"root,omitempty"`
	Extension string `json:"extension" yaml:"extension"`
	// Workers bounds the concurrent store reads of a bulk load.
	Workers int `json:"workers" yaml:"workers"`
	// RefreshInterval polls the store for changed assets; zero disables it.
	RefreshInterval time.Duration `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`
}

type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db" yaml:"db"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

type LiveLinkConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64         `json:"max_message_size" yaml:"max_message_size"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Assets: AssetsConfig{
			Backend:   BackendFile,
			Root:      "assets",
			Extension: ".easset",
			Workers:   4,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Namespace: "metacore",
		},
		LiveLink: LiveLinkConfig{
			Addr:           ":7420",
			MaxMessageSize: 16 << 20,
			WriteTimeout:   10 * time.Second,
		},
	}
}

// Load decodes YAML from r over the defaults and validates the result.
func Load(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}

func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Assets.Backend {
	case BackendFile:
		if c.Assets.Root == "" {
			errs = append(errs, errors.New("assets.root is required for the file backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("assets.backend: unknown backend %q", c.Assets.Backend))
	}
	if c.Assets.Workers <= 0 {
		errs = append(errs, fmt.Errorf("assets.workers must be positive, got %d", c.Assets.Workers))
	}
	if c.Assets.RefreshInterval < 0 {
		errs = append(errs, errors.New("assets.refresh_interval must not be negative"))
	}
	if c.LiveLink.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("livelink.max_message_size must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
