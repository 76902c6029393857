// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// configPathEnvVar points at an optional YAML config file.
const configPathEnvVar = "CONFIG_PATH"

// defaultConfigPaths are searched in order when CONFIG_PATH is unset.
var defaultConfigPaths = []string{
	"config.yaml",
	"/etc/attendance-api/config.yaml",
}

// flags are the command line flags for the attendance service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// config is the layered configuration of the attendance service.
type config struct {
	NATS    natsConfig    `koanf:"nats"`
	HTTP    httpConfig    `koanf:"http"`
	Service serviceConfig `koanf:"service"`
}

type natsConfig struct {
	URL string `koanf:"url"`
	// Embedded starts an in-process NATS server with JetStream instead of
	// connecting to URL.
	Embedded      bool          `koanf:"embedded"`
	StoreDir      string        `koanf:"store_dir"`
	CreateBuckets bool          `koanf:"create_buckets"`
	BucketHistory int           `koanf:"bucket_history"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

type httpConfig struct {
	Port               string        `koanf:"port"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
}

type serviceConfig struct {
	DeleteWorkers int `koanf:"delete_workers"`
	FetchWorkers  int `koanf:"fetch_workers"`
}

func defaultConfig() *config {
	return &config{
		NATS: natsConfig{
			URL:           "nats://localhost:4222",
			Embedded:      false,
			CreateBuckets: false,
			BucketHistory: 1,
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		HTTP: httpConfig{
			Port:               "8080",
			CORSAllowedOrigins: []string{"*"},
			RateLimitPerMinute: 600,
			ShutdownTimeout:    25 * time.Second,
		},
		Service: serviceConfig{
			DeleteWorkers: 3,
			FetchWorkers:  3,
		},
	}
}

// envKeys maps the supported environment variables to config paths.
var envKeys = map[string]string{
	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded",
	"nats_store_dir":        "nats.store_dir",
	"nats_create_buckets":   "nats.create_buckets",
	"nats_bucket_history":   "nats.bucket_history",
	"nats_max_reconnects":   "nats.max_reconnects",
	"nats_reconnect_wait":   "nats.reconnect_wait",
	"port":                  "http.port",
	"cors_allowed_origins":  "http.cors_allowed_origins",
	"rate_limit_per_minute": "http.rate_limit_per_minute",
	"shutdown_timeout":      "http.shutdown_timeout",
	"delete_workers":        "service.delete_workers",
	"fetch_workers":         "service.fetch_workers",
}

// envTransform returns the config path of a known variable and "" for the
// rest, which koanf then skips.
func envTransform(key string) string {
	return envKeys[strings.ToLower(key)]
}

// loadConfig layers struct defaults, an optional YAML file and environment
// variables, in increasing priority.
func loadConfig() (*config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitList(k, "http.cors_allowed_origins"); err != nil {
		return nil, err
	}

	cfg := &config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(configPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		slog.Warn("config file not found, using defaults and environment", "path", path)
		return ""
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// splitList turns a comma separated string, as environment variables carry
// it, into a list.
func splitList(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}

	items := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if err := k.Set(path, items); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

func (c *config) validate() error {
	var errs []error
	if !c.NATS.Embedded && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required unless nats.embedded is set"))
	}
	if c.NATS.BucketHistory < 1 || c.NATS.BucketHistory > 64 {
		errs = append(errs, fmt.Errorf("nats.bucket_history must be between 1 and 64, got %d", c.NATS.BucketHistory))
	}
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	if c.HTTP.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("http.rate_limit_per_minute cannot be negative"))
	}
	if c.Service.DeleteWorkers < 1 {
		errs = append(errs, errors.New("service.delete_workers must be at least 1"))
	}
	if c.Service.FetchWorkers < 1 {
		errs = append(errs, errors.New("service.fetch_workers must be at least 1"))
	}
	return errors.Join(errs...)
}

// parseFlags parses command line flags for the attendance service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}
