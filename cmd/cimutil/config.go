package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// cimutil config.toml key mapping. Every value is optional; flags override
// whatever the file sets.
type fileConfig struct {
	Root     string `toml:"root"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	LogJSON  bool   `toml:"log_json"`

	Registry registryConfig `toml:"registry"`
	S3       s3Config       `toml:"s3"`
}

type registryConfig struct {
	// Driver selects the mount registry backend: sqlite, consul or postgres.
	Driver string `toml:"driver"`
	// Path is the sqlite database file, relative paths resolve against root.
	Path string `toml:"path"`
	// DSN is the postgres connection string.
	DSN string `toml:"dsn"`

	ConsulAddress    string `toml:"consul_address"`
	ConsulToken      string `toml:"consul_token"`
	ConsulDatacenter string `toml:"consul_datacenter"`
	ConsulPrefix     string `toml:"consul_prefix"`
}

type s3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		Root:     ".",
		LogLevel: "info",
		Registry: registryConfig{
			Driver: "sqlite",
			Path:   "mounts.db",
		},
	}
}

// loadConfig reads path if it exists and overlays it onto the defaults.
// A missing file is not an error unless the path was given explicitly.
func loadConfig(path string, explicit bool) (fileConfig, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return cfg, fmt.Errorf("config file %q: %w", path, err)
		}
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	if meta.IsDefined("root") {
		cfg.Root = strings.TrimSpace(raw.Root)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("log_json") {
		cfg.LogJSON = raw.LogJSON
	}
	if meta.IsDefined("registry", "driver") {
		cfg.Registry.Driver = strings.TrimSpace(raw.Registry.Driver)
	}
	if meta.IsDefined("registry", "path") {
		cfg.Registry.Path = strings.TrimSpace(raw.Registry.Path)
	}
	if meta.IsDefined("registry", "dsn") {
		cfg.Registry.DSN = strings.TrimSpace(raw.Registry.DSN)
	}
	if meta.IsDefined("registry", "consul_address") {
		cfg.Registry.ConsulAddress = strings.TrimSpace(raw.Registry.ConsulAddress)
	}
	if meta.IsDefined("registry", "consul_token") {
		cfg.Registry.ConsulToken = raw.Registry.ConsulToken
	}
	if meta.IsDefined("registry", "consul_datacenter") {
		cfg.Registry.ConsulDatacenter = strings.TrimSpace(raw.Registry.ConsulDatacenter)
	}
	if meta.IsDefined("registry", "consul_prefix") {
		cfg.Registry.ConsulPrefix = strings.TrimSpace(raw.Registry.ConsulPrefix)
	}
	if meta.IsDefined("s3") {
		cfg.S3 = raw.S3
	}

	return cfg, nil
}
