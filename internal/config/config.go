package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		// Driver is "memory", "sqlite" or "postgres".
		Driver string `yaml:"driver"`
	} `yaml:"database"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Attempt struct {
		TimeLimit    string `yaml:"time_limit"`
		LockTimeout  string `yaml:"lock_timeout"`
		RetryBackoff string `yaml:"retry_backoff"`
	} `yaml:"attempt"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	// Demo seeds the sample catalog into an empty store.
	Demo bool `yaml:"demo"`
}

// DatabaseDriver resolves the configured backend, defaulting to postgres when
// a URL is present and to memory otherwise.
func (c Config) DatabaseDriver() string {
	if c.Database.Driver != "" {
		return c.Database.Driver
	}
	if c.Postgres.URL != "" {
		return "postgres"
	}
	return "memory"
}

// Load reads YAML config from path. Values may reference ${VAR} environment
// variables; a .env file next to the working directory is loaded first when
// present. A missing config file yields the zero Config.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
