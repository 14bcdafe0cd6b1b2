// Package config loads server settings from the environment and, when
// CONFIG_PATH points at one, a YAML file. Environment variables win over
// file values; defaults fill whatever is left.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	LogLevel       string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat      string        `yaml:"log-format" env:"LOG_FORMAT" env-default:"json"`
	Port           string        `yaml:"port" env:"PORT" env-default:"5175"`
	ClientOrigin   string        `yaml:"client-origin" env:"CLIENT_ORIGIN" env-default:"http://localhost:5173"`
	RequestTimeout time.Duration `yaml:"request-timeout" env:"REQUEST_TIMEOUT" env-default:"10s"`

	StoreDriver string   `yaml:"store-driver" env:"STORE_DRIVER" env-default:"sqlite"`
	SQLitePath  string   `yaml:"sqlite-path" env:"SQLITE_PATH" env-default:"./data/gtn.db"`
	Postgres    Postgres `yaml:"postgres"`
	Redis       Redis    `yaml:"redis"`

	Guess GuessLimit `yaml:"guess-limit"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"GTN_DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"GTN_DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"GTN_DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"GTN_DB_PASSWORD"`
	Name     string `yaml:"name" env:"GTN_DB_NAME" env-default:"guess_number_db"`
	PoolSize int32  `yaml:"pool-size" env:"GTN_DB_POOL_SIZE" env-default:"5"`
}

type Redis struct {
	Addr   string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	DB     int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"gtn:"`
}

// GuessLimit is one token bucket shared by every guess request, whatever the client.
type GuessLimit struct {
	Rate  float64 `yaml:"rate" env:"GUESS_RATE" env-default:"5"`
	Burst int     `yaml:"burst" env:"GUESS_BURST" env-default:"10"`
}

// Load reads the configuration. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.Port == "" {
		return errors.New("port must be set")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Postgres.PoolSize <= 0 {
		return errors.New("postgres pool size must be positive")
	}
	if c.Guess.Rate <= 0 || c.Guess.Burst <= 0 {
		return errors.New("guess rate and burst must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }

// DSN builds a pgx connection string.
func (p Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
