// Package config loads server settings from the environment.
//
// An optional .env file in the working directory is read first; variables
// already set in the environment win. Every field can also be overridden by a
// command-line flag in cmd/soarsocket.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/logging"
)

const (
	minHeartbeatInterval = time.Second
	minWriteTimeout      = 100 * time.Millisecond
	minSendQueue         = 1
	maxSendQueue         = 4096
)

// Config holds server configuration.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"` // HTTP bind address
	Port     string `env:"PORT"`                    // overrides the port of Addr when set
	AdminKey string `env:"ADMIN_KEY"`               // empty disables every admin endpoint
	UsersDB  string `env:"USERS_DB" envDefault:"usersDb.json"`
	ShopURL  string `env:"SHOP_URL" envDefault:"https://shop.soarclient.com/premium/"`

	WebSocket WebSocketConfig `envPrefix:"WS_"`
	Log       LogConfig       `envPrefix:"LOG_"`

	MetricsLogInterval time.Duration `env:"METRICS_LOG_INTERVAL" envDefault:"60s"` // 0 disables
	Console            bool          `env:"CONSOLE" envDefault:"true"`             // read operator commands from stdin
}

// WebSocketConfig controls the websocket endpoint.
type WebSocketConfig struct {
	Path              string        `env:"PATH" envDefault:"/websocket"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	SendQueue         int           `env:"SEND_QUEUE" envDefault:"64"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
	File   string `env:"FILE"`
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("config: load .env file: %w", err)
		}
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env or flags.
func (c *Config) Sanitize() {
	if c.Port != "" {
		host := c.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		c.Addr = host + ":" + c.Port
		c.Port = ""
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = "/websocket"
	}
	if !strings.HasPrefix(c.WebSocket.Path, "/") {
		c.WebSocket.Path = "/" + c.WebSocket.Path
	}
	c.WebSocket.HeartbeatInterval = max(c.WebSocket.HeartbeatInterval, minHeartbeatInterval)
	c.WebSocket.WriteTimeout = max(c.WebSocket.WriteTimeout, minWriteTimeout)
	c.WebSocket.SendQueue = min(max(c.WebSocket.SendQueue, minSendQueue), maxSendQueue)
	if c.MetricsLogInterval < 0 {
		c.MetricsLogInterval = 0
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if err := datastore.CheckURL(c.UsersDB); err != nil {
		return fmt.Errorf("config: USERS_DB: %w", err)
	}
	if err := logging.Validate(c.Log.Level); err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		return fmt.Errorf("config: LOG_FORMAT: %w", err)
	}
	if c.Addr == "" {
		return errors.New("config: ADDR must not be empty")
	}
	return nil
}
