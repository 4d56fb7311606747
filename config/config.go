package config

import (
	"flag"
	"fmt"
	"time"
)

// Config holds the launch configuration of the relay server.
type Config struct {
	ListenAddr     string
	AuthApiRoot    string
	AuthApiToken   string `json:"-"`
	PingInterval   time.Duration
	MaxConnections int
	LogLevel       int
	LogPath        string
}

func NewFromFlags() *Config {
	listenAddr := flag.String(
		"listen-addr", ":8090", "The host:port the relay server listens on")
	authApiRoot := flag.String(
		"auth-api-root", "", "The root uri of the session store API used to validate tokens")
	authApiToken := flag.String(
		"auth-api-token", "", "The service token for the session store API")
	pingInterval := flag.Duration(
		"ping-interval", 30*time.Second, "Interval between keepalive pings sent to each connection")
	maxConnections := flag.Int(
		"max-connections", 4096, "Upper bound of simultaneously accepted connections")
	logLevel := flag.Int(
		"log-level", 0, "Log level: -1 - Debug, 0 - Info, 1 - Warn, 2 - Error")
	logPath := flag.String(
		"log-path",
		"",
		"Directory for log files, otherwise logs go to stdout only")

	flag.Parse()

	return &Config{
		ListenAddr:     *listenAddr,
		AuthApiRoot:    *authApiRoot,
		AuthApiToken:   *authApiToken,
		PingInterval:   *pingInterval,
		MaxConnections: *maxConnections,
		LogLevel:       *logLevel,
		LogPath:        *logPath,
	}
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("--listen-addr is required and cannot be empty")
	}

	if c.AuthApiRoot == "" {
		return fmt.Errorf("--auth-api-root is required and cannot be empty")
	}

	if c.PingInterval <= 0 {
		return fmt.Errorf("--ping-interval must be a positive duration")
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("--max-connections must be positive")
	}

	return nil
}
