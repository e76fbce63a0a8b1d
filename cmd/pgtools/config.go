package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/aichatbot/pgtools"
)

const (
	defaultConfigPath = ".pgtools/config.json"
	defaultEnvFile    = ".env"
)

func configPath() string {
	if p := os.Getenv("PGTOOLS_CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

// loadEnvFile loads PGTOOLS_ENV_FILE (or .env) into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func loadEnvFile() error {
	path := os.Getenv("PGTOOLS_ENV_FILE")
	if path == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig reads the config file at path. A missing file yields the
// defaults; fields absent from the file keep their default values.
func loadServerConfig(path string) (*pgtools.ServerConfig, error) {
	config := pgtools.DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// validateServerConfig checks the settings only the binary uses. Library
// settings are validated by pgtools.New.
func validateServerConfig(config *pgtools.ServerConfig) error {
	switch config.Server.Transport {
	case "http":
		if config.Server.Port <= 0 {
			return fmt.Errorf("server.port must be > 0")
		}
		if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "" {
			return fmt.Errorf("server.health_check_path must be set when health_check_enabled is true")
		}
		if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "/mcp" {
			return fmt.Errorf("server.health_check_path must not be /mcp")
		}
	case "stdio":
	default:
		return fmt.Errorf("server.transport must be \"http\" or \"stdio\", got %q", config.Server.Transport)
	}
	return nil
}

// setupLogger builds the process logger. With the stdio transport stdout
// carries the protocol, so logs never go there.
func setupLogger(config pgtools.LoggingConfig, transport string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	switch {
	case config.Output == "stdout" && transport != "stdio":
		output = os.Stdout
	case config.Output != "" && config.Output != "stderr" && config.Output != "stdout":
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
