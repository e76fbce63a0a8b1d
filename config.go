package pgtools

// Config is the library configuration passed to New. The zero value reproduces
// the plain pass-through behavior: native pgx driver, no statement policy, no
// deadlines, no redaction.
type Config struct {
	// Driver is "pgx" (default) or a registered database/sql driver name
	// such as "postgres" (lib/pq).
	Driver       string             `json:"driver"`
	ReadOnly     bool               `json:"read_only"`
	Timeouts     TimeoutConfig      `json:"timeouts"`
	Sanitization []SanitizationRule `json:"sanitization"`
}

// ServerConfig embeds Config and adds settings used only by the pgtools binary.
type ServerConfig struct {
	Config
	Server  ServerSettings `json:"server"`
	Logging LoggingConfig  `json:"logging"`
}

// TimeoutConfig holds optional statement deadlines. Zero means no deadline.
type TimeoutConfig struct {
	QuerySeconds  int           `json:"query_seconds"`
	SchemaSeconds int           `json:"schema_seconds"`
	Rules         []TimeoutRule `json:"rules"` // postgres_query only
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SanitizationRule defines a regex-based redaction applied to query results.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// ServerSettings selects the MCP transport for the pgtools binary.
type ServerSettings struct {
	Transport          string `json:"transport"` // http, stdio
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for the pgtools binary.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// DefaultServerConfig is used when no config file exists.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Server: ServerSettings{
			Transport: "http",
			Port:      8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}
