package pgtools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aichatbot/pgtools/internal/sanitize"
	"github.com/aichatbot/pgtools/internal/timeout"
)

// Error messages returned inside Results.
const (
	ErrNotConfigured = "PostgreSQL connection not configured"
	ErrESRemoved     = "Elasticsearch support removed. Use Postgres tools."

	invalidParamsPrefix = "Invalid params_json: "
	readOnlyPrefix      = "read-only policy: "
)

// Tools provides the postgres_query, postgres_schema and elasticsearch_mapping
// tools. It holds no per-call state; all methods are safe for concurrent use.
type Tools struct {
	config        Config
	env           Env
	connector     Connector
	driverErr     error
	sanitizer     *sanitize.Sanitizer
	queryTimeout  *timeout.Manager
	schemaTimeout *timeout.Manager
	logger        zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	env       Env
	connector Connector
}

// WithEnv replaces the process environment as the DSN source.
func WithEnv(env Env) Option {
	return func(o *options) {
		o.env = env
	}
}

// WithConnector replaces the connector selected by Config.Driver.
func WithConnector(c Connector) Option {
	return func(o *options) {
		o.connector = c
	}
}

// New creates a Tools instance. The driver capability check runs here, once;
// an unavailable driver is not an error from New but makes every
// database-backed call return "<driver> not installed".
// Returns an error only for invalid configuration.
func New(config Config, logger zerolog.Logger, opts ...Option) (*Tools, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.env == nil {
		o.env = OSEnv
	}
	if o.connector == nil {
		o.connector = NewConnector(config.Driver)
	}

	if config.Timeouts.QuerySeconds < 0 {
		return nil, fmt.Errorf("pgtools: timeouts.query_seconds must be >= 0")
	}
	if config.Timeouts.SchemaSeconds < 0 {
		return nil, fmt.Errorf("pgtools: timeouts.schema_seconds must be >= 0")
	}

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		return nil, fmt.Errorf("pgtools: %w", err)
	}

	rules := make([]timeout.Rule, len(config.Timeouts.Rules))
	for i, r := range config.Timeouts.Rules {
		rules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	queryTimeout, err := timeout.NewManager(timeout.Config{
		Default: time.Duration(config.Timeouts.QuerySeconds) * time.Second,
		Rules:   rules,
	})
	if err != nil {
		return nil, fmt.Errorf("pgtools: %w", err)
	}
	schemaTimeout, err := timeout.NewManager(timeout.Config{
		Default: time.Duration(config.Timeouts.SchemaSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("pgtools: %w", err)
	}

	driverErr := o.connector.Available()
	if driverErr != nil {
		logger.Warn().Err(driverErr).Str("driver", o.connector.Driver()).Msg("database driver unavailable")
	}

	return &Tools{
		config:        config,
		env:           o.env,
		connector:     o.connector,
		driverErr:     driverErr,
		sanitizer:     san,
		queryTimeout:  queryTimeout,
		schemaTimeout: schemaTimeout,
		logger:        logger,
	}, nil
}

// Driver returns the name of the connector's driver.
func (t *Tools) Driver() string {
	return t.connector.Driver()
}

// DriverError returns the result of the startup capability check.
func (t *Tools) DriverError() error {
	return t.driverErr
}

// Ping resolves the DSN and opens and closes one connection.
func (t *Tools) Ping(ctx context.Context) error {
	if t.driverErr != nil {
		return t.driverErr
	}
	dsn, ok := ResolveDSN(t.env)
	if !ok {
		return errors.New(ErrNotConfigured)
	}
	conn, err := t.connector.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Query(ctx, "SELECT 1", nil)
	return err
}

// run opens a connection, executes one statement, and always closes the
// connection before returning.
func (t *Tools) run(ctx context.Context, dsn, sql string, args []any) (*ResultSet, error) {
	conn, err := t.connector.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Close with a fresh context; ctx may already be past its deadline.
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			t.logger.Debug().Err(err).Msg("closing connection")
		}
	}()

	if t.config.ReadOnly {
		if err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return nil, fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
	}
	return conn.Query(ctx, sql, args)
}

// fail logs err for tool and returns it as an error Result.
func (t *Tools) fail(tool string, msg string) *Result {
	t.logger.Error().Str("tool", tool).Str("error", msg).Msg("tool error")
	return Failure(msg)
}

func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}
