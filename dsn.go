package pgtools

import (
	"net/url"
	"os"
	"strings"
)

// Environment variables read by ResolveDSN.
const (
	EnvDSN      = "PG_DSN"
	EnvHost     = "PGHOST"
	EnvPort     = "PGPORT"
	EnvDatabase = "PGDATABASE"
	EnvUser     = "PGUSER"
	EnvPassword = "PGPASSWORD"

	DefaultPort = "5432"
)

// Env looks up an environment variable, returning "" when unset.
type Env func(key string) string

// OSEnv reads the process environment.
var OSEnv Env = os.Getenv

// ConnectionParams are the discrete fields a DSN is composed from.
type ConnectionParams struct {
	Host     string
	Port     string
	DBName   string
	User     string
	Password string
}

// ResolveDSN returns the PG_DSN override verbatim when set, otherwise a DSN
// composed from PGHOST/PGPORT/PGDATABASE/PGUSER/PGPASSWORD. ok is false when
// the connection is not configured.
func ResolveDSN(env Env) (dsn string, ok bool) {
	if env == nil {
		env = OSEnv
	}
	if override := env(EnvDSN); override != "" {
		return override, true
	}
	return ComposeDSN(ConnectionParams{
		Host:     env(EnvHost),
		Port:     env(EnvPort),
		DBName:   env(EnvDatabase),
		User:     env(EnvUser),
		Password: env(EnvPassword),
	})
}

// ComposeDSN builds a libpq keyword/value connection string. Host, DBName,
// User and Password are required; Port defaults to 5432.
func ComposeDSN(p ConnectionParams) (string, bool) {
	if p.Host == "" || p.DBName == "" || p.User == "" || p.Password == "" {
		return "", false
	}
	port := p.Port
	if port == "" {
		port = DefaultPort
	}
	parts := []string{
		"host=" + quoteDSNValue(p.Host),
		"port=" + quoteDSNValue(port),
		"dbname=" + quoteDSNValue(p.DBName),
		"user=" + quoteDSNValue(p.User),
		"password=" + quoteDSNValue(p.Password),
	}
	return strings.Join(parts, " "), true
}

// quoteDSNValue single-quotes values libpq would otherwise split or misread.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r\f\v'\\") {
		return v
	}
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range v {
		if r == '\'' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('\'')
	return sb.String()
}

// MaskDSN hides the password in a keyword/value or URL DSN for display.
func MaskDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return maskURLDSN(dsn)
	}
	return maskKeywordDSN(dsn)
}

const maskedPassword = "****"

func maskURLDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		scheme, _, _ := strings.Cut(dsn, "://")
		return scheme + "://" + maskedPassword
	}
	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, pair := range pairs {
			key, _, _ := strings.Cut(pair, "=")
			if k, err := url.QueryUnescape(key); err == nil && k == "password" {
				pairs[i] = key + "=" + maskedPassword
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}
	// Redacted writes "xxxxx"; url.UserPassword would percent-encode '*'.
	return strings.Replace(u.Redacted(), ":xxxxx@", ":"+maskedPassword+"@", 1)
}

// maskKeywordDSN walks key = value pairs the way libpq tokenizes them, so
// quoted values and whitespace around '=' are handled.
func maskKeywordDSN(dsn string) string {
	var sb strings.Builder
	i := 0
	for i < len(dsn) {
		if isDSNSpace(dsn[i]) {
			sb.WriteByte(dsn[i])
			i++
			continue
		}

		start := i
		for i < len(dsn) && dsn[i] != '=' && !isDSNSpace(dsn[i]) {
			i++
		}
		key := dsn[start:i]

		j := i
		for j < len(dsn) && isDSNSpace(dsn[j]) {
			j++
		}
		if j >= len(dsn) || dsn[j] != '=' {
			// Not a key = value pair; nothing more can be parsed reliably.
			sb.WriteString(dsn[start:])
			return sb.String()
		}
		j++
		for j < len(dsn) && isDSNSpace(dsn[j]) {
			j++
		}
		sb.WriteString(dsn[start:j])
		i = j

		valueStart := i
		if i < len(dsn) && dsn[i] == '\'' {
			i++
			for i < len(dsn) && dsn[i] != '\'' {
				if dsn[i] == '\\' {
					i++
				}
				i++
			}
			i++
		} else {
			for i < len(dsn) && !isDSNSpace(dsn[i]) {
				if dsn[i] == '\\' {
					i++
				}
				i++
			}
		}
		if i > len(dsn) {
			i = len(dsn)
		}

		if key == "password" {
			sb.WriteString(maskedPassword)
		} else {
			sb.WriteString(dsn[valueStart:i])
		}
	}
	return sb.String()
}

func isDSNSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
