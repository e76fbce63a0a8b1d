package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aichatbot/pgtools"
)

func runDoctor() error {
	flags := flag.NewFlagSet("doctor", flag.ExitOnError)
	path := flags.String("config", configPath(), "Path to configuration file")
	ping := flags.Bool("ping", false, "Open a connection and run SELECT 1")
	flags.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *path, pgtools.OSEnv, *ping)
}

func doctor(w io.Writer, useColor bool, configPath string, env pgtools.Env, ping bool) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "pgtools %s\n\n", version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if ok {
		ok = doctorCheckDatabase(w, useColor, config, env, ping)
	}
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'pgtools doctor' again.")
		return nil
	}

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*pgtools.ServerConfig, bool) {
	allPassed := true

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		printCheck(w, useColor, true, fmt.Sprintf("No config file at %s, using defaults", configPath))
	}
	config, err := loadServerConfig(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid: %v", err))
		return nil, false
	}
	printCheck(w, useColor, true, "Config file is valid")

	if err := validateServerConfig(config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Server settings are valid: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Server settings are valid (transport %s)", config.Server.Transport))
	}

	if config.Timeouts.QuerySeconds < 0 || config.Timeouts.SchemaSeconds < 0 {
		printCheck(w, useColor, false, "timeouts are >= 0")
		allPassed = false
	}

	regexOK := true
	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
		}
	}
	for i, rule := range config.Timeouts.Rules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeouts.rules[%d] regex compiles: %v", i, err))
			regexOK = false
		}
		if rule.TimeoutSeconds <= 0 {
			printCheck(w, useColor, false, fmt.Sprintf("timeouts.rules[%d] timeout_seconds is > 0", i))
			regexOK = false
		}
	}
	if regexOK {
		printCheck(w, useColor, true, "All rules are valid")
	} else {
		allPassed = false
	}

	return config, allPassed
}

// doctorCheckDatabase reports driver availability and DSN resolution and, when
// ping is set, connects once.
func doctorCheckDatabase(w io.Writer, useColor bool, config *pgtools.ServerConfig, env pgtools.Env, ping bool) bool {
	tools, err := pgtools.New(config.Config, zerolog.Nop(), pgtools.WithEnv(env))
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Tool configuration is valid: %v", err))
		return false
	}

	allPassed := true
	if err := tools.DriverError(); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Driver available: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Driver available (%s)", tools.Driver()))
	}

	dsn, ok := pgtools.ResolveDSN(env)
	if !ok {
		printCheck(w, useColor, false, fmt.Sprintf("%s: set %s, or all of %s", pgtools.ErrNotConfigured,
			pgtools.EnvDSN, strings.Join(missingEnv(env), ", ")))
		return false
	}
	source := "PG* variables"
	if env(pgtools.EnvDSN) != "" {
		source = pgtools.EnvDSN
	}
	printCheck(w, useColor, true, fmt.Sprintf("Connection configured from %s (%s)", source, pgtools.MaskDSN(dsn)))

	if ping && allPassed {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tools.Ping(ctx); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
			return false
		}
		printCheck(w, useColor, true, "Database reachable")
	}
	return allPassed
}

// missingEnv lists the required discrete variables that are unset.
func missingEnv(env pgtools.Env) []string {
	var missing []string
	for _, key := range []string{pgtools.EnvHost, pgtools.EnvDatabase, pgtools.EnvUser, pgtools.EnvPassword} {
		if env(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP client config snippets for the configured transport.
func printAgentSnippets(w io.Writer, useColor bool, config *pgtools.ServerConfig) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}
	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	if config.Server.Transport == "stdio" {
		subheading("Generic MCP client (stdio)")
		fmt.Fprint(w, `  {
    "mcpServers": {
      "postgres": {
        "command": "pgtools",
        "args": ["serve"]
      }
    }
  }
`)
		return
	}

	url := fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port)

	subheading("Generic MCP client (streamable HTTP)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "url": "%s"
      }
    }
  }
`, url)
}
