package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "call":
		failed, err := runCall(os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		if failed {
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version":
		fmt.Printf("pgtools %s\n", version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pgtools: PostgreSQL tools for AI agents over MCP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pgtools serve                 Start the MCP server")
	fmt.Println("  pgtools call <tool> [flags]   Run one tool call and print the JSON result")
	fmt.Println("  pgtools doctor [-ping]        Check configuration and connectivity")
	fmt.Println("  pgtools version               Print the version")
	fmt.Println("  pgtools --help                Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PG_DSN                        Full connection string (overrides the PG* variables)")
	fmt.Println("  PGHOST PGPORT PGDATABASE PGUSER PGPASSWORD")
	fmt.Println("  PGTOOLS_CONFIG_PATH           Config file (default .pgtools/config.json)")
	fmt.Println("  PGTOOLS_ENV_FILE              Dotenv file loaded at startup (default .env)")
}
