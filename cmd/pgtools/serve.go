package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/aichatbot/pgtools"
)

func runServe() error {
	ctx := context.Background()

	serverConfig, err := loadServerConfig(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := validateServerConfig(serverConfig); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(serverConfig.Logging, serverConfig.Server.Transport)

	tools, err := pgtools.New(serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create tools: %w", err)
	}

	// The connection is resolved per call, so an unreachable database is only
	// reported here, not fatal.
	if err := tools.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("database connection test failed")
	} else {
		logger.Info().Msg("database connection test successful")
	}

	mcpServer := newMCPServer(tools, logger)

	if serverConfig.Server.Transport == "stdio" {
		logger.Info().Msg("starting pgtools server on stdio")
		return server.ServeStdio(mcpServer)
	}

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	httpSrv := &http.Server{Addr: addr}
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	// Start() does not register the handler when a custom *http.Server is
	// provided, so the mux carries /mcp itself.
	httpSrv.Handler = newHTTPHandler(serverConfig.Server, streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgtools server")
	return streamableServer.Start(addr)
}

// newMCPServer creates the MCP server with the tools registered and client
// connections logged.
func newMCPServer(tools *pgtools.Tools, logger zerolog.Logger) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgtools", version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	pgtools.RegisterMCPTools(mcpServer, tools)
	return mcpServer
}

// newHTTPHandler routes /mcp to the MCP handler and, when enabled, serves a
// liveness endpoint. The health check never touches the database.
func newHTTPHandler(settings pgtools.ServerSettings, mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	if settings.HealthCheckEnabled {
		mux.HandleFunc(settings.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}
	mux.Handle("/mcp", mcpHandler)
	return mux
}
