// Command fleet-rental-sim runs the fleet rental simulator.
//
// It supports four commands:
//  1. "serve" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "run" – replays a rentals file headless and writes invoices and reports
//  4. "report" – rebuilds the reports of an existing invoice directory
//
// Flags control the config directory, the profile, logging, and optional
// ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/fleet-rental-sim/api"
	"github.com/wricardo/fleet-rental-sim/fleet/config"
	"github.com/wricardo/fleet-rental-sim/fleet/runs"
	"github.com/wricardo/fleet-rental-sim/fleet/service"
	"github.com/wricardo/fleet-rental-sim/logger"
	"github.com/wricardo/fleet-rental-sim/transport/mcp"
	"github.com/wricardo/fleet-rental-sim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Fleet Rental Simulator"
)

// dotenvErr is reported once logging is configured
var dotenvErr error

// externalAPI is probed by the mcp command before it starts its own server
const externalAPI = "http://localhost:8080"

// getConfigDirDefault returns the default configuration directory.
// It first honors the CONFIG_DIR environment variable, then falls back to "configs".
func getConfigDirDefault() string {
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		return configDir
	}
	return "configs"
}

// newApp builds the command tree. Global flags are visible to every
// subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "fleet-rental-sim",
		Usage:   "Simulate a shared electric vehicle fleet and report on its rentals",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config-dir",
				Value: getConfigDirDefault(),
				Usage: "Directory containing simulation profiles",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Value:   config.DefaultName,
				Usage:   "Profile used by the run and report commands",
				Sources: cli.EnvVars("FLEET_PROFILE"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "console",
				Usage:   "Log encoding: console or json",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "HTTP server host",
			},
			&cli.StringFlag{
				Name:    "runs-dir",
				Value:   "runs",
				Usage:   "Directory where run records and their outputs are stored",
				Sources: cli.EnvVars("FLEET_RUNS_DIR"),
			},
			&cli.BoolFlag{
				Name:  "ngrok",
				Usage: "Enable ngrok tunnel (or set NGROK_ENABLED)",
			},
			&cli.StringFlag{
				Name:  "ngrok-auth",
				Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)",
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := "info"
			if cmd.Bool("debug") {
				level = "debug"
			}
			log := logger.Initialize(level, cmd.String("log-format"))
			if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
				log.Warn("error loading .env file", zap.Error(dotenvErr))
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			logger.Sync()
			return nil
		},
		Action: serveAction,
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			runCommand(),
			reportCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server", "http"},
		Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
		Action:  serveAction,
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "Run MCP stdio server, starting an internal HTTP API when none is running",
		Action:  mcpAction,
	}
}

// main loads .env and runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	dotenvErr = godotenv.Load()

	app := newApp()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Error("command failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// initializeServices wires the config manager, the run store and the
// fleet service. Runs persisted by an earlier process are reloaded.
func initializeServices(configDir, runsDir string, hub *websocket.Hub, log *zap.Logger) (service.FleetService, error) {
	configManager, err := config.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := runs.NewFilePersistence(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run persistence: %w", err)
	}

	runManager := runs.NewManagerWithPersistence(persistence, log.Named("runs"))
	if err := runManager.LoadPersisted(); err != nil {
		log.Warn("failed to load persisted runs", zap.Error(err))
	}

	var broadcaster service.Broadcaster
	if hub != nil {
		broadcaster = hub
	}
	return service.NewFleetService(runManager, configManager, broadcaster, log.Named("service")), nil
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// serveAction starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	log := logger.Get()
	log.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", "serve"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(log.Named("ws"))
	go hub.Run(ctx)

	fleetService, err := initializeServices(cmd.String("config-dir"), runsDir(cmd), hub, log)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(fleetService, hub, log.Named("api"))

	addr := fmt.Sprintf("%s:%d", host(cmd), port(cmd))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?run=<run_id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if ngrokRequested(cmd) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, cmd, mainRouter, log.Named("ngrok"))
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-serverErr:
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := fleetService.Shutdown(shutdownCtx); err != nil {
		log.Error("run shutdown error", zap.Error(err))
	}

	wg.Wait()
	log.Info("server stopped")
	return runErr
}

// ngrokRequested checks the flag first, then NGROK_ENABLED.
func ngrokRequested(cmd *cli.Command) bool {
	if cmd.Bool("ngrok") {
		return true
	}
	envEnabled := os.Getenv("NGROK_ENABLED")
	return envEnabled == "true" || envEnabled == "1"
}

// ngrokAuthToken reads the token from the flag or either env spelling.
func ngrokAuthToken(cmd *cli.Command) string {
	if token := cmd.String("ngrok-auth"); token != "" {
		return token
	}
	if token := os.Getenv("NGROK_AUTHTOKEN"); token != "" {
		return token
	}
	return os.Getenv("NGROK_AUTH_TOKEN")
}

// serveNgrok exposes handler through an ngrok tunnel until ctx ends.
func serveNgrok(ctx context.Context, cmd *cli.Command, handler http.Handler, log *zap.Logger) {
	authToken := ngrokAuthToken(cmd)
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if domain := cmd.String("ngrok-domain"); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info("using custom ngrok domain", zap.String("domain", domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Error("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	log.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("websocket", ngrokURL+"/ws?run=<run_id>"),
		zap.String("mcp", ngrokURL+"/mcp"))

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Error("ngrok server error", zap.Error(err))
	}
	log.Info("ngrok tunnel closed")
}

// mcpAction runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:8080; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	log := logger.Get()

	baseURL := externalAPI
	log.Info("checking for external API server", zap.String("url", externalAPI))

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalAPI + "/api")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info("external API server found, using it for MCP", zap.String("url", externalAPI))
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		log.Info("no external API server found, starting internal HTTP server")

		internalURL, shutdown, err := startInternalServer(ctx, cmd, log)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = internalURL
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready", zap.String("api", baseURL))

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// startInternalServer serves the API on a random loopback port. The
// returned function stops the server and any runs it started.
func startInternalServer(ctx context.Context, cmd *cli.Command, log *zap.Logger) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	internalAddr := listener.Addr().String()

	ctx, cancel := context.WithCancel(ctx)
	hub := websocket.NewHub(log.Named("ws"))
	go hub.Run(ctx)

	fleetService, err := initializeServices(cmd.String("config-dir"), runsDir(cmd), hub, log)
	if err != nil {
		cancel()
		listener.Close()
		return "", nil, err
	}

	httpServer := &http.Server{
		Handler: api.NewServer(fleetService, hub, log.Named("api")),
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("internal HTTP server error", zap.Error(err))
		}
	}()
	log.Info("internal HTTP server started", zap.String("addr", internalAddr))

	shutdown := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		fleetService.Shutdown(shutdownCtx)
		cancel()
	}
	return "http://" + internalAddr, shutdown, nil
}

func host(cmd *cli.Command) string {
	return cmd.String("host")
}

func port(cmd *cli.Command) int64 {
	return int64(cmd.Int("port"))
}

func runsDir(cmd *cli.Command) string {
	return cmd.String("runs-dir")
}
