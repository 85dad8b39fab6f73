package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/use-agent/navigator/config"
	"github.com/use-agent/navigator/debugsrv"
	"github.com/use-agent/navigator/internal/driver"
	"github.com/use-agent/navigator/internal/runtime"
	"github.com/use-agent/navigator/tools"
)

// version is set at build time via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "navigator-mcp",
		Short: "MCP stdio server mediating between an assistant and a CDP-driven browser",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the navigator-mcp version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("navigator-mcp " + version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logger := initLogger(cfg.Log)
	logger.Info("navigator-mcp starting",
		"headless", cfg.Browser.Headless,
		"stealth", cfg.Browser.Stealth,
		"captureProfile", cfg.Capture.DefaultProfile,
		"maxResponseBytes", cfg.Capture.MaxResponseBytes,
	)

	// ── 3. Initialise the browser driver ────────────────────────────
	drv, err := driver.NewRodDriver(cfg.Browser, logger)
	if err != nil {
		logger.Error("failed to initialise browser driver", "error", err)
		os.Exit(1)
	}

	// ── 4. Wire the tool-runtime core ───────────────────────────────
	rt, err := runtime.New(*cfg, drv, logger)
	if err != nil {
		logger.Error("failed to initialise runtime", "error", err)
		os.Exit(1)
	}

	// ── 5. Register the MCP tool surface ────────────────────────────
	s := server.NewMCPServer(
		"navigator-mcp",
		version,
		server.WithToolCapabilities(false),
	)
	tools.RegisterBrowser(s, rt)
	tools.RegisterSession(s, rt)
	tools.RegisterObservability(s, rt)
	tools.RegisterForms(s, rt)

	// ── 5b. Optional debug sidecar ──────────────────────────────────
	debugErrCh := make(chan error, 1)
	dbg := debugsrv.New(cfg.Debug.Addr, rt)
	if dbg != nil {
		dbg.Start(debugErrCh)
		logger.Info("debug sidecar listening", "addr", dbg.Addr())
	}

	// ── 6. Serve stdio until shutdown ───────────────────────────────
	serveErrCh := make(chan error, 1)
	go func() {
		if err := server.ServeStdio(s); err != nil {
			serveErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErrCh:
		logger.Error("stdio server error", "error", err)
	case err := <-debugErrCh:
		logger.Error("debug sidecar error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if dbg != nil {
		if err := dbg.Shutdown(ctx); err != nil {
			logger.Error("debug sidecar forced shutdown", "error", err)
		}
	}
	if err := rt.Shutdown(ctx); err != nil {
		logger.Error("runtime shutdown error", "error", err)
	}
	logger.Info("navigator-mcp stopped")
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
