package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/a3tai/mcp-pid-tagger/internal/config"
	"github.com/a3tai/mcp-pid-tagger/internal/mcp"
	"github.com/a3tai/mcp-pid-tagger/internal/pdf"
	"github.com/a3tai/mcp-pid-tagger/internal/project"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newServer wires the drawing service, project store and workspace behind
// the MCP server. The caller closes the returned store.
func newServer(cfg *config.Config, logger *log.Logger) (*mcp.Server, *project.Store, error) {
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, nil, err
	}

	drawings, err := pdf.NewService(cfg.DrawingDirectory, cfg.MaxFileSize, cfg.CachePages, logger.WithPrefix("pdf"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create drawing service: %w", err)
	}

	store, err := project.OpenStore(project.StoreConfig{DBPath: cfg.DBPath})
	if err != nil {
		return nil, nil, err
	}

	workspace := project.NewWorkspace(project.ServiceOpener(drawings),
		project.WithSettings(settings),
		project.WithLogger(logger.WithPrefix("workspace")),
	)

	server, err := mcp.NewServer(cfg, drawings, workspace, store, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server, store, nil
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *log.Logger) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		if err := <-serverErrCh; err != nil {
			return fmt.Errorf("server shutdown with error: %w", err)
		}
	case err := <-serverErrCh:
		if err != nil {
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger := cfg.NewLogger()
	logger.Debug("starting", "config", cfg.String())

	server, store, err := newServer(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// In stdio mode the parent process controls our lifecycle.
	if cfg.IsServerMode() {
		err = runServerMode(ctx, cancel, server, logger)
	} else {
		err = server.Run(ctx)
	}
	if err != nil {
		logger.Error("server error", "err", err)
		store.Close()
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP P&ID Tagger\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
