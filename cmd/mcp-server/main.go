package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openwrap-setup/internal/config"
	"github.com/patrickwarner/openwrap-setup/internal/macros"
	"github.com/patrickwarner/openwrap-setup/internal/observability"
)

func main() {
	appCfg := config.Load()

	// Initialize logger for MCP server - use stderr to avoid stdio conflicts
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	// Use same encoder config as observability package for consistency
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("owsetup-mcp").With(zap.String("service", "owsetup-mcp"))
	defer func() { _ = logger.Sync() }()

	names := macros.NewService(logger, appCfg.NameTemplates())
	if err := names.Check(); err != nil {
		logger.Fatal("invalid name templates", zap.Error(err))
	}

	server := newMCPServer(&SetupServer{
		names:   names,
		logger:  logger,
		metrics: observability.NewNoOpRegistry(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Add logging transport to debug MCP communication
	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio")
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
