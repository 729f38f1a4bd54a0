package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zombor/ticket-ocr/internal/config"
	"github.com/zombor/ticket-ocr/internal/receipt"
	"github.com/zombor/ticket-ocr/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// shutdownTimeout bounds draining of in-flight requests and image writes
const shutdownTimeout = 30 * time.Second

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", config.Usage())
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	// Initialize scanner based on type
	var scanner scanning.Scanner
	instructions := cfg.Instructions()
	switch cfg.Scanner {
	case config.ScannerMistral:
		slog.Info("Initializing Mistral scanner...", "model", cfg.MistralModel, "prompt_mode", cfg.PromptMode, "response_format", cfg.ResponseFormat)
		scanner, err = scanning.NewMistral(cfg.MistralURL, cfg.MistralAPIKey, cfg.MistralModel, instructions, cfg.UpstreamTimeout)
	case config.ScannerGemini:
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel, "prompt_mode", cfg.PromptMode)
		scanner, err = scanning.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, instructions)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "scanner", cfg.Scanner, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "path", cfg.BucketDir())
	store, err := receipt.NewLocalStorage(cfg.BucketDir())
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	writer := receipt.NewImageWriter(store, cfg.WriterWorkers, cfg.WriterQueue)
	receipt.RegisterMetrics()

	service := receipt.NewService(scanner, writer)
	server := receipt.NewServer(service, cfg.APISecret)

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", receipt.MetricsHandler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server error", "error", err)
			}
		}()
		slog.Info("Metrics server started", "address", cfg.MetricsAddr)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down metrics server", "error", err)
		}
	}
	if err := writer.Close(ctx); err != nil {
		slog.Error("Receipt images still pending at shutdown", "error", err)
	}
}
