package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/ticket-ocr/internal/scanning"
)

// Scanner providers
const (
	ScannerMistral = "mistral"
	ScannerGemini  = "gemini"
)

// Config is the validated gateway configuration
type Config struct {
	Port      int
	APISecret string

	Scanner        string
	MistralAPIKey  string
	MistralModel   string
	MistralURL     string
	GeminiAPIKey   string
	GeminiModel    string
	PromptMode     scanning.PromptMode
	ResponseFormat scanning.ResponseFormat

	// UpstreamTimeout bounds the model call. Zero leaves it to the transport.
	UpstreamTimeout time.Duration

	Bucket  string
	AppHome string

	WriterWorkers int
	WriterQueue   int

	MetricsAddr string
	LogLevel    slog.Level

	ShowVersion bool
}

type flags struct {
	fs *ff.FlagSet

	port            *int
	apiSecret       *string
	scanner         *string
	mistralKey      *string
	mistralModel    *string
	mistralURL      *string
	geminiKey       *string
	geminiModel     *string
	promptMode      *string
	responseFormat  *string
	upstreamTimeout *time.Duration
	bucket          *string
	appHome         *string
	writerWorkers   *int
	writerQueue     *int
	metricsAddr     *string
	logLevel        *string
	showVersion     *bool
}

// Flag names double as environment variable names (uppercased, dashes to
// underscores), so the deployment's existing variables keep working.
func newFlags() *flags {
	fs := ff.NewFlagSet("ticket-ocr")
	return &flags{
		fs:              fs,
		port:            fs.IntLong("port", 3000, "HTTP server port"),
		apiSecret:       fs.StringLong("app-api-key", "", "Shared secret expected in the x-api-key header"),
		scanner:         fs.StringLong("scanner", ScannerMistral, "Scanner type: 'mistral' or 'gemini'"),
		mistralKey:      fs.StringLong("mistral-api-key", "", "Mistral API key"),
		mistralModel:    fs.StringLong("mistral-model", "mistral-small-latest", "Mistral model name"),
		mistralURL:      fs.StringLong("mistral-url", "https://api.mistral.ai", "Mistral API base URL"),
		geminiKey:       fs.StringLong("gemini-api-key", "", "Google Gemini API key"),
		geminiModel:     fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		promptMode:      fs.StringLong("prompt-mode", string(scanning.PromptSystemUser), "Prompt layout: 'system-user' or 'single'"),
		responseFormat:  fs.StringLong("response-format", string(scanning.FormatJSONObject), "Model output enforcement: 'json_object' or 'text'"),
		upstreamTimeout: fs.DurationLong("upstream-timeout", 0, "Timeout for the model call (0 for none)"),
		bucket:          fs.StringLong("cc-fs-bucket", "/dataset/bills", "Bucket directory for stored receipt images"),
		appHome:         fs.StringLong("app-home", "/home/clevercloud/app", "Application home, joined in front of the bucket path"),
		writerWorkers:   fs.IntLong("writer-workers", 2, "Background image writer goroutines"),
		writerQueue:     fs.IntLong("writer-queue", 64, "Background image writer queue length"),
		metricsAddr:     fs.StringLong("metrics-addr", "", "Listen address for /metrics (disabled when empty)"),
		logLevel:        fs.StringLong("log-level", "info", "Log level: debug, info, warn, error"),
		showVersion:     fs.BoolLong("version", "Show version information"),
	}
}

// Usage returns the flag help text
func Usage() string {
	return ffhelp.Flags(newFlags().fs).String()
}

// Load parses flags and environment variables into a validated Config
func Load(args []string) (*Config, error) {
	f := newFlags()
	if err := ff.Parse(f.fs, args, ff.WithEnvVars()); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &Config{
		Port:            *f.port,
		APISecret:       *f.apiSecret,
		Scanner:         strings.ToLower(strings.TrimSpace(*f.scanner)),
		MistralAPIKey:   *f.mistralKey,
		MistralModel:    *f.mistralModel,
		MistralURL:      *f.mistralURL,
		GeminiAPIKey:    *f.geminiKey,
		GeminiModel:     *f.geminiModel,
		UpstreamTimeout: *f.upstreamTimeout,
		Bucket:          *f.bucket,
		AppHome:         *f.appHome,
		WriterWorkers:   *f.writerWorkers,
		WriterQueue:     *f.writerQueue,
		MetricsAddr:     *f.metricsAddr,
		ShowVersion:     *f.showVersion,
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	var err error
	if cfg.PromptMode, err = scanning.ParsePromptMode(*f.promptMode); err != nil {
		return nil, err
	}
	if cfg.ResponseFormat, err = scanning.ParseResponseFormat(*f.responseFormat); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(*f.logLevel)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or out-of-range setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.APISecret == "" {
		errs = append(errs, errors.New("app-api-key is required"))
	}
	switch c.Scanner {
	case ScannerMistral:
		if c.MistralAPIKey == "" {
			errs = append(errs, errors.New("mistral-api-key is required for the mistral scanner"))
		}
	case ScannerGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("gemini-api-key is required for the gemini scanner"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid scanner type %q (valid: %s, %s)", c.Scanner, ScannerMistral, ScannerGemini))
	}
	if strings.TrimSpace(c.Bucket) == "" {
		errs = append(errs, errors.New("cc-fs-bucket is required"))
	}
	if c.UpstreamTimeout < 0 {
		errs = append(errs, errors.New("upstream-timeout must not be negative"))
	}
	if c.WriterWorkers < 1 {
		errs = append(errs, errors.New("writer-workers must be at least 1"))
	}
	if c.WriterQueue < 0 {
		errs = append(errs, errors.New("writer-queue must not be negative"))
	}
	return errors.Join(errs...)
}

// BucketDir is the directory receipt images are written to
func (c *Config) BucketDir() string {
	if c.AppHome == "" {
		return c.Bucket
	}
	return filepath.Join(c.AppHome, c.Bucket)
}

// Instructions returns the prompt template for the configured layout
func (c *Config) Instructions() scanning.Instructions {
	return scanning.DefaultInstructions(c.PromptMode, c.ResponseFormat)
}
