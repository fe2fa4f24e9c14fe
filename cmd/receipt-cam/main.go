package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffjson"
	"github.com/zombor/receipt-cam/internal/corrections"
	"github.com/zombor/receipt-cam/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// rootConfig holds the flags every subcommand shares
type rootConfig struct {
	flags *ff.FlagSet

	vendor         *string
	openAIKey      *string
	openAIURL      *string
	openAIModel    *string
	anthropicKey   *string
	anthropicURL   *string
	anthropicModel *string
	geminiKey      *string
	geminiModel    *string
	ollamaURL      *string
	ollamaModel    *string
	corrections    *string
	timeout        *time.Duration
	debug          *bool
	showVersion    *bool
	configFile     *string
}

func newRootConfig() *rootConfig {
	fs := ff.NewFlagSet("receipt-cam")
	return &rootConfig{
		flags:          fs,
		vendor:         fs.StringLong("vendor", scanning.VendorOpenAI, "Vision vendor: openai, anthropic, gemini or ollama"),
		openAIKey:      fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)"),
		openAIURL:      fs.StringLong("openai-url", "", "OpenAI API base URL"),
		openAIModel:    fs.StringLong("openai-model", "", "OpenAI model name"),
		anthropicKey:   fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)"),
		anthropicURL:   fs.StringLong("anthropic-url", "", "Anthropic API base URL"),
		anthropicModel: fs.StringLong("anthropic-model", "", "Anthropic model name"),
		geminiKey:      fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:    fs.StringLong("gemini-model", "", "Google Gemini model name"),
		ollamaURL:      fs.StringLong("ollama-url", "", "Ollama API base URL"),
		ollamaModel:    fs.StringLong("ollama-model", "", "Ollama model name (e.g., llava, qwen2-vl)"),
		corrections:    fs.StringLong("corrections", "corrections.txt", "Learned correction rules file"),
		timeout:        fs.DurationLong("timeout", 60*time.Second, "Timeout for one vision request"),
		debug:          fs.BoolLong("debug", "Enable debug logging"),
		showVersion:    fs.BoolLong("version", "Show version information"),
		configFile:     fs.StringLong("config", "receipt-cam.json", "JSON config file (optional)"),
	}
}

// scanningConfig builds the vendor configuration, falling back to the
// vendors' conventional environment variables for API keys
func (c *rootConfig) scanningConfig(vendor string) scanning.Config {
	return scanning.Config{
		Vendor:         vendor,
		OpenAIKey:      withEnv(*c.openAIKey, "OPENAI_API_KEY"),
		OpenAIURL:      *c.openAIURL,
		OpenAIModel:    *c.openAIModel,
		AnthropicKey:   withEnv(*c.anthropicKey, "ANTHROPIC_API_KEY"),
		AnthropicURL:   *c.anthropicURL,
		AnthropicModel: *c.anthropicModel,
		GeminiKey:      withEnv(*c.geminiKey, "GEMINI_API_KEY"),
		GeminiModel:    *c.geminiModel,
		OllamaURL:      *c.ollamaURL,
		OllamaModel:    *c.ollamaModel,
		Timeout:        *c.timeout,
	}
}

// loadCorrections opens the rule file named by --corrections
func (c *rootConfig) loadCorrections() (*corrections.Store, error) {
	store := corrections.NewStore(*c.corrections)
	if err := store.LoadAll(); err != nil {
		return nil, fmt.Errorf("loading corrections: %w", err)
	}
	slog.Debug("Loaded corrections", "path", store.Path(), "rules", len(store.Rules()))
	return store, nil
}

// newScanner builds the vision service for the selected vendor
func (c *rootConfig) newScanner(store *corrections.Store) (*scanning.Service, error) {
	slog.Info("Initializing vision service...", "vendor", *c.vendor)
	return scanning.New(c.scanningConfig(*c.vendor), store)
}

func (c *rootConfig) setupLogging() {
	level := slog.LevelInfo
	if *c.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func withEnv(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}

func main() {
	// Check for version flag before parsing so subcommand validation cannot get in the way
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	root := newRootConfig()
	cmd := &ff.Command{
		Name:      "receipt-cam",
		Usage:     "receipt-cam [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "capture receipts from a camera and extract their fields with a vision model",
		Flags:     root.flags,
		Subcommands: []*ff.Command{
			newServeCommand(root),
			newAnalyzeCommand(root),
			newLearnCommand(root),
			newCorrectionsCommand(root),
			newEvalCommand(root),
			newLedgerCommand(root),
		},
		Exec: func(context.Context, []string) error {
			if *root.showVersion {
				fmt.Println(version)
				return nil
			}
			return ff.ErrHelp
		},
	}

	err := cmd.Parse(os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_CAM"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffjson.Parse),
		ff.WithConfigAllowMissingFile(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(cmd.GetSelected()))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	root.setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(cmd.GetSelected()))
			os.Exit(0)
		}
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
