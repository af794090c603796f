package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/broadway-labs/styleflow/internal/api"
	"github.com/broadway-labs/styleflow/internal/feedback"
	"github.com/broadway-labs/styleflow/internal/flow"
	"github.com/broadway-labs/styleflow/internal/genai"
	"github.com/broadway-labs/styleflow/internal/images"
	"github.com/broadway-labs/styleflow/internal/session"
	"github.com/broadway-labs/styleflow/internal/store"
	"github.com/broadway-labs/styleflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Styleflow state data
	DefaultStateDir = "/var/lib/styleflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "styleflow.db"
	// DefaultImageDirName is the default directory for uploaded images
	DefaultImageDirName = "images"
)

// Config holds environment configuration
type Config struct {
	DBDriver         string
	DatabaseDSN      string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	SystemPromptFile string
	StallLimit       int
	GenTimeout       time.Duration
	LLMClassifier    bool
	Debug            bool
}

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.Debug)

	parseCommandLineFlags(&config)

	if err := run(config); err != nil {
		slog.Error("Styleflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Styleflow exited successfully")
}

// initializeLogger sets up structured logging.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DBDriver:         os.Getenv("STYLEFLOW_DB_DRIVER"),
		DatabaseDSN:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("STYLEFLOW_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		SystemPromptFile: os.Getenv("STYLEFLOW_SYSTEM_PROMPT_FILE"),
		StallLimit:       flow.DefaultStallLimit,
		GenTimeout:       flow.DefaultGenerationTimeout,
		LLMClassifier:    util.ParseBoolEnv("STYLEFLOW_LLM_CLASSIFIER", false),
		Debug:            util.ParseBoolEnv("STYLEFLOW_DEBUG", false),
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	return config
}

// parseCommandLineFlags lets flags override environment configuration.
func parseCommandLineFlags(config *Config) {
	fs := flag.CommandLine
	fs.StringVar(&config.APIAddr, "addr", config.APIAddr, "API listen address")
	fs.StringVar(&config.StateDir, "state-dir", config.StateDir, "state directory for database and images")
	fs.StringVar(&config.DBDriver, "db-driver", config.DBDriver, "database driver (sqlite3 or postgres)")
	fs.StringVar(&config.DatabaseDSN, "db-dsn", config.DatabaseDSN, "database DSN (file path for sqlite3)")
	fs.StringVar(&config.SystemPromptFile, "system-prompt", config.SystemPromptFile, "system prompt file override")
	fs.IntVar(&config.StallLimit, "stall-limit", config.StallLimit, "turns without extraction progress before degrading a flow")
	fs.DurationVar(&config.GenTimeout, "gen-timeout", config.GenTimeout, "LLM backend call timeout")
	fs.BoolVar(&config.LLMClassifier, "llm-classifier", config.LLMClassifier, "escalate unresolved intents to the LLM backend")
	flag.Parse()
}

// buildStore selects the feedback persistence backend from configuration.
func buildStore(config Config) (store.Store, error) {
	switch config.DBDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(config.DatabaseDSN))
	case "", "sqlite3":
		dsn := config.DatabaseDSN
		if dsn == "" {
			dsn = filepath.Join(config.StateDir, DefaultDBFileName)
		}
		return store.NewSQLiteStore(store.WithDSN(dsn))
	default:
		slog.Warn("Unknown DB driver, using in-memory feedback store", "driver", config.DBDriver)
		return store.NewInMemoryStore(), nil
	}
}

func run(config Config) error {
	st, err := buildStore(config)
	if err != nil {
		return err
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(
		genai.WithAPIKey(config.OpenAIKey),
		genai.WithTimeout(config.GenTimeout),
	)
	if err != nil {
		return err
	}

	imageStore, err := images.NewLocalStore(filepath.Join(config.StateDir, DefaultImageDirName))
	if err != nil {
		return err
	}

	responder := flow.NewResponderWithPromptFile(genaiClient, config.SystemPromptFile)
	if config.SystemPromptFile != "" {
		if err := responder.LoadSystemPrompt(); err != nil {
			slog.Warn("Failed to load system prompt file, using default", "error", err)
		}
	}

	var classifier flow.Classifier = flow.NewKeywordClassifier()
	if config.LLMClassifier {
		classifier = flow.NewGenAIClassifier(classifier, genaiClient)
		slog.Info("LLM-backed intent classification enabled")
	}

	recorder := feedback.NewRecorder(st)
	engine := flow.NewEngine(
		session.NewStore(),
		classifier,
		responder,
		imageStore,
		recorder,
		flow.WithStallLimit(config.StallLimit),
		flow.WithGenerationTimeout(config.GenTimeout),
	)

	server := api.NewServer(engine, recorder, st, api.WithAddr(config.APIAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Styleflow", "state_dir", config.StateDir, "db_driver", config.DBDriver,
		"llm_classifier", config.LLMClassifier, "stall_limit", config.StallLimit)
	return server.Run(ctx)
}
