package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/cognicore/supportlens/internal/jsonl"
	"github.com/cognicore/supportlens/internal/llm"
	"github.com/cognicore/supportlens/internal/logging"
	"github.com/cognicore/supportlens/pkg/supportlens"
	"github.com/cognicore/supportlens/pkg/supportlens/config"
	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/enrich"
	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
	"github.com/cognicore/supportlens/pkg/supportlens/store"
	"github.com/cognicore/supportlens/pkg/supportlens/store/memstore"
	"github.com/cognicore/supportlens/pkg/supportlens/store/sqlite"
)

type options struct {
	input    string
	messages string
	config   string
	patterns string
	db       string
	out      string
	logLevel string
	noEnrich bool
	runs     int
	show     string
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "Conversations as JSONL or a JSON array (required unless -runs/-show)")
	flag.StringVar(&opts.messages, "messages", "", "Optional: standalone messages file linked by conversation id")
	flag.StringVar(&opts.config, "config", "", "Optional: YAML configuration file")
	flag.StringVar(&opts.patterns, "patterns", "", "Optional: pattern library override (YAML)")
	flag.StringVar(&opts.db, "db", "", "Optional: sqlite database for analysis runs")
	flag.StringVar(&opts.out, "out", "", "Write the JSON report here instead of stdout")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.noEnrich, "no-enrich", false, "Disable language-model enrichment")
	flag.IntVar(&opts.runs, "runs", 0, "List the N most recent stored runs and exit")
	flag.StringVar(&opts.show, "show", "", "Print a stored run by id (or \"latest\") and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "supportlens:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := config.LoadApp(opts.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, opts)

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	st, err := openStore(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}

	switch {
	case opts.runs > 0:
		defer st.Close()
		infos, err := st.ListRuns(ctx, opts.runs)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		return writeJSON(stdout, opts.out, infos)
	case opts.show != "":
		defer st.Close()
		r, err := loadRun(ctx, st, opts.show)
		if err != nil {
			return err
		}
		return writeJSON(stdout, opts.out, r)
	case opts.input == "":
		st.Close()
		return errors.New("-input required")
	}

	lib := patterns.Default()
	if cfg.Patterns != "" {
		if lib, err = patterns.Load(cfg.Patterns); err != nil {
			st.Close()
			return fmt.Errorf("load patterns: %w", err)
		}
	}

	guard, err := newGuard(cfg, logger)
	if err != nil {
		st.Close()
		return err
	}

	eng, err := supportlens.New(supportlens.Options{
		Components: config.Build(lib, cfg.Settings),
		Enricher:   guard,
		Store:      st,
		Logger:     logger,
	})
	if err != nil {
		st.Close()
		return err
	}
	defer eng.Close()

	convs, err := jsonl.LoadConversations(opts.input, logger)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	var msgs []conversation.Message
	if opts.messages != "" {
		if msgs, err = jsonl.LoadMessages(opts.messages, logger); err != nil {
			return fmt.Errorf("load messages: %w", err)
		}
	}

	result, err := eng.Analyze(ctx, convs, msgs)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return writeJSON(stdout, opts.out, result)
}

// applyFlags lets command-line flags win over the configuration file.
func applyFlags(cfg *config.AppConfig, opts options) {
	if opts.patterns != "" {
		cfg.Patterns = opts.patterns
	}
	if opts.db != "" {
		cfg.Store.Path = opts.db
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.noEnrich {
		cfg.Enrichment.Enabled = false
	}
}

func openStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return memstore.New(), nil
	}
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func loadRun(ctx context.Context, st store.Store, id string) (store.Run, error) {
	if id == "latest" {
		return st.LatestRun(ctx)
	}
	return st.GetRun(ctx, id)
}

// newGuard returns nil when enrichment is off, which the engine treats as
// rule-based only.
func newGuard(cfg *config.AppConfig, logger *zap.Logger) (*enrich.Guard, error) {
	if !cfg.EnrichmentReady() {
		if cfg.Enrichment.Enabled {
			logger.Warn("enrichment enabled without credentials, continuing rule-based")
		}
		return nil, nil
	}
	client, err := llm.New(llm.Config{
		APIKey:      cfg.Enrichment.APIKey,
		Model:       cfg.Enrichment.Model,
		BaseURL:     cfg.Enrichment.BaseURL,
		MaxTokens:   cfg.Enrichment.MaxTokens,
		Temperature: cfg.Enrichment.Temperature,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init enrichment: %w", err)
	}
	return enrich.NewGuard(client, enrich.GuardOptions{
		Timeout:           cfg.Enrichment.Timeout,
		RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
		Burst:             cfg.Enrichment.Burst,
		Logger:            logger,
	}), nil
}

func writeJSON(stdout io.Writer, path string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	out = append(out, '\n')
	if path == "" {
		_, err = stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
