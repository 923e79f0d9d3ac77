package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/coda-tap/pkg/config"
	"github.com/Sternrassler/coda-tap/pkg/logging"
	"github.com/Sternrassler/coda-tap/pkg/metrics"
	"github.com/Sternrassler/coda-tap/pkg/sink"
)

// version is set at build time via -ldflags.
var version = "dev"

type options struct {
	configPath  string
	logLevel    string
	pretty      bool
	apiURL      string
	openAPIURL  string
	redisAddr   string
	sqlitePath  string
	metricsAddr string
	parallel    int
	strict      bool
	selected    []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "tap-coda",
		Short: "Extract Coda docs, tables and rows as a Singer stream",
		Long: "tap-coda walks every Coda document visible to the token, its pages,\n" +
			"formulas, controls, permissions and tables, and each table's columns\n" +
			"and rows, and writes SCHEMA and RECORD messages to standard output.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (YAML or JSON)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	f.BoolVar(&opts.pretty, "pretty", false, "Human-readable logs on stderr")
	f.StringVar(&opts.apiURL, "api-url", "", "Coda API base URL")
	f.StringVar(&opts.openAPIURL, "openapi-url", "", "Coda API description URL")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for caching the API description")
	f.IntVar(&opts.parallel, "parallel", 0, "Root streams traversed concurrently")
	f.StringSliceVar(&opts.selected, "select", nil, "Streams to emit (repeatable, default all)")

	rf := cmd.Flags()
	rf.StringVar(&opts.sqlitePath, "sqlite", "", "Also store records in this SQLite database")
	rf.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	rf.BoolVar(&opts.strict, "strict", false, "Fail the run on the first malformed record")

	cmd.AddCommand(newDiscoverCmd(opts))
	return cmd
}

// loadConfig merges file, environment and flags, sets up logging and
// validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if _, err := logging.Setup(logging.Config{
		Level:  opts.logLevel,
		Pretty: opts.pretty,
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = opts.apiURL
	}
	if flags.Changed("openapi-url") {
		cfg.OpenAPIURL = opts.openAPIURL
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = opts.redisAddr
	}
	if flags.Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if flags.Changed("select") {
		cfg.Selected = opts.selected
	}
	if flags.Lookup("sqlite") != nil && flags.Changed("sqlite") {
		cfg.SQLitePath = opts.sqlitePath
	}
	if flags.Lookup("strict") != nil && flags.Changed("strict") {
		cfg.StrictRecords = opts.strict
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().Interface("config", cfg.Redacted()).Msg("Configuration loaded")
	return cfg, nil
}

func runSync(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		srv, err := metrics.Listen(opts.metricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(metricsCtx); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			cancelMetrics()
			<-done
		}()
	}

	var out sink.Sink = sink.NewSingerWriter(cmd.OutOrStdout())
	if cfg.SQLitePath != "" {
		db, err := sink.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info().Str("path", cfg.SQLitePath).Str("run_id", db.RunID()).Msg("Writing records to SQLite")
		out = sink.Tee(out, db)
	}

	t, err := newTap(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer t.Close()

	summary, err := t.orchestrator.Run(ctx)
	if err != nil {
		return err
	}
	for _, f := range summary.Failures {
		log.Warn().Str("stream", f.Stream).Str("path", f.Path).Err(f.Err).
			Bool("partial_output", f.PartialOutput).Msg("Stream skipped")
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
