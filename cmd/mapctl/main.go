// Command mapctl manages insurance heat map datasets from the command line:
// importing and exporting trade CSVs, validating files before upload, and
// rendering map pages to static HTML.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	kafkaadapter "github.com/couchcryptid/insurance-maps/internal/adapter/kafka"
	"github.com/couchcryptid/insurance-maps/internal/config"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	"github.com/couchcryptid/insurance-maps/internal/storage"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "INSURANCE_MAPS"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app carries the settings shared by every subcommand. Flags, environment
// variables (INSURANCE_MAPS_*), and an optional YAML file are merged by viper.
type app struct {
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{
		v:       viper.New(),
		out:     out,
		errOut:  errOut,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NewLocalMetrics(),
	}

	root := &cobra.Command{
		Use:               "mapctl",
		Short:             "Manage insurance heat map datasets",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML file with settings (flags and env override it)")
	pf.String("database-url", "", "PostgreSQL connection string; the JSON data file is used when empty")
	pf.String("data-file", "datasets.json", "JSON file backing the in-memory store")
	pf.String("catalog", "", "trade catalog YAML (built-in catalog when empty)")
	pf.String("svg", "", "US map SVG (built-in tile grid when empty)")
	pf.String("kafka-brokers", "", "comma-separated brokers; change events are published when set")
	pf.String("kafka-topic", "insurance-map-updates", "topic for change events")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (json or text)")
	if err := a.v.BindPFlags(pf); err != nil {
		panic(err)
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.importCmd(),
		a.exportCmd(),
		a.deleteCmd(),
		a.tradesCmd(),
		a.validateCmd(),
		a.renderCmd(),
	)
	return root
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	logger, err := a.newLogger()
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// newLogger writes to stderr so that export and render output on stdout
// stays clean.
func (a *app) newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(a.errOut, opts)
	if strings.EqualFold(a.v.GetString("log-format"), "json") {
		handler = slog.NewJSONHandler(a.errOut, opts)
	}
	return slog.New(handler).With("service", "mapctl"), nil
}

// config maps the merged settings onto the service configuration so the
// CLI opens stores and publishers exactly as mapserver does.
func (a *app) config() *config.Config {
	return &config.Config{
		LogLevel:     a.v.GetString("log-level"),
		LogFormat:    a.v.GetString("log-format"),
		DatabaseURL:  a.v.GetString("database-url"),
		DataFile:     a.v.GetString("data-file"),
		CatalogPath:  a.v.GetString("catalog"),
		SVGPath:      a.v.GetString("svg"),
		KafkaBrokers: sharedcfg.ParseBrokers(a.v.GetString("kafka-brokers")),
		KafkaTopic:   a.v.GetString("kafka-topic"),
	}
}

func (a *app) withStore(ctx context.Context, fn func(storage.Store) error) error {
	cfg := a.config()
	st, closeStore, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DataFile, a.logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(st)
}

func (a *app) withImporter(ctx context.Context, fn func(*ingest.Importer) error) error {
	return a.withStore(ctx, func(st storage.Store) error {
		cfg := a.config()
		var publisher ingest.Publisher
		if cfg.KafkaEnabled() {
			pub := kafkaadapter.NewPublisher(cfg, a.logger, a.metrics)
			defer func() {
				if err := pub.Close(); err != nil {
					a.logger.Error("kafka writer close error", "error", err)
				}
			}()
			publisher = pub
		}
		return fn(ingest.New(st, publisher, a.logger, a.metrics))
	})
}
