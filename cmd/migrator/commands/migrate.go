package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/migrator"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/console"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/tracing"
)

type migrateOptions struct {
	provider        string
	output          string
	publishOutcomes bool
	allowUpdates    bool
	raiseExceptions bool
}

func (c *CLI) newMigrateCmd() *cobra.Command {
	opts := migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate <rectype> <dump files...>",
		Short: "Migrate legacy record dumps of one record type",
		Long: "Reads JSON dump files, checks the controlled-vocabulary fields of every record " +
			"against the definitions of its record type and writes the accepted records as JSON lines.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("allow-updates") {
				c.cfg.Migration.AllowUpdates = opts.allowUpdates
			}
			if flags.Changed("raise-exceptions") {
				c.cfg.Migration.RaiseExceptions = opts.raiseExceptions
			}
			if flags.Changed("publish-outcomes") {
				c.cfg.Migration.PublishOutcomes = opts.publishOutcomes
			}
			if flags.Changed("output") {
				c.cfg.Migration.OutputPath = opts.output
			}
			return c.runMigrate(cmd.Context(), args[0], opts.provider, args[1:])
		},
	}
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "cds", "legacy system the dumps come from")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file for migrated records, - for stdout")
	cmd.Flags().BoolVar(&opts.publishOutcomes, "publish-outcomes", false, "publish per-record outcomes to Kafka")
	cmd.Flags().BoolVar(&opts.allowUpdates, "allow-updates", false, "update records that were already migrated")
	cmd.Flags().BoolVar(&opts.raiseExceptions, "raise-exceptions", false, "stop at the first unexpected error")
	return cmd
}

func (c *CLI) openOutput(res *resources) (io.Writer, error) {
	path := c.cfg.Migration.OutputPath
	if path == "-" || path == "" {
		return c.out, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	res.add(f.Close)
	return f, nil
}

func (c *CLI) runMigrate(ctx context.Context, rectype, provider string, files []string) error {
	res := &resources{}
	defer res.Close()

	m := c.newMetrics(res)
	validator, err := c.buildValidator(ctx, res, m)
	if err != nil {
		return err
	}
	definitions, err := vocabulary.LoadDefinitions(c.cfg.Vocabulary.DefinitionsPath)
	if err != nil {
		return err
	}
	records, err := c.openRecords(ctx, res)
	if err != nil {
		return err
	}
	w, err := c.openOutput(res)
	if err != nil {
		return err
	}
	output := migrator.NewOutputWriter(w)

	registry := migrator.NewRegistry()
	registry.Register(provider, &migrator.VocabularyImporter{
		Validator:    validator,
		Definitions:  definitions,
		Output:       output,
		Records:      records,
		AllowUpdates: c.cfg.Migration.AllowUpdates,
	})
	runner := &migrator.Runner{
		RecordType: rectype,
		Provider:   provider,
		Registry:   registry,
		Handlers: &migrator.Handlers{
			Console:         console.New(c.errOut),
			Lookup:          records,
			AllowUpdates:    c.cfg.Migration.AllowUpdates,
			RaiseExceptions: c.cfg.Migration.RaiseExceptions,
		},
		Metrics:     m,
		MaxParallel: c.cfg.Migration.MaxParallel,
	}

	if c.cfg.Migration.PublishOutcomes {
		producer := kafka.NewProducer(c.cfg.Kafka, c.cfg.Kafka.Topics.MigrationOutcomes)
		res.add(producer.Close)
		collector := migrator.NewOutcomeCollector(producer, c.cfg.Migration.BatchSize, c.cfg.Migration.FlushInterval)
		collectorCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		collector.Start(collectorCtx)
		defer func() {
			stop()
			collector.Close()
		}()
		runner.Outcomes = collector
	}

	slog.Info("migration started",
		"rectype", rectype,
		"provider", provider,
		"files", len(files),
		"definitions", len(definitions.For(rectype)),
	)
	ctx, span := tracing.Start(ctx, "migrate "+rectype)
	summary, err := runner.ProcessFiles(ctx, files)
	span.Set("provider", provider, "files", len(files))
	span.End()
	span.Log(nil)

	hits, misses, fetches := validator.Stats()
	slog.Info("migration finished",
		"rectype", rectype,
		"total", summary.Total,
		"migrated", summary.Migrated,
		"failed", summary.Failed,
		"written", output.Count(),
		"cache_hits", hits,
		"cache_misses", misses,
		"source_fetches", fetches,
	)
	color := console.Green
	if summary.Failed > 0 {
		color = console.Yellow
	}
	report := c.console
	if w == c.out {
		report = console.New(c.errOut)
	}
	report.Sechof(color, "%s: %d of %d records migrated, %d failed, %d files",
		rectype, summary.Migrated, summary.Total, summary.Failed, summary.Files)
	return err
}
