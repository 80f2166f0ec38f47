package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/console"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/redis"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	var asJSON bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the vocabulary data and the services the configuration points at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report := c.checker().Run(ctx)
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				c.printReport(report)
			}
			if report.Status == health.StatusDown {
				return fmt.Errorf("doctor: status %s", report.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "deadline for all checks")
	return cmd
}

func (c *CLI) printReport(report health.Report) {
	for _, name := range report.Names() {
		comp := report.Components[name]
		msg := fmt.Sprintf("%-16s %-8s %s", name, comp.Status, comp.Message)
		switch comp.Status {
		case health.StatusSkipped:
			c.console.Secho("- "+msg, console.Cyan)
		case health.StatusDegraded:
			c.console.Secho("! "+msg, console.Yellow)
		default:
			c.console.Check(comp.Status == health.StatusUp, msg)
		}
	}
	c.console.Sechof(console.Plain, "overall: %s", report.Status)
}

func (c *CLI) checker() *health.Checker {
	cfg := c.cfg
	checker := health.NewChecker()
	checker.Register("vocabularies", c.checkCatalog)
	checker.Register("definitions", func(context.Context) health.ComponentHealth {
		defs, err := vocabulary.LoadDefinitions(cfg.Vocabulary.DefinitionsPath)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d record types", len(defs))}
	})

	if cfg.Vocabulary.Cache == "redis" {
		checker.Register("redis", health.PingCheck(func(context.Context) error {
			client, err := redis.NewClient(cfg.Redis)
			if err != nil {
				return err
			}
			return client.Close()
		}))
	} else {
		checker.Register("redis", health.Skipped("vocabulary cache is in memory"))
	}

	if cfg.Vocabulary.Index == "postgres" || cfg.Migration.Records == "postgres" {
		checker.Register("postgres", health.PingCheck(func(context.Context) error {
			client, err := postgres.New(cfg.Postgres)
			if err != nil {
				return err
			}
			return client.Close()
		}))
	} else {
		checker.Register("postgres", health.Skipped("no postgres backend configured"))
	}

	if cfg.Vocabulary.Index == "local" {
		checker.Register("vocabindex", func(context.Context) health.ComponentHealth {
			engine, err := vocabindex.Open(cfg.Vocabulary)
			if err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			defer engine.Close()
			if engine.Segments() == 0 {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty, run vocab load"}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d segments", engine.Segments())}
		})
	}

	// Kafka only carries the optional feeds, so an unreachable broker
	// degrades instead of failing the report.
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := kafka.Ping(ctx, cfg.Kafka.Brokers); err != nil {
			status := health.StatusDegraded
			if cfg.Migration.PublishOutcomes {
				status = health.StatusDown
			}
			return health.ComponentHealth{Status: status, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	return checker
}

func (c *CLI) checkCatalog(context.Context) health.ComponentHealth {
	dir := c.cfg.Vocabulary.DataDir
	if _, err := os.Stat(dir); err != nil {
		return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
	}
	types := vocabulary.DefaultCatalog.Types()
	missing := 0
	for _, t := range types {
		name, _ := vocabulary.DefaultCatalog.Filename(t)
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing++
		}
	}
	if missing > 0 {
		return health.ComponentHealth{
			Status:  health.StatusDegraded,
			Message: fmt.Sprintf("%d of %d vocabulary files missing in %s", missing, len(types), dir),
		}
	}
	return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d vocabulary files", len(types))}
}
