package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/tracing"
)

// Summary counts processed records.
type Summary struct {
	Files    int `json:"files"`
	Total    int `json:"total"`
	Migrated int `json:"migrated"`
	Failed   int `json:"failed"`
}

func (s *Summary) Add(o Summary) {
	s.Files += o.Files
	s.Total += o.Total
	s.Migrated += o.Migrated
	s.Failed += o.Failed
}

// Runner processes dumps of one record type from one provider.
type Runner struct {
	RecordType  string
	Provider    string
	Registry    *Registry
	Handlers    *Handlers
	Outcomes    OutcomeSink
	Metrics     *metrics.Metrics
	MaxParallel int
}

func (r *Runner) table() Table {
	h := r.Handlers
	if h == nil {
		h = &Handlers{}
	}
	return h.TableFor(r.RecordType)
}

// Process imports dumps in order. Failures are routed through the handler
// table of the record type; the batch stops when a handler returns an error
// or when the definitions themselves are broken.
func (r *Runner) Process(ctx context.Context, dumps []Dump) (Summary, error) {
	summary := Summary{}
	importer, err := r.Registry.For(r.Provider)
	if err != nil {
		return summary, err
	}
	table := r.table()
	log := slog.Default().With("component", "migration-runner", "rectype", r.RecordType, "provider", r.Provider)

	for _, d := range dumps {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Total++
		recCtx := logger.WithLegacyID(ctx, d.LegacyRecID)

		var report Report
		err := d.Err
		if err == nil {
			report, err = importer.Import(recCtx, r.RecordType, r.Provider, d)
		}
		if err == nil {
			summary.Migrated++
			r.track(d, report, StatusMigrated, nil)
			logger.FromContext(recCtx).Debug("record migrated", "pid", report.PID, "action", report.Action)
			continue
		}

		summary.Failed++
		r.track(d, report, StatusError, err)
		ec := ErrorContext{
			LegacyID:   d.LegacyRecID,
			RecordType: r.RecordType,
			Provider:   r.Provider,
			NewPID:     report.PID,
			Status:     StatusError,
		}
		herr := table.Handle(recCtx, err, ec)
		if herr == nil && apperrors.IsConfiguration(err) {
			herr = err
		}
		if herr != nil {
			log.Error("migration aborted", "legacy_recid", d.LegacyRecID, "error", herr)
			return summary, fmt.Errorf("record %s: %w", d.LegacyRecID, herr)
		}
	}
	return summary, nil
}

func (r *Runner) track(d Dump, report Report, status string, err error) {
	if r.Metrics != nil {
		r.Metrics.RecordsProcessedTotal.WithLabelValues(r.RecordType, status).Inc()
	}
	if r.Outcomes == nil {
		return
	}
	o := Outcome{
		LegacyRecID: d.LegacyRecID,
		RecordType:  r.RecordType,
		Provider:    r.Provider,
		PID:         report.PID,
		Action:      report.Action,
		Status:      status,
		Timestamp:   time.Now().UTC(),
	}
	if err != nil {
		o.Error = err.Error()
		o.Action = ""
	}
	r.Outcomes.Track(o)
}

// ProcessFile reads and processes one dump file.
func (r *Runner) ProcessFile(ctx context.Context, path string) (Summary, error) {
	ctx, span := tracing.Child(ctx, "dump-file")
	defer span.End()
	span.Set("file", path)

	dumps, err := ReadDumpFile(path)
	if err != nil {
		return Summary{}, err
	}
	summary, err := r.Process(ctx, dumps)
	summary.Files = 1
	span.Set("total", summary.Total, "migrated", summary.Migrated, "failed", summary.Failed)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", path, err)
	}
	slog.Default().Info("dump file processed",
		"file", path,
		"total", summary.Total,
		"migrated", summary.Migrated,
		"failed", summary.Failed,
	)
	return summary, nil
}

// ProcessFiles processes independent dump files concurrently, at most
// MaxParallel at a time. The first aborted file cancels the others.
func (r *Runner) ProcessFiles(ctx context.Context, paths []string) (Summary, error) {
	g, gctx := errgroup.WithContext(ctx)
	if r.MaxParallel > 0 {
		g.SetLimit(r.MaxParallel)
	}
	var mu sync.Mutex
	total := Summary{}
	for _, path := range paths {
		g.Go(func() error {
			s, err := r.ProcessFile(gctx, path)
			mu.Lock()
			total.Add(s)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return total, err
}
