package migrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// Report describes one imported record.
type Report struct {
	LegacyRecID string `json:"legacy_recid"`
	RecordType  string `json:"rectype"`
	Provider    string `json:"provider"`
	PID         string `json:"pid"`
	Action      string `json:"action"`
}

// Importer turns one dump into a record of the target system.
type Importer interface {
	Import(ctx context.Context, rectype, provider string, dump Dump) (Report, error)
}

// Registry maps providers to their importers.
type Registry struct {
	mu        sync.RWMutex
	importers map[string]Importer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{importers: make(map[string]Importer)}
}

// Register sets the importer of provider, replacing any previous one.
func (r *Registry) Register(provider string, imp Importer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importers[provider] = imp
}

// For returns the importer of provider or an ErrProvider error.
func (r *Registry) For(provider string) (Importer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	imp, ok := r.importers[provider]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrProvider, "no importer registered for provider %s", provider)
	}
	return imp, nil
}

func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.importers))
	for p := range r.importers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OutputRecord is one line of the migration output.
type OutputRecord struct {
	PID         string            `json:"pid"`
	LegacyRecID string            `json:"legacy_recid"`
	RecordType  string            `json:"rectype"`
	Provider    string            `json:"provider"`
	Action      string            `json:"action"`
	Record      vocabulary.Object `json:"record"`
}

// OutputWriter writes accepted records as JSON lines. It is safe for
// concurrent use.
type OutputWriter struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

// NewOutputWriter creates an OutputWriter writing JSON lines to w.
func NewOutputWriter(w io.Writer) *OutputWriter {
	return &OutputWriter{w: w}
}

func (o *OutputWriter) Write(rec OutputRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Newf(apperrors.ErrJSONConversion, "encoding record %s: %v", rec.LegacyRecID, err)
	}
	line = append(line, '\n')
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.w.Write(line); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.LegacyRecID, err)
	}
	o.n++
	return nil
}

// Count returns the number of records written.
func (o *OutputWriter) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.n
}

// VocabularyImporter accepts records whose controlled-vocabulary fields are
// valid for their record type and writes them to the output.
type VocabularyImporter struct {
	Validator    *vocabulary.Validator
	Definitions  vocabulary.DefinitionSet
	Output       *OutputWriter
	Records      RecordStore
	AllowUpdates bool
}

// Import validates the record of dump and writes it to the output.
func (vi *VocabularyImporter) Import(ctx context.Context, rectype, provider string, dump Dump) (Report, error) {
	report := Report{LegacyRecID: dump.LegacyRecID, RecordType: rectype, Provider: provider, Action: ActionCreate}
	if dump.LegacyRecID == "" {
		return report, apperrors.New(migrationError(rectype), "record has no legacy_recid")
	}
	if err := vi.Validator.Validate(ctx, vi.Definitions.For(rectype), dump.Record); err != nil {
		return report, err
	}

	if vi.Records != nil {
		pid, err := vi.Records.LookupPID(ctx, rectype, dump.LegacyRecID)
		switch {
		case err == nil && !vi.AllowUpdates:
			return report, apperrors.Newf(apperrors.ErrPIDAlreadyExists,
				"%s %s already migrated as %s", rectype, dump.LegacyRecID, pid)
		case err == nil:
			report.PID = pid
			report.Action = ActionUpdate
		case !errors.Is(err, ErrRecordNotFound):
			return report, err
		}
	}
	if report.PID == "" {
		report.PID = uuid.NewString()
	}

	if vi.Output != nil {
		err := vi.Output.Write(OutputRecord{
			PID:         report.PID,
			LegacyRecID: dump.LegacyRecID,
			RecordType:  rectype,
			Provider:    provider,
			Action:      report.Action,
			Record:      dump.Record,
		})
		if err != nil {
			return report, err
		}
	}
	if vi.Records != nil {
		if err := vi.Records.Save(ctx, rectype, dump.LegacyRecID, report.PID, provider); err != nil {
			return report, err
		}
	}
	return report, nil
}

// migrationError is the sentinel used for malformed records of rectype.
func migrationError(rectype string) error {
	switch rectype {
	case "item":
		return apperrors.ErrItemMigration
	case "loan":
		return apperrors.ErrLoanMigration
	case "eitem":
		return apperrors.ErrEItemMigration
	case "serial", "multipart":
		return apperrors.ErrSeriesMigration
	case "acq-order", "acquisition_order":
		return apperrors.ErrAcqOrder
	default:
		return apperrors.ErrDocumentMigration
	}
}
