package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/console"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/logger"
)

// Record statuses written to the per-record-type logs.
const (
	StatusMigrated = "MIGRATED"
	StatusWarning  = "WARNING"
	StatusError    = "ERROR"
)

// ErrorContext is the record metadata a handler logs next to the error.
type ErrorContext struct {
	LegacyID            string
	RecordType          string
	Provider            string
	NewPID              string
	DocumentLegacyRecID string
	DocumentPID         string
	Barcode             string
	Status              string

	// Output, MARCKey and MARCValue describe the field being converted
	// when a MARC rule failed.
	Output    vocabulary.Object
	MARCKey   string
	MARCValue any

	Extra map[string]any
}

func (c ErrorContext) rectype() string {
	if c.RecordType == "" {
		return "document"
	}
	return c.RecordType
}

func (c ErrorContext) attrs(status string, withPID bool) []any {
	attrs := []any{"legacy_id", c.LegacyID, "status", status}
	if withPID {
		attrs = append(attrs, "new_pid", nullable(c.NewPID))
	}
	for k, v := range c.Extra {
		attrs = append(attrs, k, v)
	}
	return attrs
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Handler logs one migration failure. A non-nil return means the failure
// must abort the batch.
type Handler func(ctx context.Context, err error, ec ErrorContext) error

// PIDLookup finds the PID a legacy record was migrated to.
type PIDLookup interface {
	LookupPID(ctx context.Context, rectype, legacyID string) (string, error)
}

// Handlers holds what the individual handlers need: where to log, the
// console for operator feedback and the migration switches.
type Handlers struct {
	Base            *slog.Logger
	Console         *console.Console
	Lookup          PIDLookup
	AllowUpdates    bool
	RaiseExceptions bool
}

func (h *Handlers) log(name string) *slog.Logger {
	base := h.Base
	if base == nil {
		base = slog.Default()
	}
	return logger.NamedFrom(base, name)
}

func (h *Handlers) echo(msg string, color console.Color) {
	c := h.Console
	if c == nil {
		c = console.Default()
	}
	c.Secho(msg, color)
}

// Migration handles a failed MARC field rule.
func (h *Handlers) Migration(ctx context.Context, err error, ec ErrorContext) error {
	legacyID := ec.LegacyID
	if legacyID == "" && ec.Output != nil {
		legacyID = ec.Output.String("legacy_recid")
	}
	h.log(logger.CLI).ErrorContext(ctx, fmt.Sprintf(
		"#RECID: #%s - %s  MARC FIELD: *%s*, input value: %v, -> %s",
		legacyID, err, ec.MARCKey, ec.MARCValue, outputString(ec.Output),
	))
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx,
		fmt.Sprintf("MARC: %s, INPUT VALUE: %v ERROR: %s", ec.MARCKey, ec.MARCValue, err),
		"legacy_id", legacyID, "status", StatusWarning, "new_pid", nil,
	)
	return nil
}

func outputString(o vocabulary.Object) string {
	if o == nil {
		return "{}"
	}
	data, err := o.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", []vocabulary.Field(o))
	}
	return string(data)
}

func (h *Handlers) Revision(ctx context.Context, _ error, ec ErrorContext) error {
	h.echo("Revision problem", console.Red)
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx, "CANNOT BUILD DUMP REVISIONS",
		"legacy_id", ec.LegacyID, "status", StatusError, "new_pid", nil)
	return nil
}

func (h *Handlers) LossyConversion(ctx context.Context, err error, ec ErrorContext) error {
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx,
		fmt.Sprintf("MIGRATION RULE MISSING %v", apperrors.Missing(err)),
		"legacy_id", ec.LegacyID, "status", StatusError, "new_pid", nil)
	return nil
}

func (h *Handlers) JSONConversion(ctx context.Context, err error, ec ErrorContext) error {
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx,
		fmt.Sprintf("Impossible to convert to JSON %s", err),
		"legacy_id", ec.LegacyID, "status", StatusError, "new_pid", nil)
	return nil
}

// ILSValidation logs the schema validation message of the target system.
func (h *Handlers) ILSValidation(ctx context.Context, err error, ec ErrorContext) error {
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx, err.Error(), ec.attrs(StatusError, true)...)
	return nil
}

// MigrationValidation logs records rejected by migration rules, e.g. ones
// that need a manual import.
func (h *Handlers) MigrationValidation(ctx context.Context, err error, ec ErrorContext) error {
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx, err.Error(), ec.attrs(StatusError, true)...)
	return nil
}

func (h *Handlers) ItemMigration(ctx context.Context, err error, ec ErrorContext) error {
	h.echo(err.Error(), console.Blue)
	attrs := append([]any{"new_pid", nullable(ec.NewPID), "document_legacy_recid", nullable(ec.DocumentLegacyRecID)},
		ec.attrs(ec.Status, false)...)
	h.log(logger.RecordLoggerName(ec.rectype())).WarnContext(ctx, err.Error(), attrs...)
	return nil
}

func (h *Handlers) LoanMigration(ctx context.Context, err error, ec ErrorContext) error {
	h.echo(err.Error(), console.Blue)
	h.log(logger.Loans).ErrorContext(ctx, err.Error(), ec.attrs(StatusError, true)...)
	return nil
}

// PIDAlreadyExists reports the PID of the record that is already there
// and keeps the error going.
func (h *Handlers) PIDAlreadyExists(ctx context.Context, err error, ec ErrorContext) error {
	id := ec.LegacyID
	if id == "" {
		id = ec.Barcode
	}
	pid := "unknown"
	if h.Lookup != nil {
		found, lookupErr := h.Lookup.LookupPID(ctx, ec.rectype(), ec.LegacyID)
		if lookupErr != nil {
			return errors.Join(err, lookupErr)
		}
		pid = found
	}
	h.echo(fmt.Sprintf("Record %s already exists with pid %s", id, pid), console.Blue)
	return err
}

func (h *Handlers) EItemMigration(ctx context.Context, err error, ec ErrorContext) error {
	h.log(logger.EItems).ErrorContext(ctx, err.Error(), "document_pid", nullable(ec.DocumentPID))
	return nil
}

func (h *Handlers) Vocabulary(ctx context.Context, err error, ec ErrorContext) error {
	h.echo(err.Error(), console.Blue)
	attrs := append([]any{"new_pid", nullable(ec.NewPID), "document_legacy_recid", nullable(ec.DocumentLegacyRecID)},
		ec.attrs(ec.Status, false)...)
	h.log(logger.Vocabularies).WarnContext(ctx, err.Error(), attrs...)
	return nil
}

// RelationAlreadyExists tolerates existing relations only when updates are
// allowed.
func (h *Handlers) RelationAlreadyExists(ctx context.Context, err error, _ ErrorContext) error {
	h.log(logger.Relations).WarnContext(ctx, err.Error(), "legacy_id", nil, "status", StatusWarning, "new_pid", nil)
	if !h.AllowUpdates {
		return err
	}
	return nil
}

func (h *Handlers) Default(ctx context.Context, err error, ec ErrorContext) error {
	h.log(logger.RecordLoggerName(ec.rectype())).ErrorContext(ctx, err.Error(), ec.attrs(StatusError, true)...)
	if h.RaiseExceptions {
		return err
	}
	return nil
}

// Route sends errors matching Err (by errors.Is) to Handle.
type Route struct {
	Err    error
	Handle Handler
}

// Table is an ordered dispatch table. The first matching route wins;
// unmatched errors go to the fallback.
type Table struct {
	routes   []Route
	fallback Handler
}

func NewTable(fallback Handler, routes ...Route) Table {
	return Table{routes: append([]Route(nil), routes...), fallback: fallback}
}

// With returns a copy of t where routes replace existing routes for the
// same error and are otherwise appended.
func (t Table) With(routes ...Route) Table {
	out := Table{routes: append([]Route(nil), t.routes...), fallback: t.fallback}
	for _, r := range routes {
		replaced := false
		for i := range out.routes {
			if out.routes[i].Err == r.Err {
				out.routes[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			out.routes = append(out.routes, r)
		}
	}
	return out
}

// Lookup returns the handler err is routed to.
func (t Table) Lookup(err error) Handler {
	for _, r := range t.routes {
		if errors.Is(err, r.Err) {
			return r.Handle
		}
	}
	return t.fallback
}

// Handle dispatches err. Nil errors are ignored.
func (t Table) Handle(ctx context.Context, err error, ec ErrorContext) error {
	if err == nil {
		return nil
	}
	h := t.Lookup(err)
	if h == nil {
		return err
	}
	return h(ctx, err, ec)
}

func (t Table) Len() int {
	return len(t.routes)
}

// JSONRecordHandlers serve records imported from JSON dumps.
func (h *Handlers) JSONRecordHandlers() Table {
	return NewTable(h.Default,
		Route{apperrors.ErrILSValidation, h.ILSValidation},
		Route{apperrors.ErrDocumentMigration, h.ItemMigration},
		Route{apperrors.ErrItemMigration, h.ItemMigration},
		Route{apperrors.ErrLoanMigration, h.LoanMigration},
		Route{apperrors.ErrPIDAlreadyExists, h.PIDAlreadyExists},
	)
}

// XMLRecordHandlers serve records converted from MARC XML.
func (h *Handlers) XMLRecordHandlers() Table {
	return NewTable(h.Default,
		Route{apperrors.ErrILSValidation, h.ILSValidation},
		Route{apperrors.ErrJSONConversion, h.JSONConversion},
		Route{apperrors.ErrLossyConversion, h.LossyConversion},
		Route{apperrors.ErrDumpRevision, h.Revision},
		Route{apperrors.ErrPIDAlreadyExists, h.PIDAlreadyExists},
		Route{apperrors.ErrRecordRelations, h.RelationAlreadyExists},
		Route{apperrors.ErrVocabulary, h.Vocabulary},
	)
}

func (h *Handlers) MultipartRecordHandlers() Table {
	return h.XMLRecordHandlers().With(
		Route{apperrors.ErrRecordRelations, h.RelationAlreadyExists},
		Route{apperrors.ErrManualImportRequired, h.MigrationValidation},
		Route{apperrors.ErrSeriesMigration, h.MigrationValidation},
	)
}

func (h *Handlers) AcquisitionOrderHandlers() Table {
	return h.JSONRecordHandlers().With(
		Route{apperrors.ErrAcqOrder, h.MigrationValidation},
		Route{apperrors.ErrProvider, h.MigrationValidation},
	)
}

func (h *Handlers) EItemHandlers() Table {
	return NewTable(h.Default,
		Route{apperrors.ErrILSValidation, h.ILSValidation},
		Route{apperrors.ErrEItemMigration, h.EItemMigration},
	)
}

// TableFor picks the dispatch table of a record type.
func (h *Handlers) TableFor(rectype string) Table {
	switch rectype {
	case "multipart", "serial":
		return h.MultipartRecordHandlers()
	case "acq-order", "acquisition_order":
		return h.AcquisitionOrderHandlers()
	case "eitem":
		return h.EItemHandlers()
	case "item", "loan", "internal_location", "provider", "borrowing_request":
		return h.JSONRecordHandlers()
	default:
		return h.XMLRecordHandlers()
	}
}
