// Package errors defines the migration error taxonomy. Every failure a
// migration step can raise is a sentinel, optionally wrapped in a
// MigrationError carrying the human-readable message that ends up in the
// per-record logs.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrVocabulary           = errors.New("vocabulary error")
	ErrUnknownSource        = fmt.Errorf("%w: unknown source", ErrVocabulary)
	ErrDefinitionMismatch   = fmt.Errorf("%w: malformed definition", ErrVocabulary)
	ErrValueShape           = fmt.Errorf("%w: value does not match definition shape", ErrVocabulary)
	ErrUnknownVocabulary    = errors.New("unknown vocabulary type")
	ErrLossyConversion      = errors.New("lossy conversion")
	ErrJSONConversion       = errors.New("json conversion failed")
	ErrDumpRevision         = errors.New("cannot build dump revisions")
	ErrPIDAlreadyExists     = errors.New("pid already exists")
	ErrRecordRelations      = errors.New("record relations error")
	ErrManualImportRequired = errors.New("manual import required")
	ErrSeriesMigration      = errors.New("series migration error")
	ErrAcqOrder             = errors.New("acquisition order error")
	ErrProvider             = errors.New("provider error")
	ErrDocumentMigration    = errors.New("document migration error")
	ErrItemMigration        = errors.New("item migration error")
	ErrLoanMigration        = errors.New("loan migration error")
	ErrEItemMigration       = errors.New("eitem migration error")
	ErrILSValidation        = errors.New("ils validation error")
)

// MigrationError attaches a message (and for lossy conversions, the list of
// MARC fields without a rule) to one of the sentinels above.
type MigrationError struct {
	Err     error
	Message string
	Missing []string
}

func (e *MigrationError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *MigrationError {
	return &MigrationError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *MigrationError {
	return &MigrationError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Lossy reports MARC fields that were present in the input but have no
// migration rule.
func Lossy(missing ...string) *MigrationError {
	return &MigrationError{
		Err:     ErrLossyConversion,
		Message: fmt.Sprintf("lossy conversion: %s", strings.Join(missing, ", ")),
		Missing: missing,
	}
}

// Missing returns the fields carried by a lossy conversion error, if any.
func Missing(err error) []string {
	var migErr *MigrationError
	if errors.As(err, &migErr) {
		return migErr.Missing
	}
	return nil
}

// IsConfiguration reports whether err points at a bug in the vocabulary
// definitions rather than at bad record data. ErrValueShape is record data.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrUnknownSource) || errors.Is(err, ErrDefinitionMismatch)
}
