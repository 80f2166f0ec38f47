package vocabulary

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

// Source selects where the keys of a vocabulary come from.
type Source int

const (
	// SourceFile reads the whole key set from the static JSON catalog.
	SourceFile Source = iota + 1
	// SourceIndex asks the search index whether one (type, key) document
	// exists.
	SourceIndex
)

// ParseSource maps the source names used in definition files. "json" and
// "elasticsearch" are the names found in legacy definition tables.
func ParseSource(name string) (Source, error) {
	switch name {
	case "json", "file":
		return SourceFile, nil
	case "elasticsearch", "index":
		return SourceIndex, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrUnknownSource, "unknown source %s", name)
	}
}

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceIndex:
		return "index"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}
