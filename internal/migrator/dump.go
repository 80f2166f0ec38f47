// Package migrator drives record dumps through importers and routes every
// failure to the logging handler registered for its error class. Records
// are independent: one failing record never stops the others unless its
// handler says so.
package migrator

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/buger/jsonparser"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

// Dump is one legacy record as found in a dump file. A dump that could not
// be decoded carries the reason in Err.
type Dump struct {
	LegacyRecID string
	Timestamp   string
	Record      vocabulary.Object
	Err         error
}

// ReadDumpFile decodes a dump file, either a JSON array or one JSON object
// per line.
func ReadDumpFile(path string) ([]Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dump file: %w", err)
	}
	return DecodeDumps(data)
}

// DecodeDumps splits data into dumps. Only an unreadable top level is an
// error; a broken element becomes a Dump with Err set.
func DecodeDumps(data []byte) ([]Dump, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		return decodeArray(trimmed)
	}
	return decodeLines(trimmed)
}

func decodeArray(data []byte) ([]Dump, error) {
	var dumps []Dump
	_, err := jsonparser.ArrayEach(data, func(value []byte, dt jsonparser.ValueType, _ int, err error) {
		if err != nil {
			dumps = append(dumps, Dump{Err: apperrors.Newf(apperrors.ErrJSONConversion, "%v", err)})
			return
		}
		if dt != jsonparser.Object {
			dumps = append(dumps, Dump{Err: apperrors.Newf(apperrors.ErrJSONConversion, "dump element is a %s", dt)})
			return
		}
		dumps = append(dumps, decodeDump(value))
	})
	if err != nil {
		return nil, fmt.Errorf("decoding dump array: %w", err)
	}
	return dumps, nil
}

func decodeLines(data []byte) ([]Dump, error) {
	var dumps []Dump
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dumps = append(dumps, decodeDump(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dump lines: %w", err)
	}
	return dumps, nil
}

// decodeDump accepts a bare record or an envelope
// {"legacy_recid", "timestamp", "record"}.
func decodeDump(value []byte) Dump {
	obj, err := vocabulary.DecodeObject(value)
	if err != nil {
		return Dump{Err: apperrors.Newf(apperrors.ErrJSONConversion, "%v", err)}
	}
	d := Dump{LegacyRecID: obj.String("legacy_recid"), Record: obj}
	inner, ok := obj.Get("record")
	if !ok {
		return d
	}
	record, isObj := inner.(vocabulary.Object)
	if !isObj {
		d.Record = nil
		d.Err = apperrors.New(apperrors.ErrDumpRevision, "cannot build dump revisions")
		return d
	}
	d.Record = record
	d.Timestamp = obj.String("timestamp")
	if d.LegacyRecID == "" {
		d.LegacyRecID = record.String("legacy_recid")
	}
	return d
}
