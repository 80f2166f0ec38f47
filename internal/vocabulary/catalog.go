package vocabulary

import (
	"fmt"
	"os"
	"sort"

	"github.com/buger/jsonparser"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

// Catalog maps vocabulary types to the JSON file holding their keys.
type Catalog map[string]string

// DefaultCatalog is the fixed set of file-backed vocabularies.
var DefaultCatalog = Catalog{
	"alternative_identifier_scheme": "alternative_identifier_schemes.json",
	"alternative_title_type":        "alternative_title_types.json",
	"affiliation_identifier_scheme": "author_affiliation_identifier_schemes.json",
	"author_identifier_scheme":      "author_identifier_schemes.json",
	"author_role":                   "author_roles.json",
	"author_type":                   "author_types.json",
	"identifier_scheme":             "identifier_schemes.json",
	"doc_identifiers_materials":     "document_identifiers_materials.json",
	"document_accelerators":         "document_accelerators.json",
	"document_experiments":          "document_experiments.json",
	"document_standard_reviews":     "document_standard_reviews.json",
	"document_institutions":         "document_institutions.json",
	"doc_subjects":                  "document_subjects.json",
	"conference_identifier_scheme":  "conference_identifier_schemes.json",
	"tag":                           "tags.json",
	"series_url_access_restriction": "series_url_access_restrictions.json",
	"series_identifier_scheme":      "series_identifier_schemes.json",
	"acq_medium":                    "acq_order_line_mediums.json",
	"acq_order_line_payment_mode":   "acq_order_line_payment_modes.json",
	"acq_order_line_purchase_type":  "acq_order_line_purchase_types.json",
	"acq_recipient":                 "acq_order_line_recipients.json",
	"acq_payment_mode":              "acq_payment_modes.json",
	"currencies":                    "currencies.json",
	"doc_req_medium":                "docreq_mediums.json",
	"doc_req_payment_method":        "docreq_payment_methods.json",
	"doc_req_type":                  "docreq_request_types.json",
	"ill_payment_mode":              "ill_payment_modes.json",
	"ill_item_type":                 "ill_item_types.json",
	"item_medium":                   "item_mediums.json",
	"provider_type":                 "provider_types.json",
}

// Filename returns the file of vocabType.
func (c Catalog) Filename(vocabType string) (string, error) {
	name, ok := c[vocabType]
	if !ok {
		return "", apperrors.Newf(apperrors.ErrUnknownVocabulary, "no vocabulary file registered for type %s", vocabType)
	}
	return name, nil
}

// Types lists the vocabulary types of the catalog, sorted.
func (c Catalog) Types() []string {
	types := make([]string, 0, len(c))
	for t := range c {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Entry is one vocabulary term as stored in catalog files and in the
// vocabulary index.
type Entry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Key  string `json:"key"`
	Text string `json:"text"`
}

// EntryID is the identifier given to entries that do not carry one.
func EntryID(vocabType, key string) string {
	return vocabType + "/" + key
}

// ReadCatalogFile reads a vocabulary file: a JSON array of objects that each
// carry at least a string "key". Entries without a "type" get vocabType.
func ReadCatalogFile(path, vocabType string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary file: %w", err)
	}
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("parsing vocabulary file %s: %w", path, err)
	}
	if dataType != jsonparser.Array {
		return nil, fmt.Errorf("parsing vocabulary file %s: expected array, got %s", path, dataType)
	}

	var entries []Entry
	var entryErr error
	idx := 0
	_, err = jsonparser.ArrayEach(value, func(v []byte, dt jsonparser.ValueType, _ int, err error) {
		defer func() { idx++ }()
		if entryErr != nil {
			return
		}
		if err != nil {
			entryErr = err
			return
		}
		if dt != jsonparser.Object {
			entryErr = fmt.Errorf("element %d is a %s, not an object", idx, dt)
			return
		}
		key, err := jsonparser.GetString(v, "key")
		if err != nil {
			entryErr = fmt.Errorf("element %d: missing string key: %w", idx, err)
			return
		}
		entry := Entry{Type: vocabType, Key: key}
		if t, err := jsonparser.GetString(v, "type"); err == nil && t != "" {
			entry.Type = t
		}
		if text, err := jsonparser.GetString(v, "text"); err == nil {
			entry.Text = text
		}
		if id, err := jsonparser.GetString(v, "id"); err == nil && id != "" {
			entry.ID = id
		} else {
			entry.ID = EntryID(entry.Type, key)
		}
		entries = append(entries, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("parsing vocabulary file %s: %w", path, err)
	}
	if entryErr != nil {
		return nil, fmt.Errorf("parsing vocabulary file %s: %w", path, entryErr)
	}
	return entries, nil
}
