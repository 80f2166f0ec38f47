package vocabulary

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

func TestDefaultCatalog(t *testing.T) {
	assert.Len(t, DefaultCatalog, 30)

	name, err := DefaultCatalog.Filename("conference_identifier_scheme")
	require.NoError(t, err)
	assert.Equal(t, "conference_identifier_schemes.json", name)

	_, err = DefaultCatalog.Filename("nope")
	assert.ErrorIs(t, err, apperrors.ErrUnknownVocabulary)

	types := DefaultCatalog.Types()
	assert.Equal(t, "acq_medium", types[0])
	assert.IsIncreasing(t, types)
}

func TestReadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"key": "THESIS", "text": "Thesis"},
		{"id": "42", "type": "tag", "key": "BOOK", "text": "Book"}
	]`), 0o644))

	entries, err := ReadCatalogFile(path, "tag")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{ID: "tag/THESIS", Type: "tag", Key: "THESIS", Text: "Thesis"},
		{ID: "42", Type: "tag", Key: "BOOK", Text: "Book"},
	}, entries)
}

func TestReadCatalogFileMalformed(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"not_array.json":   `{"key": "A"}`,
		"missing_key.json": `[{"text": "A"}]`,
		"number_key.json":  `[{"key": 1}]`,
		"scalar.json":      `["A"]`,
		"broken.json":      `[{"key": "A"`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := ReadCatalogFile(path, "tag")
		assert.Error(t, err, name)
	}
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "currencies.json"),
		[]byte(`[{"key": "CHF"}, {"key": "EUR"}]`), 0o644))

	f := NewFileFetcher(dir)
	keys, err := f.Fetch(context.Background(), "currencies", "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"CHF", "EUR"}, keys)
}
