package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

const testDefinitions = `
document:
  authors:
    roles:
      type: author_role
      source: json
    identifiers:
      $each:
        scheme:
          type: author_identifier_scheme
          source: json
  tags:
    type: tag
    source: json
series:
  identifiers:
    scheme:
      type: series_identifier_scheme
      source: elasticsearch
`

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "definitions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinitions), 0o644))

	set, err := LoadDefinitions(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"document", "series"}, set.RecordTypes())

	doc := set.For("document")
	assert.Equal(t, Leaf{Type: "tag", Source: SourceFile}, doc["tags"])

	authors, ok := doc["authors"].(Nested)
	require.True(t, ok)
	assert.Equal(t, Leaf{Type: "author_role", Source: SourceFile}, authors["roles"])
	assert.Equal(t, SequenceOf{Elem: Nested{
		"scheme": Leaf{Type: "author_identifier_scheme", Source: SourceFile},
	}}, authors["identifiers"])

	series := set.For("series")["identifiers"].(Nested)
	assert.Equal(t, Leaf{Type: "series_identifier_scheme", Source: SourceIndex}, series["scheme"])

	assert.Empty(t, set.For("eitem"))
}

func TestLoadDefinitionsErrors(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("document: [1, 2]\n"), 0o644))
	_, err = LoadDefinitions(path)
	assert.Error(t, err)
}

func TestParseDefinitionsRejectsScalars(t *testing.T) {
	_, err := ParseDefinitions(map[string]any{"tags": "tag"})
	assert.ErrorIs(t, err, apperrors.ErrDefinitionMismatch)
}

func TestParseSource(t *testing.T) {
	for name, want := range map[string]Source{
		"json": SourceFile, "file": SourceFile,
		"elasticsearch": SourceIndex, "index": SourceIndex,
	} {
		got, err := ParseSource(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseSource("ftp")
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)
	assert.Equal(t, "Source(9)", Source(9).String())
}

func TestLoadShippedDefinitions(t *testing.T) {
	set, err := LoadDefinitions("../../vocabularies/definitions.yaml")
	require.NoError(t, err)
	assert.Contains(t, set.RecordTypes(), "document")

	authors, ok := set.For("document")["authors"].(Nested)
	require.True(t, ok)
	assert.Equal(t, Leaf{Type: "author_type", Source: SourceFile}, authors["type"])
	subjects := set.For("document")["subjects"]
	assert.Equal(t, Leaf{Type: "doc_subjects", Source: SourceIndex}, subjects)
}
