package vocabulary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/metrics"
)

type spyFetcher struct {
	calls atomic.Int64
	fn    func(vocabType, key string) ([]string, error)
}

func (s *spyFetcher) Fetch(_ context.Context, vocabType, key string) ([]string, error) {
	s.calls.Add(1)
	return s.fn(vocabType, key)
}

func staticKeys(vocabs map[string][]string) *spyFetcher {
	return &spyFetcher{fn: func(vocabType, _ string) ([]string, error) {
		return vocabs[vocabType], nil
	}}
}

type countSearcher map[string]int

func (c countSearcher) CountByTypeAndKey(_ context.Context, vocabType, key string) (int, error) {
	return c[vocabType+"/"+key], nil
}

func mustDecode(t *testing.T, raw string) Object {
	t.Helper()
	obj, err := DecodeObject([]byte(raw))
	require.NoError(t, err)
	return obj
}

func authorDefinitions() Nested {
	return Nested{
		"authors": Nested{
			"role": Leaf{Type: "author_role", Source: SourceFile},
			"type": Leaf{Type: "author_type", Source: SourceFile},
		},
		"tags": Leaf{Type: "tag", Source: SourceFile},
	}
}

func TestValidateRecursiveStructures(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"author_role": {"editor", "author"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))

	record := mustDecode(t, `{"authors": [{"role": "editor"}, {"role": "unknown_role"}]}`)
	err := v.Validate(context.Background(), authorDefinitions(), record)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrVocabulary)
	assert.Contains(t, err.Error(), "unknown_role")
	assert.Contains(t, err.Error(), "author_role")
	assert.Equal(t, "Value unknown_role not found in vocabulary author_role", err.Error())
}

func TestValidateAcceptsKnownValues(t *testing.T) {
	fetcher := staticKeys(map[string][]string{
		"author_role": {"editor"},
		"author_type": {"PERSON"},
		"tag":         {"THESIS", "BOOK"},
	})
	v := New(NewMemoryCache(), WithFileSource(fetcher))

	record := mustDecode(t, `{
		"title": "Anything",
		"authors": [{"role": "editor", "type": "PERSON", "full_name": "Doe, J"}],
		"tags": ["THESIS", "BOOK"]
	}`)
	require.NoError(t, v.Validate(context.Background(), authorDefinitions(), record))
	assert.Equal(t, int64(3), fetcher.calls.Load())
}

func TestIdempotentSuccess(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"THESIS"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	def := Leaf{Type: "tag", Source: SourceFile}

	require.NoError(t, v.HasKey(context.Background(), def, "THESIS"))
	require.NoError(t, v.HasKey(context.Background(), def, "THESIS"))

	assert.Equal(t, int64(1), fetcher.calls.Load())
	hits, misses, fetches := v.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), fetches)
}

func TestFileFetchPopulatesWholeVocabulary(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"THESIS", "BOOK", "SERIAL"}})
	cache := NewMemoryCache()
	v := New(cache, WithFileSource(fetcher))
	def := Leaf{Type: "tag", Source: SourceFile}

	require.NoError(t, v.HasKey(context.Background(), def, "THESIS"))
	assert.Equal(t, []string{"BOOK", "SERIAL", "THESIS"}, cache.Keys("tag"))

	require.NoError(t, v.HasKey(context.Background(), def, "SERIAL"))
	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestUnknownFieldPassthrough(t *testing.T) {
	fetcher := staticKeys(nil)
	v := New(NewMemoryCache(), WithFileSource(fetcher))

	record := mustDecode(t, `{
		"title": "x",
		"extra": {"role": "nonsense"},
		"list": [1, {"a": [2]}, null],
		"flag": true
	}`)
	require.NoError(t, v.Validate(context.Background(), authorDefinitions(), record))
	assert.Zero(t, fetcher.calls.Load())
}

func TestIndexAmbiguityIsNotFound(t *testing.T) {
	searcher := countSearcher{
		"series_identifier_scheme/ISSN": 1,
		"series_identifier_scheme/ISBN": 2,
	}
	v := New(NewMemoryCache(), WithIndexSource(NewIndexFetcher(searcher)))
	def := Leaf{Type: "series_identifier_scheme", Source: SourceIndex}

	require.NoError(t, v.HasKey(context.Background(), def, "ISSN"))

	err := v.HasKey(context.Background(), def, "ISBN")
	assert.ErrorIs(t, err, apperrors.ErrVocabulary)

	err = v.HasKey(context.Background(), def, "MISSING")
	assert.ErrorIs(t, err, apperrors.ErrVocabulary)
}

func TestIndexSourceCachesOneKeyAtATime(t *testing.T) {
	searcher := countSearcher{"tag/A": 1, "tag/B": 1}
	cache := NewMemoryCache()
	v := New(cache, WithIndexSource(NewIndexFetcher(searcher)))
	def := Leaf{Type: "tag", Source: SourceIndex}

	require.NoError(t, v.HasKey(context.Background(), def, "A"))
	assert.Equal(t, []string{"A"}, cache.Keys("tag"))
	require.NoError(t, v.HasKey(context.Background(), def, "B"))
	assert.Equal(t, []string{"A", "B"}, cache.Keys("tag"))
}

func TestUnknownSourceFailsWithoutFetch(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"x": {"k"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher), WithIndexSource(fetcher))

	err := v.HasKey(context.Background(), Leaf{Type: "x", Source: Source(42)}, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Zero(t, fetcher.calls.Load())

	_, err = ParseDefinitions(map[string]any{
		"field": map[string]any{"type": "x", "source": "ftp"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)
	assert.Contains(t, err.Error(), "unknown source ftp")
}

func TestUnconfiguredSource(t *testing.T) {
	v := New(NewMemoryCache())
	err := v.HasKey(context.Background(), Leaf{Type: "tag", Source: SourceIndex}, "A")
	assert.ErrorIs(t, err, apperrors.ErrUnknownSource)
}

func TestResetClearsAllTypes(t *testing.T) {
	fetcher := staticKeys(map[string][]string{
		"tag":         {"THESIS"},
		"author_role": {"editor"},
	})
	cache := NewMemoryCache()
	v := New(cache, WithFileSource(fetcher))
	ctx := context.Background()

	require.NoError(t, v.HasKey(ctx, Leaf{Type: "tag", Source: SourceFile}, "THESIS"))
	require.NoError(t, v.HasKey(ctx, Leaf{Type: "author_role", Source: SourceFile}, "editor"))
	assert.Equal(t, []string{"author_role", "tag"}, cache.Types())
	assert.Equal(t, int64(2), fetcher.calls.Load())

	require.NoError(t, v.Reset(ctx))
	assert.Empty(t, cache.Types())

	require.NoError(t, v.HasKey(ctx, Leaf{Type: "tag", Source: SourceFile}, "THESIS"))
	assert.Equal(t, int64(3), fetcher.calls.Load())
}

func TestCacheMonotonicity(t *testing.T) {
	searcher := countSearcher{"tag/A": 1, "tag/B": 1, "tag/C": 1}
	cache := NewMemoryCache()
	v := New(cache, WithIndexSource(NewIndexFetcher(searcher)))
	def := Leaf{Type: "tag", Source: SourceIndex}
	ctx := context.Background()

	prev := 0
	for _, key := range []string{"A", "nope", "B", "A", "bad", "C", "nope"} {
		_ = v.HasKey(ctx, def, key)
		n := cache.Len("tag")
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
	assert.Equal(t, []string{"A", "B", "C"}, cache.Keys("tag"))
}

func TestNegativeResultsAreRefetched(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"THESIS"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	def := Leaf{Type: "tag", Source: SourceFile}

	for i := 0; i < 3; i++ {
		assert.Error(t, v.HasKey(context.Background(), def, "NOPE"))
	}
	assert.Equal(t, int64(3), fetcher.calls.Load())
}

func TestFailureDoesNotCorruptCache(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"THESIS"}})
	cache := NewMemoryCache()
	v := New(cache, WithFileSource(fetcher))
	defs := Nested{"tags": Leaf{Type: "tag", Source: SourceFile}}

	err := v.Validate(context.Background(), defs, mustDecode(t, `{"tags": ["THESIS", "NOPE"]}`))
	require.Error(t, err)
	assert.Equal(t, []string{"THESIS"}, cache.Keys("tag"))

	require.NoError(t, v.Validate(context.Background(), defs, mustDecode(t, `{"tags": ["THESIS"]}`)))
}

func TestFirstViolationInFieldOrder(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {}, "author_role": {}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	defs := Nested{
		"tags":    Leaf{Type: "tag", Source: SourceFile},
		"authors": Nested{"role": Leaf{Type: "author_role", Source: SourceFile}},
	}

	err := v.Validate(context.Background(), defs, mustDecode(t, `{"tags": "first", "authors": {"role": "second"}}`))
	assert.EqualError(t, err, "Value first not found in vocabulary tag")

	err = v.Validate(context.Background(), defs, mustDecode(t, `{"authors": {"role": "second"}, "tags": "first"}`))
	assert.EqualError(t, err, "Value second not found in vocabulary author_role")
}

func TestBackingStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("index unreachable")
	fetcher := &spyFetcher{fn: func(string, string) ([]string, error) { return nil, boom }}
	v := New(NewMemoryCache(), WithIndexSource(fetcher))

	err := v.HasKey(context.Background(), Leaf{Type: "tag", Source: SourceIndex}, "A")
	assert.Same(t, boom, err)
}

func TestShapeMismatch(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"A"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))

	err := v.Validate(context.Background(),
		Nested{"tags": Leaf{Type: "tag", Source: SourceFile}},
		mustDecode(t, `{"tags": {"value": "A"}}`))
	assert.ErrorIs(t, err, apperrors.ErrValueShape)

	err = v.Validate(context.Background(),
		Nested{"authors": Nested{"role": Leaf{Type: "tag", Source: SourceFile}}},
		mustDecode(t, `{"authors": "A"}`))
	assert.ErrorIs(t, err, apperrors.ErrValueShape)

	err = v.Validate(context.Background(),
		Nested{"tags": Leaf{Type: "tag", Source: SourceFile}},
		mustDecode(t, `{"tags": [["A"]]}`))
	assert.ErrorIs(t, err, apperrors.ErrValueShape)
	assert.ErrorIs(t, err, apperrors.ErrVocabulary)
	assert.False(t, apperrors.IsConfiguration(err))
}

func TestSequenceOfDefinitions(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"identifier_scheme": {"DOI", "ISBN"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	defs := Nested{
		"identifiers": SequenceOf{Elem: Nested{
			"scheme": Leaf{Type: "identifier_scheme", Source: SourceFile},
		}},
		"schemes": SequenceOf{Elem: Leaf{Type: "identifier_scheme", Source: SourceFile}},
	}

	record := mustDecode(t, `{"identifiers": [{"scheme": "DOI", "value": "10.1/x"}], "schemes": ["ISBN"]}`)
	require.NoError(t, v.Validate(context.Background(), defs, record))

	record = mustDecode(t, `{"identifiers": [{"scheme": "URN"}]}`)
	assert.EqualError(t, v.Validate(context.Background(), defs, record), "Value URN not found in vocabulary identifier_scheme")
}

func TestNonStringScalars(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"acq_medium": {"12", "true", "null"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	defs := Nested{"medium": Leaf{Type: "acq_medium", Source: SourceFile}}

	for _, raw := range []string{`{"medium": 12}`, `{"medium": true}`, `{"medium": null}`} {
		assert.NoError(t, v.Validate(context.Background(), defs, mustDecode(t, raw)), raw)
	}
	assert.Error(t, v.Validate(context.Background(), defs, mustDecode(t, `{"medium": 12.5}`)))
}

func TestSharedCacheAcrossValidators(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"THESIS"}})
	cache := NewMemoryCache()
	first := New(cache, WithFileSource(fetcher))
	second := New(cache, WithFileSource(fetcher))
	def := Leaf{Type: "tag", Source: SourceFile}

	require.NoError(t, first.HasKey(context.Background(), def, "THESIS"))
	require.NoError(t, second.HasKey(context.Background(), def, "THESIS"))
	assert.Equal(t, int64(1), fetcher.calls.Load())

	isolated := New(NewMemoryCache(), WithFileSource(fetcher))
	require.NoError(t, isolated.HasKey(context.Background(), def, "THESIS"))
	assert.Equal(t, int64(2), fetcher.calls.Load())
}

func TestConcurrentValidation(t *testing.T) {
	fetcher := staticKeys(map[string][]string{"tag": {"A", "B", "C"}})
	cache := NewMemoryCache()
	v := New(cache, WithFileSource(fetcher))
	defs := Nested{"tags": Leaf{Type: "tag", Source: SourceFile}}
	record := mustDecode(t, `{"tags": ["A", "B", "C"]}`)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- v.Validate(context.Background(), defs, record)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, cache.Len("tag"))
	assert.LessOrEqual(t, fetcher.calls.Load(), int64(32))
}

func TestValidatorMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	fetcher := staticKeys(map[string][]string{"tag": {"A"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher), WithMetrics(m))
	def := Leaf{Type: "tag", Source: SourceFile}

	require.NoError(t, v.HasKey(context.Background(), def, "A"))
	require.NoError(t, v.HasKey(context.Background(), def, "A"))
	require.Error(t, v.HasKey(context.Background(), def, "Z"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VocabCacheHitsTotal.WithLabelValues("tag")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VocabCacheMissesTotal.WithLabelValues("tag")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VocabFetchesTotal.WithLabelValues("file", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailuresTotal.WithLabelValues("tag")))
}

func TestValidateWithFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "author_roles.json"),
		[]byte(`[{"key": "editor", "text": "Editor"}, {"key": "author", "text": "Author"}]`), 0o644))

	v := New(NewMemoryCache(), WithFileSource(NewFileFetcher(dir)))
	defs := Nested{"authors": Nested{"role": Leaf{Type: "author_role", Source: SourceFile}}}

	require.NoError(t, v.Validate(context.Background(), defs, mustDecode(t, `{"authors": [{"role": "editor"}]}`)))
	err := v.Validate(context.Background(), defs, mustDecode(t, `{"authors": [{"role": "unknown_role"}]}`))
	assert.EqualError(t, err, "Value unknown_role not found in vocabulary author_role")

	missingDefs := Nested{"tags": Leaf{Type: "tag", Source: SourceFile}}
	err = v.Validate(context.Background(), missingDefs, mustDecode(t, `{"tags": "THESIS"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	unknownDefs := Nested{"x": Leaf{Type: "not_a_vocabulary", Source: SourceFile}}
	err = v.Validate(context.Background(), unknownDefs, mustDecode(t, `{"x": "y"}`))
	assert.ErrorIs(t, err, apperrors.ErrUnknownVocabulary)
}

func BenchmarkHasKeyCached(b *testing.B) {
	fetcher := staticKeys(map[string][]string{"tag": {"THESIS"}})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	def := Leaf{Type: "tag", Source: SourceFile}
	ctx := context.Background()
	_ = v.HasKey(ctx, def, "THESIS")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.HasKey(ctx, def, "THESIS")
	}
}

func BenchmarkValidateRecord(b *testing.B) {
	fetcher := staticKeys(map[string][]string{
		"author_role": {"editor"},
		"author_type": {"PERSON"},
		"tag":         {"THESIS"},
	})
	v := New(NewMemoryCache(), WithFileSource(fetcher))
	record, _ := DecodeObject([]byte(`{"authors": [{"role": "editor", "type": "PERSON"}], "tags": ["THESIS"], "title": "t"}`))
	defs := authorDefinitions()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.Validate(ctx, defs, record)
	}
}
