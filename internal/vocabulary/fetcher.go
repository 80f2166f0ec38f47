package vocabulary

import (
	"context"
	"path/filepath"
)

// Fetcher returns vocabulary keys known to a source. A fetch may return
// more keys than the one asked for; an empty result means not found.
type Fetcher interface {
	Fetch(ctx context.Context, vocabType, key string) ([]string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, vocabType, key string) ([]string, error)

func (f FetcherFunc) Fetch(ctx context.Context, vocabType, key string) ([]string, error) {
	return f(ctx, vocabType, key)
}

// FileFetcher reads the whole key set of a vocabulary from its catalog file.
type FileFetcher struct {
	Dir     string
	Catalog Catalog
}

// NewFileFetcher creates a FileFetcher reading catalog files from dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{Dir: dir, Catalog: DefaultCatalog}
}

func (f *FileFetcher) Fetch(_ context.Context, vocabType, _ string) ([]string, error) {
	name, err := f.Catalog.Filename(vocabType)
	if err != nil {
		return nil, err
	}
	entries, err := ReadCatalogFile(filepath.Join(f.Dir, name), vocabType)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

// Searcher counts indexed vocabulary entries with the given type and key.
type Searcher interface {
	CountByTypeAndKey(ctx context.Context, vocabType, key string) (int, error)
}

// IndexFetcher asks a Searcher about a single key. Only an unambiguous
// match (exactly one entry) confirms the key.
type IndexFetcher struct {
	Searcher Searcher
}

// NewIndexFetcher creates an IndexFetcher asking s.
func NewIndexFetcher(s Searcher) *IndexFetcher {
	return &IndexFetcher{Searcher: s}
}

func (f *IndexFetcher) Fetch(ctx context.Context, vocabType, key string) ([]string, error) {
	n, err := f.Searcher.CountByTypeAndKey(ctx, vocabType, key)
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, nil
	}
	return []string{key}, nil
}
