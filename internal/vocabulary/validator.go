// Package vocabulary checks that controlled-vocabulary fields of migrated
// records hold known keys. Confirmed keys are memoized in a Cache shared by
// every Validator that is given it; keys a source does not confirm are
// asked for again on every occurrence.
package vocabulary

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/metrics"
)

// Validator checks record fields against vocabulary definitions.
type Validator struct {
	cache   Cache
	file    Fetcher
	index   Fetcher
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

// Option configures a Validator.
type Option func(*Validator)

// WithFileSource sets the fetcher behind SourceFile definitions.
func WithFileSource(f Fetcher) Option {
	return func(v *Validator) { v.file = f }
}

// WithIndexSource sets the fetcher behind SourceIndex definitions.
func WithIndexSource(f Fetcher) Option {
	return func(v *Validator) { v.index = f }
}

// WithMetrics records cache hits, misses and fetches in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// New creates a Validator backed by cache. A nil cache gets a MemoryCache.
func New(cache Cache, opts ...Option) *Validator {
	if cache == nil {
		cache = NewMemoryCache()
	}
	v := &Validator{
		cache:  cache,
		logger: slog.Default().With("component", "vocabulary-validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate walks record in field order and checks every field that has a
// definition. It returns the first violation found.
func (v *Validator) Validate(ctx context.Context, definitions Nested, record Object) error {
	for _, field := range record {
		def, ok := definitions[field.Name]
		if !ok {
			continue
		}
		if err := v.validateValue(ctx, field.Name, def, field.Value); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateValue(ctx context.Context, name string, def Node, value any) error {
	switch val := value.(type) {
	case Object:
		return v.validateObject(ctx, name, def, val)
	case []any:
		for _, elem := range val {
			switch e := elem.(type) {
			case Object:
				if err := v.validateObject(ctx, name, def, e); err != nil {
					return err
				}
			case []any:
				return apperrors.Newf(apperrors.ErrValueShape, "field %s holds a nested list", name)
			default:
				if err := v.validateScalar(ctx, name, def, e); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return v.validateScalar(ctx, name, def, val)
	}
}

func (v *Validator) validateObject(ctx context.Context, name string, def Node, value Object) error {
	nested, ok := asNested(def)
	if !ok {
		return apperrors.Newf(apperrors.ErrValueShape, "field %s holds a mapping but is defined as %v", name, def)
	}
	return v.Validate(ctx, nested, value)
}

func (v *Validator) validateScalar(ctx context.Context, name string, def Node, value any) error {
	leaf, ok := asLeaf(def)
	if !ok {
		return apperrors.Newf(apperrors.ErrValueShape, "field %s holds a scalar but has nested definitions", name)
	}
	return v.HasKey(ctx, leaf, KeyString(value))
}

// HasKey checks a single key against the vocabulary of def.
func (v *Validator) HasKey(ctx context.Context, def Leaf, key string) error {
	fetcher, err := v.fetcherFor(def)
	if err != nil {
		return err
	}

	ok, err := v.cache.Has(ctx, def.Type, key)
	if err != nil {
		return err
	}
	if ok {
		v.hits.Add(1)
		if v.metrics != nil {
			v.metrics.VocabCacheHitsTotal.WithLabelValues(def.Type).Inc()
		}
		return nil
	}
	v.misses.Add(1)
	if v.metrics != nil {
		v.metrics.VocabCacheMissesTotal.WithLabelValues(def.Type).Inc()
	}

	keys, err := v.fetch(ctx, def, key, fetcher)
	if err != nil {
		return err
	}
	if contains(keys, key) {
		return nil
	}
	if v.metrics != nil {
		v.metrics.ValidationFailuresTotal.WithLabelValues(def.Type).Inc()
	}
	return apperrors.Newf(apperrors.ErrVocabulary, "Value %s not found in vocabulary %s", key, def.Type)
}

func (v *Validator) fetcherFor(def Leaf) (Fetcher, error) {
	var f Fetcher
	switch def.Source {
	case SourceFile:
		f = v.file
	case SourceIndex:
		f = v.index
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownSource, "Definition %v is wrong, unknown source %s", def, def.Source)
	}
	if f == nil {
		return nil, apperrors.Newf(apperrors.ErrUnknownSource, "Definition %v is wrong, no %s source configured", def, def.Source)
	}
	return f, nil
}

// fetch asks the source once per flight and merges whatever it returns into
// the cache. Index lookups are per key, file lookups per vocabulary type.
func (v *Validator) fetch(ctx context.Context, def Leaf, key string, f Fetcher) ([]string, error) {
	flight := def.Source.String() + ":" + def.Type
	if def.Source == SourceIndex {
		flight += ":" + key
	}
	val, err, _ := v.group.Do(flight, func() (interface{}, error) {
		v.fetches.Add(1)
		start := time.Now()
		keys, err := f.Fetch(ctx, def.Type, key)
		v.observeFetch(def.Source, len(keys), err, time.Since(start))
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			if err := v.cache.Add(ctx, def.Type, keys); err != nil {
				return nil, err
			}
			v.logger.Debug("vocabulary keys cached", "type", def.Type, "source", def.Source.String(), "count", len(keys))
		}
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]string), nil
}

func (v *Validator) observeFetch(source Source, n int, err error, elapsed time.Duration) {
	if v.metrics == nil {
		return
	}
	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case n == 0:
		outcome = "not_found"
	}
	v.metrics.VocabFetchesTotal.WithLabelValues(source.String(), outcome).Inc()
	v.metrics.VocabFetchDuration.WithLabelValues(source.String()).Observe(elapsed.Seconds())
}

// Reset forgets every cached key of every vocabulary type.
func (v *Validator) Reset(ctx context.Context) error {
	return v.cache.Reset(ctx)
}

// Stats returns cache hits, cache misses and source fetches so far.
func (v *Validator) Stats() (hits, misses, fetches int64) {
	return v.hits.Load(), v.misses.Load(), v.fetches.Load()
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
