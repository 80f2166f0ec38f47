package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/migrator"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabstore"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/redis"
)

// resources collects what a command opened so it can be released in
// reverse order.
type resources struct {
	closers []func() error
	pg      *postgres.Client
}

func (r *resources) add(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Warn("releasing resource", "error", err)
		}
	}
	r.closers = nil
}

// openPostgres connects once per command.
func (c *CLI) openPostgres(res *resources) (*postgres.Client, error) {
	if res.pg != nil {
		return res.pg, nil
	}
	client, err := postgres.New(c.cfg.Postgres)
	if err != nil {
		return nil, err
	}
	res.add(client.Close)
	res.pg = client
	return client, nil
}

// newMetrics registers on the default registry and serves it when metrics are
// enabled; otherwise the collectors live on a private registry.
func (c *CLI) newMetrics(res *resources) *metrics.Metrics {
	if !c.cfg.Metrics.Enabled {
		return metrics.NewWithRegistry(prometheus.NewRegistry())
	}
	m := metrics.New()
	shutdown := metrics.StartServer(c.cfg.Metrics.Port)
	res.add(func() error { return shutdown(context.Background()) })
	return m
}

func (c *CLI) openCache(res *resources) (vocabulary.Cache, error) {
	if c.cfg.Vocabulary.Cache != "redis" {
		return vocabulary.NewMemoryCache(), nil
	}
	client, err := redis.NewClient(c.cfg.Redis)
	if err != nil {
		return nil, err
	}
	res.add(client.Close)
	shared := vocabulary.NewRedisCache(client, c.cfg.Vocabulary.CacheKeyPrefix)
	return vocabulary.NewTieredCache(vocabulary.NewMemoryCache(), shared), nil
}

func (c *CLI) openEngine(res *resources, m *metrics.Metrics) (*vocabindex.Engine, error) {
	engine, err := vocabindex.Open(c.cfg.Vocabulary)
	if err != nil {
		return nil, err
	}
	if m != nil {
		engine.SetMetrics(m)
	}
	res.add(engine.Close)
	return engine, nil
}

func (c *CLI) openStore(ctx context.Context, res *resources) (*vocabstore.Store, error) {
	client, err := c.openPostgres(res)
	if err != nil {
		return nil, err
	}
	store := vocabstore.New(client)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// openSearcher returns the backend of the index source: the local segment
// index or the PostgreSQL vocabulary table.
func (c *CLI) openSearcher(ctx context.Context, res *resources, m *metrics.Metrics) (vocabulary.Searcher, error) {
	if c.cfg.Vocabulary.Index == "postgres" {
		return c.openStore(ctx, res)
	}
	return c.openEngine(res, m)
}

func (c *CLI) buildValidator(ctx context.Context, res *resources, m *metrics.Metrics) (*vocabulary.Validator, error) {
	cache, err := c.openCache(res)
	if err != nil {
		return nil, err
	}
	searcher, err := c.openSearcher(ctx, res, m)
	if err != nil {
		return nil, err
	}
	return vocabulary.New(cache,
		vocabulary.WithFileSource(vocabulary.NewFileFetcher(c.cfg.Vocabulary.DataDir)),
		vocabulary.WithIndexSource(vocabulary.NewIndexFetcher(searcher)),
		vocabulary.WithMetrics(m),
	), nil
}

func (c *CLI) openRecords(ctx context.Context, res *resources) (migrator.RecordStore, error) {
	if c.cfg.Migration.Records != "postgres" {
		return migrator.NewMemoryRecords(), nil
	}
	client, err := c.openPostgres(res)
	if err != nil {
		return nil, err
	}
	lookup := migrator.NewRecordLookup(client)
	if err := lookup.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return lookup, nil
}

// storeIndexer feeds vocabulary events into the PostgreSQL table.
type storeIndexer struct {
	ctx   context.Context
	store *vocabstore.Store
}

func (s storeIndexer) Index(entry vocabulary.Entry) error {
	if entry.Type == "" || entry.Key == "" {
		return errors.New("vocabulary entry needs a type and a key")
	}
	return s.store.Upsert(s.ctx, []vocabulary.Entry{entry})
}
