// Package vocabindex is a local search index over vocabulary entries. It
// backs the index source of the vocabulary validator when no external
// search service is available: entries are written to an in-memory
// inverted index, flushed to immutable segment files and looked up by
// exact (type, key) or by free text.
package vocabindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/index"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/segment"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/metrics"
)

const defaultSegmentMaxSize = 4 << 20

type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	// flushing holds the entries being written by Flush until their
	// segment joins readers. Both are guarded by readerMu.
	flushing *index.MemoryIndex
	readers  []*segment.Reader
	readerMu sync.RWMutex
	flushMu  sync.Mutex
	cfg      config.VocabularyConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Hit is a free-text search result.
type Hit struct {
	Entry vocabulary.Entry `json:"entry"`
	Score int              `json:"score"`
}

// Open creates the index directory if needed and loads the segments found
// in it.
func Open(cfg config.VocabularyConfig) (*Engine, error) {
	if cfg.IndexDir == "" {
		return nil, fmt.Errorf("vocabulary index directory is not set")
	}
	if cfg.SegmentMaxSize <= 0 {
		cfg.SegmentMaxSize = defaultSegmentMaxSize
	}
	if err := os.MkdirAll(cfg.IndexDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.IndexDir),
		cfg:      cfg,
		logger:   slog.Default().With("component", "vocab-index"),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Index adds or replaces an entry. Entries without an ID get one derived
// from their type and key.
func (e *Engine) Index(entry vocabulary.Entry) error {
	if entry.Type == "" || entry.Key == "" {
		return fmt.Errorf("vocabulary entry needs a type and a key, got %+v", entry)
	}
	if entry.ID == "" {
		entry.ID = vocabulary.EntryID(entry.Type, entry.Key)
	}
	e.memIndex.Add(entry)
	if e.metrics != nil {
		e.metrics.VocabEntriesIndexed.Inc()
	}
	if e.memIndex.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// IndexAll indexes entries in order and stops at the first failure.
func (e *Engine) IndexAll(entries []vocabulary.Entry) error {
	for _, entry := range entries {
		if err := e.Index(entry); err != nil {
			return err
		}
	}
	return nil
}

// CountByTypeAndKey counts the live entries whose type and key match
// exactly. An entry replaced by a newer version is counted only if the
// newest version still matches.
func (e *Engine) CountByTypeAndKey(_ context.Context, vocabType, key string) (int, error) {
	ids, err := e.postingIDs(tokenizer.KeyTerm(key))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		entry, ok := e.lookup(id)
		if ok && entry.Type == vocabType && entry.Key == key {
			count++
		}
	}
	return count, nil
}

// Search returns entries containing every token of text, best first. A
// non-empty vocabType restricts the results to that vocabulary.
func (e *Engine) Search(text, vocabType string, limit int) ([]Hit, error) {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	scores := make(map[string]int)
	for i, tok := range tokens {
		postings, err := e.postings(tok.Term)
		if err != nil {
			return nil, err
		}
		next := make(map[string]int, len(postings))
		for _, p := range postings {
			if _, ok := scores[p.EntryID]; i == 0 || ok {
				next[p.EntryID] = scores[p.EntryID] + p.Frequency
			}
		}
		scores = next
		if len(scores) == 0 {
			return nil, nil
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		entry, ok := e.lookup(id)
		if !ok || (vocabType != "" && entry.Type != vocabType) {
			continue
		}
		hits = append(hits, Hit{Entry: entry, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// postings merges the postings of term across memory and every segment,
// keeping the highest frequency per entry.
func (e *Engine) postings(term string) (index.PostingList, error) {
	all := e.memIndex.Search(term)
	flushing, readers := e.snapshotReaders()
	if flushing != nil {
		all = append(all, flushing.Search(term)...)
	}
	for _, reader := range readers {
		postings, err := reader.Search(term)
		if err != nil {
			return nil, fmt.Errorf("searching segment %s: %w", reader.Path(), err)
		}
		all = append(all, postings...)
	}
	return deduplicatePostings(all), nil
}

func (e *Engine) postingIDs(term string) ([]string, error) {
	postings, err := e.postings(term)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(postings))
	for i, p := range postings {
		ids[i] = p.EntryID
	}
	return ids, nil
}

// lookup returns the newest stored version of an entry.
func (e *Engine) lookup(id string) (vocabulary.Entry, bool) {
	if entry, ok := e.memIndex.Entry(id); ok {
		return entry, true
	}
	flushing, readers := e.snapshotReaders()
	if flushing != nil {
		if entry, ok := flushing.Entry(id); ok {
			return entry, true
		}
	}
	for i := len(readers) - 1; i >= 0; i-- {
		if entry, ok := readers[i].Entry(id); ok {
			return entry, true
		}
	}
	return vocabulary.Entry{}, false
}

// snapshotReaders must be called after the memory index was consulted: a
// Flush that emptied it has already published its entries here.
func (e *Engine) snapshotReaders() (*index.MemoryIndex, []*segment.Reader) {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	return e.flushing, readers
}

// Len returns the number of entries not yet flushed.
func (e *Engine) Len() int {
	return e.memIndex.Len()
}

// Segments returns the number of open segments.
func (e *Engine) Segments() int {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	return len(e.readers)
}

// Flush writes the unflushed entries to a new segment. Entries indexed
// while the segment is being written stay in memory for the next flush.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.readerMu.Lock()
	frozen := e.memIndex.Swap()
	if frozen.Len() == 0 {
		e.readerMu.Unlock()
		return nil
	}
	e.flushing = frozen
	e.readerMu.Unlock()

	reader, segmentName, err := e.writeSegment(frozen.Snapshot())
	if err != nil {
		e.memIndex.Restore(frozen)
		e.readerMu.Lock()
		e.flushing = nil
		e.readerMu.Unlock()
		e.observeFlush("error")
		return err
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.flushing = nil
	active := len(e.readers)
	e.readerMu.Unlock()
	e.observeFlush("ok")
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"entries", reader.EntryCount(),
		"active_segments", active,
	)
	return nil
}

func (e *Engine) writeSegment(snap index.Snapshot) (*segment.Reader, string, error) {
	segmentName, err := e.writer.Write(snap)
	if err != nil {
		return nil, "", fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.IndexDir, segmentName))
	if err != nil {
		return nil, "", fmt.Errorf("opening new segment for reading: %w", err)
	}
	return reader, segmentName, nil
}

func (e *Engine) observeFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

// StartFlushLoop flushes periodically until ctx is cancelled, then flushes
// one last time.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	interval := e.cfg.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.Len() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	flushErr := e.Flush()
	if flushErr != nil {
		e.logger.Error("final flush on close failed", "error", flushErr)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return flushErr
}

// Reset drops every segment and all unflushed entries.
func (e *Engine) Reset() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		reader.Close()
		if err := os.Remove(reader.Path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing segment: %w", err)
		}
	}
	e.readers = nil
	e.memIndex.Reset()
	e.logger.Info("vocabulary index reset", "dir", e.cfg.IndexDir)
	return nil
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.IndexDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading index directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.Extension) {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.IndexDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.logger.Debug("loaded existing segment",
			"segment", name,
			"terms", reader.Terms(),
			"entries", reader.EntryCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}

func deduplicatePostings(postings index.PostingList) index.PostingList {
	if len(postings) <= 1 {
		return postings
	}
	seen := make(map[string]int)
	result := make(index.PostingList, 0, len(postings))
	for _, p := range postings {
		if idx, exists := seen[p.EntryID]; exists {
			if p.Frequency > result[idx].Frequency {
				result[idx] = p
			}
		} else {
			seen[p.EntryID] = len(result)
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryID < result[j].EntryID
	})
	return result
}
