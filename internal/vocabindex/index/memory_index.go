package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
)

// MemoryIndex is the mutable in-memory part of the vocabulary index.
// Re-adding an entry ID replaces the previous version.
type MemoryIndex struct {
	mu      sync.RWMutex
	index   map[string]map[string]*Posting
	entries map[string]vocabulary.Entry
	size    int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:   make(map[string]map[string]*Posting),
		entries: make(map[string]vocabulary.Entry),
	}
}

// Terms returns the terms of entry with their frequencies.
func Terms(entry vocabulary.Entry) map[string]int {
	terms := map[string]int{
		tokenizer.TypeTerm(entry.Type): 1,
		tokenizer.KeyTerm(entry.Key):   1,
	}
	for _, tok := range tokenizer.Tokenize(entry.Key + " " + entry.Text) {
		terms[tok.Term]++
	}
	return terms
}

func (m *MemoryIndex) Add(entry vocabulary.Entry) {
	terms := Terms(entry)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[entry.ID]; ok {
		m.removeLocked(old)
	}
	for term, freq := range terms {
		docs, ok := m.index[term]
		if !ok {
			docs = make(map[string]*Posting)
			m.index[term] = docs
		}
		docs[entry.ID] = &Posting{EntryID: entry.ID, Frequency: freq}
		m.size += int64(len(term) + len(entry.ID) + 32)
	}
	m.entries[entry.ID] = entry
	m.size += int64(len(entry.ID) + len(entry.Type) + len(entry.Key) + len(entry.Text))
}

func (m *MemoryIndex) removeLocked(old vocabulary.Entry) {
	for term := range Terms(old) {
		if docs, ok := m.index[term]; ok {
			delete(docs, old.ID)
			if len(docs) == 0 {
				delete(m.index, term)
			}
		}
	}
	delete(m.entries, old.ID)
}

func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryID < result[j].EntryID
	})
	return result
}

// Entry returns the stored entry with the given ID.
func (m *MemoryIndex) Entry(id string) (vocabulary.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *MemoryIndex) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	terms := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].EntryID < postings[j].EntryID
		})
		terms = append(terms, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(terms, func(i, j int) bool {
		return terms[i].Term < terms[j].Term
	})
	entries := make([]vocabulary.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return Snapshot{Terms: terms, Entries: entries}
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[string]*Posting)
	m.entries = make(map[string]vocabulary.Entry)
	m.size = 0
}

// Swap detaches the current contents into a new MemoryIndex and leaves m
// empty. Adds racing with Swap land either in the returned index or in m,
// never in neither.
func (m *MemoryIndex) Swap() *MemoryIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	frozen := &MemoryIndex{
		index:   m.index,
		entries: m.entries,
		size:    m.size,
	}
	m.index = make(map[string]map[string]*Posting)
	m.entries = make(map[string]vocabulary.Entry)
	m.size = 0
	return frozen
}

// Restore re-adds the entries of older that m has not replaced since.
func (m *MemoryIndex) Restore(older *MemoryIndex) {
	older.mu.RLock()
	entries := make([]vocabulary.Entry, 0, len(older.entries))
	for _, e := range older.entries {
		entries = append(entries, e)
	}
	older.mu.RUnlock()

	for _, e := range entries {
		if _, ok := m.Entry(e.ID); ok {
			continue
		}
		m.Add(e)
	}
}
