package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
)

func TestMemoryIndexAddAndSearch(t *testing.T) {
	m := NewMemoryIndex()
	m.Add(vocabulary.Entry{ID: "1", Type: "tag", Key: "THESIS", Text: "Thesis"})
	m.Add(vocabulary.Entry{ID: "2", Type: "tag", Key: "BOOK", Text: "Book"})
	m.Add(vocabulary.Entry{ID: "3", Type: "author_role", Key: "editor", Text: "Editor"})

	assert.Equal(t, PostingList{{EntryID: "1", Frequency: 1}, {EntryID: "2", Frequency: 1}}, m.Search("type:tag"))
	assert.Equal(t, PostingList{{EntryID: "1", Frequency: 1}}, m.Search("key:THESIS"))
	assert.Nil(t, m.Search("key:thesis"))
	assert.Equal(t, PostingList{{EntryID: "1", Frequency: 2}}, m.Search("thesi"))
	assert.Equal(t, 3, m.Len())
	assert.Positive(t, m.Size())
}

func TestMemoryIndexReplacesEntry(t *testing.T) {
	m := NewMemoryIndex()
	m.Add(vocabulary.Entry{ID: "1", Type: "tag", Key: "THESIS"})
	m.Add(vocabulary.Entry{ID: "1", Type: "tag", Key: "BOOK"})

	assert.Nil(t, m.Search("key:THESIS"))
	assert.Len(t, m.Search("key:BOOK"), 1)

	e, ok := m.Entry("1")
	require.True(t, ok)
	assert.Equal(t, "BOOK", e.Key)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryIndexSnapshotAndReset(t *testing.T) {
	m := NewMemoryIndex()
	m.Add(vocabulary.Entry{ID: "b", Type: "tag", Key: "B"})
	m.Add(vocabulary.Entry{ID: "a", Type: "tag", Key: "A"})

	snap := m.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "a", snap.Entries[0].ID)
	for i := 1; i < len(snap.Terms); i++ {
		assert.Less(t, snap.Terms[i-1].Term, snap.Terms[i].Term)
	}

	m.Reset()
	assert.Zero(t, m.Len())
	assert.Zero(t, m.Size())
	assert.Empty(t, m.Snapshot().Terms)
}

func TestMemoryIndexSwap(t *testing.T) {
	m := NewMemoryIndex()
	m.Add(vocabulary.Entry{ID: "1", Type: "tag", Key: "THESIS"})

	frozen := m.Swap()
	assert.Zero(t, m.Len())
	assert.Zero(t, m.Size())
	assert.Equal(t, 1, frozen.Len())

	m.Add(vocabulary.Entry{ID: "2", Type: "tag", Key: "BOOK"})
	assert.Equal(t, 1, frozen.Len())
	assert.Nil(t, frozen.Search("key:BOOK"))
	assert.Len(t, m.Search("key:BOOK"), 1)
}

func TestMemoryIndexRestoreKeepsNewerVersions(t *testing.T) {
	m := NewMemoryIndex()
	m.Add(vocabulary.Entry{ID: "1", Type: "tag", Key: "THESIS"})
	m.Add(vocabulary.Entry{ID: "2", Type: "tag", Key: "BOOK"})
	frozen := m.Swap()

	m.Add(vocabulary.Entry{ID: "1", Type: "tag", Key: "REPORT"})
	m.Restore(frozen)

	assert.Equal(t, 2, m.Len())
	e, ok := m.Entry("1")
	require.True(t, ok)
	assert.Equal(t, "REPORT", e.Key)
	assert.Nil(t, m.Search("key:THESIS"))
	assert.Len(t, m.Search("key:BOOK"), 1)
}
