package index

import "github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"

// Posting records that an entry contains a term.
type Posting struct {
	EntryID   string `json:"id"`
	Frequency int    `json:"f"`
}

type PostingList []Posting

// TermEntry is one dictionary row of a segment snapshot.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Snapshot is the frozen content of a MemoryIndex, ready to be written as a
// segment.
type Snapshot struct {
	Terms   []TermEntry
	Entries []vocabulary.Entry
}
