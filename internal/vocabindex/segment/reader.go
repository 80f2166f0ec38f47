package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/index"
	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabulary"
)

// Reader serves term lookups from one segment file. The dictionary and the
// stored entries are held in memory; postings are read on demand.
type Reader struct {
	file    *os.File
	path    string
	header  Header
	dict    []DictEntry
	entries map[string]vocabulary.Entry
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.EntryOffset+header.EntrySize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if xxhash.Sum64(dictBytes) != binary.LittleEndian.Uint64(footer[0:8]) {
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", path)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	entryBytes := make([]byte, header.EntrySize)
	if _, err := f.ReadAt(entryBytes, header.EntryOffset); err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	if xxhash.Sum64(entryBytes) != binary.LittleEndian.Uint64(footer[8:16]) {
		return nil, fmt.Errorf("entries checksum mismatch in %s", path)
	}
	var list []vocabulary.Entry
	if err := json.Unmarshal(entryBytes, &list); err != nil {
		return nil, fmt.Errorf("parsing entries: %w", err)
	}
	entries := make(map[string]vocabulary.Entry, len(list))
	for _, e := range list {
		entries[e.ID] = e
	}

	return &Reader{
		file:    f,
		path:    path,
		header:  header,
		dict:    dict,
		entries: entries,
	}, nil
}

func (r *Reader) Search(term string) (index.PostingList, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	entry := r.dict[idx]
	data := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(data, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

// Entry returns the stored entry with the given ID.
func (r *Reader) Entry(id string) (vocabulary.Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) EntryCount() int {
	return len(r.entries)
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Close() error {
	return r.file.Close()
}
