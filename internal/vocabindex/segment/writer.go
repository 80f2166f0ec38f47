package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/ils-migrator/internal/vocabindex/index"
)

// Segment file layout: a fixed header, the postings of every term, the
// term dictionary, the stored entries, then a footer with the xxhash64 of
// the dictionary and of the entries.
const (
	MagicBytes    uint32 = 0x56494458 // "VIDX"
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 16
	Extension            = ".vidx"
)

type Header struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	EntryCount  uint32
	DictOffset  int64
	DictSize    int64
	PostOffset  int64
	EntryOffset int64
	EntrySize   int64
	CreatedAt   int64
}

// DictEntry locates the postings of a term.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a new segment from snap. The file is written under a
// temporary name and renamed once synced.
func (w *Writer) Write(snap index.Snapshot) (string, error) {
	if len(snap.Terms) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	segmentName := fmt.Sprintf("seg_%020d%s", time.Now().UnixNano(), Extension)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(snap.Terms)),
		EntryCount: uint32(len(snap.Entries)),
		PostOffset: int64(HeaderSize),
		CreatedAt:  time.Now().Unix(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	offset := int64(0)
	dict := make([]DictEntry, 0, len(snap.Terms))
	for _, entry := range snap.Terms {
		data, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(data); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    len(data),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(data))
	}

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + offset
	header.DictSize = int64(len(dictData))
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	entryData, err := json.Marshal(snap.Entries)
	if err != nil {
		return "", fmt.Errorf("marshaling entries: %w", err)
	}
	header.EntryOffset = header.DictOffset + header.DictSize
	header.EntrySize = int64(len(entryData))
	if _, err := f.Write(entryData); err != nil {
		return "", fmt.Errorf("writing entries: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(footer[0:8], xxhash.Sum64(dictData))
	binary.LittleEndian.PutUint64(footer[8:16], xxhash.Sum64(entryData))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

func encodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.EntryCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.EntryOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.EntrySize))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.CreatedAt))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		TermCount:   binary.LittleEndian.Uint32(b[8:12]),
		EntryCount:  binary.LittleEndian.Uint32(b[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset:  int64(binary.LittleEndian.Uint64(b[32:40])),
		EntryOffset: int64(binary.LittleEndian.Uint64(b[40:48])),
		EntrySize:   int64(binary.LittleEndian.Uint64(b[48:56])),
		CreatedAt:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}
