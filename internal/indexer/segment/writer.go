package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".spdx"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
// Sections follow the header back to back in the order postings, dictionary,
// stored fields, norms, bloom filter, so only their sizes are recorded.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostSize   int64
	DictSize   int64
	StoredSize int64
	NormsSize  int64
	BloomSize  int64
}

func (h SegmentHeader) PostOffset() int64   { return int64(HeaderSize) }
func (h SegmentHeader) DictOffset() int64   { return h.PostOffset() + h.PostSize }
func (h SegmentHeader) StoredOffset() int64 { return h.DictOffset() + h.DictSize }
func (h SegmentHeader) NormsOffset() int64  { return h.StoredOffset() + h.StoredSize }
func (h SegmentHeader) BloomOffset() int64  { return h.NormsOffset() + h.NormsSize }
func (h SegmentHeader) FooterOffset() int64 { return h.BloomOffset() + h.BloomSize }

func (h SegmentHeader) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.StoredSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.NormsSize))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.BloomSize))
	return b
}

func unmarshalHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[16:24])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[32:40])),
		StoredSize: int64(binary.LittleEndian.Uint64(b[40:48])),
		NormsSize:  int64(binary.LittleEndian.Uint64(b[48:56])),
		BloomSize:  int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// DictEntry maps a term to its postings block and collection statistics.
type DictEntry struct {
	Field         string `json:"f"`
	Term          string `json:"t"`
	DocFreq       int    `json:"d"`
	TotalTermFreq int64  `json:"n"`
	PostOffset    int64  `json:"o"`
	PostLen       int    `json:"l"`
}

func (e DictEntry) key() index.Term { return index.Term{Field: e.Field, Text: e.Term} }

// Data is everything a segment holds. Entries must be sorted by term and
// every posting ordinal must be below DocCount.
type Data struct {
	DocCount int
	Entries  []index.TermEntry
	Stored   []index.StoredDocument
	Norms    map[string][]int
}

// FromMemory captures the current contents of a memory index.
func FromMemory(m *index.MemoryIndex) Data {
	return Data{
		DocCount: m.DocCount(),
		Entries:  m.Snapshot(),
		Stored:   m.StoredDocuments(),
		Norms:    m.Norms(),
	}
}

// Info describes a written segment.
type Info struct {
	Name      string
	DocCount  int
	TermCount int
	SizeBytes int64
}

// Writer serialises segment data into new .spdx files.
type Writer struct {
	dataDir string
	bloomFP float64
}

// NewWriter creates a Writer that writes segments into the given directory.
// bloomFP is the target false positive rate of each segment's term filter.
func NewWriter(dataDir string, bloomFP float64) *Writer {
	return &Writer{dataDir: dataDir, bloomFP: bloomFP}
}

// FileName returns the file name of segment name.
func FileName(name string) string {
	return name + FileExt
}

// Write atomically creates segment name. It writes to a .tmp file first and
// renames on success.
func (w *Writer) Write(name string, data Data) (Info, error) {
	if data.DocCount == 0 {
		return Info{}, fmt.Errorf("cannot write empty segment")
	}
	if len(data.Stored) != 0 && len(data.Stored) != data.DocCount {
		return Info{}, fmt.Errorf("stored field count %d does not match doc count %d", len(data.Stored), data.DocCount)
	}
	finalPath := filepath.Join(w.dataDir, FileName(name))
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return Info{}, fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return Info{}, fmt.Errorf("creating temp segment file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(data.Entries)),
		DocCount:  uint32(data.DocCount),
		CreatedAt: time.Now().Unix(),
	}
	if _, err := f.Write(header.marshal()); err != nil {
		return Info{}, fmt.Errorf("writing header: %w", err)
	}

	bloom := NewBloomFilter(len(data.Entries), w.bloomFP)
	dict := make([]DictEntry, 0, len(data.Entries))
	var offset int64
	for _, entry := range data.Entries {
		block := encodePostings(entry.Postings)
		if _, err := f.Write(block); err != nil {
			return Info{}, fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:         entry.Term.Field,
			Term:          entry.Term.Text,
			DocFreq:       len(entry.Postings),
			TotalTermFreq: entry.Postings.TotalTermFreq(),
			PostOffset:    offset,
			PostLen:       len(block),
		})
		bloom.Add(entry.Term.Key())
		offset += int64(len(block))
	}
	header.PostSize = offset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return Info{}, fmt.Errorf("marshaling dictionary: %w", err)
	}
	stored := data.Stored
	if stored == nil {
		stored = make([]index.StoredDocument, data.DocCount)
	}
	storedData, err := json.Marshal(stored)
	if err != nil {
		return Info{}, fmt.Errorf("marshaling stored fields: %w", err)
	}
	norms := data.Norms
	if norms == nil {
		norms = map[string][]int{}
	}
	normsData, err := json.Marshal(norms)
	if err != nil {
		return Info{}, fmt.Errorf("marshaling norms: %w", err)
	}
	bloomData, err := bloom.MarshalBinary()
	if err != nil {
		return Info{}, fmt.Errorf("marshaling bloom filter: %w", err)
	}
	for _, section := range []struct {
		name string
		data []byte
		size *int64
	}{
		{"dictionary", dictData, &header.DictSize},
		{"stored fields", storedData, &header.StoredSize},
		{"norms", normsData, &header.NormsSize},
		{"bloom filter", bloomData, &header.BloomSize},
	} {
		if _, err := f.Write(section.data); err != nil {
			return Info{}, fmt.Errorf("writing %s: %w", section.name, err)
		}
		*section.size = int64(len(section.data))
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], header.DocCount)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DictOffset()))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(header.DictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(header.PostSize))
	if _, err := f.Write(footer); err != nil {
		return Info{}, fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(header.marshal(), 0); err != nil {
		return Info{}, fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Info{}, fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Info{}, fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return Info{}, fmt.Errorf("renaming segment file: %w", err)
	}
	return Info{
		Name:      name,
		DocCount:  data.DocCount,
		TermCount: len(dict),
		SizeBytes: header.FooterOffset() + int64(FooterSize),
	}, nil
}
