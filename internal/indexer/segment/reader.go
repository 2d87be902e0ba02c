package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/cacm-search/pkg/errors"
)

// Reader serves lookups against one immutable segment file. Postings are read
// lazily and cached; the dictionary, stored fields, norms and bloom filter
// are loaded on open. Returned posting lists are shared and must not be
// modified.
type Reader struct {
	file     *os.File
	filePath string
	name     string
	header   SegmentHeader
	dict     []DictEntry
	bloom    *BloomFilter
	stored   []index.StoredDocument
	norms    map[string][]int
	normSums map[string]int64
	cache    *lru.Cache[index.Term, index.PostingList]
}

// OpenReader opens and validates a segment. cacheSize bounds the number of
// decoded posting lists kept in memory; 0 disables caching.
func OpenReader(path string, cacheSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	if cacheSize > 0 {
		cache, err := lru.New[index.Term, index.PostingList](cacheSize)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("creating postings cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

func corrupt(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", apperrors.ErrCorruptSegment, filepath.Base(path), fmt.Sprintf(format, args...))
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, corrupt(path, "file too small (%d bytes)", info.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := unmarshalHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, corrupt(path, "bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, corrupt(path, "unsupported format version %d", header.Version)
	}
	if header.FooterOffset()+int64(FooterSize) != info.Size() {
		return nil, corrupt(path, "section sizes do not add up to file size %d", info.Size())
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.FooterOffset()); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	checksum := binary.LittleEndian.Uint32(footer[0:4])
	if binary.LittleEndian.Uint32(footer[4:8]) != header.DocCount {
		return nil, corrupt(path, "footer doc count disagrees with header")
	}

	dictBytes, err := readSection(f, header.DictOffset(), header.DictSize)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != checksum {
		return nil, corrupt(path, "dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, corrupt(path, "parsing dictionary: %v", err)
	}

	storedBytes, err := readSection(f, header.StoredOffset(), header.StoredSize)
	if err != nil {
		return nil, fmt.Errorf("reading stored fields: %w", err)
	}
	var stored []index.StoredDocument
	if err := json.Unmarshal(storedBytes, &stored); err != nil {
		return nil, corrupt(path, "parsing stored fields: %v", err)
	}
	if len(stored) != int(header.DocCount) {
		return nil, corrupt(path, "%d stored documents for doc count %d", len(stored), header.DocCount)
	}

	normsBytes, err := readSection(f, header.NormsOffset(), header.NormsSize)
	if err != nil {
		return nil, fmt.Errorf("reading norms: %w", err)
	}
	var norms map[string][]int
	if err := json.Unmarshal(normsBytes, &norms); err != nil {
		return nil, corrupt(path, "parsing norms: %v", err)
	}
	normSums := make(map[string]int64, len(norms))
	for field, lengths := range norms {
		var sum int64
		for _, l := range lengths {
			sum += int64(l)
		}
		normSums[field] = sum
	}

	bloomBytes, err := readSection(f, header.BloomOffset(), header.BloomSize)
	if err != nil {
		return nil, fmt.Errorf("reading bloom filter: %w", err)
	}
	bloom := &BloomFilter{}
	if err := bloom.UnmarshalBinary(bloomBytes); err != nil {
		return nil, corrupt(path, "%v", err)
	}

	return &Reader{
		file:     f,
		filePath: path,
		name:     strings.TrimSuffix(filepath.Base(path), FileExt),
		header:   header,
		dict:     dict,
		bloom:    bloom,
		stored:   stored,
		norms:    norms,
		normSums: normSums,
	}, nil
}

func readSection(f *os.File, offset, size int64) ([]byte, error) {
	b := make([]byte, size)
	if size == 0 {
		return b, nil
	}
	if _, err := f.ReadAt(b, offset); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) lookup(term index.Term) (DictEntry, bool) {
	if !r.bloom.MayContain(term.Key()) {
		return DictEntry{}, false
	}
	idx := sort.Search(len(r.dict), func(i int) bool {
		return !r.dict[i].key().Less(term)
	})
	if idx >= len(r.dict) || r.dict[idx].key() != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// Postings returns the posting list of term, or nil when absent.
func (r *Reader) Postings(term index.Term) (index.PostingList, error) {
	if r.cache != nil {
		if pl, ok := r.cache.Get(term); ok {
			return pl, nil
		}
	}
	entry, ok := r.lookup(term)
	if !ok {
		return nil, nil
	}
	block := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(block, r.header.PostOffset()+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	pl, err := decodePostings(block)
	if err != nil {
		return nil, corrupt(r.filePath, "term %s: %v", term, err)
	}
	if r.cache != nil {
		r.cache.Add(term, pl)
	}
	return pl, nil
}

func (r *Reader) DocFreq(term index.Term) int {
	entry, ok := r.lookup(term)
	if !ok {
		return 0
	}
	return entry.DocFreq
}

func (r *Reader) TotalTermFreq(term index.Term) int64 {
	entry, ok := r.lookup(term)
	if !ok {
		return 0
	}
	return entry.TotalTermFreq
}

// Terms returns the dictionary entries of field in term order.
func (r *Reader) Terms(field string) []DictEntry {
	lo := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].Field >= field })
	hi := sort.Search(len(r.dict), func(i int) bool { return r.dict[i].Field > field })
	out := make([]DictEntry, hi-lo)
	copy(out, r.dict[lo:hi])
	return out
}

// Fields lists the indexed field names.
func (r *Reader) Fields() []string {
	var out []string
	for _, e := range r.dict {
		if len(out) == 0 || out[len(out)-1] != e.Field {
			out = append(out, e.Field)
		}
	}
	return out
}

// Document returns the stored fields of ordinal doc.
func (r *Reader) Document(doc int) (index.StoredDocument, error) {
	if doc < 0 || doc >= len(r.stored) {
		return nil, fmt.Errorf("%w: ordinal %d in segment %s", apperrors.ErrDocumentNotFound, doc, r.name)
	}
	return r.stored[doc], nil
}

// FieldLength is the token count of field in doc, 0 when absent.
func (r *Reader) FieldLength(field string, doc int) int {
	lengths := r.norms[field]
	if doc < 0 || doc >= len(lengths) {
		return 0
	}
	return lengths[doc]
}

// SumFieldLength is the total token count of field across the segment.
func (r *Reader) SumFieldLength(field string) int64 {
	return r.normSums[field]
}

// Data reads the whole segment back, for merging.
func (r *Reader) Data() (Data, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, e := range r.dict {
		pl, err := r.Postings(e.key())
		if err != nil {
			return Data{}, err
		}
		entries = append(entries, index.TermEntry{Term: e.key(), Postings: pl})
	}
	return Data{
		DocCount: r.DocCount(),
		Entries:  entries,
		Stored:   r.stored,
		Norms:    r.norms,
	}, nil
}

func (r *Reader) Name() string { return r.name }

func (r *Reader) Path() string { return r.filePath }

func (r *Reader) TermCount() int { return len(r.dict) }

func (r *Reader) DocCount() int { return int(r.header.DocCount) }

func (r *Reader) Header() SegmentHeader { return r.header }

func (r *Reader) Close() error {
	if r.cache != nil {
		r.cache.Purge()
	}
	return r.file.Close()
}
