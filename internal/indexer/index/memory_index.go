package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/cacm-search/internal/indexer/analysis"
)

// MemoryIndex accumulates postings, stored fields and field lengths for the
// documents buffered since the last flush. Ordinals are assigned in insertion
// order starting at 0.
type MemoryIndex struct {
	mu       sync.RWMutex
	postings map[Term]PostingList
	stored   []StoredDocument
	norms    map[string][]int
	docCount int
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		postings: make(map[Term]PostingList),
		norms:    make(map[string][]int),
	}
}

// AddDocument analyzes the indexed fields of doc with a and returns the
// ordinal given to it. Values of a repeated field continue the position
// sequence of the previous value.
func (m *MemoryIndex) AddDocument(doc Document, a analysis.Analyzer) int {
	type fieldState struct {
		next   int
		length int
	}
	states := make(map[string]*fieldState)
	termData := make(map[Term]*Posting)
	var order []Term

	for _, f := range doc.Fields {
		if !f.Indexed {
			continue
		}
		st, ok := states[f.Name]
		if !ok {
			st = &fieldState{}
			states[f.Name] = st
		}
		var tokens []analysis.Token
		if f.Tokenized {
			tokens = a.Analyze(f.Value)
		} else if f.Value != "" {
			tokens = []analysis.Token{{Term: f.Value, Position: 0, End: len(f.Value)}}
		}
		base := st.next
		last := -1
		for _, tok := range tokens {
			pos := base + tok.Position
			if pos != last {
				st.length++
			}
			last = pos
			term := Term{Field: f.Name, Text: tok.Term}
			p, exists := termData[term]
			if !exists {
				p = &Posting{Positions: make([]int, 0, 4)}
				termData[term] = p
				order = append(order, term)
			}
			p.Frequency++
			p.Positions = append(p.Positions, pos)
			if pos+1 > st.next {
				st.next = pos + 1
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ord := m.docCount
	for _, term := range order {
		p := termData[term]
		p.Doc = ord
		sort.Ints(p.Positions)
		m.postings[term] = append(m.postings[term], *p)
		m.size += int64(len(term.Field) + len(term.Text) + len(p.Positions)*8 + 32)
	}
	for name, st := range states {
		lengths := m.norms[name]
		for len(lengths) < ord {
			lengths = append(lengths, 0)
		}
		m.norms[name] = append(lengths, st.length)
	}
	stored := doc.Stored()
	for name, values := range stored {
		for _, v := range values {
			m.size += int64(len(name) + len(v))
		}
	}
	m.stored = append(m.stored, stored)
	m.docCount++
	return ord
}

// Search returns the postings of term in ordinal order.
func (m *MemoryIndex) Search(term Term) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pl, exists := m.postings[term]
	if !exists {
		return nil
	}
	out := make(PostingList, len(pl))
	copy(out, pl)
	return out
}

// Snapshot returns every term with its postings, sorted by term.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.postings))
	for term, pl := range m.postings {
		postings := make(PostingList, len(pl))
		copy(postings, pl)
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term.Less(entries[j].Term)
	})
	return entries
}

// StoredDocuments returns the stored fields indexed by ordinal.
func (m *MemoryIndex) StoredDocuments() []StoredDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StoredDocument, len(m.stored))
	copy(out, m.stored)
	return out
}

// Norms returns per-field token counts, one entry per ordinal. Documents
// without the field have length 0.
func (m *MemoryIndex) Norms() map[string][]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]int, len(m.norms))
	for name, lengths := range m.norms {
		padded := make([]int, m.docCount)
		copy(padded, lengths)
		out[name] = padded
	}
	return out
}

// Size is an estimate of the bytes held.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postings = make(map[Term]PostingList)
	m.stored = nil
	m.norms = make(map[string][]int)
	m.docCount = 0
	m.size = 0
}
