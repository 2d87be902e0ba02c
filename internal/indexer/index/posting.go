package index

// Term identifies an indexed term: a field name and the normalised text.
type Term struct {
	Field string `json:"f"`
	Text  string `json:"t"`
}

// NewTerm is a shorthand for Term{Field: field, Text: text}.
func NewTerm(field, text string) Term {
	return Term{Field: field, Text: text}
}

func (t Term) String() string {
	return t.Field + ":" + t.Text
}

// Less orders terms by field, then by text.
func (t Term) Less(o Term) bool {
	if t.Field != o.Field {
		return t.Field < o.Field
	}
	return t.Text < o.Text
}

// Key is the byte form used for hashing and map keys outside this package.
func (t Term) Key() []byte {
	b := make([]byte, 0, len(t.Field)+1+len(t.Text))
	b = append(b, t.Field...)
	b = append(b, 0)
	b = append(b, t.Text...)
	return b
}

// Posting records one document's occurrences of a term. Doc is the
// segment-local ordinal and Positions ascend.
type Posting struct {
	Doc       int
	Frequency int
	Positions []int
}

// PostingList is ordered by Doc.
type PostingList []Posting

// TotalTermFreq sums the frequencies of every posting.
func (pl PostingList) TotalTermFreq() int64 {
	var n int64
	for _, p := range pl {
		n += int64(p.Frequency)
	}
	return n
}

type TermEntry struct {
	Term     Term
	Postings PostingList
}
