package analysis

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// StopWords is a set of lower-cased words removed by StopFilter.
type StopWords map[string]struct{}

// EnglishStopWords is the default English stop set used by the standard,
// stop and English analyzers.
var EnglishStopWords = NewStopWords(
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it",
	"no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these",
	"they", "this", "to", "was", "will", "with",
)

// NewStopWords builds a StopWords set, lower-casing each word.
func NewStopWords(words ...string) StopWords {
	s := make(StopWords, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

func (s StopWords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Sorted returns the words in lexical order.
func (s StopWords) Sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// LoadStopWords reads one word per line. Lines are trimmed and lower-cased;
// blank lines are skipped.
func LoadStopWords(r io.Reader) (StopWords, error) {
	words := make(StopWords)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w == "" {
			continue
		}
		words[w] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}
	return words, nil
}

// LoadStopWordsFile is LoadStopWords over a file path.
func LoadStopWordsFile(path string) (StopWords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop word file: %w", err)
	}
	defer f.Close()
	return LoadStopWords(f)
}
