package indexer

import (
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Entry represents a single launchable application
type Entry struct {
	Name string // Display name, matched against queries
	Exec string // Command line passed to the spawner
}

// Index is the immutable set of entries discovered for a session. It is safe
// for concurrent readers without locking.
type Index struct {
	entries []Entry
	folded  []string       // folded names, parallel to entries
	byName  map[string]int // first occurrence of each name
	buckets map[rune][]int // first rune of the folded name -> positions
}

// NewIndex builds an index from entries in discovery order. Entries with an
// empty name are dropped; entries sharing a name are all kept.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		entries: make([]Entry, 0, len(entries)),
		folded:  make([]string, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
		buckets: make(map[rune][]int),
	}

	caser := cases.Fold()
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}

		pos := len(idx.entries)
		folded := caser.String(entry.Name)
		idx.entries = append(idx.entries, entry)
		idx.folded = append(idx.folded, folded)

		if _, ok := idx.byName[entry.Name]; !ok {
			idx.byName[entry.Name] = pos
		}

		first, _ := utf8.DecodeRuneInString(folded)
		idx.buckets[first] = append(idx.buckets[first], pos)
	}

	return idx
}

// Lookup returns the first entry with the given name
func (idx *Index) Lookup(name string) (Entry, bool) {
	pos, ok := idx.byName[name]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[pos], true
}

// Entries returns a copy of all entries in discovery order
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Len returns the number of entries
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Candidate is an entry paired with its folded name.
type Candidate struct {
	Entry  Entry
	Folded string
}

// Candidates returns every entry with its folded name, in discovery order.
func (idx *Index) Candidates() []Candidate {
	out := make([]Candidate, len(idx.entries))
	for i := range idx.entries {
		out[i] = Candidate{Entry: idx.entries[i], Folded: idx.folded[i]}
	}
	return out
}

// Bucket returns the candidates whose folded name starts with r. r must
// already be folded (see Fold).
func (idx *Index) Bucket(r rune) []Candidate {
	positions := idx.buckets[r]
	out := make([]Candidate, len(positions))
	for i, pos := range positions {
		out[i] = Candidate{Entry: idx.entries[pos], Folded: idx.folded[pos]}
	}
	return out
}

// Fold case-folds s the same way the index folds names.
func Fold(s string) string {
	return cases.Fold().String(s)
}
