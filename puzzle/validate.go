package puzzle

import (
	"slices"
	"sort"
)

type WordResult string

const (
	WordValid        WordResult = "valid"
	WordAlreadyFound WordResult = "already-found"
	WordInvalid      WordResult = "invalid"
)

// WordSet holds the normalized words a participant has found.
type WordSet map[string]struct{}

func NewWordSet(words ...string) WordSet {
	s := make(WordSet, len(words))
	for _, w := range words {
		s.Add(w)
	}
	return s
}

func (s WordSet) Add(word string) {
	s[word] = struct{}{}
}

func (s WordSet) Remove(word string) {
	delete(s, word)
}

func (s WordSet) Has(word string) bool {
	_, ok := s[word]
	return ok
}

func (s WordSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// ValidateWord normalizes candidate and checks it against the canonical word
// list and the participant's found set. When grid is non-nil the word must also
// have been placed on it. The normalized candidate is returned alongside the result.
func ValidateWord(grid *Grid, words []string, found WordSet, candidate string) (WordResult, string) {
	word := NormalizeWord(candidate)
	if word == "" || !slices.Contains(words, word) {
		return WordInvalid, word
	}
	if grid != nil && !grid.IsPlaced(word) {
		return WordInvalid, word
	}
	if found.Has(word) {
		return WordAlreadyFound, word
	}
	return WordValid, word
}
