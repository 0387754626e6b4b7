package text

import "errors"

// ErrNoSymbols is returned when cleaning leaves no encodable symbols.
var ErrNoSymbols = errors.New("text has no encodable symbols")

// ToSequence cleans text with the named cleaner rules and maps each rune to
// its symbol id. Runes outside the vocabulary are skipped.
func ToSequence(raw string, cleanerNames []string) ([]int64, error) {
	cleaned, err := Clean(raw, cleanerNames)
	if err != nil {
		return nil, err
	}

	seq := make([]int64, 0, len(cleaned))
	for _, r := range cleaned {
		id, ok := symbolToID[r]
		if !ok {
			continue
		}
		seq = append(seq, id)
	}

	if len(seq) == 0 {
		return nil, ErrNoSymbols
	}

	return seq, nil
}

// Intersperse returns a new sequence with item inserted between every pair
// of adjacent ids, plus before the first and after the last. The result has
// length 2*len(seq)+1.
func Intersperse(seq []int64, item int64) []int64 {
	out := make([]int64, 2*len(seq)+1)
	for i := range out {
		out[i] = item
	}
	for i, v := range seq {
		out[2*i+1] = v
	}

	return out
}
