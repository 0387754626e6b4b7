// Package text converts raw transcript text into the integer symbol
// sequences consumed by the acoustic model. A fixed symbol table maps each
// known rune to an id; cleaner rules normalize the text before lookup.
package text

// PadID is the id of the padding symbol. It doubles as the blank symbol
// interspersed between adjacent ids when blank insertion is enabled.
const PadID = 0

const (
	pad         = "_"
	punctuation = ";:,.!?¡¿—…\"«»“” "
	letters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// symbolToID maps each rune of the vocabulary to its integer id.
// Ids are assigned in declaration order: pad, punctuation, letters.
var symbolToID = buildSymbolTable()

func buildSymbolTable() map[rune]int64 {
	m := make(map[rune]int64)
	id := int64(0)
	for _, set := range []string{pad, punctuation, letters} {
		for _, r := range set {
			if _, exists := m[r]; exists {
				continue
			}
			m[r] = id
			id++
		}
	}

	return m
}

// VocabSize returns the number of distinct symbols in the table.
func VocabSize() int {
	return len(symbolToID)
}
