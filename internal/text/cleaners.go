package text

import (
	"fmt"
	"regexp"
	"strings"
)

// A Cleaner rewrites raw transcript text before symbol lookup.
type Cleaner func(string) string

// cleaners is the registry of named cleaner rules selectable from
// configuration.
var cleaners = map[string]Cleaner{
	"lowercase":            Lowercase,
	"expand_abbreviations": ExpandAbbreviations,
	"collapse_whitespace":  CollapseWhitespace,
	"basic_cleaners":       basicCleaners,
	"english_cleaners":     englishCleaners,
}

// abbreviations expanded by ExpandAbbreviations. Matched as whole tokens
// (word boundary before the abbreviation, trailing period included) so
// ordinary words ending in the same letters stay untouched.
var abbreviations = []struct {
	re *regexp.Regexp
	to string
}{
	{abbrev("mrs"), "misess"},
	{abbrev("mr"), "mister"},
	{abbrev("dr"), "doctor"},
	{abbrev("st"), "saint"},
	{abbrev("co"), "company"},
	{abbrev("jr"), "junior"},
	{abbrev("maj"), "major"},
	{abbrev("gen"), "general"},
	{abbrev("drs"), "doctors"},
	{abbrev("rev"), "reverend"},
	{abbrev("lt"), "lieutenant"},
	{abbrev("hon"), "honorable"},
	{abbrev("sgt"), "sergeant"},
	{abbrev("capt"), "captain"},
	{abbrev("esq"), "esquire"},
	{abbrev("ltd"), "limited"},
	{abbrev("col"), "colonel"},
	{abbrev("ft"), "fort"},
}

func abbrev(token string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + token + `\.`)
}

// Lowercase lowercases the whole string.
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// ExpandAbbreviations rewrites common English abbreviations to their spoken
// form. Input is expected to be lowercased already.
func ExpandAbbreviations(s string) string {
	for _, abbr := range abbreviations {
		s = abbr.re.ReplaceAllString(s, abbr.to)
	}

	return s
}

// CollapseWhitespace normalizes line endings and tabs to spaces, collapses
// runs of spaces, and trims the ends.
func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}

	return strings.TrimSpace(s)
}

func basicCleaners(s string) string {
	return CollapseWhitespace(Lowercase(s))
}

func englishCleaners(s string) string {
	return CollapseWhitespace(ExpandAbbreviations(Lowercase(s)))
}

// ResolveCleaners looks up the named cleaner rules in declaration order.
// Unknown names are an error.
func ResolveCleaners(names []string) ([]Cleaner, error) {
	out := make([]Cleaner, 0, len(names))
	for _, name := range names {
		c, ok := cleaners[name]
		if !ok {
			return nil, fmt.Errorf("unknown cleaner %q", name)
		}
		out = append(out, c)
	}

	return out, nil
}

// Clean applies the named cleaner rules in order.
func Clean(s string, names []string) (string, error) {
	fns, err := ResolveCleaners(names)
	if err != nil {
		return "", err
	}
	for _, fn := range fns {
		s = fn(s)
	}

	return s, nil
}
