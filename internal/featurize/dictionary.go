package featurize

import (
	"strings"
	"unicode"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Normalize cleans and lowercases text for matching. Punctuation becomes a
// single space so patterns and text normalize the same way.
func Normalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	for _, ch := range s {
		c := unicode.ToLower(ch)

		// Curly apostrophe -> straight
		if c == '’' {
			out.WriteRune('\'')
			continue
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' {
			out.WriteRune(c)
		} else {
			out.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(out.String()), " ")
}

// Term is one entity and the surface forms that mention it.
type Term struct {
	ID      string   `yaml:"id" json:"id"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Dictionary scans text for entity mentions with a single Aho-Corasick
// automaton built over every surface form.
type Dictionary struct {
	ac ahocorasick.AhoCorasick

	// pattern index -> entity IDs (several entities may share a surface)
	patternToIDs [][]string
	patternIndex map[string]int
	patterns     []string
}

// Mention is one detected entity occurrence
type Mention struct {
	Start int
	End   int
	IDs   []string
}

// Compile builds a Dictionary from terms. A term's ID is always one of its
// surface forms.
func Compile(terms []Term) *Dictionary {
	d := &Dictionary{patternIndex: make(map[string]int)}

	for _, t := range terms {
		surfaces := append([]string{t.ID}, t.Aliases...)
		for _, surface := range surfaces {
			key := Normalize(surface)
			if key == "" {
				continue
			}
			if idx, exists := d.patternIndex[key]; exists {
				d.patternToIDs[idx] = appendUnique(d.patternToIDs[idx], t.ID)
				continue
			}
			d.patternIndex[key] = len(d.patterns)
			d.patterns = append(d.patterns, key)
			d.patternToIDs = append(d.patternToIDs, []string{t.ID})
		}
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	d.ac = builder.Build(d.patterns)
	return d
}

// Len returns the number of distinct surface forms.
func (d *Dictionary) Len() int {
	return len(d.patterns)
}

// Scan finds all mentions in already-normalized text.
func (d *Dictionary) Scan(normalized string) []Mention {
	if len(d.patterns) == 0 {
		return nil
	}
	matches := d.ac.FindAll(normalized)
	out := make([]Mention, 0, len(matches))
	for _, m := range matches {
		out = append(out, Mention{
			Start: m.Start(),
			End:   m.End(),
			IDs:   d.patternToIDs[m.Pattern()],
		})
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
