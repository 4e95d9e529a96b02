// Package featurize turns raw text into the relation stream consumed by the
// sheaf scanner: entities are dictionary terms (given or discovered from
// token frequency) and every pair of entities mentioned in the same sentence
// becomes one relation atom.
package featurize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/taxomine/pkg/graph"
	"github.com/kittclouds/taxomine/pkg/sheaf"
)

var (
	// ErrNoRelations is returned when no sentence mentions two entities.
	ErrNoRelations = errors.New("featurize: no co-occurring entities")
	// ErrUnknownCentrality rejects an unsupported centrality mode.
	ErrUnknownCentrality = errors.New("featurize: unknown centrality mode")
)

// Centrality modes
const (
	CentralityFrequency = "frequency"
	CentralityDegree    = "degree"
)

// honorifics are dropped on top of the language list.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
}

// Options controls featurization
type Options struct {
	// Vocabulary fixes the entity set. When empty, entities are discovered
	// from token frequency.
	Vocabulary   []Term `yaml:"vocabulary"`
	MinFrequency int    `yaml:"min_frequency"`
	MinLength    int    `yaml:"min_length"`
	// MaxEntities caps discovery to the most frequent tokens (0 = no cap).
	MaxEntities int    `yaml:"max_entities"`
	Centrality  string `yaml:"centrality"`
	Language    string `yaml:"language"`
}

// DefaultOptions returns discovery settings for English prose.
func DefaultOptions() Options {
	return Options{
		MinFrequency: 2,
		MinLength:    3,
		MaxEntities:  200,
		Centrality:   CentralityFrequency,
		Language:     "en",
	}
}

// Validate checks the options
func (o Options) Validate() error {
	switch o.Centrality {
	case "", CentralityFrequency, CentralityDegree:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCentrality, o.Centrality)
	}
	return nil
}

// Featurize splits text into sentences, finds entity mentions and emits one
// atom per co-mentioned pair per sentence, in text order.
func Featurize(text string, opts Options) (sheaf.Stream, error) {
	if err := opts.Validate(); err != nil {
		return sheaf.Stream{}, err
	}

	sentences := Sentences(text)
	normalized := make([]string, len(sentences))
	for i, s := range sentences {
		normalized[i] = Normalize(s)
	}

	terms := opts.Vocabulary
	if len(terms) == 0 {
		terms = Discover(normalized, opts)
	}
	dict := Compile(terms)

	var (
		order  []string
		counts = make(map[string]int)
		atoms  []graph.RelationAtom
	)
	for _, s := range normalized {
		var seen []string
		for _, m := range dict.Scan(s) {
			for _, id := range m.IDs {
				counts[id]++
				if !contains(seen, id) {
					seen = append(seen, id)
				}
			}
		}
		for i := 0; i < len(seen); i++ {
			for j := i + 1; j < len(seen); j++ {
				atoms = append(atoms, graph.RelationAtom{A: seen[i], B: seen[j], Weight: 1})
			}
		}
		for _, id := range seen {
			if len(seen) > 1 && !contains(order, id) {
				order = append(order, id)
			}
		}
	}
	if len(atoms) == 0 {
		return sheaf.Stream{}, ErrNoRelations
	}

	centrality := make(map[string]float64, len(order))
	for _, id := range order {
		centrality[id] = float64(counts[id])
	}
	if opts.Centrality == CentralityDegree {
		g := graph.NewGraph()
		for _, a := range atoms {
			g.AddAtom(a)
		}
		centrality = g.DegreeCentrality()
	}

	entities := make([]graph.Entity, len(order))
	for i, id := range order {
		entities[i] = graph.Entity{ID: id, Centrality: centrality[id]}
	}
	return sheaf.Stream{Entities: entities, Atoms: atoms}, nil
}

// Discover returns the tokens of normalized sentences that are frequent
// enough to be treated as entities, most frequent first.
func Discover(normalized []string, opts Options) []Term {
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	stop := stopwords.MustGet(lang)

	counts := make(map[string]int)
	for _, s := range normalized {
		for _, tok := range strings.Fields(s) {
			if len(tok) < opts.MinLength || honorifics[tok] || stop.Contains(tok) || numeric(tok) {
				continue
			}
			counts[tok]++
		}
	}

	tokens := make([]string, 0, len(counts))
	for tok, n := range counts {
		if n >= opts.MinFrequency {
			tokens = append(tokens, tok)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if opts.MaxEntities > 0 && len(tokens) > opts.MaxEntities {
		tokens = tokens[:opts.MaxEntities]
	}

	terms := make([]Term, len(tokens))
	for i, tok := range tokens {
		terms[i] = Term{ID: tok}
	}
	return terms
}

// Sentences splits text on terminal punctuation and blank lines.
func Sentences(text string) []string {
	var (
		out   []string
		start int
	)
	flush := func(end int) {
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
	}
	for i, r := range text {
		switch r {
		case '.', '!', '?', ';', '\n':
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))
	return out
}

func numeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
