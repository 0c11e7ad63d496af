// Package reconcile matches locally discovered venues with the form
// provider's meetings for the same date.
package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultAbbreviations expands short geographic prefixes.
var DefaultAbbreviations = map[string]string{
	"mt":  "mount",
	"pt":  "port",
	"st":  "saint",
	"ck":  "creek",
	"nth": "north",
	"sth": "south",
}

// DefaultSponsorTokens are branding words prefixed to venue names.
var DefaultSponsorTokens = []string{
	"ladbrokes", "sportsbet", "southside", "aquis", "neds", "tab",
	"tabcomau", "xxxx", "carlton", "draught", "bet365", "pointsbet",
}

// DefaultGenericTokens are course-type words dropped when a more specific
// token remains.
var DefaultGenericTokens = []string{"racecourse", "racetrack", "raceway", "races", "park"}

// Canonicalizer projects raw venue strings onto a comparison-stable form.
// It is safe for concurrent use once built.
type Canonicalizer struct {
	abbreviations map[string]string
	sponsors      map[string]bool
	generics      map[string]bool
}

// CanonicalizerOption configures a Canonicalizer.
type CanonicalizerOption func(*Canonicalizer)

// WithSponsorTokens adds sponsor tokens to the defaults.
func WithSponsorTokens(tokens ...string) CanonicalizerOption {
	return func(c *Canonicalizer) {
		for _, t := range tokens {
			for _, f := range fold(t) {
				c.sponsors[f] = true
			}
		}
	}
}

// WithGenericTokens adds generic tokens to the defaults.
func WithGenericTokens(tokens ...string) CanonicalizerOption {
	return func(c *Canonicalizer) {
		for _, t := range tokens {
			for _, f := range fold(t) {
				c.generics[f] = true
			}
		}
	}
}

// WithAbbreviations adds abbreviation expansions to the defaults. An
// expansion must not itself contain an abbreviation, or the projection
// would stop being idempotent.
func WithAbbreviations(m map[string]string) CanonicalizerOption {
	return func(c *Canonicalizer) {
		for k, v := range m {
			if key := fold(k); len(key) == 1 {
				c.abbreviations[key[0]] = strings.Join(fold(v), " ")
			}
		}
	}
}

// NewCanonicalizer creates a Canonicalizer with the default tables plus
// any options.
func NewCanonicalizer(opts ...CanonicalizerOption) *Canonicalizer {
	c := &Canonicalizer{
		abbreviations: make(map[string]string, len(DefaultAbbreviations)),
		sponsors:      make(map[string]bool, len(DefaultSponsorTokens)),
		generics:      make(map[string]bool, len(DefaultGenericTokens)),
	}
	for k, v := range DefaultAbbreviations {
		c.abbreviations[k] = v
	}
	for _, t := range DefaultSponsorTokens {
		c.sponsors[t] = true
	}
	for _, t := range DefaultGenericTokens {
		c.generics[t] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Canonicalize returns the canonical form of s.
func (c *Canonicalizer) Canonicalize(s string) string {
	return strings.Join(c.Tokens(s), " ")
}

// Tokens returns the canonical tokens of s:
//  1. accents folded and lowercased, punctuation replaced by spaces;
//  2. abbreviation tokens expanded;
//  3. sponsor tokens dropped;
//  4. generic tokens dropped if more than one token remains.
//
// Steps 3 and 4 never leave the name empty.
func (c *Canonicalizer) Tokens(s string) []string {
	var expanded []string
	for _, t := range fold(s) {
		if full, ok := c.abbreviations[t]; ok {
			expanded = append(expanded, strings.Fields(full)...)
			continue
		}
		expanded = append(expanded, t)
	}

	tokens := without(expanded, c.sponsors)
	if len(tokens) > 1 {
		tokens = without(tokens, c.generics)
	}
	return tokens
}

// without drops tokens in set, unless that would drop them all.
func without(tokens []string, set map[string]bool) []string {
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !set[t] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return tokens
	}
	return kept
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// fold decomposes s, strips combining marks, lowercases it and splits it
// on anything that is not a letter or digit.
func fold(s string) []string {
	t := transform.Chain(norm.NFKD, stripMarks)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var defaultCanonicalizer = NewCanonicalizer()

// Canonicalize returns the canonical form of s using the default tables.
func Canonicalize(s string) string {
	return defaultCanonicalizer.Canonicalize(s)
}
