package program

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/equinegpt/racecal"
)

// Input is the text a rule may inspect: the race's header title and its
// block.
type Input struct {
	Title string
	Block string
}

// Rule is one named way of reading a field.
type Rule struct {
	Name  string
	Match func(in Input) (string, bool)
}

// Resolve returns the value of the first rule in rules that matches.
func Resolve(rules []Rule, in Input) (string, bool) {
	for _, r := range rules {
		if v, ok := r.Match(in); ok {
			return v, true
		}
	}
	return "", false
}

// RuleName returns the name of the first rule in rules that matches, or
// "" when none does.
func RuleName(rules []Rule, in Input) string {
	for _, r := range rules {
		if _, ok := r.Match(in); ok {
			return r.Name
		}
	}
	return ""
}

// render builds a value from a regexp submatch.
type render func(m []string) string

func constant(v string) render {
	return func([]string) string { return v }
}

func group(i int) render {
	return func(m []string) string { return m[i] }
}

func prefixed(prefix string, groups ...int) render {
	return func(m []string) string {
		var b strings.Builder
		b.WriteString(prefix)
		for _, g := range groups {
			b.WriteString(m[g])
		}
		return b.String()
	}
}

func titleRule(name string, re *regexp.Regexp, r render) Rule {
	return Rule{Name: name, Match: func(in Input) (string, bool) {
		return find(re, in.Title, r)
	}}
}

func blockRule(name string, re *regexp.Regexp, r render) Rule {
	return Rule{Name: name, Match: func(in Input) (string, bool) {
		return find(re, in.Block, r)
	}}
}

func find(re *regexp.Regexp, s string, r render) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return r(m), true
}

// PrizeRules read the total prize money, as digits.
var PrizeRules = []Rule{
	blockRule("of", regexp.MustCompile(`(?i)\bOf\s*\$?\s*([\d,]{3,})`), digits(1)),
	blockRule("prizemoney", regexp.MustCompile(`(?i)\b(?:Total\s+)?Prizemoney\b[^$]*\$\s*([\d,]{3,})`), digits(1)),
	{Name: "max-dollar", Match: maxDollar},
}

func digits(i int) render {
	return func(m []string) string { return strings.ReplaceAll(m[i], ",", "") }
}

var dollarAmount = regexp.MustCompile(`\$\s*([\d,]{3,})`)

func maxDollar(in Input) (string, bool) {
	best := -1
	for _, m := range dollarAmount.FindAllStringSubmatch(in.Block, -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil && n > best {
			best = n
		}
	}
	if best <= 0 {
		return "", false
	}
	return strconv.Itoa(best), true
}

// ConditionRules read the weight condition, strongest first.
var ConditionRules = []Rule{
	blockRule("swp", regexp.MustCompile(`(?i)SET\s*WEIGHTS\s*(?:&|AND|PLUS)\s*PENALTIES|\bSWP\b`), constant(racecal.ConditionSWP)),
	blockRule("sw", regexp.MustCompile(`(?i)\bSET\s*WEIGHTS\b`), constant(racecal.ConditionSW)),
	blockRule("quality", regexp.MustCompile(`(?i)\bQUALITY\b`), constant(racecal.ConditionQuality)),
	blockRule("hcp", regexp.MustCompile(`(?i)\b(?:HANDICAP|HCP)\b`), constant(racecal.ConditionHcp)),
	blockRule("wfa", regexp.MustCompile(`(?i)\bWFA\b|\bWEIGHT\s*FOR\s*AGE\b`), constant(racecal.ConditionWFA)),
}

var (
	groupPattern       = regexp.MustCompile(`(?i)\bGROUP\s?([1-3])\b`)
	listedPattern      = regexp.MustCompile(`(?i)\bLISTED\b`)
	benchmarkPattern   = regexp.MustCompile(`(?i)\b(?:BM|BENCHMARK)\s?(\d{1,3})\b(\+?)`)
	baseRatingPattern  = regexp.MustCompile(`(?i)\bBase\s*Rating\s*(\d{1,3})\b`)
	rtgPattern         = regexp.MustCompile(`(?i)\bRTG\s?(\d{2,3})\b(\+?)`)
	maidenPattern      = regexp.MustCompile(`(?i)\bMAIDEN\b`)
	classNPattern      = regexp.MustCompile(`(?i)\bCLASS\s?(\d)\b`)
	ratingsBandPattern = regexp.MustCompile(`(?i)\bRATINGS?\s*(?:BAND\s*)?(\d{1,2})\s*[-\x{2013}]\s*(\d{1,2})\b`)
	openWordPattern    = regexp.MustCompile(`(?i)\bOPEN\b`)
	noClassPattern     = regexp.MustCompile(`(?i)\bNo\s+class\s+restrictions?\b`)
)

// ClassRules read the race grade. Group and Listed in the block outrank
// everything; title signals outrank block signals.
var ClassRules = []Rule{
	blockRule("group", groupPattern, prefixed("Group ", 1)),
	blockRule("listed", listedPattern, constant("Listed")),
	titleRule("benchmark", benchmarkPattern, prefixed("BM", 1, 2)),
	titleRule("base-rating", baseRatingPattern, prefixed("BM", 1)),
	titleRule("rtg", rtgPattern, prefixed("BM", 1, 2)),
	titleRule("maiden", maidenPattern, constant("Maiden")),
	titleRule("class-n", classNPattern, prefixed("CL", 1)),
	blockRule("block-benchmark", benchmarkPattern, prefixed("BM", 1, 2)),
	blockRule("block-base-rating", baseRatingPattern, prefixed("BM", 1)),
	blockRule("block-rtg", rtgPattern, prefixed("BM", 1, 2)),
	blockRule("block-class-n", classNPattern, prefixed("CL", 1)),
	{Name: "ratings-band", Match: func(in Input) (string, bool) {
		if v, ok := find(ratingsBandPattern, in.Title, ratingsBand); ok {
			return v, true
		}
		return find(ratingsBandPattern, in.Block, ratingsBand)
	}},
	{Name: "open", Match: func(in Input) (string, bool) {
		if openWordPattern.MatchString(in.Title) || noClassPattern.MatchString(in.Block) {
			return "Open", true
		}
		return "", false
	}},
}

func ratingsBand(m []string) string {
	return m[1] + "-" + m[2]
}

var ageWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5", "six": "6",
	"seven": "7", "eight": "8", "nine": "9", "ten": "10", "eleven": "11", "twelve": "12",
}

const ageWord = `(One|Two|Three|Four|Five|Six|Seven|Eight|Nine|Ten|Eleven|Twelve)`

const andUp = `\s*(?:and\s*Up(?:wards)?|&\s*Up)\b`

func worded(suffix string) render {
	return func(m []string) string { return ageWords[strings.ToLower(m[1])] + suffix }
}

func plus(i int) render {
	return func(m []string) string { return m[i] + "+" }
}

// AgeRules read the age restriction.
var AgeRules = []Rule{
	blockRule("no-restriction", regexp.MustCompile(`(?i)\bNo\s+age\s+restrictions?\b`), constant("No Restrictions")),
	blockRule("yo-and-up", regexp.MustCompile(`(?i)\b(\d{1,2})\s?YO\+`), plus(1)),
	blockRule("yo", regexp.MustCompile(`(?i)\b(\d{1,2})\s?YO\b`), group(1)),
	blockRule("num-and-up", regexp.MustCompile(`(?i)\b(\d{1,2})[-\s]*Years?[-\s]*Old`+andUp), plus(1)),
	blockRule("word-and-up", regexp.MustCompile(`(?i)\b`+ageWord+`[-\s]*Years?[-\s]*Old`+andUp), worded("+")),
	blockRule("word", regexp.MustCompile(`(?i)\b`+ageWord+`[-\s]*Years?[-\s]*Old\b`), worded("")),
}

// Sex restrictions.
const (
	SexOpen            = "Open"
	SexFilliesAndMares = "Fillies & Mares"
	SexFillies         = "Fillies"
	SexMares           = "Mares"
	SexColtsGeldings   = "Colts & Geldings"
)

// sexRules read a sex restriction from whichever text they are given.
// They are run separately over the title and the block.
var sexRules = []sexRule{
	{regexp.MustCompile(`(?i)\bNo\s+sex\s+restrictions?\b`), SexOpen},
	{regexp.MustCompile(`(?i)\bF\s*&\s*M\b|\bFILLIES\s+(?:AND|&)\s+MARES\b`), SexFilliesAndMares},
	{regexp.MustCompile(`(?i)\bFILLIES\b`), SexFillies},
	{regexp.MustCompile(`(?i)\bC\s*&\s*G\b|\bC\s*G\s*&\s*E\b|\bCOLTS\b|\bGELDINGS\b`), SexColtsGeldings},
	{regexp.MustCompile(`(?i)\bMARES\b`), SexMares},
	{regexp.MustCompile(`(?i)\bOPEN\b`), SexOpen},
}

type sexRule struct {
	re    *regexp.Regexp
	value string
}

func sexSignal(s string) (string, bool) {
	for _, r := range sexRules {
		if r.re.MatchString(s) {
			return r.value, true
		}
	}
	return "", false
}

// SexRules read the sex restriction. The title is authoritative: when the
// title and block disagree the title wins, and with no signal at all the
// race is open.
var SexRules = []Rule{
	{Name: "title-over-block", Match: func(in Input) (string, bool) {
		title, inTitle := sexSignal(in.Title)
		block, inBlock := sexSignal(in.Block)
		switch {
		case inTitle:
			return title, true
		case inBlock:
			return block, true
		}
		return "", false
	}},
	{Name: "default", Match: func(Input) (string, bool) { return SexOpen, true }},
}
