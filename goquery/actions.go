package goquery

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/equinegpt/racecal"
)

var _ racecal.ActionFinder = (*ActionFinder)(nil)

var postBackCall = regexp.MustCompile(`(?i)__doPostBack\(\s*'([^']+)'\s*,\s*'([^']*)'\s*\)`)

// ActionFinder lists the links, buttons and postbacks on a listing page
// that might move it forward, together with the form state needed to
// replay them.
type ActionFinder struct{}

// NewActionFinder creates a new ActionFinder.
func NewActionFinder() *ActionFinder {
	return &ActionFinder{}
}

// FindActions returns the page's hidden fields, form URL and candidate
// actions. Actions labelled with both "next" and "week" come first; the
// rest keep document order. Duplicates are removed by signature.
func (f *ActionFinder) FindActions(rawHTML, pageURL string) (*racecal.ActionSet, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, racecal.Errorf(racecal.EINVALID, "invalid page URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, racecal.Errorf(racecal.EINVALID, "failed to parse HTML: %v", err)
	}

	set := &racecal.ActionSet{Hidden: url.Values{}}

	if action, ok := doc.Find("form").First().Attr("action"); ok {
		if ref, err := url.Parse(strings.TrimSpace(action)); err == nil {
			set.FormURL = base.ResolveReference(ref).String()
		}
	}

	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		if attrLower(sel, "type") != "hidden" {
			return
		}
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := sel.Attr("value")
		set.Hidden.Set(name, value)
	})

	var found []racecal.Action

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		text := label(collapse(sel.Text()), sel.AttrOr("title", ""))
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}
		if strings.HasPrefix(strings.ToLower(href), "javascript:") {
			if m := postBackCall.FindStringSubmatch(href); m != nil {
				found = append(found, postBack(m[1], m[2], text))
			}
			return
		}
		if isNonHTTPLink(href) {
			return
		}
		if resolved := resolveURL(base, href); resolved != "" {
			found = append(found, racecal.Action{Kind: racecal.ActionLink, Text: text, URL: resolved})
		}
	})

	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		typ := attrLower(sel, "type")
		if typ != "submit" && typ != "button" && typ != "image" {
			return
		}
		name := sel.AttrOr("name", "")
		if name == "" {
			return
		}
		value := sel.AttrOr("value", "")
		fields := url.Values{name: {value}}
		if typ == "image" {
			fields.Set(name+".x", "1")
			fields.Set(name+".y", "1")
		}
		text := label(value, sel.AttrOr("title", ""), sel.AttrOr("alt", ""),
			sel.AttrOr("aria-label", ""), sel.AttrOr("id", ""))
		found = append(found, racecal.Action{Kind: racecal.ActionSubmit, Text: text, Fields: fields})
	})

	doc.Find("button[name]").Each(func(_ int, sel *goquery.Selection) {
		name := sel.AttrOr("name", "")
		if name == "" {
			return
		}
		text := label(collapse(sel.Text()), sel.AttrOr("title", ""), sel.AttrOr("aria-label", ""))
		found = append(found, racecal.Action{
			Kind:   racecal.ActionSubmit,
			Text:   text,
			Fields: url.Values{name: {sel.AttrOr("value", "")}},
		})
	})

	// Postbacks wired through onclick handlers or scripts. ASP.NET escapes
	// the quotes inside attributes, so scan the unescaped text.
	for _, m := range postBackCall.FindAllStringSubmatch(html.UnescapeString(rawHTML), -1) {
		found = append(found, postBack(m[1], m[2], ""))
	}

	set.Actions = prioritize(found)
	return set, nil
}

func postBack(target, argument, text string) racecal.Action {
	return racecal.Action{
		Kind: racecal.ActionPostBack,
		Text: text,
		Fields: url.Values{
			"__EVENTTARGET":   {target},
			"__EVENTARGUMENT": {argument},
		},
	}
}

// prioritize moves "next week" actions to the front, keeping relative
// order within each group, and drops repeated signatures.
func prioritize(actions []racecal.Action) []racecal.Action {
	ordered := make([]racecal.Action, 0, len(actions))
	for _, a := range actions {
		if a.IsNextWeek() {
			ordered = append(ordered, a)
		}
	}
	for _, a := range actions {
		if !a.IsNextWeek() {
			ordered = append(ordered, a)
		}
	}

	seen := make(map[string]bool, len(ordered))
	out := ordered[:0]
	for _, a := range ordered {
		sig := a.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, a)
	}
	return out
}

// resolveURL resolves a relative URL against a base URL.
// Returns empty string if the href cannot be parsed or if the resolved URL
// is self-referential (same as base URL after stripping fragment).
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""

	result := resolved.String()
	baseNoFragment := *base
	baseNoFragment.Fragment = ""
	if result == baseNoFragment.String() {
		return ""
	}
	return result
}

func attrLower(sel *goquery.Selection, name string) string {
	return strings.ToLower(strings.TrimSpace(sel.AttrOr(name, "")))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// label joins the non-empty descriptive strings of a control.
func label(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
