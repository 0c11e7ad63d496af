// Package goquery implements HTML inspection of listing pages using
// PuerkitoBio/goquery: meeting key extraction and discovery of the
// controls a page offers for moving forward in time.
package goquery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/equinegpt/racecal"
)

var _ racecal.KeyExtractor = (*KeyExtractor)(nil)

var (
	// anyProgramURL finds RaceProgram.aspx links wherever they appear:
	// href, onclick, data attributes or plain text.
	anyProgramURL = regexp.MustCompile(`(?i)RaceProgram\.aspx\?[^<>"'\s]*\bKey=([^&<>"'\s]+)`)

	encodedTuple = regexp.MustCompile(`(?i)([12]\d{3}[A-Za-z]{3}[0-3]\d)%2C(NSW|VIC|QLD|WA|SA|TAS|ACT|NT)%2C([^&<>'"\s]+)`)
	quotedTuple  = regexp.MustCompile(`(?i)'([12]\d{3}[A-Za-z]{3}[0-3]\d)'\s*,\s*'(NSW|VIC|QLD|WA|SA|TAS|ACT|NT)'\s*,\s*'([^']+)'`)

	// plainTuple takes the venue as single-spaced capitalised words so
	// that prose after a key in free text is left out. Venues still
	// URL-encoded are left to the other strategies.
	plainTuple = regexp.MustCompile(`(?i)([12]\d{3}[A-Za-z]{3}[0-3]\d)\s*,\s*(NSW|VIC|QLD|WA|SA|TAS|ACT|NT)\s*,\s*(?-i:([A-Z0-9][A-Za-z0-9-]*(?: [A-Z0-9][A-Za-z0-9-]*)*))(?:$|[^+%A-Za-z0-9-])`)
)

var weekdays = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

// plainVenue drops weekday names trailing a venue taken from free text.
func plainVenue(s string) string {
	words := strings.Fields(s)
	for len(words) > 1 && weekdays[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// KeyExtractor finds meeting keys on listing and program pages. It layers
// several independent strategies because the source renders keys as
// links on some pages and only inside scripts on others.
type KeyExtractor struct{}

// NewKeyExtractor creates a new KeyExtractor.
func NewKeyExtractor() *KeyExtractor {
	return &KeyExtractor{}
}

// ExtractKeys returns the unique valid meeting keys in html, sorted.
// Trial meetings, unknown regions and malformed dates are dropped.
func (e *KeyExtractor) ExtractKeys(html, pageURL string) []racecal.MeetingKey {
	if html == "" {
		return nil
	}

	keys := make(racecal.KeySet)
	add := func(raw string) {
		k, err := racecal.ParseMeetingKey(raw)
		if err != nil {
			return
		}
		keys.Add(k)
	}

	for _, m := range anyProgramURL.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}

	for _, raw := range anchorKeys(html, pageURL) {
		add(raw)
	}

	for _, m := range encodedTuple.FindAllStringSubmatch(html, -1) {
		add(m[1] + "," + m[2] + "," + m[3])
	}
	for _, m := range quotedTuple.FindAllStringSubmatch(html, -1) {
		add(m[1] + "," + m[2] + "," + m[3])
	}
	for _, m := range plainTuple.FindAllStringSubmatch(html, -1) {
		add(m[1] + "," + m[2] + "," + plainVenue(m[3]))
	}

	return keys.Sorted()
}

// anchorKeys returns the raw Key parameter of every anchor pointing at a
// FreeFields page.
func anchorKeys(html, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var raw []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || isNonHTTPLink(href) {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		u := base.ResolveReference(ref)
		if !isFreeFieldsPage(u.Path) {
			return
		}
		q := u.Query()
		k := q.Get("Key")
		if k == "" {
			k = q.Get("key")
		}
		if k != "" {
			// Query() already decoded the value; re-escape so ParseMeetingKey
			// unescapes exactly once.
			raw = append(raw, url.QueryEscape(k))
		}
	})
	return raw
}

func isFreeFieldsPage(path string) bool {
	p := strings.ToLower(path)
	if strings.HasSuffix(p, "/raceprogram.aspx") {
		return true
	}
	return strings.Contains(p, "/freefields/") && strings.HasSuffix(p, ".aspx")
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
