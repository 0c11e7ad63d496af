// Package program parses Racing Australia race program pages into race
// records and harvests them over HTTP.
//
// Parsing is pure: a page is cleaned to flat text, split into one block per
// race header, and each field is resolved by walking a declared list of
// named rules in precedence order.
package program

import (
	"strings"

	"golang.org/x/net/html"
)

// oddSpaces are the non-breaking and narrow spaces the source uses between
// words.
var oddSpaces = strings.NewReplacer(
	"\u00a0", " ",
	"\u202f", " ",
	"\u2009", " ",
	"\u200a", " ",
)

// Clean flattens an HTML page to single-spaced text. Entities are decoded,
// tags become word breaks and script or style content is dropped.
func Clean(page string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(page))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(oddSpaces.Replace(b.String())), " ")
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if isRawText(z) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isRawText(z) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(' ')
		}
	}
}

func isRawText(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
