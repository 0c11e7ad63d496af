package program

import (
	"regexp"
	"strings"
)

var (
	schemeBonus    = regexp.MustCompile(`(?i)\b(?:VOBIS|BOBS|QTIS|WESTSPEED|MAGIC MILLIONS)[^.:\n\r]*(?:BONUS|AVAILABLE)[^.\n\r]*`)
	nominatorBonus = regexp.MustCompile(`(?i)\bNominator\s+Bonus[^.\n\r]*`)
	attributeJunk  = regexp.MustCompile(`(?i)\b(?:alt|width|height|border)=`)
)

// Bonus returns the bonus scheme lines of a block joined with " | ", or
// false when there are none. Text carrying markup attributes is ignored.
func Bonus(block string) (string, bool) {
	var out []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{schemeBonus, nominatorBonus} {
		for _, raw := range re.FindAllString(block, -1) {
			if attributeJunk.MatchString(raw) {
				continue
			}
			line := strings.Join(strings.Fields(raw), " ")
			folded := strings.ToLower(line)
			if line == "" || seen[folded] {
				continue
			}
			seen[folded] = true
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return "", false
	}
	return strings.Join(out, " | "), true
}
