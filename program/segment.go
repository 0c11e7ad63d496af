package program

import (
	"regexp"
	"strconv"
	"strings"
)

// headerPattern matches a race header such as
// "Race 6 - 4:35PM Example Plate (1400 METRES)".
var headerPattern = regexp.MustCompile(
	`(?is)Race\s*0*(\d{1,2})\s*(?:[-\x{2010}-\x{2015}\x{2212}]\s*)?` +
		`(?:(\d{1,2}:\d{2}\s*[AP]M)\s*)?` +
		`(.*?)\(\s*(\d{3,4})\s*METRES?\s*\)`)

var (
	leadingDash    = regexp.MustCompile(`^\s*[-\x{2010}-\x{2015}\x{2212}]+\s*`)
	timePrefix     = regexp.MustCompile(`(?i)^\s*\d{1,2}:\d{2}\s*[AP]M\s*`)
	trailingMetres = regexp.MustCompile(`(?i)\s*\(\s*\d{3,4}\s*METRES?\s*\)\s*$`)
)

// Block is the text of one race on a program page.
type Block struct {
	RaceNo    int
	Title     string
	DistanceM int

	// Text runs from the end of this header to the start of the next one,
	// or to the end of the page.
	Text string

	// HeaderStart, Start and End are byte offsets into the segmented text.
	HeaderStart int
	Start       int
	End         int
}

// Segment splits cleaned page text into one block per race header, in
// page order.
func Segment(text string) []Block {
	matches := headerPattern.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]Block, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		raceNo, _ := strconv.Atoi(text[m[2]:m[3]])
		distance, _ := strconv.Atoi(text[m[8]:m[9]])
		blocks = append(blocks, Block{
			RaceNo:      raceNo,
			Title:       Title(text[m[6]:m[7]]),
			DistanceM:   distance,
			Text:        strings.TrimSpace(text[m[1]:end]),
			HeaderStart: m[0],
			Start:       m[1],
			End:         end,
		})
	}
	return blocks
}

// Title strips a leading dash, a post time and a trailing distance from a
// raw header title.
func Title(raw string) string {
	t := leadingDash.ReplaceAllString(raw, "")
	t = timePrefix.ReplaceAllString(t, "")
	t = trailingMetres.ReplaceAllString(t, "")
	return strings.Join(strings.Fields(t), " ")
}
