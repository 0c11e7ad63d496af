package racecal

import (
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Region is an Australian racing jurisdiction code.
type Region string

// Region constants.
const (
	NSW Region = "NSW"
	VIC Region = "VIC"
	QLD Region = "QLD"
	WA  Region = "WA"
	SA  Region = "SA"
	TAS Region = "TAS"
	ACT Region = "ACT"
	NT  Region = "NT"
)

var regions = []Region{NSW, VIC, QLD, WA, SA, TAS, ACT, NT}

// Regions returns every known region in listing order.
func Regions() []Region {
	return append([]Region(nil), regions...)
}

// Valid reports whether r is a known region.
func (r Region) Valid() bool {
	for _, known := range regions {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRegion parses a region code, ignoring case and surrounding space.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", Errorf(EINVALID, "unknown region %q", s)
	}
	return r, nil
}

// KeyDateLayout is the layout of the date segment of a meeting key.
const KeyDateLayout = "2006Jan02"

var (
	trialPattern = regexp.MustCompile(`(?i)\b(trial|jump[-\s]?out|jumpout)\b`)
	venueJunk    = regexp.MustCompile("[\u200b<>#\"]+")
)

// IsTrialVenue reports whether a venue string names a barrier trial or
// jumpout session. Picnic meetings are not trials.
func IsTrialVenue(s string) bool {
	return trialPattern.MatchString(s)
}

// NormalizeVenue unescapes HTML entities, removes stray markup characters
// and collapses whitespace.
func NormalizeVenue(s string) string {
	s = html.UnescapeString(s)
	s = venueJunk.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// MeetingKey identifies one race meeting.
type MeetingKey struct {
	Date   time.Time `json:"date"`
	Region Region    `json:"region"`
	Venue  string    `json:"venue"`
}

// NewMeetingKey builds a key from its parts, normalizing the venue.
func NewMeetingKey(date time.Time, region Region, venue string) MeetingKey {
	return MeetingKey{Date: Day(date), Region: region, Venue: NormalizeVenue(venue)}
}

// ParseMeetingKey parses the "2025Sep20,VIC,Flemington" wire format.
// The input may be URL-encoded. Venue text after the region is kept whole,
// commas included.
func ParseMeetingKey(s string) (MeetingKey, error) {
	raw := s
	if u, err := url.QueryUnescape(s); err == nil {
		s = u
	}
	parts := strings.SplitN(strings.TrimSpace(s), ",", 3)
	if len(parts) < 3 {
		return MeetingKey{}, Errorf(EINVALID, "meeting key %q: want date,region,venue", raw)
	}

	date, err := ParseKeyDate(parts[0])
	if err != nil {
		return MeetingKey{}, Errorf(EINVALID, "meeting key %q: bad date %q", raw, parts[0])
	}
	region, err := ParseRegion(parts[1])
	if err != nil {
		return MeetingKey{}, Errorf(EINVALID, "meeting key %q: unknown region %q", raw, parts[1])
	}
	if IsTrialVenue(parts[2]) {
		return MeetingKey{}, Errorf(ETRIAL, "meeting key %q is a trial or jumpout", raw)
	}
	venue := NormalizeVenue(parts[2])
	if venue == "" {
		return MeetingKey{}, Errorf(EINVALID, "meeting key %q: venue required", raw)
	}

	return MeetingKey{Date: date, Region: region, Venue: venue}, nil
}

// ParseKeyDate parses the date segment of a meeting key. Month names are
// matched case-insensitively.
func ParseKeyDate(s string) (time.Time, error) {
	return time.Parse(KeyDateLayout, strings.TrimSpace(s))
}

// String renders the key in wire format.
func (k MeetingKey) String() string {
	return k.Date.Format(KeyDateLayout) + "," + string(k.Region) + "," + k.Venue
}

// ISODate returns the key's date as YYYY-MM-DD.
func (k MeetingKey) ISODate() string {
	return k.Date.Format(time.DateOnly)
}

// Validate returns an error if the key is incomplete or names a trial.
func (k MeetingKey) Validate() error {
	if k.Date.IsZero() {
		return Errorf(EINVALID, "meeting key date required")
	}
	if !k.Region.Valid() {
		return Errorf(EINVALID, "meeting key region %q unknown", k.Region)
	}
	if k.Venue == "" {
		return Errorf(EINVALID, "meeting key venue required")
	}
	if IsTrialVenue(k.Venue) {
		return Errorf(ETRIAL, "meeting key %q is a trial or jumpout", k.String())
	}
	return nil
}

// SortKeys orders keys by date, region and venue.
func SortKeys(keys []MeetingKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Venue < b.Venue
	})
}

// MaxDate returns the furthest date among keys, or the zero time.
func MaxDate(keys []MeetingKey) time.Time {
	var max time.Time
	for _, k := range keys {
		if k.Date.After(max) {
			max = k.Date
		}
	}
	return max
}

// KeySet is a set of meeting keys.
type KeySet map[MeetingKey]struct{}

// NewKeySet returns a set holding keys.
func NewKeySet(keys ...MeetingKey) KeySet {
	s := make(KeySet, len(keys))
	s.Add(keys...)
	return s
}

// Add inserts keys into the set.
func (s KeySet) Add(keys ...MeetingKey) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Has reports whether k is in the set.
func (s KeySet) Has(k MeetingKey) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the members ordered with SortKeys.
func (s KeySet) Sorted() []MeetingKey {
	keys := make([]MeetingKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// DefaultBaseURL is the root of the Racing Australia site.
const DefaultBaseURL = "https://www.racingaustralia.horse"

// ProgramURL returns the race program page for k under baseURL.
func ProgramURL(baseURL string, k MeetingKey) string {
	return strings.TrimRight(baseURL, "/") + "/FreeFields/RaceProgram.aspx?Key=" + url.QueryEscape(k.String())
}
