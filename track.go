package racecal

// Track grades.
const (
	GradeMetro      = "M"
	GradeProvincial = "P"
	GradeCountry    = "C"
)

// TrackGrader maps a venue to its grade.
type TrackGrader interface {
	// Grade returns the venue's grade, or false when it is not listed.
	Grade(region Region, venue string) (string, bool)
}

// TrackAliaser resolves alternate spellings of a venue, such as sponsor
// names or course variants, to the track's listed name.
type TrackAliaser interface {
	// CanonicalTrack returns the listed name for venue, or venue itself
	// when no alias is known.
	CanonicalTrack(region Region, venue string) string
}
