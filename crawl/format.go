package crawl

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/equinegpt/racecal"
)

// PageSignature hashes a page body with xxhash so successive listing
// states can be compared cheaply.
func PageSignature(html string) uint64 {
	return xxhash.Sum64String(html)
}

// FormatKeyCounts summarizes keys as "date:count" pairs in date order,
// e.g. "2025-09-20:14 2025-09-21:9".
func FormatKeyCounts(keys []racecal.MeetingKey) string {
	var (
		parts []string
		last  string
		n     int
	)
	flush := func() {
		if last != "" {
			parts = append(parts, fmt.Sprintf("%s:%d", last, n))
		}
	}

	sorted := append([]racecal.MeetingKey(nil), keys...)
	racecal.SortKeys(sorted)
	for _, k := range sorted {
		d := k.ISODate()
		if d != last {
			flush()
			last, n = d, 0
		}
		n++
	}
	flush()
	return strings.Join(parts, " ")
}
