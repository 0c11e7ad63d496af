// Package bloom provides a probabilistic set of meeting keys, used to
// remember probes that found no program page.
package bloom

import (
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/equinegpt/racecal"
)

// Filter is a Bloom filter over meeting keys. It is not safe for
// concurrent use; callers guard it.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a filter sized for n expected keys with the given
// false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add records k.
func (f *Filter) Add(k racecal.MeetingKey) {
	f.f.AddString(k.String())
}

// Test returns true if k might have been added.
// False positives are possible; false negatives are not.
func (f *Filter) Test(k racecal.MeetingKey) bool {
	return f.f.TestString(k.String())
}

// Clear forgets every key.
func (f *Filter) Clear() {
	f.f.ClearAll()
}

// EstimatedCount returns the approximate number of keys in the filter.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}
