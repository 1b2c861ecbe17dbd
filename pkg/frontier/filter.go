package frontier

import "github.com/bits-and-blooms/bloom/v3"

// urlFilter is an approximate membership set over every URL the frontier has seen.
// A negative answer is exact, so a miss proves a URL is new without a database read.
type urlFilter struct {
	f *bloom.BloomFilter
}

func newURLFilter(expected uint, fpRate float64) *urlFilter {
	if expected == 0 {
		expected = 100000
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	return &urlFilter{f: bloom.NewWithEstimates(expected, fpRate)}
}

func (u *urlFilter) add(url string) {
	u.f.AddString(url)
}

// mayContain returns false only when the URL was never added
func (u *urlFilter) mayContain(url string) bool {
	return u.f.TestString(url)
}

func (u *urlFilter) estimatedCount() uint {
	return uint(u.f.ApproximatedSize())
}
