package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/types"
)

// Range keeps files whose cached percentage lies in [GE, LE].
type Range struct {
	GE float64
	LE float64
}

// FullRange matches every file.
func FullRange() Range { return Range{GE: 0, LE: 100} }

// Validate rejects bounds outside [0,100] and GE > LE.
func (r Range) Validate() error {
	if math.IsNaN(r.GE) || math.IsNaN(r.LE) ||
		r.GE < 0 || r.GE > 100 || r.LE < 0 || r.LE > 100 || r.GE > r.LE {
		return fmt.Errorf("%w: ge=%v le=%v", errs.ErrInvalidFilterRange, r.GE, r.LE)
	}
	return nil
}

// Active reports whether the range excludes anything at all.
func (r Range) Active() bool {
	return r.GE > 0 || r.LE < 100
}

// Contains reports whether percent lies inside the inclusive bounds.
func (r Range) Contains(percent float64) bool {
	return percent >= r.GE && percent <= r.LE
}

// Filter returns the stats inside r, preserving order. A full range
// returns stats untouched.
func Filter(stats []types.PageCacheStat, r Range) []types.PageCacheStat {
	if !r.Active() {
		return stats
	}
	filtered := make([]types.PageCacheStat, 0, len(stats))
	for _, stat := range stats {
		if r.Contains(stat.Percent) {
			filtered = append(filtered, stat)
		}
	}
	return filtered
}

// SortOrder orders results by cached percentage.
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder accepts "", "none", "asc"/"ascending" and "desc"/"descending".
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "asc", "ascending":
		return SortAsc, nil
	case "desc", "descending":
		return SortDesc, nil
	}
	return SortNone, fmt.Errorf("%w: %q (want asc or desc)", errs.ErrInvalidSortOrder, s)
}

// Sort orders stats in place by Percent. Equal percentages keep their
// relative order.
func Sort(stats []types.PageCacheStat, order SortOrder) {
	switch order {
	case SortAsc:
		sort.SliceStable(stats, func(i, j int) bool { return stats[i].Percent < stats[j].Percent })
	case SortDesc:
		sort.SliceStable(stats, func(i, j int) bool { return stats[i].Percent > stats[j].Percent })
	}
}
