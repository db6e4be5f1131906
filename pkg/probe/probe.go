// Package probe measures how much of a file is resident in the page cache.
package probe

import (
	"time"

	"github.com/srodi/pgcache/pkg/types"
)

// Prober measures page cache residency of one file.
type Prober interface {
	Measure(path string) (types.PageCacheStat, error)
}

// Option configures a Probe.
type Option func(*Probe)

// WithRanges makes Measure fill PageCacheStat.CachedRanges.
func WithRanges() Option {
	return func(p *Probe) { p.ranges = true }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Probe) {
		if now != nil {
			p.now = now
		}
	}
}

// Probe maps files with no access rights and asks the kernel which pages are resident.
// It holds no state between calls.
type Probe struct {
	pageSize int64
	ranges   bool
	now      func() time.Time
}

var _ Prober = (*Probe)(nil)

// PageSize returns the page size used for page accounting.
func (p *Probe) PageSize() int64 { return p.pageSize }

// countResident counts pages whose low residency bit is set.
func countResident(vec []byte) int {
	n := 0
	for _, b := range vec {
		if b&1 == 1 {
			n++
		}
	}
	return n
}

// residentBlocks collapses the residency vector into runs of cached pages.
func residentBlocks(vec []byte) []types.Block {
	var blocks []types.Block
	begin := -1
	for i, b := range vec {
		cached := b&1 == 1
		switch {
		case cached && begin < 0:
			begin = i
		case !cached && begin >= 0:
			blocks = append(blocks, types.Block{Begin: begin, End: i})
			begin = -1
		}
	}
	if begin >= 0 {
		blocks = append(blocks, types.Block{Begin: begin, End: len(vec)})
	}
	return blocks
}

// fill derives the page accounting fields from a residency vector.
func (p *Probe) fill(stat *types.PageCacheStat, vec []byte) {
	stat.Cached = countResident(vec)
	stat.Uncached = stat.Pages - stat.Cached
	stat.Percent = types.CachedPercent(stat.Cached, stat.Pages)
	if p.ranges {
		stat.CachedRanges = residentBlocks(vec)
	}
}
