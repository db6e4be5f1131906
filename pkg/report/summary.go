package report

import (
	"github.com/srodi/pgcache/pkg/types"
)

// Summary aggregates a result set for the status line.
type Summary struct {
	Files       int     `json:"files" yaml:"files"`
	Size        int64   `json:"size" yaml:"size"`
	Pages       int     `json:"pages" yaml:"pages"`
	Cached      int     `json:"cached" yaml:"cached"`
	Uncached    int     `json:"uncached" yaml:"uncached"`
	Percent     float64 `json:"percent" yaml:"percent"`
	CachedBytes int64   `json:"cached_bytes" yaml:"cached_bytes"`

	// HostCachedBytes is the kernel-wide page cache size; zero when unknown.
	HostCachedBytes uint64 `json:"host_cached_bytes,omitempty" yaml:"host_cached_bytes,omitempty"`
	// HostShare is CachedBytes as a percentage of HostCachedBytes.
	HostShare float64 `json:"host_share,omitempty" yaml:"host_share,omitempty"`
}

// Summarize totals stats. Cached bytes are counted per file as
// cached*pageSize, capped at the file size so a partial last page is not
// over-counted.
func Summarize(stats []types.PageCacheStat, pageSize int64, hostCachedBytes uint64) Summary {
	var s Summary
	for _, stat := range stats {
		s.Files++
		s.Size += stat.Size
		s.Pages += stat.Pages
		s.Cached += stat.Cached
		s.Uncached += stat.Uncached
		s.CachedBytes += cachedBytes(stat, pageSize)
	}
	s.Percent = types.CachedPercent(s.Cached, s.Pages)
	if hostCachedBytes > 0 {
		s.HostCachedBytes = hostCachedBytes
		s.HostShare = 100 * float64(s.CachedBytes) / float64(hostCachedBytes)
	}
	return s
}

func cachedBytes(stat types.PageCacheStat, pageSize int64) int64 {
	b := int64(stat.Cached) * pageSize
	if b > stat.Size {
		return stat.Size
	}
	return b
}
