package types

import "time"

// DefaultProcRoot is where procfs is mounted on a regular host.
const DefaultProcRoot = "/proc"

// Block is a run of resident pages, [Begin, End) in page indexes.
type Block struct {
	Begin int `json:"begin" yaml:"begin"`
	End   int `json:"end" yaml:"end"`
}

// PageCacheStat describes page cache residency for a single file.
type PageCacheStat struct {
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
	Pages     int       `json:"pages" yaml:"pages"`
	Cached    int       `json:"cached" yaml:"cached"`
	Uncached  int       `json:"uncached" yaml:"uncached"`
	Percent   float64   `json:"percent" yaml:"percent"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Mtime     time.Time `json:"mtime" yaml:"mtime"`

	CachedRanges []Block `json:"cached_ranges,omitempty" yaml:"cached_ranges,omitempty"`
}

// CachedPercent returns 100*cached/pages, or 0 for an empty file.
func CachedPercent(cached, pages int) float64 {
	if pages <= 0 {
		return 0
	}
	return 100 * float64(cached) / float64(pages)
}

// PageCount returns how many pages of pageSize bytes cover size bytes.
func PageCount(size, pageSize int64) int {
	if size <= 0 || pageSize <= 0 {
		return 0
	}
	return int((size + pageSize - 1) / pageSize)
}

// ContainerContext carries what is needed to map in-container paths to the host.
// The zero value means no container is in scope.
type ContainerContext struct {
	ID        string
	PID       int
	LowerDirs []string
}

// Empty reports whether no container is in scope.
func (c ContainerContext) Empty() bool {
	return c.PID == 0 && len(c.LowerDirs) == 0
}

// PathSet is an insertion-ordered set of file paths.
type PathSet struct {
	order []string
	seen  map[string]struct{}
}

// NewPathSet returns a set seeded with paths.
func NewPathSet(paths ...string) *PathSet {
	s := &PathSet{seen: make(map[string]struct{}, len(paths))}
	s.Add(paths...)
	return s
}

// Add inserts paths that are not already present. Empty strings are ignored.
func (s *PathSet) Add(paths ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := s.seen[p]; ok {
			continue
		}
		s.seen[p] = struct{}{}
		s.order = append(s.order, p)
	}
}

// Contains reports whether p is in the set.
func (s *PathSet) Contains(p string) bool {
	_, ok := s.seen[p]
	return ok
}

// Len returns the number of distinct paths.
func (s *PathSet) Len() int { return len(s.order) }

// Paths returns the paths in insertion order.
func (s *PathSet) Paths() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// PidSet is an ordered, grow-only sequence of process ids. Seeds are the
// pids the caller asked for; everything appended later was discovered.
type PidSet struct {
	order []int
	seed  map[int]bool
}

// NewPidSet returns an empty set.
func NewPidSet() *PidSet {
	return &PidSet{seed: make(map[int]bool)}
}

// AddSeed records an explicitly requested pid.
func (s *PidSet) AddSeed(pid int) bool {
	return s.add(pid, true)
}

// AddDiscovered records a pid found during descendant expansion.
func (s *PidSet) AddDiscovered(pid int) bool {
	return s.add(pid, false)
}

func (s *PidSet) add(pid int, seed bool) bool {
	if pid <= 0 {
		return false
	}
	if _, ok := s.seed[pid]; ok {
		return false
	}
	s.seed[pid] = seed
	s.order = append(s.order, pid)
	return true
}

// IsSeed reports whether pid was explicitly requested.
func (s *PidSet) IsSeed(pid int) bool {
	return s.seed[pid]
}

// Len returns the number of pids.
func (s *PidSet) Len() int { return len(s.order) }

// PIDs returns the pids in the order they were added.
func (s *PidSet) PIDs() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}
