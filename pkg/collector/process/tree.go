package process

import (
	"fmt"

	"github.com/srodi/pgcache/pkg/errs"
)

// Descendants returns every live process transitively spawned by seeds,
// in breadth-first order. Seeds themselves are not included.
//
// The process table is snapshotted once; a process that re-parents or exits
// while the snapshot is taken may be missed or reported anyway.
func (r *Reader) Descendants(seeds []int) ([]int, error) {
	procs, err := r.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrProcessListing, err)
	}

	children := make(map[int][]int)
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// exited between listing and stat
			continue
		}
		children[stat.PPID] = append(children[stat.PPID], p.PID)
	}
	return expand(seeds, children), nil
}

// expand walks the parent->children index one frontier at a time until no
// new pids turn up.
func expand(seeds []int, children map[int][]int) []int {
	seen := make(map[int]struct{}, len(seeds))
	frontier := make([]int, 0, len(seeds))
	for _, pid := range seeds {
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		frontier = append(frontier, pid)
	}

	var found []int
	for len(frontier) > 0 {
		var next []int
		for _, parent := range frontier {
			for _, child := range children[parent] {
				if _, ok := seen[child]; ok {
					continue
				}
				seen[child] = struct{}{}
				next = append(next, child)
			}
		}
		found = append(found, next...)
		frontier = next
	}
	return found
}
