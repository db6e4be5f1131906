package process

import (
	"fmt"
)

// PageCacheBytes returns the host's page cache size (the Cached: line of
// meminfo) in bytes.
func (r *Reader) PageCacheBytes() (uint64, error) {
	mi, err := r.fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if mi.Cached == nil {
		return 0, fmt.Errorf("Cached not found in %s/meminfo", r.root)
	}
	return *mi.Cached * 1024, nil
}
