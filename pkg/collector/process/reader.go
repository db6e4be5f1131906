// Package process reads file mappings and the process tree from procfs.
package process

import (
	"fmt"

	"github.com/prometheus/procfs"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/types"
)

// Reader resolves pids to mapped files and descendants using one procfs mount.
type Reader struct {
	root  string
	fs    procfs.FS
	comms map[int]string
}

// NewReader opens procfs at root, or /proc when root is empty.
func NewReader(root string) (*Reader, error) {
	if root == "" {
		root = types.DefaultProcRoot
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("%w: opening procfs at %s: %w", errs.ErrProcessListing, root, err)
	}
	return &Reader{root: root, fs: fs, comms: make(map[int]string)}, nil
}

// Root returns the procfs mount point in use.
func (r *Reader) Root() string { return r.root }
