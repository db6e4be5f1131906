//go:build !linux
// +build !linux

package probe

import (
	"time"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/types"
)

// New returns a placeholder Probe on non-Linux platforms.
func New(opts ...Option) *Probe {
	p := &Probe{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Measure always fails on unsupported platforms.
func (p *Probe) Measure(path string) (types.PageCacheStat, error) {
	return types.PageCacheStat{Path: path}, errs.ErrUnsupported
}
