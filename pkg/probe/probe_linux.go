//go:build linux
// +build linux

package probe

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/types"
)

// Syscall hooks; tests swap them to exercise failure paths.
var (
	mmap    = unix.Mmap
	munmap  = unix.Munmap
	mincore = sysMincore
)

// sysMincore issues mincore(2) over region, filling one byte per page in vec.
// region must be non-empty.
func sysMincore(region, vec []byte) error {
	_, _, e := unix.Syscall(unix.SYS_MINCORE,
		uintptr(unsafe.Pointer(&region[0])),
		uintptr(len(region)),
		uintptr(unsafe.Pointer(&vec[0])))
	if e != 0 {
		return e
	}
	return nil
}

// New returns a Probe using the kernel's page size.
func New(opts ...Option) *Probe {
	p := &Probe{
		pageSize: int64(unix.Getpagesize()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Measure reports page cache residency for path. Empty files report zero
// pages without mapping anything.
func (p *Probe) Measure(path string) (types.PageCacheStat, error) {
	stat := types.PageCacheStat{Path: path}

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return stat, fmt.Errorf("%w: %w", errs.ErrFileAccess, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return stat, fmt.Errorf("%w: %w", errs.ErrFileAccess, err)
	}
	if !fi.Mode().IsRegular() {
		return stat, fmt.Errorf("%w: %s is not a regular file", errs.ErrFileAccess, path)
	}

	stat.Size = fi.Size()
	stat.Mtime = fi.ModTime()
	stat.Pages = types.PageCount(stat.Size, p.pageSize)
	stat.Timestamp = p.now()

	// a zero-length mmap is EINVAL; there is nothing to query anyway
	if stat.Size == 0 {
		return stat, nil
	}

	vec, err := p.residency(int(f.Fd()), int(stat.Size), stat.Pages)
	if err != nil {
		return stat, fmt.Errorf("%s: %w", path, err)
	}
	p.fill(&stat, vec)
	return stat, nil
}

// residency maps length bytes of fd with PROT_NONE and returns the mincore
// vector. The mapping is released on every return path once established.
func (p *Probe) residency(fd, length, pages int) (vec []byte, err error) {
	region, err := mmap(fd, 0, length, unix.PROT_NONE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrMap, err)
	}
	defer func() {
		if uerr := munmap(region); uerr != nil && err == nil {
			vec, err = nil, fmt.Errorf("%w: munmap: %w", errs.ErrMap, uerr)
		}
	}()

	vec = make([]byte, pages)
	if err := mincore(region, vec); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrResidencyQuery, err)
	}
	return vec, nil
}
