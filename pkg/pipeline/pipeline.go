// Package pipeline turns pids, a container and explicit files into a
// filtered, sorted list of page cache measurements.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/logger"
	"github.com/srodi/pgcache/pkg/probe"
	"github.com/srodi/pgcache/pkg/report"
	"github.com/srodi/pgcache/pkg/types"
)

// MapReader lists mapped files and child processes.
type MapReader interface {
	MappedFiles(pid int) ([]string, error)
	Descendants(seeds []int) ([]int, error)
	Comm(pid int) string
}

// ContainerResolver looks up a container and rewrites paths seen inside it.
type ContainerResolver interface {
	ResolveContext(ctx context.Context, ref string) (types.ContainerContext, error)
	ResolveHostPath(path string, cc types.ContainerContext) string
}

// Options selects what to measure and how to present it.
type Options struct {
	PID       int
	Container string
	Children  bool
	Files     []string
	Range     report.Range
	Sort      report.SortOrder
}

// Pipeline runs one measurement pass. It is not safe for concurrent use.
type Pipeline struct {
	probe      probe.Prober
	procs      MapReader
	containers ContainerResolver
}

// New wires a pipeline. procs and containers may be nil when no pid or
// container will be requested.
func New(prober probe.Prober, procs MapReader, containers ContainerResolver) *Pipeline {
	return &Pipeline{probe: prober, procs: procs, containers: containers}
}

// Run resolves opts to files, measures them, then filters and sorts.
// Files that cannot be opened, mapped or queried are skipped; failures to
// resolve the requested pid or container abort the run with no results.
func (p *Pipeline) Run(ctx context.Context, opts Options) ([]types.PageCacheStat, error) {
	if err := opts.Range.Validate(); err != nil {
		return nil, err
	}
	if opts.PID < 0 {
		return nil, fmt.Errorf("%w: invalid pid %d", errs.ErrProcessNotFound, opts.PID)
	}
	if opts.PID == 0 && opts.Container == "" && len(opts.Files) == 0 {
		return nil, errs.ErrNoTargets
	}

	cc, err := p.containerContext(ctx, opts.Container)
	if err != nil {
		return nil, err
	}

	pids, err := p.collectPIDs(ctx, opts, cc)
	if err != nil {
		return nil, err
	}

	paths, err := p.collectPaths(ctx, opts.Files, pids)
	if err != nil {
		return nil, err
	}

	resolved := p.resolvePaths(paths, cc)

	stats, err := p.measure(ctx, resolved)
	if err != nil {
		return nil, err
	}

	stats = report.Filter(stats, opts.Range)
	report.Sort(stats, opts.Sort)
	return stats, nil
}

func (p *Pipeline) containerContext(ctx context.Context, ref string) (types.ContainerContext, error) {
	if ref == "" {
		return types.ContainerContext{}, nil
	}
	if p.containers == nil {
		return types.ContainerContext{}, fmt.Errorf("%w: no container resolver configured", errs.ErrContainerLookup)
	}
	cc, err := p.containers.ResolveContext(ctx, ref)
	if err != nil {
		return types.ContainerContext{}, err
	}
	logger.Logger(ctx).Debug().
		Str("container", ref).
		Int("pid", cc.PID).
		Int("lower_dirs", len(cc.LowerDirs)).
		Msg("resolved container")
	return cc, nil
}

// collectPIDs seeds the explicit and container pids, then appends
// descendants when requested.
func (p *Pipeline) collectPIDs(ctx context.Context, opts Options, cc types.ContainerContext) (*types.PidSet, error) {
	pids := types.NewPidSet()
	if opts.PID > 0 {
		pids.AddSeed(opts.PID)
	}
	if cc.PID > 0 {
		pids.AddSeed(cc.PID)
	}
	if !opts.Children || pids.Len() == 0 {
		return pids, nil
	}
	if p.procs == nil {
		return nil, fmt.Errorf("%w: no process reader configured", errs.ErrProcessListing)
	}

	children, err := p.procs.Descendants(pids.PIDs())
	if err != nil {
		return nil, err
	}
	for _, pid := range children {
		pids.AddDiscovered(pid)
	}
	logger.Logger(ctx).Debug().Ints("pids", pids.PIDs()).Msg("expanded descendants")
	return pids, nil
}

// collectPaths merges explicit files with the files mapped by every pid.
func (p *Pipeline) collectPaths(ctx context.Context, files []string, pids *types.PidSet) (*types.PathSet, error) {
	paths := types.NewPathSet(files...)
	if pids.Len() == 0 {
		return paths, nil
	}
	if p.procs == nil {
		return nil, fmt.Errorf("%w: no process reader configured", errs.ErrProcessNotFound)
	}

	log := logger.Logger(ctx)
	for _, pid := range pids.PIDs() {
		mapped, err := p.procs.MappedFiles(pid)
		if err != nil {
			if pids.IsSeed(pid) {
				return nil, err
			}
			// a descendant may exit between discovery and now
			log.Debug().Err(err).Int("pid", pid).Msg("skipping descendant")
			continue
		}
		if e := log.Debug(); e.Enabled() {
			e.Int("pid", pid).Str("comm", p.procs.Comm(pid)).Int("files", len(mapped)).Msg("read mappings")
		}
		paths.Add(mapped...)
	}
	return paths, nil
}

// resolvePaths rewrites each path to its host location. Two paths that
// resolve to the same host file are measured once.
func (p *Pipeline) resolvePaths(paths *types.PathSet, cc types.ContainerContext) []string {
	if p.containers == nil || len(cc.LowerDirs) == 0 {
		return paths.Paths()
	}
	resolved := types.NewPathSet()
	for _, path := range paths.Paths() {
		resolved.Add(p.containers.ResolveHostPath(path, cc))
	}
	return resolved.Paths()
}

func (p *Pipeline) measure(ctx context.Context, paths []string) ([]types.PageCacheStat, error) {
	log := logger.Logger(ctx)
	stats := make([]types.PageCacheStat, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat, err := p.probe.Measure(path)
		if err != nil {
			if errors.Is(err, errs.ErrUnsupported) {
				return nil, err
			}
			log.Debug().Err(err).Str("path", path).Str("kind", errs.Kind(err)).Msg("skipping file")
			continue
		}
		stats = append(stats, stat)
	}
	return stats, nil
}
