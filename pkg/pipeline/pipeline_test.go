package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/report"
	"github.com/srodi/pgcache/pkg/types"
)

type fakeProbe struct {
	stats    map[string]types.PageCacheStat
	failures map[string]error
	measured []string
}

func (f *fakeProbe) Measure(path string) (types.PageCacheStat, error) {
	f.measured = append(f.measured, path)
	if err, ok := f.failures[path]; ok {
		return types.PageCacheStat{Path: path}, err
	}
	if stat, ok := f.stats[path]; ok {
		stat.Path = path
		return stat, nil
	}
	return types.PageCacheStat{Path: path}, fmt.Errorf("%w: %s", errs.ErrFileAccess, path)
}

type fakeProcs struct {
	maps        map[int][]string
	children    map[int][]int
	listErr     error
	mapCalls    []int
	expandCalls [][]int
}

func (f *fakeProcs) MappedFiles(pid int) ([]string, error) {
	f.mapCalls = append(f.mapCalls, pid)
	files, ok := f.maps[pid]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", errs.ErrProcessNotFound, pid)
	}
	return files, nil
}

func (f *fakeProcs) Comm(pid int) string { return fmt.Sprintf("proc-%d", pid) }

func (f *fakeProcs) Descendants(seeds []int) ([]int, error) {
	f.expandCalls = append(f.expandCalls, seeds)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []int
	for _, s := range seeds {
		out = append(out, f.children[s]...)
	}
	return out, nil
}

type fakeContainers struct {
	cc       types.ContainerContext
	err      error
	rewrites map[string]string
}

func (f *fakeContainers) ResolveContext(context.Context, string) (types.ContainerContext, error) {
	return f.cc, f.err
}

func (f *fakeContainers) ResolveHostPath(path string, _ types.ContainerContext) string {
	if host, ok := f.rewrites[path]; ok {
		return host
	}
	return path
}

func stat(cached, pages int) types.PageCacheStat {
	return types.PageCacheStat{
		Size:     int64(pages) * 4096,
		Pages:    pages,
		Cached:   cached,
		Uncached: pages - cached,
		Percent:  types.CachedPercent(cached, pages),
	}
}

func resultPaths(stats []types.PageCacheStat) []string {
	out := make([]string, 0, len(stats))
	for _, s := range stats {
		out = append(out, s.Path)
	}
	return out
}

func TestRunExplicitFilesOnly(t *testing.T) {
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{
		"/data/a": stat(3, 3),
		"/data/b": stat(1, 4),
	}}
	stats, err := New(prober, nil, nil).Run(context.Background(), Options{
		Files: []string{"/data/a", "/data/b", "/data/a"},
		Range: report.FullRange(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/a", "/data/b"}, resultPaths(stats))
	assert.Equal(t, 100.0, stats[0].Percent)
	assert.Equal(t, []string{"/data/a", "/data/b"}, prober.measured)
}

func TestRunDeduplicatesExplicitAndMappedPaths(t *testing.T) {
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{
		"/usr/lib/libc.so.6": stat(10, 10),
		"/usr/bin/server":    stat(2, 4),
	}}
	procs := &fakeProcs{maps: map[int][]string{
		100: {"/usr/bin/server", "/usr/lib/libc.so.6"},
	}}
	stats, err := New(prober, procs, nil).Run(context.Background(), Options{
		PID:   100,
		Files: []string{"/usr/lib/libc.so.6"},
		Range: report.FullRange(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/lib/libc.so.6", "/usr/bin/server"}, resultPaths(stats))
	assert.Len(t, prober.measured, 2)
}

func TestRunMissingPidIsFatal(t *testing.T) {
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{"/x": stat(1, 1)}}
	stats, err := New(prober, &fakeProcs{}, nil).Run(context.Background(), Options{
		PID:   99999999,
		Files: []string{"/x"},
		Range: report.FullRange(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProcessNotFound))
	assert.Nil(t, stats)
	assert.Empty(t, prober.measured)
}

func TestRunSkipsUnreadableFiles(t *testing.T) {
	prober := &fakeProbe{
		stats: map[string]types.PageCacheStat{"/ok": stat(1, 2)},
		failures: map[string]error{
			"/denied":  fmt.Errorf("%w: permission denied", errs.ErrFileAccess),
			"/nomap":   fmt.Errorf("%w: no such device", errs.ErrMap),
			"/mincore": fmt.Errorf("%w: cannot allocate memory", errs.ErrResidencyQuery),
		},
	}
	stats, err := New(prober, nil, nil).Run(context.Background(), Options{
		Files: []string{"/denied", "/ok", "/nomap", "/mincore", "/gone"},
		Range: report.FullRange(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/ok"}, resultPaths(stats))
	assert.Len(t, prober.measured, 5)
}

func TestRunUnsupportedProbeIsFatal(t *testing.T) {
	prober := &fakeProbe{failures: map[string]error{"/a": errs.ErrUnsupported}}
	_, err := New(prober, nil, nil).Run(context.Background(), Options{Files: []string{"/a"}, Range: report.FullRange()})
	assert.True(t, errors.Is(err, errs.ErrUnsupported))
}

func TestRunRejectsInvalidRangeBeforeWork(t *testing.T) {
	prober := &fakeProbe{}
	procs := &fakeProcs{}
	containers := &fakeContainers{err: errors.New("must not be called")}
	_, err := New(prober, procs, containers).Run(context.Background(), Options{
		PID:       1,
		Container: "web",
		Files:     []string{"/a"},
		Range:     report.Range{GE: 80, LE: 20},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidFilterRange))
	assert.Empty(t, prober.measured)
	assert.Empty(t, procs.mapCalls)
}

func TestRunNothingToMeasure(t *testing.T) {
	_, err := New(&fakeProbe{}, nil, nil).Run(context.Background(), Options{Range: report.FullRange()})
	assert.True(t, errors.Is(err, errs.ErrNoTargets))

	_, err = New(&fakeProbe{}, nil, nil).Run(context.Background(), Options{PID: -3, Range: report.FullRange()})
	assert.True(t, errors.Is(err, errs.ErrProcessNotFound))
}

func TestRunExpandsDescendants(t *testing.T) {
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{
		"/bin/parent": stat(1, 1),
		"/bin/child":  stat(0, 1),
		"/bin/grand":  stat(1, 2),
	}}
	procs := &fakeProcs{
		maps: map[int][]string{
			10: {"/bin/parent"},
			11: {"/bin/child"},
			12: {"/bin/grand", "/bin/parent"},
			// 13 exited before its maps were read
		},
		children: map[int][]int{10: {11, 12, 13}},
	}
	stats, err := New(prober, procs, nil).Run(context.Background(), Options{
		PID:      10,
		Children: true,
		Range:    report.FullRange(),
		Sort:     report.SortDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{10}}, procs.expandCalls)
	assert.Equal(t, []int{10, 11, 12, 13}, procs.mapCalls)
	assert.Equal(t, []string{"/bin/parent", "/bin/grand", "/bin/child"}, resultPaths(stats))
}

func TestRunDescendantListingFailureIsFatal(t *testing.T) {
	procs := &fakeProcs{
		maps:    map[int][]string{10: {"/bin/parent"}},
		listErr: fmt.Errorf("%w: permission denied", errs.ErrProcessListing),
	}
	_, err := New(&fakeProbe{}, procs, nil).Run(context.Background(), Options{
		PID:      10,
		Children: true,
		Range:    report.FullRange(),
	})
	assert.True(t, errors.Is(err, errs.ErrProcessListing))
}

func TestRunChildrenWithoutSeedsIsNoop(t *testing.T) {
	procs := &fakeProcs{}
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{"/a": stat(1, 1)}}
	stats, err := New(prober, procs, nil).Run(context.Background(), Options{
		Files:    []string{"/a"},
		Children: true,
		Range:    report.FullRange(),
	})
	require.NoError(t, err)
	assert.Len(t, stats, 1)
	assert.Empty(t, procs.expandCalls)
}

func TestRunContainerRewritesPaths(t *testing.T) {
	lower := "/var/lib/docker/overlay2/abc/diff"
	containers := &fakeContainers{
		cc: types.ContainerContext{ID: "abc", PID: 500, LowerDirs: []string{lower}},
		rewrites: map[string]string{
			"/etc/hosts":     lower + "/etc/hosts",
			"/usr/bin/nginx": lower + "/usr/bin/nginx",
		},
	}
	procs := &fakeProcs{maps: map[int][]string{
		500: {"/usr/bin/nginx", "/lib/ld-musl.so.1"},
	}}
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{
		lower + "/etc/hosts":     stat(1, 1),
		lower + "/usr/bin/nginx": stat(5, 10),
		"/lib/ld-musl.so.1":      stat(0, 2),
	}}

	stats, err := New(prober, procs, containers).Run(context.Background(), Options{
		Container: "web",
		Files:     []string{"/etc/hosts", lower + "/etc/hosts"},
		Range:     report.FullRange(),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{500}, procs.mapCalls)
	assert.Equal(t, []string{
		lower + "/etc/hosts",
		lower + "/usr/bin/nginx",
		"/lib/ld-musl.so.1",
	}, resultPaths(stats))
}

func TestRunContainerErrorsAreFatal(t *testing.T) {
	cases := []error{
		fmt.Errorf("%w: web", errs.ErrContainerPidUnavailable),
		fmt.Errorf("%w: daemon unreachable", errs.ErrContainerLookup),
	}
	for _, cause := range cases {
		prober := &fakeProbe{}
		_, err := New(prober, &fakeProcs{}, &fakeContainers{err: cause}).Run(context.Background(), Options{
			Container: "web",
			Files:     []string{"/a"},
			Range:     report.FullRange(),
		})
		assert.True(t, errors.Is(err, cause))
		assert.Empty(t, prober.measured)
	}

	_, err := New(&fakeProbe{}, nil, nil).Run(context.Background(), Options{Container: "web", Range: report.FullRange()})
	assert.True(t, errors.Is(err, errs.ErrContainerLookup))
}

func TestRunFiltersAndSorts(t *testing.T) {
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{
		"/a": stat(1, 4),  // 25
		"/b": stat(2, 4),  // 50
		"/c": stat(5, 10), // 50
		"/d": stat(3, 3),  // 100
		"/e": {},          // empty file, 0
	}}
	files := []string{"/a", "/b", "/c", "/d", "/e"}

	exact, err := New(prober, nil, nil).Run(context.Background(), Options{
		Files: files,
		Range: report.Range{GE: 50, LE: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/b", "/c"}, resultPaths(exact))

	asc, err := New(prober, nil, nil).Run(context.Background(), Options{
		Files: files,
		Range: report.Range{GE: 0, LE: 60},
		Sort:  report.SortAsc,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/e", "/a", "/b", "/c"}, resultPaths(asc))
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prober := &fakeProbe{stats: map[string]types.PageCacheStat{"/a": stat(1, 1)}}
	_, err := New(prober, nil, nil).Run(ctx, Options{Files: []string{"/a"}, Range: report.FullRange()})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, prober.measured)
}
