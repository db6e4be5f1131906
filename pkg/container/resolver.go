// Package container maps a container to its primary pid and rewrites
// in-container paths to the overlay layer that backs them on the host.
package container

import (
	"context"
	"fmt"
	"os"
	"strings"

	dockertypes "github.com/docker/docker/api/types"

	"github.com/srodi/pgcache/pkg/errs"
	"github.com/srodi/pgcache/pkg/types"
)

// lowerDirKey is the overlay2 graph driver entry listing the image layers.
const lowerDirKey = "LowerDir"

// pathExists allows tests to stub host filesystem lookups.
var pathExists = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Resolver turns a container reference into a ContainerContext.
type Resolver struct {
	inspector Inspector
}

// NewResolver returns a Resolver backed by inspector.
func NewResolver(inspector Inspector) *Resolver {
	return &Resolver{inspector: inspector}
}

// ResolveContext inspects ref (a container id or name) and returns its
// primary pid and overlay lower directories.
func (r *Resolver) ResolveContext(ctx context.Context, ref string) (types.ContainerContext, error) {
	if r.inspector == nil {
		return types.ContainerContext{}, fmt.Errorf("%w: no container client", errs.ErrContainerLookup)
	}
	info, err := r.inspector.ContainerInspect(ctx, ref)
	if err != nil {
		return types.ContainerContext{}, fmt.Errorf("%w: inspecting %s: %w", errs.ErrContainerLookup, ref, err)
	}
	return contextFromInspect(ref, info)
}

func contextFromInspect(ref string, info dockertypes.ContainerJSON) (types.ContainerContext, error) {
	if info.ContainerJSONBase == nil || info.State == nil || info.State.Pid <= 0 {
		return types.ContainerContext{}, fmt.Errorf("%w: %s", errs.ErrContainerPidUnavailable, ref)
	}
	id := info.ID
	if id == "" {
		id = ref
	}
	return types.ContainerContext{
		ID:        id,
		PID:       info.State.Pid,
		LowerDirs: parseLowerDirs(info.GraphDriver.Data),
	}, nil
}

// parseLowerDirs splits the colon separated LowerDir value, keeping order.
// Drivers other than overlay do not expose it and yield nil.
func parseLowerDirs(data map[string]string) []string {
	raw, ok := data[lowerDirKey]
	if !ok || raw == "" {
		return nil
	}
	var dirs []string
	for _, dir := range strings.Split(raw, ":") {
		if dir == "" {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// ResolveHostPath returns lowerDir+path for the first lower directory, in
// order, where that file exists on the host. Otherwise path is returned
// unchanged.
func (r *Resolver) ResolveHostPath(path string, cc types.ContainerContext) string {
	return hostPath(path, cc.LowerDirs)
}

func hostPath(path string, lowerDirs []string) string {
	for _, dir := range lowerDirs {
		candidate := dir + path
		if pathExists(candidate) {
			return candidate
		}
	}
	return path
}
