package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrProcessNotFound means /proc/<pid>/maps could not be opened.
	ErrProcessNotFound = errors.New("process not found")
	// ErrProcessListing means the process table could not be enumerated.
	ErrProcessListing = errors.New("process listing failed")
	// ErrContainerPidUnavailable means the container reported no running pid.
	ErrContainerPidUnavailable = errors.New("container pid unavailable")
	// ErrContainerLookup means the container could not be inspected.
	ErrContainerLookup = errors.New("container lookup failed")
	// ErrFileAccess means a candidate file could not be opened or is not a regular file.
	ErrFileAccess = errors.New("file access error")
	// ErrMap means the file could not be memory mapped.
	ErrMap = errors.New("mmap error")
	// ErrResidencyQuery means mincore(2) failed on an established mapping.
	ErrResidencyQuery = errors.New("mincore error")
	// ErrInvalidFilterRange means ge/le are outside [0,100] or ge > le.
	ErrInvalidFilterRange = errors.New("invalid range for arguments 'le' or 'ge'")
	// ErrInvalidSortOrder means the sort order is neither asc nor desc.
	ErrInvalidSortOrder = errors.New("invalid sort order")
	// ErrNoTargets means no file, pid or container was given.
	ErrNoTargets = errors.New("nothing to measure: give files, a pid or a container")
	// ErrUnsupported is returned by the non-linux builds.
	ErrUnsupported = errors.New("page cache inspection requires linux")
)

// Kind names the error class of err, or "" when it is not one of ours.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProcessNotFound):
		return "ProcessNotFound"
	case errors.Is(err, ErrProcessListing):
		return "ProcessListing"
	case errors.Is(err, ErrContainerPidUnavailable):
		return "ContainerPidUnavailable"
	case errors.Is(err, ErrContainerLookup):
		return "ContainerLookupFailed"
	case errors.Is(err, ErrFileAccess):
		return "FileAccessError"
	case errors.Is(err, ErrMap):
		return "MapError"
	case errors.Is(err, ErrResidencyQuery):
		return "ResidencyQueryError"
	case errors.Is(err, ErrInvalidFilterRange):
		return "InvalidFilterRange"
	case errors.Is(err, ErrInvalidSortOrder):
		return "InvalidSortOrder"
	case errors.Is(err, ErrNoTargets):
		return "NoTargets"
	case errors.Is(err, ErrUnsupported):
		return "Unsupported"
	}
	return ""
}

// Fatal reports whether err should abort the whole run. Per-file probe
// errors are not fatal; everything else is.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !(errors.Is(err, ErrFileAccess) || errors.Is(err, ErrMap) || errors.Is(err, ErrResidencyQuery))
}
