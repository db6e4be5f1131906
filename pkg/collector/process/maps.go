package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/srodi/pgcache/pkg/errs"
)

// procOpen allows tests to stub opening /proc/PID/maps.
var procOpen = func(path string) (io.ReadCloser, error) { return os.Open(path) }

// MappedFiles lists the absolute paths of files mapped by pid, each once,
// in the order they first appear in /proc/PID/maps.
func (r *Reader) MappedFiles(pid int) ([]string, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w: invalid pid %d", errs.ErrProcessNotFound, pid)
	}
	path := filepath.Join(r.root, strconv.Itoa(pid), "maps")
	f, err := procOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %w", errs.ErrProcessNotFound, pid, err)
	}
	defer f.Close()

	files, err := parseMaps(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return files, nil
}

// parseMaps extracts file-backed regions. A line counts only when it has
// exactly six fields and the sixth is an absolute path, which drops
// anonymous regions, [heap]/[stack]/[vdso] and "(deleted)" entries.
func parseMaps(r io.Reader) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 6 || !strings.HasPrefix(fields[5], "/") {
			continue
		}
		path := fields[5]
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
