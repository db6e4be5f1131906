package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procReadFile allows tests to stub reading /proc/PID/comm.
var procReadFile = os.ReadFile

// Comm returns the command name of pid for diagnostics, or pid-N when it
// cannot be read. Results are cached for the lifetime of the Reader.
func (r *Reader) Comm(pid int) string {
	if name, ok := r.comms[pid]; ok {
		return name
	}
	path := filepath.Join(r.root, strconv.Itoa(pid), "comm")
	data, err := procReadFile(path)
	if err != nil {
		name := fmt.Sprintf("pid-%d", pid)
		r.comms[pid] = name
		return name
	}
	comm := strings.TrimSpace(string(data))
	if comm == "" {
		comm = fmt.Sprintf("pid-%d", pid)
	}
	r.comms[pid] = comm
	return comm
}
