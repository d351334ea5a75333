package registry

import (
	"os"
	"syscall"
	"time"

	"github.com/sari-dev/sari/internal/types"
)

// staleDaemonTTL bounds how long a daemon entry may go without a
// heartbeat before it is pruned even if its PID happens to still be
// alive (e.g. PID reuse after a crash).
const staleDaemonTTL = 90 * time.Second

// prune drops dead-PID and stale-heartbeat daemon entries, and unbinds
// any workspace whose boot_id no longer resolves to a surviving daemon,
// per §4.6 "Cleanup".
func prune(rec *types.RegistryRecord) {
	now := time.Now()
	for bootID, d := range rec.Daemons {
		if !processAlive(d.PID) || now.Sub(d.LastSeenTS) > staleDaemonTTL {
			delete(rec.Daemons, bootID)
		}
	}

	for ws, w := range rec.Workspaces {
		if _, ok := rec.Daemons[w.BootID]; !ok {
			delete(rec.Workspaces, ws)
		}
	}
}

// processAlive reports whether pid identifies a live process, probed
// with signal 0 (no-op delivery, just existence/permission check).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
