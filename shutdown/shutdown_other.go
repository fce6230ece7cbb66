//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// SIGHUP covers a closed terminal window mid-recording.
var sessionSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
