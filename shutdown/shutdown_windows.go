//go:build windows

package shutdown

import "os"

var sessionSignals = []os.Signal{os.Interrupt}
