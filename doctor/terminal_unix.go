//go:build !windows

package doctor

import (
	"os"
	"os/exec"

	"golang.org/x/term"
)

// restoreTerminal puts stdin back into cooked mode. A capture killed
// mid-session can leave the tty raw, so with no saved state it falls back
// to stty.
func restoreTerminal(fd int, state *term.State) {
	if state != nil {
		term.Restore(fd, state)
		return
	}
	if !term.IsTerminal(fd) {
		return
	}
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	cmd.Run()
}
