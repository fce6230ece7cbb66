//go:build windows

package doctor

import "golang.org/x/term"

func restoreTerminal(fd int, state *term.State) {
	if state != nil {
		term.Restore(fd, state)
	}
}
