package doctor

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"earshot/shutdown"
)

// exitInterrupted is the status doctor exits with on Ctrl+C.
const exitInterrupted = 130

// guardTerminal restores stdin's terminal mode and exits when the session
// is interrupted. The returned func stops watching.
func guardTerminal(out io.Writer) (release func()) {
	fd := int(os.Stdin.Fd())
	restoreTerminal(fd, nil)
	var state *term.State
	if term.IsTerminal(fd) {
		state, _ = term.GetState(fd)
	}

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	done := make(chan struct{})
	go watchInterrupt(sig, done, out, func() {
		restoreTerminal(fd, state)
		os.Exit(exitInterrupted)
	})
	return func() {
		shutdown.Stop(sig)
		close(done)
	}
}

func watchInterrupt(sig <-chan os.Signal, done <-chan struct{}, out io.Writer, onInterrupt func()) {
	select {
	case s := <-sig:
		fmt.Fprintf(out, "\nInterrupted (%s)\n", s)
		onInterrupt()
	case <-done:
	}
}
