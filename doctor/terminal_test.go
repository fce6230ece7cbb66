package doctor

import (
	"bytes"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchInterruptReportsSignal(t *testing.T) {
	sig := make(chan os.Signal, 1)
	var out bytes.Buffer
	interrupted := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		watchInterrupt(sig, make(chan struct{}), &out, func() { close(interrupted) })
		close(finished)
	}()

	sig <- syscall.SIGTERM
	select {
	case <-interrupted:
	case <-time.After(time.Second):
		t.Fatal("interrupt handler not called")
	}
	<-finished
	assert.Contains(t, out.String(), "Interrupted (terminated)")
}

func TestWatchInterruptReleased(t *testing.T) {
	done := make(chan struct{})
	finished := make(chan struct{})
	called := false
	go func() {
		watchInterrupt(make(chan os.Signal), done, &bytes.Buffer{}, func() { called = true })
		close(finished)
	}()

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("watcher did not return after release")
	}
	require.False(t, called)
}
