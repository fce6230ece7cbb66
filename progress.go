package main

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// chunkBar shows capture progress in chunks. A nil *chunkBar is a no-op.
type chunkBar struct {
	bar  *progressbar.ProgressBar
	once sync.Once
}

func newChunkBar(enabled bool, w io.Writer, description string, total int) *chunkBar {
	if !enabled || total <= 0 {
		return nil
	}
	return &chunkBar{bar: progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}
}

// Set matches audio.Recorder.OnChunk.
func (b *chunkBar) Set(done, _ int) {
	if b == nil {
		return
	}
	_ = b.bar.Set(done)
}

func (b *chunkBar) Finish() {
	if b == nil {
		return
	}
	b.once.Do(func() { _ = b.bar.Finish() })
}

type stopFunc func()

func startSpinner(enabled bool, w io.Writer, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
