package audio

import (
	"fmt"
	"sync"
	"time"
)

const defaultGrace = 5 * time.Second

// Recorder captures fixed-length recordings from one input device.
type Recorder struct {
	open   Opener
	device *DeviceInfo

	// Grace is added to the expected recording length before a capture
	// that stopped delivering data is reported as stalled.
	Grace time.Duration

	// OnChunk, if set, is called from the capturing goroutine as whole
	// chunks arrive.
	OnChunk func(done, total int)
}

// NewRecorder returns a Recorder for device; a nil device selects the
// system default input.
func NewRecorder(open Opener, device *DeviceInfo) *Recorder {
	return &Recorder{open: open, device: device, Grace: defaultGrace}
}

// Capture records cfg.Chunks() chunks of cfg.ChunkSize frames of signed
// 16-bit PCM. The audio subsystem and the stream are released before
// Capture returns, on success, error and panic alike.
func (r *Recorder) Capture(cfg CaptureConfig) (*Buffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("capture config: %w", err)
	}

	ctx, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("%w: open audio subsystem: %v", ErrDevice, err)
	}
	defer ctx.Close()

	dev, err := ctx.NewCapture(r.device, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open input stream: %v", ErrDevice, err)
	}
	defer dev.Close()

	total := cfg.Chunks()
	chunkBytes := int(cfg.ChunkSize) * cfg.FrameBytes()
	want := total * chunkBytes

	var mu sync.Mutex
	data := make([]byte, 0, want)
	progress := make(chan int, 1)
	full := make(chan struct{})

	dev.SetCallback(func(p []byte, _ uint32) {
		mu.Lock()
		defer mu.Unlock()
		if len(data) >= want {
			return
		}
		n := min(len(p), want-len(data))
		data = append(data, p[:n]...)
		select {
		case <-progress:
		default:
		}
		progress <- len(data) / chunkBytes
		if len(data) == want {
			close(full)
		}
	})
	defer dev.ClearCallback()

	if err := dev.Start(); err != nil {
		return nil, fmt.Errorf("%w: start input stream: %v", ErrDevice, err)
	}
	defer dev.Stop()

	expected := time.Duration(float64(cfg.Frames()) / float64(cfg.SampleRate) * float64(time.Second))
	deadline := time.NewTimer(expected + r.Grace)
	defer deadline.Stop()

	got := 0
	for {
		select {
		case n := <-progress:
			if n != got {
				got = n
				r.report(got, total)
			}
		case <-full:
			if got != total {
				r.report(total, total)
			}
			mu.Lock()
			pcm := data
			mu.Unlock()
			return &Buffer{
				Channels:    int(cfg.Channels),
				SampleWidth: SampleWidth,
				SampleRate:  int(cfg.SampleRate),
				Data:        pcm,
			}, nil
		case <-deadline.C:
			return nil, fmt.Errorf("%w: capture stalled after %d of %d chunks on %s",
				ErrDevice, got, total, dev.DeviceName())
		}
	}
}

func (r *Recorder) report(done, total int) {
	if r.OnChunk != nil {
		r.OnChunk(done, total)
	}
}
