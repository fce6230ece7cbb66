package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

const fakeFrameSize = 1024

// FakeContext is an in-memory audio subsystem. Captures replay pcm (signed
// 16-bit little-endian, interleaved at the requested channel count) and then
// feed silence; playbacks finish when Finish is called or, with AutoFinish,
// as soon as they start.
type FakeContext struct {
	pcm      []byte
	realtime bool

	Devs        []DeviceInfo
	CaptureErr  error // returned by NewCapture
	StartErr    error // returned by FakeCapture.Start
	PlaybackErr error // returned by NewPlayback
	Stall       bool  // captures deliver nothing
	AutoFinish  bool

	closed atomic.Int32

	mu        sync.Mutex
	captures  []*FakeCapture
	playbacks []*FakePlayback
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// Opener returns an Opener that hands out f itself.
func (f *FakeContext) Opener() Opener {
	return func() (Context, error) { return f, nil }
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.Devs, nil }

func (f *FakeContext) Close() { f.closed.Add(1) }

// Closed reports how many times the context has been released.
func (f *FakeContext) Closed() int { return int(f.closed.Load()) }

func (f *FakeContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.CaptureErr != nil {
		return nil, f.CaptureErr
	}
	name := "fake"
	if device != nil {
		name = device.Name
	}
	c := &FakeCapture{
		pcm:      f.pcm,
		realtime: f.realtime,
		stall:    f.Stall,
		startErr: f.StartErr,
		config:   config,
		name:     name,
	}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

func (f *FakeContext) NewPlayback(buf *Buffer) (PlaybackDevice, error) {
	if f.PlaybackErr != nil {
		return nil, f.PlaybackErr
	}
	p := &FakePlayback{Buffer: buf, autoFinish: f.AutoFinish, done: make(chan struct{})}
	f.mu.Lock()
	f.playbacks = append(f.playbacks, p)
	f.mu.Unlock()
	return p, nil
}

func (f *FakeContext) Playbacks() []*FakePlayback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakePlayback(nil), f.playbacks...)
}

type FakeCapture struct {
	pcm      []byte
	realtime bool
	stall    bool
	startErr error
	config   CaptureConfig
	name     string

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) frameBytes() int {
	return max(int(f.config.Channels), 1) * SampleWidth
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/f.frameBytes()))
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSize * f.frameBytes()
	silence := make([]byte, chunkBytes)
	interval := time.Millisecond
	if f.realtime && f.config.SampleRate > 0 {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.config.SampleRate)
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			cb := f.callback()
			switch {
			case f.stall || cb == nil:
			case pos < len(f.pcm):
				pos = f.feedChunk(cb, pos, chunkBytes)
				if !f.realtime {
					continue
				}
			default:
				cb(silence, fakeFrameSize)
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// FakePlayback records what was played and finishes on demand.
type FakePlayback struct {
	Buffer *Buffer

	autoFinish bool
	started    atomic.Bool
	stopped    atomic.Bool
	closed     atomic.Bool
	once       sync.Once
	done       chan struct{}
}

func (p *FakePlayback) Start() error {
	p.started.Store(true)
	if p.autoFinish {
		p.Finish()
	}
	return nil
}

func (p *FakePlayback) Stop() {
	p.stopped.Store(true)
	p.Finish()
}

func (p *FakePlayback) Close() { p.closed.Store(true) }

func (p *FakePlayback) Done() <-chan struct{} { return p.done }

// Finish simulates the buffer playing to its end.
func (p *FakePlayback) Finish() { p.once.Do(func() { close(p.done) }) }

func (p *FakePlayback) Started() bool { return p.started.Load() }
func (p *FakePlayback) Stopped() bool { return p.stopped.Load() }
func (p *FakePlayback) Closed() bool  { return p.closed.Load() }
