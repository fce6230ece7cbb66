//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("earshot"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sources {
		devices = append(devices, DeviceInfo{
			ID:   s.ID(),
			Name: s.Name(),
		})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if config.Channels > 2 {
		return nil, fmt.Errorf("pulse: %d channels not supported", config.Channels)
	}
	return &pulseCapture{
		client: p.client,
		device: device,
		config: config,
	}, nil
}

func (p *pulseContext) NewPlayback(buf *Buffer) (PlaybackDevice, error) {
	if buf.Channels > 2 {
		return nil, fmt.Errorf("pulse: %d channels not supported", buf.Channels)
	}
	return &pulsePlayback{client: p.client, buf: buf, done: make(chan struct{})}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseCapture struct {
	client   *pulse.Client
	device   *DeviceInfo
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	stream *pulse.RecordStream
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := int(c.config.Channels)
	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		if len(buf) == 0 {
			return 0, nil
		}
		cb := c.callback.Load()
		if cb == nil {
			return len(buf), nil
		}
		data := make([]byte, len(buf)*2)
		for i, s := range buf {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}
		(*cb)(data, uint32(len(buf)/channels))
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(0.05),
	}
	if channels == 2 {
		opts = append(opts, pulse.RecordStereo)
	} else {
		opts = append(opts, pulse.RecordMono)
	}
	if c.device != nil {
		opt, err := recordSource(c.client.SourceByID, c.device)
		if err != nil {
			return err
		}
		opts = append(opts, opt)
	}

	stream, err := c.client.NewRecord(writer, opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}

	c.stream = stream
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		stream.Start()
		<-c.stop
		stream.Stop()
		stream.Close()
	}()

	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
		<-c.done
	}
}

func (c *pulseCapture) Close() {
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}

type pulsePlayback struct {
	client  *pulse.Client
	buf     *Buffer
	stopped atomic.Bool
	started bool
	done    chan struct{}
}

func (p *pulsePlayback) Start() error {
	samples := p.buf.Int16s()
	pos := 0
	reader := pulse.Int16Reader(func(out []int16) (int, error) {
		if p.stopped.Load() || pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(out, samples[pos:])
		pos += n
		return n, nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(p.buf.SampleRate),
		pulse.PlaybackLatency(0.1),
	}
	if p.buf.Channels == 2 {
		opts = append(opts, pulse.PlaybackStereo)
	} else {
		opts = append(opts, pulse.PlaybackMono)
	}
	stream, err := p.client.NewPlayback(reader, opts...)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}
	p.started = true

	go func() {
		defer close(p.done)
		stream.Start()
		stream.Drain()
		stream.Stop()
		stream.Close()
	}()
	return nil
}

func (p *pulsePlayback) Stop() {
	p.stopped.Store(true)
	if p.started {
		<-p.done
	}
}

func (p *pulsePlayback) Close() { p.Stop() }

func (p *pulsePlayback) Done() <-chan struct{} { return p.done }

// recordSource resolves dev to a pulse source. A device that was selected
// but has since disappeared is an error rather than a silent switch to the
// default source.
func recordSource(lookup func(id string) (*pulse.Source, error), dev *DeviceInfo) (pulse.RecordOption, error) {
	source, err := lookup(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q (%s): %v", ErrDevice, dev.Name, dev.ID, err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source %q (%s) not found", ErrDevice, dev.Name, dev.ID)
	}
	return pulse.RecordSource(source), nil
}
