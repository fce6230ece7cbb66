package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SampleWidth is the width in bytes of the signed 16-bit samples every
// capture backend delivers.
const SampleWidth = 2

// ErrDevice reports that a capture or playback device could not be opened,
// started or read from.
var ErrDevice = errors.New("audio device error")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	ChunkSize  uint32 // frames per read
	Duration   time.Duration
}

func (c CaptureConfig) Validate() error {
	switch {
	case c.SampleRate == 0:
		return fmt.Errorf("sample rate must be positive")
	case c.Channels == 0:
		return fmt.Errorf("channel count must be positive")
	case c.ChunkSize == 0:
		return fmt.Errorf("chunk size must be positive")
	case c.Duration <= 0:
		return fmt.Errorf("duration must be positive")
	}
	return nil
}

// Chunks returns ceil(duration * sampleRate / chunkSize).
func (c CaptureConfig) Chunks() int {
	num := int64(c.Duration) * int64(c.SampleRate)
	den := int64(time.Second) * int64(c.ChunkSize)
	if den == 0 {
		return 0
	}
	return int((num + den - 1) / den)
}

// Frames is the captured length after rounding up to whole chunks.
func (c CaptureConfig) Frames() int {
	return c.Chunks() * int(c.ChunkSize)
}

func (c CaptureConfig) FrameBytes() int {
	return int(c.Channels) * SampleWidth
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayback(buf *Buffer) (PlaybackDevice, error)
	Close()
}

// Opener creates an audio subsystem handle. Recorder and playback open one
// per operation and release it when the operation ends.
type Opener func() (Context, error)

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// PlaybackDevice plays a single Buffer. Done is closed once the buffer has
// been fully played or the device was stopped.
type PlaybackDevice interface {
	Start() error
	Stop()
	Close()
	Done() <-chan struct{}
}
