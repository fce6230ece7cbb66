package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidBuffer = errors.New("invalid audio buffer")

// Buffer is raw interleaved little-endian PCM plus its format. Buffers are
// treated as immutable: transformations return a new Buffer.
type Buffer struct {
	Channels    int
	SampleWidth int // bytes per sample
	SampleRate  int
	Data        []byte
}

// SampleRange returns the representable range of a signed sample of the
// given width in bytes.
func SampleRange(width int) (lo, hi int) {
	bits := uint(width * 8)
	return -(1 << (bits - 1)), 1<<(bits-1) - 1
}

func (b *Buffer) FrameSize() int {
	return b.Channels * b.SampleWidth
}

func (b *Buffer) Frames() int {
	fs := b.FrameSize()
	if fs == 0 {
		return 0
	}
	return len(b.Data) / fs
}

func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

func (b *Buffer) Validate() error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil", ErrInvalidBuffer)
	case b.Channels <= 0:
		return fmt.Errorf("%w: %d channels", ErrInvalidBuffer, b.Channels)
	case b.SampleWidth < 2 || b.SampleWidth > 4:
		return fmt.Errorf("%w: unsupported sample width %d", ErrInvalidBuffer, b.SampleWidth)
	case b.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidBuffer, b.SampleRate)
	case len(b.Data)%b.FrameSize() != 0:
		return fmt.Errorf("%w: %d bytes is not a whole number of %d-byte frames",
			ErrInvalidBuffer, len(b.Data), b.FrameSize())
	}
	return nil
}

// Samples decodes the interleaved samples as signed integers.
func (b *Buffer) Samples() []int {
	w := b.SampleWidth
	if w == 0 {
		return nil
	}
	out := make([]int, len(b.Data)/w)
	for i := range out {
		out[i] = decodeSample(b.Data[i*w:], w)
	}
	return out
}

// NewBufferFromSamples encodes interleaved samples, saturating values that
// do not fit the sample width.
func NewBufferFromSamples(samples []int, channels, width, rate int) *Buffer {
	lo, hi := SampleRange(width)
	data := make([]byte, len(samples)*width)
	for i, s := range samples {
		encodeSample(data[i*width:], width, min(max(s, lo), hi))
	}
	return &Buffer{Channels: channels, SampleWidth: width, SampleRate: rate, Data: data}
}

func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Channels == o.Channels &&
		b.SampleWidth == o.SampleWidth &&
		b.SampleRate == o.SampleRate &&
		bytes.Equal(b.Data, o.Data)
}

// Int16s scales every sample to 16 bits, which is what the playback
// backends consume.
func (b *Buffer) Int16s() []int16 {
	shift := uint((b.SampleWidth - 2) * 8)
	samples := b.Samples()
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(s >> shift)
	}
	return out
}

// To16Bit returns the buffer requantized to 16-bit samples, or b itself
// when it already is.
func (b *Buffer) To16Bit() *Buffer {
	if b.SampleWidth == 2 {
		return b
	}
	out := &Buffer{Channels: b.Channels, SampleWidth: 2, SampleRate: b.SampleRate}
	out.Data = make([]byte, 0, b.Frames()*b.Channels*2)
	for _, s := range b.Int16s() {
		out.Data = binary.LittleEndian.AppendUint16(out.Data, uint16(s))
	}
	return out
}

type Peak struct {
	Min, Max float64 // normalized to [-1, 1]
}

// Peaks reduces the buffer to at most bins min/max pairs across all
// channels, for waveform rendering.
func (b *Buffer) Peaks(bins int) []Peak {
	frames := b.Frames()
	if bins <= 0 || frames == 0 {
		return nil
	}
	if bins > frames {
		bins = frames
	}
	_, hi := SampleRange(b.SampleWidth)
	scale := float64(hi) + 1
	samples := b.Samples()

	peaks := make([]Peak, bins)
	for i := range peaks {
		start := i * frames / bins
		end := (i + 1) * frames / bins
		p := Peak{Min: math.Inf(1), Max: math.Inf(-1)}
		for f := start; f < end; f++ {
			for c := 0; c < b.Channels; c++ {
				v := float64(samples[f*b.Channels+c]) / scale
				p.Min = math.Min(p.Min, v)
				p.Max = math.Max(p.Max, v)
			}
		}
		peaks[i] = p
	}
	return peaks
}

func decodeSample(p []byte, width int) int {
	switch width {
	case 2:
		return int(int16(binary.LittleEndian.Uint16(p)))
	case 3:
		v := int32(p[0]) | int32(p[1])<<8 | int32(p[2])<<16
		return int(v<<8) >> 8
	case 4:
		return int(int32(binary.LittleEndian.Uint32(p)))
	}
	return 0
}

func encodeSample(p []byte, width, v int) {
	switch width {
	case 2:
		binary.LittleEndian.PutUint16(p, uint16(int16(v)))
	case 3:
		p[0] = byte(v)
		p[1] = byte(v >> 8)
		p[2] = byte(v >> 16)
	case 4:
		binary.LittleEndian.PutUint32(p, uint32(int32(v)))
	}
}
