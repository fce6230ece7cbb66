package encoder

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

type FlacEncoder struct {
	buf           bytes.Buffer
	enc           *flac.Encoder
	sampleRate    int
	channels      int
	bitsPerSample int
	totalFrames   uint64
	mu            sync.Mutex
}

func NewFlac(sampleRate, channels, bitsPerSample int) (*FlacEncoder, error) {
	if channels < 1 || channels > 8 {
		return nil, fmt.Errorf("flac: %d channels not supported", channels)
	}
	e := &FlacEncoder{sampleRate: sampleRate, channels: channels, bitsPerSample: bitsPerSample}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: uint8(bitsPerSample),
		NSamples:      0,
	}
	enc, err := flac.NewEncoder(&e.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

// EncodeBlock writes one frame from interleaved samples; the block must
// hold a whole number of frames and at most BlockSize of them.
func (e *FlacEncoder) EncodeBlock(block []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(block)%e.channels != 0 {
		return fmt.Errorf("flac: block of %d samples is not a whole number of %d-channel frames", len(block), e.channels)
	}
	n := len(block) / e.channels
	if n == 0 {
		return nil
	}
	if n > BlockSize {
		return fmt.Errorf("flac: block of %d frames exceeds %d", n, BlockSize)
	}

	subframes := make([]*frame.Subframe, e.channels)
	for ch := range subframes {
		samples := make([]int32, n)
		for i := range samples {
			samples[i] = int32(block[i*e.channels+ch])
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{
				Pred: frame.PredVerbatim,
			},
			Samples:  samples,
			NSamples: n,
		}
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    uint32(e.sampleRate),
			Channels:      frame.Channels(e.channels - 1),
			BitsPerSample: uint8(e.bitsPerSample),
		},
		Subframes: subframes,
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(n)
	return nil
}

func (e *FlacEncoder) Close() error {
	return e.enc.Close()
}

func (e *FlacEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	return e.totalFrames
}
