// Package encoder turns recordings into upload payloads.
package encoder

import (
	"fmt"
	"strings"
	"time"

	"earshot/audio"
	"earshot/wav"
)

const BlockSize = 4096

type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatWAV:
		return FormatWAV, nil
	case FormatFLAC:
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("unknown payload format %q (want wav or flac)", s)
}

// Filename is the upload name providers use to detect the container.
func (f Format) Filename() string { return "audio." + string(f) }

func (f Format) ContentType() string {
	if f == FormatFLAC {
		return "audio/flac"
	}
	return "audio/wav"
}

type Payload struct {
	Data       []byte
	Format     Format
	Frames     int
	EncodeTime time.Duration
}


// Encode serializes buf into a complete file of the given format.
func Encode(format Format, buf *audio.Buffer) (*Payload, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatFLAC:
		data, err = encodeFlac(buf)
	case FormatWAV, "":
		format = FormatWAV
		data, err = wav.Encode(buf)
	default:
		err = fmt.Errorf("unknown payload format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return &Payload{
		Data:       data,
		Format:     format,
		Frames:     buf.Frames(),
		EncodeTime: time.Since(start),
	}, nil
}

func encodeFlac(buf *audio.Buffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	enc, err := NewFlac(buf.SampleRate, buf.Channels, buf.SampleWidth*8)
	if err != nil {
		return nil, err
	}
	samples := buf.Samples()
	step := BlockSize * buf.Channels
	for i := 0; i < len(samples); i += step {
		if err := enc.EncodeBlock(samples[i:min(i+step, len(samples))]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return enc.Bytes(), nil
}
