// Package wav reads and writes RIFF/WAVE PCM containers.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"earshot/audio"
)

const formatPCM = 1

var (
	ErrFormat = errors.New("malformed or unsupported WAV")
	ErrExists = errors.New("file already exists")
)

type OverwritePolicy int

const (
	Overwrite OverwritePolicy = iota
	FailIfExists
)

func (p OverwritePolicy) String() string {
	if p == FailIfExists {
		return "fail"
	}
	return "overwrite"
}

func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch s {
	case "", "overwrite":
		return Overwrite, nil
	case "fail", "fail-if-exists":
		return FailIfExists, nil
	}
	return Overwrite, fmt.Errorf("unknown overwrite policy %q", s)
}

// Write encodes buf as a PCM WAV into w.
func Write(w io.WriteSeeker, buf *audio.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	enc := gowav.NewEncoder(w, buf.SampleRate, buf.SampleWidth*8, buf.Channels, formatPCM)
	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           buf.Samples(),
		SourceBitDepth: buf.SampleWidth * 8,
	}
	if err := enc.Write(ib); err != nil {
		enc.Close()
		return fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav encode: %w", err)
	}
	return nil
}

// WriteFile writes buf to path. With FailIfExists an existing file is left
// untouched and ErrExists is returned.
func WriteFile(path string, buf *audio.Buffer, policy OverwritePolicy) (err error) {
	flags := os.O_RDWR | os.O_CREATE | os.O_TRUNC
	if policy == FailIfExists {
		flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return Write(f, buf)
}

// Encode returns buf as an in-memory WAV file.
func Encode(buf *audio.Buffer) ([]byte, error) {
	var m memFile
	if err := Write(&m, buf); err != nil {
		return nil, err
	}
	return m.buf, nil
}

// Read decodes a PCM WAV with 16, 24 or 32-bit samples.
func Read(r io.ReadSeeker) (*audio.Buffer, error) {
	var magic [12]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: missing RIFF header", ErrFormat)
	}
	if !bytes.Equal(magic[0:4], []byte("RIFF")) || !bytes.Equal(magic[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrFormat)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	d := gowav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if d.WavAudioFormat != formatPCM {
		return nil, fmt.Errorf("%w: audio format %d is not PCM", ErrFormat, d.WavAudioFormat)
	}
	if d.NumChans == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrFormat)
	}
	if d.BitDepth%8 != 0 || d.BitDepth < 16 || d.BitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrFormat, d.BitDepth)
	}
	if d.SampleRate == 0 {
		return nil, fmt.Errorf("%w: zero sample rate", ErrFormat)
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	size, remaining, err := dataChunkSize(r)
	if err != nil {
		return nil, err
	}

	width := int(d.BitDepth) / 8
	channels := int(d.NumChans)
	frameSize := width * channels
	if size%int64(frameSize) != 0 {
		return nil, fmt.Errorf("%w: data size %d is not a whole number of %d-byte frames",
			ErrFormat, size, frameSize)
	}
	if size > remaining {
		return nil, fmt.Errorf("%w: truncated data: %d of %d bytes", ErrFormat, remaining, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: reading data: %v", ErrFormat, err)
	}
	return &audio.Buffer{
		Channels:    channels,
		SampleWidth: width,
		SampleRate:  int(d.SampleRate),
		Data:        data,
	}, nil
}

// dataChunkSize returns the size declared in the header of the data chunk
// that r is positioned at, without the RIFF pad byte that follows odd-sized
// chunks, and the number of bytes left in r. r is left where it was.
func dataChunkSize(r io.ReadSeeker) (size, remaining int64, err error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, err
	}
	if _, err := r.Seek(pos-4, io.SeekStart); err != nil {
		return 0, 0, err
	}
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: data chunk header: %v", ErrFormat, err)
	}
	return int64(binary.LittleEndian.Uint32(hdr[:])), end - pos, nil
}

func ReadFile(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}
