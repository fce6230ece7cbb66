package wav

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"earshot/audio"
)

func sine(frames, channels, width, rate int) *audio.Buffer {
	_, hi := audio.SampleRange(width)
	samples := make([]int, frames*channels)
	for i := range samples {
		samples[i] = (i*7919)%(2*hi) - hi
	}
	return audio.NewBufferFromSamples(samples, channels, width, rate)
}

// rawWAV builds a canonical 44-byte header followed by data, with dataSize
// written verbatim so callers can lie about it.
func rawWAV(format, channels uint16, rate uint32, bits uint16, dataSize uint32, data []byte) []byte {
	const headerSize = 44
	buf := make([]byte, headerSize+len(data))
	blockAlign := channels * bits / 8
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+len(data)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], format)
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], rate)
	binary.LittleEndian.PutUint32(buf[28:32], rate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], bits)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataSize)
	copy(buf[44:], data)
	return buf
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		width    int
		rate     int
	}{
		{"mono 16", 1, 2, 44100},
		{"stereo 16", 2, 2, 22050},
		{"mono 24", 1, 3, 48000},
		{"stereo 32", 2, 4, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sine(1000, tt.channels, tt.width, tt.rate)

			data, err := Encode(in)
			require.NoError(t, err)
			require.Equal(t, 44+len(in.Data), len(data))

			out, err := Read(bytes.NewReader(data))
			require.NoError(t, err)
			require.True(t, in.Equal(out), "decoded buffer differs")
		})
	}
}

func TestRoundTripOddSizes(t *testing.T) {
	t.Parallel()

	for _, width := range []int{2, 3, 4} {
		for _, channels := range []int{1, 2} {
			for _, frames := range []int{1, 2, 3, 257} {
				in := sine(frames, channels, width, 8000)
				data, err := Encode(in)
				require.NoError(t, err)

				out, err := Read(bytes.NewReader(data))
				require.NoError(t, err, "width %d, %d ch, %d frames", width, channels, frames)
				require.True(t, in.Equal(out), "width %d, %d ch, %d frames", width, channels, frames)
			}
		}
	}
}

func TestReadOddDataChunkWithPadAndTrailer(t *testing.T) {
	t.Parallel()

	samples := []byte{0x01, 0x02, 0x83}
	trailer := append([]byte{0}, []byte("LIST\x04\x00\x00\x00INFO")...)
	data := rawWAV(1, 1, 8000, 24, uint32(len(samples)), append(append([]byte{}, samples...), trailer...))

	out, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, out.Frames())
	require.Equal(t, samples, out.Data)
	require.Equal(t, []int{-0x7cfdff}, out.Samples())
}

func TestRoundTripEmpty(t *testing.T) {
	t.Parallel()

	in := &audio.Buffer{Channels: 1, SampleWidth: 2, SampleRate: 8000}
	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	require.Zero(t, out.Frames())
}

func TestWriteFileAndReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recorded_audio.wav")
	in := sine(512, 1, 2, 44100)
	require.NoError(t, WriteFile(path, in, Overwrite))

	out, err := ReadFile(path)
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestWriteFilePolicy(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "take.wav")
	first := sine(256, 1, 2, 8000)
	second := sine(128, 2, 2, 8000)

	require.NoError(t, WriteFile(path, first, FailIfExists))

	err := WriteFile(path, second, FailIfExists)
	require.ErrorIs(t, err, ErrExists)
	got, err := ReadFile(path)
	require.NoError(t, err)
	require.True(t, first.Equal(got), "existing file must be left untouched")

	require.NoError(t, WriteFile(path, second, Overwrite))
	got, err = ReadFile(path)
	require.NoError(t, err)
	require.True(t, second.Equal(got))
}

func TestWriteFileRejectsInvalidBuffer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.wav")
	err := WriteFile(path, &audio.Buffer{Channels: 2, SampleWidth: 2, SampleRate: 8000, Data: []byte{1, 2, 3}}, Overwrite)
	require.ErrorIs(t, err, ErrFormat)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "partial file should be removed")
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRejectsMalformed(t *testing.T) {
	t.Parallel()

	valid, err := Encode(sine(100, 1, 2, 8000))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", append([]byte("RIFX"), valid[4:]...)},
		{"not wave", append(append([]byte{}, valid[:8]...), append([]byte("AVI "), valid[12:]...)...)},
		{"float format", rawWAV(3, 1, 8000, 32, 8, make([]byte, 8))},
		{"zero channels", rawWAV(1, 0, 8000, 16, 4, make([]byte, 4))},
		{"8 bit", rawWAV(1, 1, 8000, 8, 4, make([]byte, 4))},
		{"partial frame", rawWAV(1, 2, 8000, 16, 6, make([]byte, 6))},
		{"truncated", valid[:len(valid)-10]},
		{"truncated mid sample", valid[:len(valid)-3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			require.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestParseOverwritePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseOverwritePolicy("fail")
	require.NoError(t, err)
	require.Equal(t, FailIfExists, p)

	p, err = ParseOverwritePolicy("")
	require.NoError(t, err)
	require.Equal(t, Overwrite, p)

	_, err = ParseOverwritePolicy("append")
	require.Error(t, err)
}

func TestMemFileSeekPatch(t *testing.T) {
	t.Parallel()

	var m memFile
	_, _ = m.Write([]byte("hello world"))
	_, err := m.Seek(0, 0)
	require.NoError(t, err)
	_, _ = m.Write([]byte("J"))
	require.Equal(t, "Jello world", string(m.buf))

	_, err = m.Seek(-1, 0)
	require.Error(t, err)
}
