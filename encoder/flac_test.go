package encoder

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/mewkiz/flac"

	"earshot/audio"
)

func testSignal(frames, channels int) []int {
	samples := make([]int, frames*channels)
	for i := range samples {
		samples[i] = (i*131)%20000 - 10000
	}
	return samples
}

func decodeFlac(t *testing.T, data []byte) (channels int, samples []int) {
	t.Helper()
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("flac.New: %v", err)
	}
	channels = int(stream.Info.NChannels)
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ParseNext: %v", err)
		}
		for i := 0; i < int(f.BlockSize); i++ {
			for _, sub := range f.Subframes {
				samples = append(samples, int(sub.Samples[i]))
			}
		}
	}
	return channels, samples
}

func TestFlacEncoder(t *testing.T) {
	for _, channels := range []int{1, 2} {
		samples := testSignal(BlockSize*2+100, channels)

		enc, err := NewFlac(44100, channels, 16)
		if err != nil {
			t.Fatalf("NewFlac: %v", err)
		}

		step := BlockSize * channels
		for i := 0; i < len(samples); i += step {
			if err := enc.EncodeBlock(samples[i:min(i+step, len(samples))]); err != nil {
				t.Fatalf("EncodeBlock at offset %d: %v", i, err)
			}
		}
		if err := enc.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		if got, want := enc.TotalFrames(), uint64(BlockSize*2+100); got != want {
			t.Errorf("TotalFrames = %d, want %d", got, want)
		}

		flacData := enc.Bytes()
		if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
			t.Fatal("output does not start with FLAC magic")
		}

		gotChannels, decoded := decodeFlac(t, flacData)
		if gotChannels != channels {
			t.Errorf("channels = %d, want %d", gotChannels, channels)
		}
		if len(decoded) != len(samples) {
			t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
		}
		for i := range samples {
			if decoded[i] != samples[i] {
				t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
			}
		}
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(16000, 1, 16)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderRejectsBadBlocks(t *testing.T) {
	enc, err := NewFlac(16000, 2, 16)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.EncodeBlock([]int{1, 2, 3}); err == nil {
		t.Error("expected error for partial stereo frame")
	}
	if err := enc.EncodeBlock(make([]int, (BlockSize+1)*2)); err == nil {
		t.Error("expected error for oversized block")
	}
	if _, err := NewFlac(16000, 0, 16); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestEncode(t *testing.T) {
	buf := audio.NewBufferFromSamples(testSignal(1000, 1), 1, 2, 16000)

	tests := []struct {
		format Format
		magic  string
		name   string
	}{
		{FormatWAV, "RIFF", "audio.wav"},
		{FormatFLAC, "fLaC", "audio.flac"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			p, err := Encode(tt.format, buf)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(p.Data[:4]) != tt.magic {
				t.Errorf("magic = %q, want %q", p.Data[:4], tt.magic)
			}
			if p.Format.Filename() != tt.name {
				t.Errorf("Filename = %q, want %q", p.Format.Filename(), tt.name)
			}
			if p.Frames != 1000 {
				t.Errorf("Frames = %d, want 1000", p.Frames)
			}
		})
	}

	if _, err := Encode("ogg", buf); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatWAV, false},
		{"wav", FormatWAV, false},
		{"FLAC", FormatFLAC, false},
		{"mp3", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
