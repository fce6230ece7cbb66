package app

import (
	"fmt"
	"strings"
	"time"

	"earshot/audio"
	"earshot/pipeline"
)

// Range bounds one numeric control. Values move in Step increments.
type Range struct {
	Min, Max, Step int
}

func (r Range) Clamp(v int) int {
	return max(r.Min, min(r.Max, v))
}

// Move returns v shifted by n steps, clamped to the range.
func (r Range) Move(v, n int) int {
	return r.Clamp(v + n*r.Step)
}

func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

var (
	DurationRange   = Range{Min: 1, Max: 10, Step: 1}
	SampleRateRange = Range{Min: 22050, Max: 44100, Step: 2205}
	ChunkSizeRange  = Range{Min: 512, Max: 4096, Step: 512}
	ChannelsRange   = Range{Min: 1, Max: 2, Step: 1}
)

type Field int

const (
	FieldFilename Field = iota
	FieldDuration
	FieldSampleRate
	FieldChunkSize
	FieldChannels
	fieldCount
)

func (f Field) String() string {
	switch f {
	case FieldFilename:
		return "Filename"
	case FieldDuration:
		return "Duration"
	case FieldSampleRate:
		return "Sample rate"
	case FieldChunkSize:
		return "Chunk size"
	case FieldChannels:
		return "Channels"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Next cycles through the fields; delta is +1 or -1.
func (f Field) Next(delta int) Field {
	return Field(((int(f)+delta)%int(fieldCount) + int(fieldCount)) % int(fieldCount))
}

func (f Field) Range() (Range, bool) {
	switch f {
	case FieldDuration:
		return DurationRange, true
	case FieldSampleRate:
		return SampleRateRange, true
	case FieldChunkSize:
		return ChunkSizeRange, true
	case FieldChannels:
		return ChannelsRange, true
	}
	return Range{}, false
}

// Settings are the user-editable recording controls.
type Settings struct {
	Filename        string
	DurationSeconds int
	SampleRate      int
	ChunkSize       int
	Channels        int
}

// Clamped pulls every numeric control into its range.
func (s Settings) Clamped() Settings {
	s.DurationSeconds = DurationRange.Clamp(s.DurationSeconds)
	s.SampleRate = SampleRateRange.Clamp(s.SampleRate)
	s.ChunkSize = ChunkSizeRange.Clamp(s.ChunkSize)
	s.Channels = ChannelsRange.Clamp(s.Channels)
	return s
}

func (s *Settings) ptr(f Field) *int {
	switch f {
	case FieldDuration:
		return &s.DurationSeconds
	case FieldSampleRate:
		return &s.SampleRate
	case FieldChunkSize:
		return &s.ChunkSize
	case FieldChannels:
		return &s.Channels
	}
	return nil
}

func (s Settings) Value(f Field) int {
	if p := s.ptr(f); p != nil {
		return *p
	}
	return 0
}

// Set stores v, clamped, into a numeric field.
func (s *Settings) Set(f Field, v int) {
	r, ok := f.Range()
	if !ok {
		return
	}
	*s.ptr(f) = r.Clamp(v)
}

// Adjust moves a numeric field by n steps. It is a no-op for Filename.
func (s *Settings) Adjust(f Field, n int) {
	r, ok := f.Range()
	if !ok {
		return
	}
	p := s.ptr(f)
	*p = r.Move(*p, n)
}

// Format renders a field value for display.
func (s Settings) Format(f Field) string {
	switch f {
	case FieldFilename:
		return s.Filename
	case FieldDuration:
		return fmt.Sprintf("%d s", s.DurationSeconds)
	case FieldSampleRate:
		return fmt.Sprintf("%d Hz", s.SampleRate)
	case FieldChunkSize:
		return fmt.Sprintf("%d frames", s.ChunkSize)
	case FieldChannels:
		if s.Channels == 2 {
			return "2 (stereo)"
		}
		return "1 (mono)"
	}
	return ""
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Filename) == "" {
		return fmt.Errorf("filename must not be empty")
	}
	for f := FieldDuration; f < fieldCount; f++ {
		r, _ := f.Range()
		if v := s.Value(f); !r.Contains(v) {
			return fmt.Errorf("%s must be between %d and %d, got %d", strings.ToLower(f.String()), r.Min, r.Max, v)
		}
	}
	return nil
}

func (s Settings) Capture() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: uint32(s.SampleRate),
		Channels:   uint32(s.Channels),
		ChunkSize:  uint32(s.ChunkSize),
		Duration:   time.Duration(s.DurationSeconds) * time.Second,
	}
}

func (s Settings) Recording() pipeline.Recording {
	return pipeline.Recording{Path: strings.TrimSpace(s.Filename), Capture: s.Capture()}
}
