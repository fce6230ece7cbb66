package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Settings {
	return Settings{Filename: "recorded_audio.wav", DurationSeconds: 5, SampleRate: 44100, ChunkSize: 1024, Channels: 1}
}

func TestSettingsAdjust(t *testing.T) {
	t.Parallel()

	s := defaults()
	s.Adjust(FieldDuration, 1)
	assert.Equal(t, 6, s.DurationSeconds)
	s.Adjust(FieldDuration, 100)
	assert.Equal(t, 10, s.DurationSeconds)
	s.Adjust(FieldDuration, -100)
	assert.Equal(t, 1, s.DurationSeconds)

	s.Adjust(FieldSampleRate, -1)
	assert.Equal(t, 41895, s.SampleRate)
	s.Adjust(FieldSampleRate, -10)
	assert.Equal(t, 22050, s.SampleRate)

	s.Adjust(FieldChunkSize, 1)
	assert.Equal(t, 1536, s.ChunkSize)
	s.Adjust(FieldChannels, 5)
	assert.Equal(t, 2, s.Channels)

	before := s
	s.Adjust(FieldFilename, 1)
	assert.Equal(t, before, s)
}

func TestSettingsSetClamps(t *testing.T) {
	t.Parallel()

	s := defaults()
	s.Set(FieldChunkSize, 100000)
	assert.Equal(t, 4096, s.ChunkSize)
	s.Set(FieldSampleRate, 8000)
	assert.Equal(t, 22050, s.SampleRate)
}

func TestSettingsClampedAndValidate(t *testing.T) {
	t.Parallel()

	s := Settings{Filename: "a.wav", DurationSeconds: 30, SampleRate: 48000, ChunkSize: 64, Channels: 0}
	require.Error(t, s.Validate())
	c := s.Clamped()
	require.NoError(t, c.Validate())
	assert.Equal(t, Settings{Filename: "a.wav", DurationSeconds: 10, SampleRate: 44100, ChunkSize: 512, Channels: 1}, c)

	c.Filename = "  "
	assert.ErrorContains(t, c.Validate(), "filename")
}

func TestSettingsRecording(t *testing.T) {
	t.Parallel()

	rec := defaults().Recording()
	assert.Equal(t, "recorded_audio.wav", rec.Path)
	assert.Equal(t, 5*time.Second, rec.Capture.Duration)
	assert.Equal(t, 216, rec.Capture.Chunks())
}

func TestFieldNavigation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FieldDuration, FieldFilename.Next(1))
	assert.Equal(t, FieldChannels, FieldFilename.Next(-1))
	assert.Equal(t, FieldFilename, FieldChannels.Next(1))
	assert.Equal(t, "10 s", Settings{DurationSeconds: 10}.Format(FieldDuration))
	assert.Equal(t, "2 (stereo)", Settings{Channels: 2}.Format(FieldChannels))
}
