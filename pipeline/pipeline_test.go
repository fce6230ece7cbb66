package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"earshot/audio"
	"earshot/dsp"
	"earshot/transcriber"
	"earshot/wav"
)

func tone(frames int) []byte {
	samples := make([]int, frames)
	for i := range samples {
		samples[i] = int(8000 * math.Sin(2*math.Pi*3000*float64(i)/8000))
	}
	return audio.NewBufferFromSamples(samples, 1, 2, 8000).Data
}

func newPipeline(fake *audio.FakeContext, rec transcriber.Recognizer) *Pipeline {
	return &Pipeline{
		Recorder: audio.NewRecorder(fake.Opener(), nil),
		Filter:   dsp.HighPass{CutoffHz: 1000},
		Client:   transcriber.NewClient(rec),
	}
}

var captureCfg = audio.CaptureConfig{SampleRate: 8000, Channels: 1, ChunkSize: 512, Duration: 200 * time.Millisecond}

func TestRunWritesRawAndProcessed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "recorded_audio.wav")
	fake := audio.NewFakeContext(tone(4000), false)
	p := newPipeline(fake, transcriber.NewFake("hello there", nil))

	var stages []Stage
	res, err := p.Run(context.Background(), Recording{Path: path, Capture: captureCfg}, func(s Stage) {
		stages = append(stages, s)
	})
	require.NoError(t, err)
	require.Equal(t, []Stage{StageRecording, StageFiltering, StageTranscribing}, stages)

	require.Equal(t, transcriber.OutcomeSuccess, res.Outcome.Kind)
	require.Equal(t, "hello there", res.Outcome.Text)
	require.Equal(t, filepath.Join(dir, "processed_recorded_audio.wav"), res.ProcessedPath)

	raw, err := wav.ReadFile(path)
	require.NoError(t, err)
	require.True(t, res.Raw.Equal(raw))
	require.Equal(t, 4*512, raw.Frames())

	processed, err := wav.ReadFile(res.ProcessedPath)
	require.NoError(t, err)
	require.True(t, res.Filtered.Equal(processed))
	require.False(t, raw.Equal(processed), "processed audio must differ from raw")
}

func TestRunServiceErrorStillWritesFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "take.wav")
	p := newPipeline(audio.NewFakeContext(tone(4000), false), transcriber.NewFake("", errors.New("quota exceeded")))

	res, err := p.Run(context.Background(), Recording{Path: path, Capture: captureCfg}, nil)
	require.NoError(t, err)
	require.Equal(t, transcriber.OutcomeServiceError, res.Outcome.Kind)
	require.Contains(t, res.Outcome.Message, "quota exceeded")
	require.FileExists(t, path)
	require.FileExists(t, res.ProcessedPath)
}

type warmingClient struct {
	*transcriber.Client
	warmed chan struct{}
}

func (c warmingClient) Warm() { close(c.warmed) }

func TestRunWarmsClientWhenRecordingStarts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "take.wav")
	client := warmingClient{
		Client: transcriber.NewClient(transcriber.NewFake("warm", nil)),
		warmed: make(chan struct{}),
	}
	p := &Pipeline{
		Recorder: audio.NewRecorder(audio.NewFakeContext(tone(4000), false).Opener(), nil),
		Filter:   dsp.HighPass{CutoffHz: 1000},
		Client:   client,
	}

	_, err := p.Run(context.Background(), Recording{Path: path, Capture: captureCfg}, nil)
	require.NoError(t, err)
	select {
	case <-client.warmed:
	case <-time.After(time.Second):
		t.Fatal("client was not warmed")
	}
}

func TestRunDeviceErrorStopsBeforeWriting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "take.wav")
	fake := audio.NewFakeContext(nil, false)
	fake.StartErr = errors.New("unplugged")
	rec := transcriber.NewFake("never", nil)
	p := newPipeline(fake, rec)

	var stages []Stage
	_, err := p.Run(context.Background(), Recording{Path: path, Capture: captureCfg}, func(s Stage) {
		stages = append(stages, s)
	})
	require.ErrorIs(t, err, audio.ErrDevice)
	require.Equal(t, []Stage{StageRecording}, stages)
	require.NoFileExists(t, path)
	require.Zero(t, rec.Calls())
}

func TestRunTooShortFailsBeforeTranscription(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.wav")
	rec := transcriber.NewFake("never", nil)
	p := newPipeline(audio.NewFakeContext(nil, false), rec)

	cfg := audio.CaptureConfig{SampleRate: 8000, Channels: 1, ChunkSize: 4, Duration: 500 * time.Microsecond}
	_, err := p.Run(context.Background(), Recording{Path: path, Capture: cfg}, nil)
	require.ErrorIs(t, err, dsp.ErrTooShort)
	require.FileExists(t, path, "raw recording is kept")
	require.NoFileExists(t, ProcessedPath(path))
	require.Zero(t, rec.Calls())
}

func TestRunFailIfExists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

	p := newPipeline(audio.NewFakeContext(tone(4000), false), transcriber.NewFake("x", nil))
	p.Overwrite = wav.FailIfExists

	_, err := p.Run(context.Background(), Recording{Path: path, Capture: captureCfg}, nil)
	require.ErrorIs(t, err, wav.ErrExists)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "keep me", string(data))
}

func TestRunFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "upload.wav")
	require.NoError(t, wav.WriteFile(path, audio.NewBufferFromSamples(make([]int, 2000), 1, 2, 8000), wav.Overwrite))

	p := newPipeline(audio.NewFakeContext(nil, false), transcriber.NewFake("", nil))
	var stages []Stage
	res, err := p.RunFile(context.Background(), path, func(s Stage) { stages = append(stages, s) })
	require.NoError(t, err)
	require.Equal(t, []Stage{StageFiltering, StageTranscribing}, stages)
	require.Equal(t, transcriber.OutcomeNoSpeech, res.Outcome.Kind)
	require.FileExists(t, filepath.Join(dir, "processed_upload.wav"))

	_, err = p.RunFile(context.Background(), filepath.Join(dir, "missing.wav"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessedPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "processed_a.wav", ProcessedPath("a.wav"))
	require.Equal(t, filepath.Join("x", "y", "processed_b.wav"), ProcessedPath(filepath.Join("x", "y", "b.wav")))
}
