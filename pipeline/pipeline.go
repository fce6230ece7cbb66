// Package pipeline runs capture, filtering and transcription as one unit
// of work.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"earshot/audio"
	"earshot/dsp"
	"earshot/transcriber"
	"earshot/wav"
)

type Stage string

const (
	StageRecording    Stage = "recording"
	StageFiltering    Stage = "filtering"
	StageTranscribing Stage = "transcribing"
)

type Progress func(Stage)

type Capturer interface {
	Capture(cfg audio.CaptureConfig) (*audio.Buffer, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, buf *audio.Buffer) transcriber.Outcome
}

// Recording describes one capture request.
type Recording struct {
	Path    string
	Capture audio.CaptureConfig
}

type Result struct {
	RawPath       string
	ProcessedPath string
	Raw           *audio.Buffer
	Filtered      *audio.Buffer
	Outcome       transcriber.Outcome
}

type Pipeline struct {
	Recorder  Capturer
	Filter    dsp.HighPass
	Client    Transcriber
	Overwrite wav.OverwritePolicy
}

// ProcessedPath is where the filtered copy of path is written.
func ProcessedPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "processed_"+base)
}

// Run records rec.Capture, writes the raw recording to rec.Path, writes the
// filtered recording next to it and transcribes the filtered audio.
// Transcription failures are reported in Result.Outcome; every other
// failure aborts the run with an error.
func (p *Pipeline) Run(ctx context.Context, rec Recording, progress Progress) (*Result, error) {
	report(progress, StageRecording)
	if w, ok := p.Client.(transcriber.Warmer); ok {
		go w.Warm()
	}
	raw, err := p.Recorder.Capture(rec.Capture)
	if err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}
	if err := wav.WriteFile(rec.Path, raw, p.Overwrite); err != nil {
		return nil, fmt.Errorf("writing %s: %w", rec.Path, err)
	}
	res := &Result{RawPath: rec.Path, Raw: raw}
	return p.finish(ctx, res, progress)
}

// RunFile filters and transcribes an existing WAV file.
func (p *Pipeline) RunFile(ctx context.Context, path string, progress Progress) (*Result, error) {
	raw, err := wav.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := &Result{RawPath: path, Raw: raw}
	return p.finish(ctx, res, progress)
}

func (p *Pipeline) finish(ctx context.Context, res *Result, progress Progress) (*Result, error) {
	report(progress, StageFiltering)
	filtered, err := p.Filter.Apply(res.Raw)
	if err != nil {
		return nil, fmt.Errorf("filtering: %w", err)
	}
	res.Filtered = filtered
	res.ProcessedPath = ProcessedPath(res.RawPath)
	if err := wav.WriteFile(res.ProcessedPath, filtered, p.Overwrite); err != nil {
		return nil, fmt.Errorf("writing %s: %w", res.ProcessedPath, err)
	}

	report(progress, StageTranscribing)
	res.Outcome = p.Client.Transcribe(ctx, filtered)
	return res, nil
}

func report(progress Progress, s Stage) {
	if progress != nil {
		progress(s)
	}
}
