// Package app holds the interactive shell's state machine, independent of
// any widget toolkit.
package app

import (
	"errors"
	"fmt"
	"time"

	"earshot/audio"
	"earshot/dsp"
	"earshot/pipeline"
	"earshot/transcriber"
	"earshot/wav"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseFiltering
	PhaseTranscribing
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseFiltering:
		return "filtering"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Busy reports whether a run is in progress.
func (p Phase) Busy() bool {
	return p == PhaseRecording || p == PhaseFiltering || p == PhaseTranscribing
}

func phaseFor(s pipeline.Stage) Phase {
	switch s {
	case pipeline.StageRecording:
		return PhaseRecording
	case pipeline.StageFiltering:
		return PhaseFiltering
	default:
		return PhaseTranscribing
	}
}

type Mode string

const (
	ModeRecord Mode = "record"
	ModeUpload Mode = "upload"
)

// State is everything the shell displays. It is only modified on the UI
// goroutine, through Controller.Start and Controller.Apply.
type State struct {
	Phase         Phase
	RunID         string
	Mode          Mode
	Path          string
	ProcessedPath string
	Outcome       transcriber.Outcome
	Err           error
	Filtered      *audio.Buffer
	Started       time.Time
	Elapsed       time.Duration
}

// Status is a one-line description of the state for status bars.
func (s State) Status() string {
	switch s.Phase {
	case PhaseIdle:
		return "Ready"
	case PhaseRecording:
		return "Recording..."
	case PhaseFiltering:
		return "Filtering..."
	case PhaseTranscribing:
		return "Transcribing..."
	case PhaseDone:
		return fmt.Sprintf("Done in %.1fs", s.Elapsed.Seconds())
	case PhaseFailed:
		return "Failed: " + Describe(s.Err)
	}
	return ""
}

// Transcript is the text to show in the transcript area.
func (s State) Transcript() string {
	switch s.Phase {
	case PhaseDone:
		return s.Outcome.Display()
	case PhaseFailed:
		return Describe(s.Err)
	}
	return ""
}

// Describe turns a run error into a message for the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, audio.ErrDevice):
		return "Audio device error: " + err.Error()
	case errors.Is(err, wav.ErrExists):
		return "File already exists: " + err.Error()
	case errors.Is(err, wav.ErrFormat):
		return "Unreadable audio file: " + err.Error()
	case errors.Is(err, dsp.ErrTooShort):
		return "Recording too short to filter: " + err.Error()
	case errors.Is(err, dsp.ErrProcessing):
		return "Processing error: " + err.Error()
	}
	return err.Error()
}
