package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"earshot/audio"
	"earshot/encoder"
	"earshot/log"
	"earshot/wav"
)

const DefaultTimeout = 30 * time.Second

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNoSpeech
	OutcomeServiceError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoSpeech:
		return "no_speech"
	case OutcomeServiceError:
		return "service_error"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of one transcription attempt. Text is set for
// OutcomeSuccess and Message for OutcomeServiceError.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Message string
	Result  *Result
	Elapsed time.Duration
}

func Success(text string) Outcome { return Outcome{Kind: OutcomeSuccess, Text: text} }

func NoSpeech() Outcome { return Outcome{Kind: OutcomeNoSpeech} }

func ServiceError(msg string) Outcome { return Outcome{Kind: OutcomeServiceError, Message: msg} }

// Display is the text shown to the user in place of a transcript.
func (o Outcome) Display() string {
	switch o.Kind {
	case OutcomeSuccess:
		return o.Text
	case OutcomeNoSpeech:
		return "(no speech detected)"
	default:
		return "Error occurred: " + o.Message
	}
}

// Client turns recordings into Outcomes with a single bounded request.
type Client struct {
	rec     Recognizer
	Format  encoder.Format
	Timeout time.Duration
}

func NewClient(rec Recognizer) *Client {
	return &Client{rec: rec, Format: encoder.FormatWAV, Timeout: DefaultTimeout}
}

func (c *Client) Recognizer() Recognizer { return c.rec }

// SampleWidthLimiter is implemented by recognizers whose encoding caps the
// sample width in bytes. Client requantizes wider audio before upload.
type SampleWidthLimiter interface {
	MaxSampleWidth(f encoder.Format) int
}

// Warmer is implemented by recognizers that can open their connection
// ahead of the first request.
type Warmer interface {
	Warm()
}

// Warm pre-opens the recognizer's connection so the TLS handshake is paid
// while the user is still speaking.
func (c *Client) Warm() {
	if w, ok := c.rec.(Warmer); ok {
		w.Warm()
	}
}

func (c *Client) Transcribe(ctx context.Context, buf *audio.Buffer) Outcome {
	start := time.Now()
	if l, ok := c.rec.(SampleWidthLimiter); ok {
		if limit := l.MaxSampleWidth(c.Format); limit == 2 && buf != nil && buf.SampleWidth > limit {
			buf = buf.To16Bit()
		}
	}
	payload, err := encoder.Encode(c.Format, buf)
	if err != nil {
		return ServiceError(fmt.Sprintf("encoding %s payload: %v", c.Format, err))
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clip := Clip{
		Data:       payload.Data,
		Format:     payload.Format,
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	result, err := c.rec.Recognize(ctx, clip)

	out := classify(result, err, timeout)
	out.Result = result
	out.Elapsed = time.Since(start)

	if result != nil && result.Metrics != nil {
		m := result.Metrics
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS: buf.Duration().Seconds(),
			PayloadKB:    float64(len(payload.Data)) / 1024,
			EncodeTimeMs: float64(payload.EncodeTime.Microseconds()) / 1000,
			DNSTimeMs:    float64(m.DNS.Microseconds()) / 1000,
			TLSTimeMs:    float64(m.TLS.Microseconds()) / 1000,
			TTFBMs:       float64(m.TTFB.Microseconds()) / 1000,
			TotalTimeMs:  float64(m.Total.Microseconds()) / 1000,
		}, c.rec.Name(), string(payload.Format), m.ConnReused, m.TLSProtocol)
		log.Confidence(result.Confidence)
	}
	switch out.Kind {
	case OutcomeSuccess:
		log.TranscriptionText(out.Text)
	case OutcomeServiceError:
		log.Warnf("%s: %s", c.rec.Name(), out.Message)
	}
	return out
}

// TranscribeFile reads a WAV file and transcribes it. Errors reading the
// file are returned separately from the service outcome.
func (c *Client) TranscribeFile(ctx context.Context, path string) (Outcome, error) {
	buf, err := wav.ReadFile(path)
	if err != nil {
		return Outcome{}, err
	}
	return c.Transcribe(ctx, buf), nil
}

func classify(result *Result, err error, timeout time.Duration) Outcome {
	switch {
	case errors.Is(err, ErrNoSpeech):
		return NoSpeech()
	case errors.Is(err, context.DeadlineExceeded):
		return ServiceError(fmt.Sprintf("request timed out after %s", timeout))
	case errors.Is(err, context.Canceled):
		return ServiceError("request cancelled")
	case err != nil:
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = "transcription service failed"
		}
		return ServiceError(msg)
	case result == nil || strings.TrimSpace(result.Text) == "":
		return NoSpeech()
	}
	return Success(strings.TrimSpace(result.Text))
}
