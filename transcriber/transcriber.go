package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"earshot/encoder"
)

// ErrNoSpeech is returned by a Recognizer when the service processed the
// audio but found nothing to transcribe.
var ErrNoSpeech = errors.New("no speech detected")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

// Clip is one encoded recording ready for upload.
type Clip struct {
	Data       []byte
	Format     encoder.Format
	SampleRate int
	Channels   int
}

func (c Clip) Filename() string { return c.Format.Filename() }

// Recognizer performs a single speech-to-text request.
type Recognizer interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Recognize(ctx context.Context, clip Clip) (*Result, error)
}

type baseRecognizer struct {
	lang string
}

func (b *baseRecognizer) SetLanguage(lang string) { b.lang = lang }

func (b *baseRecognizer) GetLanguage() string { return b.lang }

// isoLanguage reduces a BCP-47 tag like "en-US" to the ISO-639-1 code the
// Whisper-style endpoints expect.
func isoLanguage(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}

type Options struct {
	Provider    string // google, openai, groq, deepgram, fake; empty picks by available key
	Language    string
	GoogleKey   string
	OpenAIKey   string
	GroqKey     string
	DeepgramKey string
	BaseURL     string // overrides the provider endpoint
	FakeText    string
}

var Providers = []string{"google", "openai", "groq", "deepgram", "fake"}

func New(opts Options) (Recognizer, error) {
	provider := opts.Provider
	if provider == "" || provider == "auto" {
		switch {
		case opts.GoogleKey != "":
			provider = "google"
		case opts.GroqKey != "":
			provider = "groq"
		case opts.OpenAIKey != "":
			provider = "openai"
		case opts.DeepgramKey != "":
			provider = "deepgram"
		default:
			return nil, fmt.Errorf("set GOOGLE_API_KEY, GROQ_API_KEY, OPENAI_API_KEY or DEEPGRAM_API_KEY")
		}
	}

	var r Recognizer
	switch provider {
	case "google":
		if opts.GoogleKey == "" {
			return nil, fmt.Errorf("google provider requires GOOGLE_API_KEY")
		}
		r = NewGoogle(opts.GoogleKey, opts.BaseURL)
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		r = NewOpenAI(opts.OpenAIKey, opts.BaseURL)
	case "groq":
		if opts.GroqKey == "" {
			return nil, fmt.Errorf("groq provider requires GROQ_API_KEY")
		}
		r = NewGroq(opts.GroqKey, opts.BaseURL)
	case "deepgram":
		if opts.DeepgramKey == "" {
			return nil, fmt.Errorf("deepgram provider requires DEEPGRAM_API_KEY")
		}
		r = NewDeepgram(opts.DeepgramKey, opts.BaseURL)
	case "fake":
		r = NewFake(opts.FakeText, nil)
	default:
		return nil, fmt.Errorf("unknown provider %q (want one of %s)", provider, strings.Join(Providers, ", "))
	}
	if opts.Language != "" {
		r.SetLanguage(opts.Language)
	}
	return r, nil
}
