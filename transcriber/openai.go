package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "whisper-large-v3-turbo"
)

// whisperAPI is a recognizer for OpenAI-compatible audio transcription
// endpoints.
type whisperAPI struct {
	baseRecognizer
	name    string
	model   string
	baseURL string
	traced  *TracedClient
	client  *openai.Client
}

func newWhisperAPI(name, model, apiKey, baseURL string) *whisperAPI {
	traced := NewTracedClient()
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = traced.Doer()
	return &whisperAPI{
		name:    name,
		model:   model,
		baseURL: cfg.BaseURL,
		traced:  traced,
		client:  openai.NewClientWithConfig(cfg),
	}
}

// NewOpenAI returns a recognizer for OpenAI's whisper-1 model.
func NewOpenAI(apiKey, baseURL string) Recognizer {
	return newWhisperAPI("openai", openai.Whisper1, apiKey, baseURL)
}

// NewGroq returns a recognizer for Groq's OpenAI-compatible endpoint.
func NewGroq(apiKey, baseURL string) Recognizer {
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	return newWhisperAPI("groq", groqModel, apiKey, baseURL)
}

func (w *whisperAPI) Name() string { return w.name }

func (w *whisperAPI) Warm() { warm(w.traced, w.name, w.baseURL) }

func (w *whisperAPI) Recognize(ctx context.Context, clip Clip) (*Result, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: clip.Filename(),
		Reader:   bytes.NewReader(clip.Data),
		Language: isoLanguage(w.lang),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%s API error %d: %s", w.name, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%s: %w", w.name, err)
	}

	var (
		noSpeechProb, avgLogProb float64
		segments                 []Segment
	)
	if len(resp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range resp.Segments {
			if seg.NoSpeechProb > noSpeechProb {
				noSpeechProb = seg.NoSpeechProb
			}
			logProbSum += seg.AvgLogprob
			segments = append(segments, Segment{
				Text:             seg.Text,
				NoSpeechProb:     seg.NoSpeechProb,
				AvgLogProb:       seg.AvgLogprob,
				CompressionRatio: seg.CompressionRatio,
				Temperature:      seg.Temperature,
				Start:            seg.Start,
				End:              seg.End,
			})
		}
		avgLogProb = logProbSum / float64(len(resp.Segments))
	}

	header := resp.Header()
	remaining := firstNonEmpty(header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(header, "x-ratelimit-limit-requests")

	return &Result{
		Text:         strings.TrimSpace(resp.Text),
		Metrics:      w.traced.LastMetrics(),
		RateLimit:    remaining + "/" + limit,
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     resp.Duration,
		Segments:     segments,
	}, nil
}
