package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	baseRecognizer
	apiKey string
	apiURL string
	client *TracedClient
}

func NewDeepgram(apiKey, baseURL string) *Deepgram {
	apiURL := deepgramAPIURL
	if baseURL != "" {
		apiURL = strings.TrimRight(baseURL, "/") + "/v1/listen"
	}
	return &Deepgram{
		baseRecognizer: baseRecognizer{lang: "en"},
		apiKey:         apiKey,
		apiURL:         apiURL,
		client:         NewTracedClient(),
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Warm() { warm(d.client, d.Name(), d.apiURL) }

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
		Channels int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Recognize(ctx context.Context, clip Clip) (*Result, error) {
	q := url.Values{}
	q.Set("model", "nova-3")
	q.Set("smart_format", "true")
	if d.lang != "" {
		q.Set("language", isoLanguage(d.lang))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.apiURL+"?"+q.Encode(), bytes.NewReader(clip.Data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", clip.Format.ContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	return &Result{
		Text:       text,
		Metrics:    resp.Metrics,
		RateLimit:  remaining + "/" + limit,
		Confidence: confidence,
		Duration:   dgResp.Metadata.Duration,
	}, nil
}
