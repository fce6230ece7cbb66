package transcriber

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"earshot/encoder"
)

const (
	googleAPIURL      = "https://speech.googleapis.com/v1/speech:recognize"
	googleDefaultLang = "en-US"
)

// Google calls the Cloud Speech-to-Text v1 synchronous recognize method.
type Google struct {
	baseRecognizer
	client *TracedClient
	apiURL string
	apiKey string
}

func NewGoogle(apiKey, baseURL string) *Google {
	apiURL := googleAPIURL
	if baseURL != "" {
		apiURL = strings.TrimRight(baseURL, "/") + "/v1/speech:recognize"
	}
	return &Google{
		baseRecognizer: baseRecognizer{lang: googleDefaultLang},
		client:         NewTracedClient(),
		apiURL:         apiURL,
		apiKey:         apiKey,
	}
}

func (g *Google) Name() string { return "google" }

// MaxSampleWidth is 2 for WAV uploads, which are sent as LINEAR16. FLAC
// carries its own bit depth.
func (g *Google) MaxSampleWidth(f encoder.Format) int {
	if f == encoder.FormatFLAC {
		return 0
	}
	return 2
}

func (g *Google) Warm() { warm(g.client, g.Name(), g.apiURL) }

type googleRequest struct {
	Config googleConfig `json:"config"`
	Audio  googleAudio  `json:"audio"`
}

type googleConfig struct {
	Encoding          string `json:"encoding"`
	SampleRateHertz   int    `json:"sampleRateHertz,omitempty"`
	AudioChannelCount int    `json:"audioChannelCount,omitempty"`
	LanguageCode      string `json:"languageCode"`
}

type googleAudio struct {
	Content string `json:"content"`
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
	TotalBilledTime string `json:"totalBilledTime"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Google) Recognize(ctx context.Context, clip Clip) (*Result, error) {
	encoding := "LINEAR16"
	if clip.Format == encoder.FormatFLAC {
		encoding = "FLAC"
	}
	lang := g.lang
	if lang == "" {
		lang = googleDefaultLang
	}

	payload, err := json.Marshal(googleRequest{
		Config: googleConfig{
			Encoding:          encoding,
			SampleRateHertz:   clip.SampleRate,
			AudioChannelCount: clip.Channels,
			LanguageCode:      lang,
		},
		Audio: googleAudio{Content: base64.StdEncoding.EncodeToString(clip.Data)},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL+"?key="+url.QueryEscape(g.apiKey), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		var gErr googleError
		if json.Unmarshal(resp.Body, &gErr) == nil && gErr.Error.Message != "" {
			return nil, fmt.Errorf("google API error %d %s: %s", resp.StatusCode, gErr.Error.Status, gErr.Error.Message)
		}
		return nil, fmt.Errorf("google API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var gResp googleResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, fmt.Errorf("google response parse error: %w", err)
	}

	var (
		parts      []string
		confidence float64
	)
	for _, r := range gResp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			parts = append(parts, t)
		}
		if confidence == 0 {
			confidence = alt.Confidence
		}
	}
	if len(parts) == 0 {
		return nil, ErrNoSpeech
	}

	return &Result{
		Text:       strings.Join(parts, " "),
		Metrics:    resp.Metrics,
		RateLimit:  "?/?",
		Confidence: confidence,
	}, nil
}
