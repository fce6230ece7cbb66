// Package config loads earshot settings from earshot.yaml, EARSHOT_*
// environment variables and a .env file of provider keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"earshot/audio"
	"earshot/dsp"
	"earshot/encoder"
	"earshot/transcriber"
	"earshot/wav"
)

const (
	EnvPrefix = "EARSHOT"
	FileName  = "earshot"
)

var ErrInvalid = errors.New("invalid configuration")

type Recording struct {
	Filename        string  `mapstructure:"filename" yaml:"filename"`
	DurationSeconds float64 `mapstructure:"duration_seconds" yaml:"duration_seconds"`
	SampleRate      int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	ChunkSize       int     `mapstructure:"chunk_size" yaml:"chunk_size"`
	Channels        int     `mapstructure:"channels" yaml:"channels"`
	Device          string  `mapstructure:"device" yaml:"device"`
	Overwrite       string  `mapstructure:"overwrite" yaml:"overwrite"`
}

type Filter struct {
	CutoffHz float64 `mapstructure:"cutoff_hz" yaml:"cutoff_hz"`
}

type Transcription struct {
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	Format         string  `mapstructure:"format" yaml:"format"`
	Language       string  `mapstructure:"language" yaml:"language"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	FakeText       string  `mapstructure:"fake_text" yaml:"fake_text,omitempty"`
}

// Keys are read from the environment (or .env) only and are redacted by
// YAML.
type Keys struct {
	Google   string `mapstructure:"google" yaml:"google,omitempty"`
	OpenAI   string `mapstructure:"openai" yaml:"openai,omitempty"`
	Groq     string `mapstructure:"groq" yaml:"groq,omitempty"`
	Deepgram string `mapstructure:"deepgram" yaml:"deepgram,omitempty"`
}

type Config struct {
	Recording     Recording     `mapstructure:"recording" yaml:"recording"`
	Filter        Filter        `mapstructure:"filter" yaml:"filter"`
	Transcription Transcription `mapstructure:"transcription" yaml:"transcription"`
	Keys          Keys          `mapstructure:"keys" yaml:"keys"`

	// Source is the config file that was read, empty when none was found.
	Source string `mapstructure:"-" yaml:"-"`
}

var keyEnv = map[string]string{
	"keys.google":   "GOOGLE_API_KEY",
	"keys.openai":   "OPENAI_API_KEY",
	"keys.groq":     "GROQ_API_KEY",
	"keys.deepgram": "DEEPGRAM_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("recording.filename", "recorded_audio.wav")
	v.SetDefault("recording.duration_seconds", 5)
	v.SetDefault("recording.sample_rate", 44100)
	v.SetDefault("recording.chunk_size", 1024)
	v.SetDefault("recording.channels", 1)
	v.SetDefault("recording.device", "")
	v.SetDefault("recording.overwrite", wav.Overwrite.String())
	v.SetDefault("filter.cutoff_hz", dsp.DefaultCutoffHz)
	v.SetDefault("transcription.provider", "auto")
	v.SetDefault("transcription.format", string(encoder.FormatWAV))
	v.SetDefault("transcription.language", "en-US")
	v.SetDefault("transcription.timeout_seconds", transcriber.DefaultTimeout.Seconds())
	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.fake_text", "")
	for key := range keyEnv {
		v.SetDefault(key, "")
	}
}

// Default returns the built-in settings, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(err)
	}
	return &c
}

// SearchPaths lists the directories searched for earshot.yaml when no
// explicit file is given.
func SearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "earshot"))
	}
	return paths
}

// LoadEnv loads provider keys from a dotenv file. Variables already set
// in the environment win. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads file, or earshot.yaml from SearchPaths when file is empty,
// applies environment overrides and validates the result.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range keyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	c.Source = v.ConfigFileUsed()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	r := c.Recording
	switch {
	case strings.TrimSpace(r.Filename) == "":
		return invalid("recording.filename must not be empty")
	case r.DurationSeconds <= 0:
		return invalid("recording.duration_seconds must be positive, got %g", r.DurationSeconds)
	case r.SampleRate <= 0:
		return invalid("recording.sample_rate must be positive, got %d", r.SampleRate)
	case r.ChunkSize <= 0:
		return invalid("recording.chunk_size must be positive, got %d", r.ChunkSize)
	case r.Channels < 1 || r.Channels > 2:
		return invalid("recording.channels must be 1 or 2, got %d", r.Channels)
	}
	if _, err := wav.ParseOverwritePolicy(r.Overwrite); err != nil {
		return invalid("recording.overwrite: %v", err)
	}

	nyquist := float64(r.SampleRate) / 2
	if c.Filter.CutoffHz <= 0 || c.Filter.CutoffHz >= nyquist {
		return invalid("filter.cutoff_hz must be in (0, %g), got %g", nyquist, c.Filter.CutoffHz)
	}

	t := c.Transcription
	if t.Provider != "auto" && !slices.Contains(transcriber.Providers, t.Provider) {
		return invalid("transcription.provider %q is not one of auto, %s", t.Provider, strings.Join(transcriber.Providers, ", "))
	}
	if _, err := encoder.ParseFormat(t.Format); err != nil {
		return invalid("transcription.format: %v", err)
	}
	if t.TimeoutSeconds <= 0 {
		return invalid("transcription.timeout_seconds must be positive, got %g", t.TimeoutSeconds)
	}
	return nil
}

func (c *Config) Duration() time.Duration {
	return time.Duration(c.Recording.DurationSeconds * float64(time.Second))
}

func (c *Config) Capture() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: uint32(c.Recording.SampleRate),
		Channels:   uint32(c.Recording.Channels),
		ChunkSize:  uint32(c.Recording.ChunkSize),
		Duration:   c.Duration(),
	}
}

func (c *Config) HighPass() dsp.HighPass {
	return dsp.HighPass{CutoffHz: c.Filter.CutoffHz}
}

// OverwritePolicy is only valid after Validate.
func (c *Config) OverwritePolicy() wav.OverwritePolicy {
	p, _ := wav.ParseOverwritePolicy(c.Recording.Overwrite)
	return p
}

// Format is only valid after Validate.
func (c *Config) Format() encoder.Format {
	f, _ := encoder.ParseFormat(c.Transcription.Format)
	return f
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds * float64(time.Second))
}

func (c *Config) TranscriberOptions() transcriber.Options {
	return transcriber.Options{
		Provider:    c.Transcription.Provider,
		Language:    c.Transcription.Language,
		GoogleKey:   c.Keys.Google,
		OpenAIKey:   c.Keys.OpenAI,
		GroqKey:     c.Keys.Groq,
		DeepgramKey: c.Keys.Deepgram,
		BaseURL:     c.Transcription.BaseURL,
		FakeText:    c.Transcription.FakeText,
	}
}

// NewClient builds the transcription client described by c.
func (c *Config) NewClient() (*transcriber.Client, error) {
	rec, err := transcriber.New(c.TranscriberOptions())
	if err != nil {
		return nil, err
	}
	client := transcriber.NewClient(rec)
	client.Format = c.Format()
	client.Timeout = c.Timeout()
	return client, nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// YAML renders c with API keys redacted.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	out.Keys = Keys{
		Google:   redact(c.Keys.Google),
		OpenAI:   redact(c.Keys.OpenAI),
		Groq:     redact(c.Keys.Groq),
		Deepgram: redact(c.Keys.Deepgram),
	}
	return yaml.Marshal(out)
}
