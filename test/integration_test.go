//go:build integration

package test_test

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"earshot/audio"
	"earshot/clipboard"
	"earshot/wav"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("EARSHOT_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "EARSHOT_TEST_BIN not set; build earshot and point it at the binary")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeWAV(t *testing.T, name string, freq float64, seconds float64) string {
	t.Helper()
	const rate = 16000
	samples := make([]int, int(rate*seconds))
	for i := range samples {
		samples[i] = int(9000 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	path := filepath.Join(t.TempDir(), name)
	if err := wav.WriteFile(path, audio.NewBufferFromSamples(samples, 1, 2, rate), wav.Overwrite); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type result struct {
	logDir string
	stdout string
	stderr string
}

func runEarshot(t *testing.T, env []string, args ...string) result {
	t.Helper()
	logDir := t.TempDir()
	cmdArgs := append(args, "--logpath", logDir, "--no-progress")

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("earshot exited with error: %v\nstderr: %s", err, stderr.String())
	}
	return result{logDir: logDir, stdout: stdout.String(), stderr: stderr.String()}
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

var fakeEnv = []string{
	"EARSHOT_TRANSCRIPTION_PROVIDER=fake",
	"EARSHOT_TRANSCRIPTION_FAKE_TEXT=integration words",
}

func requireGroqKey(t *testing.T) {
	t.Helper()
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
}

func requireDeepgramKey(t *testing.T) {
	t.Helper()
	if os.Getenv("DEEPGRAM_API_KEY") == "" {
		t.Skip("DEEPGRAM_API_KEY not set")
	}
}

func TestTranscribeFiltersUpload(t *testing.T) {
	in := writeWAV(t, "tone.wav", 2500, 1)
	r := runEarshot(t, fakeEnv, "transcribe", in)

	if got := strings.TrimSpace(r.stdout); got != "integration words" {
		t.Errorf("stdout = %q", got)
	}
	processed := filepath.Join(filepath.Dir(in), "processed_tone.wav")
	if _, err := os.Stat(processed); err != nil {
		t.Errorf("processed file missing: %v", err)
	}
	if !strings.Contains(readLog(t, r.logDir, "transcribe_log.txt"), "integration words") {
		t.Error("transcribe_log.txt should contain the transcript")
	}
	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "run_start", "run_stage", "run_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("expected %s in diagnostics", want)
		}
	}
}

func TestTranscribeRawSkipsFilter(t *testing.T) {
	in := writeWAV(t, "raw.wav", 440, 0.5)
	r := runEarshot(t, fakeEnv, "transcribe", "--raw", in)

	if strings.TrimSpace(r.stdout) != "integration words" {
		t.Errorf("stdout = %q", r.stdout)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(in), "processed_raw.wav")); !os.IsNotExist(err) {
		t.Error("--raw must not write a processed file")
	}
}

func TestConfigShowRedactsKeys(t *testing.T) {
	r := runEarshot(t, []string{"OPENAI_API_KEY=sk-integration-4242"}, "config", "show")
	if strings.Contains(r.stdout, "sk-integration") {
		t.Error("config show leaked an API key")
	}
	if !strings.Contains(r.stdout, "****4242") {
		t.Error("expected a redacted key")
	}
}

func TestGroqSilence(t *testing.T) {
	requireGroqKey(t)
	in := writeWAV(t, "silence.wav", 0, 1)
	r := runEarshot(t, []string{"EARSHOT_TRANSCRIPTION_PROVIDER=groq"}, "transcribe", "--raw", in)
	if !strings.Contains(readLog(t, r.logDir, "diagnostics_log.txt"), "transcription") {
		t.Error("expected transcription metrics in diagnostics")
	}
}

func TestDeepgramTranscribe(t *testing.T) {
	requireDeepgramKey(t)
	in := writeWAV(t, "tone.wav", 1000, 1)
	r := runEarshot(t, []string{"EARSHOT_TRANSCRIPTION_PROVIDER=deepgram"}, "transcribe", "--raw", in)
	if !strings.Contains(readLog(t, r.logDir, "diagnostics_log.txt"), "transcription") {
		t.Error("expected transcription metrics in diagnostics")
	}
}

func TestCopyToClipboard(t *testing.T) {
	sentinel := fmt.Sprintf("earshot-test-sentinel-%d", time.Now().UnixNano())
	if err := clipboard.Copy(sentinel); err != nil {
		t.Skip("clipboard not available")
	}

	in := writeWAV(t, "copy.wav", 2500, 0.5)
	_ = runEarshot(t, fakeEnv, "transcribe", "--raw", "--copy", in)

	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != "integration words" {
		t.Errorf("clipboard = %q, want the transcript", strings.TrimSpace(clip))
	}
}
