package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earshot/audio"
	"earshot/playback"
)

type cliHarness struct {
	dir    string
	fake   *audio.FakeContext
	copied []string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("EARSHOT_TRANSCRIPTION_PROVIDER", "fake")
	t.Setenv("EARSHOT_TRANSCRIPTION_FAKE_TEXT", "hello from the cli")

	fake := audio.NewFakeContext(testTone(4000, 8000), false)
	fake.AutoFinish = true
	fake.Devs = []audio.DeviceInfo{{ID: "hw:0", Name: "Built-in Microphone"}, {ID: "bt:1", Name: "AirPods Pro"}}
	return &cliHarness{dir: dir, fake: fake}
}

func (h *cliHarness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	a := newAppState()
	a.open = h.fake.Opener()
	a.copyFn = func(s string) error {
		h.copied = append(h.copied, s)
		return nil
	}

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(a)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args,
		"--logpath", filepath.Join(h.dir, "logs"),
		"--env-file", filepath.Join(h.dir, "missing.env"),
		"--no-progress",
	))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (h *cliHarness) record(t *testing.T, name string, extra ...string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	args := append([]string{"record", "-o", path, "-d", "200ms", "--rate", "8000", "--chunk", "512"}, extra...)
	stdout, stderr, err := h.run(t, args...)
	require.NoError(t, err, stderr)
	require.Equal(t, "hello from the cli\n", stdout)
	return path
}

func TestRecordCommand(t *testing.T) {
	h := newCLIHarness(t)

	path := h.record(t, "take.wav", "--copy")
	assert.FileExists(t, path)
	assert.FileExists(t, filepath.Join(h.dir, "processed_take.wav"))
	assert.Equal(t, []string{"hello from the cli"}, h.copied)
	assert.FileExists(t, filepath.Join(h.dir, "logs", "crash_log.txt"))
}

func TestRecordRejectsBadFlags(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run(t, "record", "--channels", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channels")

	_, _, err = h.run(t, "record", "--provider", "watson")
	require.Error(t, err)
}

func TestRecordFailIfExists(t *testing.T) {
	h := newCLIHarness(t)
	path := h.record(t, "take.wav")

	_, _, err := h.run(t, "record", "-o", path, "-d", "200ms", "--rate", "8000", "--overwrite", "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestTranscribeCommand(t *testing.T) {
	h := newCLIHarness(t)
	path := h.record(t, "take.wav")

	stdout, stderr, err := h.run(t, "transcribe", path, "--cutoff", "500")
	require.NoError(t, err)
	assert.Equal(t, "hello from the cli\n", stdout)
	assert.Contains(t, stderr, "processed_take.wav")
	assert.NotContains(t, stderr, "Saved "+path+"\n", "uploads do not rewrite the input")

	stdout, _, err = h.run(t, "transcribe", "--raw", path)
	require.NoError(t, err)
	assert.Equal(t, "hello from the cli\n", stdout)
}

func TestTranscribeMissingFile(t *testing.T) {
	h := newCLIHarness(t)

	_, _, err := h.run(t, "transcribe", filepath.Join(h.dir, "nope.wav"))
	require.Error(t, err)
	_, _, err = h.run(t, "transcribe", "--raw", filepath.Join(h.dir, "nope.wav"))
	require.Error(t, err)
}

func TestPlayCommand(t *testing.T) {
	h := newCLIHarness(t)
	path := h.record(t, "take.wav")

	_, stderr, err := h.run(t, "play", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Playing "+path)
	require.NotEmpty(t, h.fake.Playbacks())

	_, _, err = h.run(t, "play", filepath.Join(h.dir, "nope.wav"))
	require.True(t, errors.Is(err, playback.ErrNotFound), "got %v", err)
}

func TestDevicesCommand(t *testing.T) {
	h := newCLIHarness(t)

	stdout, _, err := h.run(t, "devices", "--device", "Built-in Microphone")
	require.NoError(t, err)
	assert.Equal(t, "* Built-in Microphone\n  AirPods Pro (bluetooth)\n", stdout)

	h.fake.Devs = nil
	stdout, _, err = h.run(t, "devices")
	require.NoError(t, err)
	assert.Equal(t, "no capture devices found\n", stdout)
}

func TestConfigShowCommand(t *testing.T) {
	h := newCLIHarness(t)
	t.Setenv("OPENAI_API_KEY", "sk-supersecret-9876")

	stdout, _, err := h.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# source: built-in defaults\n")
	assert.Contains(t, stdout, "provider: fake")
	assert.Contains(t, stdout, "****9876")
	assert.NotContains(t, stdout, "supersecret")

	cfgPath := filepath.Join(h.dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("recording:\n  sample_rate: 16000\n"), 0o644))
	stdout, _, err = h.run(t, "config", "show", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# source: "+cfgPath)
	assert.Contains(t, stdout, "sample_rate: 16000")
}

func TestVersionCommand(t *testing.T) {
	h := newCLIHarness(t)

	stdout, _, err := h.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "earshot dev\n", stdout)
}
