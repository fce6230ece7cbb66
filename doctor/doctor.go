// Package doctor runs the end-to-end diagnostics behind "earshot doctor".
package doctor

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"earshot/audio"
	"earshot/clipboard"
	"earshot/config"
	"earshot/transcriber"
)

type Options struct {
	Open   audio.Opener
	Config *config.Config
	LogDir string
	Device *audio.DeviceInfo

	// Transcribe sends the test clip to the configured provider.
	Transcribe bool

	// Sample is the length of the microphone test capture.
	Sample time.Duration
	Out    io.Writer
}

type status int

const (
	pass status = iota
	warn
	fail
	skip
)

func (s status) String() string {
	switch s {
	case pass:
		return "PASS"
	case warn:
		return "WARN"
	case skip:
		return "SKIP"
	}
	return "FAIL"
}

type check struct {
	name string
	fn   func(*run) (status, string)
}

// run carries what earlier checks produced to later ones.
type run struct {
	opts     Options
	captured *audio.Buffer
	filtered *audio.Buffer
}

var checks = []check{
	{"Log directory", checkLogDir},
	{"Configuration", checkConfig},
	{"Audio devices", checkDevices},
	{"Microphone", checkMicrophone},
	{"High-pass filter", checkFilter},
	{"Transcription", checkTranscription},
	{"Clipboard", checkClipboard},
}

// Main is Run plus the terminal handling the CLI needs.
func Main(opts Options) int {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	release := guardTerminal(out)
	defer release()
	return Run(opts)
}

// Run executes every check and returns an exit code (0 when nothing failed).
func Run(opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Sample <= 0 {
		opts.Sample = time.Second
	}
	out := opts.Out

	fmt.Fprintln(out, "earshot doctor - system diagnostics")
	fmt.Fprintln(out, "===================================")

	r := &run{opts: opts}
	failed := 0
	for i, c := range checks {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(checks), c.name)
		st, detail := c.fn(r)
		fmt.Fprintf(out, "  %s: %s\n", st, detail)
		if st == fail {
			failed++
		}
	}

	fmt.Fprintln(out)
	if failed == 0 {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintf(out, "%d check(s) failed. See details above.\n", failed)
	return 1
}

func checkLogDir(r *run) (status, string) {
	dir := r.opts.LogDir
	if dir == "" {
		return skip, "no log directory configured"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail, fmt.Sprintf("cannot create %s: %v", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fail, fmt.Sprintf("%s is not writable: %v", dir, err)
	}
	f.Close()
	os.Remove(f.Name())
	return pass, dir
}

func checkConfig(r *run) (status, string) {
	c := r.opts.Config
	if c == nil {
		return fail, "no configuration loaded"
	}
	if err := c.Validate(); err != nil {
		return fail, err.Error()
	}
	src := c.Source
	if src == "" {
		src = "built-in defaults"
	}
	return pass, fmt.Sprintf("%s (%d Hz, %d ch, chunk %d, cutoff %g Hz)",
		src, c.Recording.SampleRate, c.Recording.Channels, c.Recording.ChunkSize, c.Filter.CutoffHz)
}

func checkDevices(r *run) (status, string) {
	if r.opts.Open == nil {
		return fail, "no audio backend"
	}
	ctx, err := r.opts.Open()
	if err != nil {
		return fail, fmt.Sprintf("cannot connect to audio: %v", err)
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		return fail, fmt.Sprintf("cannot list devices: %v", err)
	}
	if len(devices) == 0 {
		return warn, "no capture devices listed, using the system default"
	}
	var bt int
	for _, d := range devices {
		if audio.IsBluetooth(d.Name) {
			bt++
		}
	}
	detail := fmt.Sprintf("%d capture device(s)", len(devices))
	if bt > 0 {
		detail += fmt.Sprintf(", %d bluetooth", bt)
	}
	return pass, detail
}

func checkMicrophone(r *run) (status, string) {
	if r.opts.Open == nil || r.opts.Config == nil {
		return skip, "audio backend or configuration missing"
	}
	cfg := r.opts.Config.Capture()
	cfg.Duration = r.opts.Sample

	rec := audio.NewRecorder(r.opts.Open, r.opts.Device)
	buf, err := rec.Capture(cfg)
	if err != nil {
		return fail, err.Error()
	}
	r.captured = buf

	level := peakLevel(buf)
	detail := fmt.Sprintf("captured %s (%d frames), peak %.1f dBFS", buf.Duration(), buf.Frames(), dbfs(level))
	if level < 0.001 {
		return warn, detail + ", input looks silent"
	}
	return pass, detail
}

func peakLevel(buf *audio.Buffer) float64 {
	var level float64
	for _, p := range buf.Peaks(1) {
		level = math.Max(math.Abs(p.Min), math.Abs(p.Max))
	}
	return level
}

func dbfs(level float64) float64 {
	if level <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level)
}

func checkFilter(r *run) (status, string) {
	if r.captured == nil {
		return skip, "no captured audio"
	}
	hp := r.opts.Config.HighPass()
	filtered, err := hp.Apply(r.captured)
	if err != nil {
		return fail, err.Error()
	}
	r.filtered = filtered
	return pass, fmt.Sprintf("%g Hz high-pass applied, peak %.1f dBFS", hp.CutoffHz, dbfs(peakLevel(filtered)))
}

func checkTranscription(r *run) (status, string) {
	if !r.opts.Transcribe {
		return skip, "run with --transcribe to call the provider"
	}
	if r.filtered == nil {
		return skip, "no filtered audio"
	}
	client, err := r.opts.Config.NewClient()
	if err != nil {
		return fail, err.Error()
	}
	out := client.Transcribe(context.Background(), r.filtered)
	detail := fmt.Sprintf("%s via %s in %s", out.Display(), client.Recognizer().Name(), out.Elapsed.Round(time.Millisecond))
	if out.Kind == transcriber.OutcomeServiceError {
		return fail, detail
	}
	return pass, detail
}

func checkClipboard(_ *run) (status, string) {
	if !clipboard.Available() {
		return warn, clipboard.ErrUnavailable.Error()
	}
	return pass, "copy transcript available"
}
