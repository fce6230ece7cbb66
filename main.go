package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"earshot/audio"
	"earshot/clipboard"
	"earshot/config"
	"earshot/log"
	"earshot/pipeline"
	"earshot/playback"
	"earshot/transcriber"
)

var version = "dev"

// fyne and Core Audio both expect to own the main thread.
func init() {
	runtime.LockOSThread()
}

type appState struct {
	logPath    string
	cfgFile    string
	envFile    string
	device     string
	noProgress bool

	cfg  *config.Config
	open audio.Opener

	copyFn func(string) error
}

func newAppState() *appState {
	return &appState{open: audio.NewContext}
}

func NewRootCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "earshot",
		Short:         "Record, high-pass filter and transcribe speech",
		Long:          "earshot records from a microphone, removes low-frequency rumble with a zero-phase\nhigh-pass filter and sends the result to a speech-to-text provider.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			log.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDefaultShell(cmd, a)
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./earshot.yaml or the user config dir)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file with provider API keys")
	pf.StringVar(&a.device, "device", "", "capture device name (see \"earshot devices\")")
	pf.BoolVar(&a.noProgress, "no-progress", false, "disable progress bars")

	cmd.AddCommand(newGUICmd(a))
	cmd.AddCommand(newTUICmd(a))
	cmd.AddCommand(newRecordCmd(a))
	cmd.AddCommand(newTranscribeCmd(a))
	cmd.AddCommand(newPlayCmd(a))
	cmd.AddCommand(newDevicesCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func (a *appState) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	if err := config.LoadEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.device != "" {
		cfg.Recording.Device = a.device
	}
	a.cfg = cfg

	logPath, err := log.ResolveDir(a.logPath)
	if err != nil {
		return fmt.Errorf("resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return nil
	}
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	return nil
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// captureDevice resolves the configured device name. nil means the system
// default.
func (a *appState) captureDevice() (*audio.DeviceInfo, error) {
	name := a.cfg.Recording.Device
	if name == "" {
		return nil, nil
	}
	ctx, err := a.open()
	if err != nil {
		return nil, fmt.Errorf("%w: open audio subsystem: %v", audio.ErrDevice, err)
	}
	defer ctx.Close()
	return audio.FindDevice(ctx, name)
}

func (a *appState) newClient(mode string) (*transcriber.Client, error) {
	client, err := a.cfg.NewClient()
	if err != nil {
		return nil, err
	}
	log.SessionStart(client.Recognizer().Name(), mode)
	return client, nil
}

func (a *appState) newPipeline(mode string) (*pipeline.Pipeline, *audio.Recorder, error) {
	client, err := a.newClient(mode)
	if err != nil {
		return nil, nil, err
	}
	dev, err := a.captureDevice()
	if err != nil {
		return nil, nil, err
	}
	rec := audio.NewRecorder(a.open, dev)
	return &pipeline.Pipeline{
		Recorder:  rec,
		Filter:    a.cfg.HighPass(),
		Client:    client,
		Overwrite: a.cfg.OverwritePolicy(),
	}, rec, nil
}

func (a *appState) newPlayer() *playback.Player {
	return playback.NewPlayer(a.open)
}

func (a *appState) copyText(text string) error {
	if a.copyFn != nil {
		return a.copyFn(text)
	}
	return clipboard.Copy(text)
}

func main() {
	a := newAppState()
	if err := NewRootCmd(a).Execute(); err != nil {
		log.Errorf("command failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
