package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"earshot/app"
	"earshot/audio"
	"earshot/config"
	"earshot/doctor"
	"earshot/log"
	"earshot/pipeline"
	"earshot/shutdown"
	"earshot/transcriber"
	"earshot/wav"
)

var errChecksFailed = errors.New("some checks failed")

type captureFlags struct {
	output    string
	duration  time.Duration
	rate      int
	chunk     int
	channels  int
	cutoff    float64
	overwrite string
}

func bindCaptureFlags(cmd *cobra.Command, f *captureFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "raw recording path (default from config: recorded_audio.wav)")
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 0, "recording length, e.g. 5s")
	cmd.Flags().IntVar(&f.rate, "rate", 0, "sample rate in Hz")
	cmd.Flags().IntVar(&f.chunk, "chunk", 0, "frames per read")
	cmd.Flags().IntVar(&f.channels, "channels", 0, "1 (mono) or 2 (stereo)")
	cmd.Flags().Float64Var(&f.cutoff, "cutoff", 0, "high-pass cutoff in Hz")
	cmd.Flags().StringVar(&f.overwrite, "overwrite", "", "existing files: overwrite or fail")
}

// apply copies the flags the user set onto cfg and revalidates it.
func (f *captureFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Recording.Filename = f.output
	}
	if changed("duration") {
		cfg.Recording.DurationSeconds = f.duration.Seconds()
	}
	if changed("rate") {
		cfg.Recording.SampleRate = f.rate
	}
	if changed("chunk") {
		cfg.Recording.ChunkSize = f.chunk
	}
	if changed("channels") {
		cfg.Recording.Channels = f.channels
	}
	if changed("cutoff") {
		cfg.Filter.CutoffHz = f.cutoff
	}
	if changed("overwrite") {
		cfg.Recording.Overwrite = f.overwrite
	}
	return cfg.Validate()
}

type outputFlags struct {
	provider string
	format   string
	copy     bool
}

func bindOutputFlags(cmd *cobra.Command, f *outputFlags) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "transcription provider: auto, google, openai, groq, deepgram or fake")
	cmd.Flags().StringVar(&f.format, "format", "", "upload format: wav or flac")
	cmd.Flags().BoolVar(&f.copy, "copy", false, "copy the transcript to the clipboard")
}

func (f *outputFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("provider") {
		cfg.Transcription.Provider = f.provider
	}
	if cmd.Flags().Changed("format") {
		cfg.Transcription.Format = f.format
	}
	return cfg.Validate()
}

// runToCompletion drives ctrl from the CLI and prints stage changes.
func runToCompletion(cmd *cobra.Command, a *appState, ctrl *app.Controller, start func() (string, error), bar *chunkBar) (app.State, error) {
	stderr := cmd.ErrOrStderr()
	stopSpinner := func() {}
	last := app.PhaseIdle
	ctrl.Subscribe(func(st app.State) {
		if st.Phase == last {
			return
		}
		last = st.Phase
		switch st.Phase {
		case app.PhaseRecording:
			if bar == nil {
				fmt.Fprintf(stderr, "Recording %s...\n", a.cfg.Duration())
			}
		case app.PhaseFiltering:
			bar.Finish()
			fmt.Fprintf(stderr, "Filtering (%g Hz high-pass)...\n", a.cfg.Filter.CutoffHz)
		case app.PhaseTranscribing:
			stopSpinner = startSpinner(a.progressEnabled(), stderr, "Transcribing")
		default:
			bar.Finish()
			stopSpinner()
		}
	})

	if _, err := start(); err != nil {
		return app.State{}, err
	}
	st := ctrl.Wait()
	bar.Finish()
	stopSpinner()
	return st, nil
}

// report prints a finished run. Service errors become a non-zero exit.
func (a *appState) report(cmd *cobra.Command, st app.State, copy bool) error {
	if st.Phase == app.PhaseFailed {
		return errors.New(app.Describe(st.Err))
	}
	stderr := cmd.ErrOrStderr()
	if st.Mode == app.ModeRecord {
		fmt.Fprintf(stderr, "Saved %s\n", st.Path)
	}
	fmt.Fprintf(stderr, "Saved %s\n", st.ProcessedPath)
	return a.printOutcome(cmd, st.Outcome, copy)
}

func (a *appState) printOutcome(cmd *cobra.Command, out transcriber.Outcome, copy bool) error {
	if out.Kind == transcriber.OutcomeServiceError {
		return errors.New(out.Display())
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Display())
	if copy && out.Kind == transcriber.OutcomeSuccess {
		if err := a.copyText(out.Text); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: transcript not copied: %v\n", err)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard")
		}
	}
	return nil
}

func newRecordCmd(a *appState) *cobra.Command {
	var cf captureFlags
	var of outputFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a clip, filter it and transcribe it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cf.apply(cmd, a.cfg); err != nil {
				return err
			}
			if err := of.apply(cmd, a.cfg); err != nil {
				return err
			}
			p, rec, err := a.newPipeline("record")
			if err != nil {
				return err
			}

			capture := a.cfg.Capture()
			bar := newChunkBar(a.progressEnabled(), cmd.ErrOrStderr(), "Recording", capture.Chunks())
			rec.OnChunk = bar.Set

			ctrl := app.NewController(p)
			st, err := runToCompletion(cmd, a, ctrl, func() (string, error) {
				return ctrl.Start(pipeline.Recording{Path: a.cfg.Recording.Filename, Capture: capture})
			}, bar)
			if err != nil {
				return err
			}
			log.SessionEnd(1)
			return a.report(cmd, st, of.copy)
		},
	}
	bindCaptureFlags(cmd, &cf)
	bindOutputFlags(cmd, &of)
	return cmd
}

func newTranscribeCmd(a *appState) *cobra.Command {
	var of outputFlags
	var raw bool
	var cutoff float64

	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Filter and transcribe an existing WAV recording",
		Long: "transcribe writes processed_<name> next to the input and sends the filtered audio\n" +
			"to the provider. With --raw the file is sent as is.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("cutoff") {
				a.cfg.Filter.CutoffHz = cutoff
			}
			if err := of.apply(cmd, a.cfg); err != nil {
				return err
			}
			path := args[0]

			if raw {
				client, err := a.newClient("transcribe")
				if err != nil {
					return err
				}
				stop := startSpinner(a.progressEnabled(), cmd.ErrOrStderr(), "Transcribing")
				out, err := client.TranscribeFile(contextOrBackground(cmd), path)
				stop()
				if err != nil {
					return errors.New(app.Describe(err))
				}
				return a.printOutcome(cmd, out, of.copy)
			}

			p, _, err := a.newPipeline("transcribe")
			if err != nil {
				return err
			}
			ctrl := app.NewController(p)
			st, err := runToCompletion(cmd, a, ctrl, func() (string, error) {
				return ctrl.StartFile(path)
			}, nil)
			if err != nil {
				return err
			}
			log.SessionEnd(1)
			return a.report(cmd, st, of.copy)
		},
	}
	bindOutputFlags(cmd, &of)
	cmd.Flags().BoolVar(&raw, "raw", false, "skip the high-pass filter")
	cmd.Flags().Float64Var(&cutoff, "cutoff", 0, "high-pass cutoff in Hz")
	return cmd
}

func newPlayCmd(a *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "play <file.wav>",
		Short: "Play a WAV file through the default output device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			buf, err := wav.ReadFile(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			player := a.newPlayer()
			finished := make(chan struct{})
			player.OnFinish = func(string) { close(finished) }
			if err := player.Play(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Playing %s (%s, %d Hz, %d ch), Ctrl+C to stop\n",
				path, buf.Duration().Round(10*time.Millisecond), buf.SampleRate, buf.Channels)

			sig := make(chan os.Signal, 1)
			shutdown.Notify(sig)
			defer shutdown.Stop(sig)
			select {
			case <-finished:
			case <-sig:
				player.Stop()
				fmt.Fprintln(cmd.ErrOrStderr(), "Stopped")
			}
			return nil
		},
	}
}

func newDevicesCmd(a *appState) *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := a.open()
			if err != nil {
				return fmt.Errorf("%w: open audio subsystem: %v", audio.ErrDevice, err)
			}
			defer ctx.Close()

			if pick {
				dev, err := audio.SelectDevice(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dev.Name)
				fmt.Fprintf(cmd.ErrOrStderr(), "Use --device %q or set recording.device in earshot.yaml\n", dev.Name)
				return nil
			}
			return listDevices(cmd.OutOrStdout(), ctx, a.cfg.Recording.Device)
		},
	}
	cmd.Flags().BoolVar(&pick, "pick", false, "choose a device interactively")
	return cmd
}

func listDevices(w io.Writer, ctx audio.Context, selected string) error {
	devices, err := ctx.Devices()
	if err != nil {
		return fmt.Errorf("%w: enumerating devices: %v", audio.ErrDevice, err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no capture devices found")
		return nil
	}
	for _, d := range devices {
		mark := " "
		if selected != "" && (d.Name == selected || d.ID == selected) {
			mark = "*"
		}
		suffix := ""
		if audio.IsBluetooth(d.Name) {
			suffix = " (bluetooth)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, d.Name, suffix)
	}
	return nil
}

func newDoctorCmd(a *appState) *cobra.Command {
	var transcribe bool
	var sample time.Duration

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check audio, filter, provider and clipboard setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := a.captureDevice()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v, using the default device\n", err)
			}
			code := doctor.Main(doctor.Options{
				Open:       a.open,
				Config:     a.cfg,
				LogDir:     log.Dir(),
				Device:     dev,
				Transcribe: transcribe,
				Sample:     sample,
				Out:        cmd.OutOrStdout(),
			})
			if code != 0 {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&transcribe, "transcribe", false, "send the test clip to the configured provider")
	cmd.Flags().DurationVar(&sample, "sample", time.Second, "microphone test length")
	return cmd
}

func newConfigCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML (keys redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			src := a.cfg.Source
			if src == "" {
				src = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", src)
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "paths",
		Short: "List where earshot.yaml is looked up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range config.SearchPaths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "earshot %s\n", version)
		},
	}
}

// contextOrBackground keeps commands usable when executed without
// ExecuteContext.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
