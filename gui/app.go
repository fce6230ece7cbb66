//go:build gui

// Package gui is the fyne desktop front end: recording controls, playback,
// upload, a waveform of the filtered signal and the transcript.
package gui

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"earshot/app"
	"earshot/log"
	"earshot/playback"
	"earshot/transcriber"
)

type Options struct {
	Controller *app.Controller
	Player     *playback.Player
	Settings   app.Settings
	Copy       func(string) error
	Version    string
}

type window struct {
	opts     Options
	fyneApp  fyne.App
	win      fyne.Window
	stopCh   chan struct{}
	stopOnce sync.Once

	settings app.Settings
	state    app.State
	runs     int

	filename   *widget.Entry
	values     map[app.Field]*widget.Label
	sliders    map[app.Field]*widget.Slider
	recordBtn  *widget.Button
	playBtn    *widget.Button
	stopBtn    *widget.Button
	uploadBtn  *widget.Button
	copyBtn    *widget.Button
	status     *widget.Label
	playing    *widget.Label
	transcript *widget.Label
	wave       *WaveformWidget
}

// Run opens the main window and blocks until it is closed. It returns the
// number of runs that finished.
func Run(opts Options) (int, error) {
	if opts.Controller == nil || opts.Player == nil {
		return 0, errors.New("gui: controller and player are required")
	}
	w := &window{
		opts:     opts,
		stopCh:   make(chan struct{}),
		settings: opts.Settings.Clamped(),
		state:    opts.Controller.State(),
		values:   make(map[app.Field]*widget.Label),
		sliders:  make(map[app.Field]*widget.Slider),
	}

	w.fyneApp = fyneapp.NewWithID("io.earshot.gui")
	w.fyneApp.Settings().SetTheme(newRecorderTheme())
	w.win = w.fyneApp.NewWindow("earshot " + opts.Version)
	w.win.SetContent(w.build())
	w.win.Resize(fyne.NewSize(640, 560))
	w.win.SetOnClosed(w.stop)
	w.setupTray()
	w.setupShortcuts()

	opts.Controller.Subscribe(w.render)
	opts.Player.OnFinish = func(path string) {
		fyne.Do(func() { w.renderPlaying() })
	}
	w.render(w.state)

	go w.drainEvents()
	go w.tick()

	w.win.ShowAndRun()
	w.stop()
	return w.runs, nil
}

func (w *window) stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.opts.Player.Stop()
	})
}

// drainEvents applies worker events on the fyne goroutine so that every
// state change and subscriber callback happens there.
func (w *window) drainEvents() {
	events := w.opts.Controller.Events()
	for {
		select {
		case <-w.stopCh:
			return
		case ev := <-events:
			fyne.Do(func() {
				st := w.opts.Controller.Apply(ev)
				if ev.Kind != app.EventStage && ev.RunID == st.RunID {
					w.runs++
				}
			})
		}
	}
}

// tick refreshes the elapsed time in the status line while a run is busy.
func (w *window) tick() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			fyne.Do(func() {
				if w.state.Phase.Busy() {
					w.renderStatus()
				}
			})
		}
	}
}

func (w *window) build() fyne.CanvasObject {
	w.filename = widget.NewEntry()
	w.filename.SetText(w.settings.Filename)
	w.filename.SetPlaceHolder("recorded_audio.wav")
	w.filename.OnChanged = func(s string) { w.settings.Filename = s }

	form := widget.NewForm(widget.NewFormItem(app.FieldFilename.String(), w.filename))
	for f := app.FieldDuration; f <= app.FieldChannels; f++ {
		form.Append(f.String(), w.slider(f))
	}

	w.recordBtn = widget.NewButtonWithIcon("Record", theme.MediaRecordIcon(), w.onRecord)
	w.recordBtn.Importance = widget.DangerImportance
	w.playBtn = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), w.onPlay)
	w.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), w.onStop)
	w.uploadBtn = widget.NewButtonWithIcon("Upload", theme.UploadIcon(), w.onUpload)
	w.copyBtn = widget.NewButtonWithIcon("Copy", theme.ContentCopyIcon(), w.onCopy)
	buttons := container.NewGridWithColumns(5, w.recordBtn, w.playBtn, w.stopBtn, w.uploadBtn, w.copyBtn)

	w.status = widget.NewLabel("")
	w.status.TextStyle = fyne.TextStyle{Bold: true}
	w.playing = widget.NewLabel("")
	w.transcript = widget.NewLabel("")
	w.transcript.Wrapping = fyne.TextWrapWord
	w.wave = NewWaveformWidget()

	return container.NewBorder(
		container.NewVBox(form, buttons, container.NewHBox(w.status, w.playing)),
		nil, nil, nil,
		container.NewVSplit(w.wave, container.NewVScroll(w.transcript)),
	)
}

func (w *window) slider(f app.Field) fyne.CanvasObject {
	r, _ := f.Range()
	s := widget.NewSlider(float64(r.Min), float64(r.Max))
	s.Step = float64(r.Step)
	s.SetValue(float64(w.settings.Value(f)))

	value := widget.NewLabel(w.settings.Format(f))
	s.OnChanged = func(v float64) {
		w.settings.Set(f, int(v+0.5))
		value.SetText(w.settings.Format(f))
	}
	w.sliders[f] = s
	w.values[f] = value
	return container.NewBorder(nil, nil, nil, value, s)
}

func (w *window) setupTray() {
	desk, ok := w.fyneApp.(desktop.App)
	if !ok {
		return
	}
	menu := fyne.NewMenu("earshot",
		fyne.NewMenuItem("Show", func() { w.win.Show() }),
		fyne.NewMenuItem("Record", w.onRecord),
	)
	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(theme.MediaRecordIcon())
}

func (w *window) setupShortcuts() {
	c := w.win.Canvas()
	bind := func(key fyne.KeyName, fn func()) {
		c.AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { fn() })
	}
	bind(fyne.KeyR, w.onRecord)
	bind(fyne.KeyP, w.onPlay)
	bind(fyne.KeyO, w.onUpload)
}

func (w *window) onRecord() {
	if err := w.settings.Validate(); err != nil {
		dialog.ShowError(err, w.win)
		return
	}
	if _, err := w.opts.Controller.Start(w.settings.Recording()); err != nil {
		dialog.ShowError(err, w.win)
		return
	}
	w.render(w.opts.Controller.State())
}

func (w *window) onPlay() {
	w.play(strings.TrimSpace(w.settings.Filename))
}

func (w *window) play(path string) bool {
	if err := w.opts.Player.Play(path); err != nil {
		if errors.Is(err, playback.ErrNotFound) {
			dialog.ShowError(fmt.Errorf("file not found: %s", path), w.win)
		} else {
			dialog.ShowError(errors.New(app.Describe(err)), w.win)
		}
		w.renderPlaying()
		return false
	}
	w.renderPlaying()
	return true
}

func (w *window) onStop() {
	w.opts.Player.Stop()
	w.renderPlaying()
}

func (w *window) onUpload() {
	if w.state.Phase.Busy() {
		dialog.ShowError(app.ErrBusy, w.win)
		return
	}
	open := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, w.win)
			return
		}
		if r == nil {
			return
		}
		path := r.URI().Path()
		r.Close()
		w.upload(path)
	}, w.win)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".wav"}))
	open.Show()
}

func (w *window) upload(path string) {
	log.Infof("gui upload: %s", path)
	if !w.play(path) {
		return
	}
	if _, err := w.opts.Controller.StartFile(path); err != nil {
		dialog.ShowError(err, w.win)
		return
	}
	w.render(w.opts.Controller.State())
}

func (w *window) onCopy() {
	st := w.state
	if st.Phase != app.PhaseDone || st.Outcome.Kind != transcriber.OutcomeSuccess {
		return
	}
	if err := w.opts.Copy(st.Outcome.Text); err != nil {
		dialog.ShowError(fmt.Errorf("copy failed: %w", err), w.win)
		return
	}
	w.status.SetText("Copied transcript to clipboard")
}

// render must run on the fyne goroutine.
func (w *window) render(st app.State) {
	w.state = st
	busy := st.Phase.Busy()
	for _, b := range []*widget.Button{w.recordBtn, w.uploadBtn} {
		if busy {
			b.Disable()
		} else {
			b.Enable()
		}
	}
	if st.Phase == app.PhaseDone && st.Outcome.Kind == transcriber.OutcomeSuccess {
		w.copyBtn.Enable()
	} else {
		w.copyBtn.Disable()
	}

	w.renderStatus()
	w.transcript.SetText(st.Transcript())
	switch {
	case st.Phase == app.PhaseDone:
		w.wave.SetBuffer(st.Filtered)
	case busy:
		w.wave.SetBuffer(nil)
	}
}

func (w *window) renderStatus() {
	st := w.state
	if st.Phase.Busy() {
		w.status.SetText(fmt.Sprintf("%s %.1fs", strings.TrimSuffix(st.Status(), "..."), time.Since(st.Started).Seconds()))
		return
	}
	w.status.SetText(st.Status())
}

func (w *window) renderPlaying() {
	if path, ok := w.opts.Player.Active(); ok {
		w.playing.SetText("▶ " + path)
		return
	}
	w.playing.SetText("")
}
