package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"earshot/app"
	"earshot/audio"
	"earshot/config"
	"earshot/log"
	"earshot/playback"
	"earshot/transcriber"
)

const waveformHeight = 8

type eventMsg app.Event
type playDoneMsg struct{ path string }
type tickMsg time.Time

type tuiModel struct {
	ctrl     *app.Controller
	player   *playback.Player
	playDone chan string
	copyFn   func(string) error

	settings app.Settings
	focus    app.Field
	state    app.State

	notice    string
	noticeErr bool
	playing   string
	runs      int
	frame     int

	width, height int
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	focusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	busyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noSpeechStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	waveStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func settingsFromConfig(c *config.Config) app.Settings {
	return app.Settings{
		Filename:        c.Recording.Filename,
		DurationSeconds: int(c.Recording.DurationSeconds + 0.5),
		SampleRate:      c.Recording.SampleRate,
		ChunkSize:       c.Recording.ChunkSize,
		Channels:        c.Recording.Channels,
	}.Clamped()
}

func newTUIModel(ctrl *app.Controller, player *playback.Player, settings app.Settings, copyFn func(string) error) tuiModel {
	playDone := make(chan string, 1)
	player.OnFinish = func(path string) {
		select {
		case playDone <- path:
		default:
		}
	}
	return tuiModel{
		ctrl:     ctrl,
		player:   player,
		playDone: playDone,
		copyFn:   copyFn,
		settings: settings,
		state:    ctrl.State(),
	}
}

func newTUICmd(a *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, a)
		},
	}
}

func runTUI(_ *cobra.Command, a *appState) error {
	p, _, err := a.newPipeline("tui")
	if err != nil {
		return err
	}
	player := a.newPlayer()
	m := newTUIModel(app.NewController(p), player, settingsFromConfig(a.cfg), a.copyText)

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	player.Stop()
	if fm, ok := final.(tuiModel); ok {
		log.SessionEnd(fm.runs)
	}
	return err
}

func waitForEvent(ch <-chan app.Event) tea.Cmd {
	return func() tea.Msg { return eventMsg(<-ch) }
}

func waitForPlayDone(ch <-chan string) tea.Cmd {
	return func() tea.Msg { return playDoneMsg{path: <-ch} }
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.ctrl.Events()), waitForPlayDone(m.playDone), tuiTick())
}

func (m *tuiModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case eventMsg:
		ev := app.Event(msg)
		m.state = m.ctrl.Apply(ev)
		if ev.Kind != app.EventStage && ev.RunID == m.state.RunID {
			m.runs++
		}
		return m, waitForEvent(m.ctrl.Events())

	case playDoneMsg:
		if m.playing == msg.path {
			m.playing = ""
		}
		return m, waitForPlayDone(m.playDone)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.player.Stop()
		return m, tea.Quit
	case "tab", "down":
		m.focus = m.focus.Next(1)
	case "shift+tab", "up":
		m.focus = m.focus.Next(-1)
	case "right":
		m.settings.Adjust(m.focus, 1)
	case "left":
		m.settings.Adjust(m.focus, -1)
	case "backspace":
		if m.focus == app.FieldFilename {
			r := []rune(m.settings.Filename)
			if len(r) > 0 {
				m.settings.Filename = string(r[:len(r)-1])
			}
		}
	case "ctrl+r":
		m.record()
	case "ctrl+p":
		m.play(m.settings.Filename)
	case "ctrl+x":
		m.player.Stop()
		m.playing = ""
		m.setNotice("Playback stopped", false)
	case "ctrl+o":
		m.upload(m.settings.Filename)
	case "ctrl+y":
		m.copyTranscript()
	default:
		if msg.Type == tea.KeyRunes && m.focus == app.FieldFilename {
			m.settings.Filename += string(msg.Runes)
		}
	}
	return m, nil
}

func (m *tuiModel) record() {
	if err := m.settings.Validate(); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	if _, err := m.ctrl.Start(m.settings.Recording()); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.state = m.ctrl.State()
	m.setNotice("", false)
}

func (m *tuiModel) play(path string) bool {
	path = strings.TrimSpace(path)
	if err := m.player.Play(path); err != nil {
		if errors.Is(err, playback.ErrNotFound) {
			m.setNotice("File not found: "+path, true)
		} else {
			m.setNotice(app.Describe(err), true)
		}
		m.playing = ""
		return false
	}
	m.playing = path
	m.setNotice("", false)
	return true
}

// upload plays an existing recording and runs it through filter and
// transcription.
func (m *tuiModel) upload(path string) {
	if m.state.Phase.Busy() {
		m.setNotice(app.ErrBusy.Error(), true)
		return
	}
	if !m.play(path) {
		return
	}
	if _, err := m.ctrl.StartFile(strings.TrimSpace(path)); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.state = m.ctrl.State()
}

func (m *tuiModel) copyTranscript() {
	if m.state.Phase != app.PhaseDone || m.state.Outcome.Kind != transcriber.OutcomeSuccess {
		m.setNotice("No transcript to copy", true)
		return
	}
	if err := m.copyFn(m.state.Outcome.Text); err != nil {
		m.setNotice("Copy failed: "+err.Error(), true)
		return
	}
	m.setNotice("Copied transcript to clipboard", false)
}

func (m tuiModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render("● earshot") + statusStyle.Render("  "+version) + "\n\n")

	for f := app.FieldFilename; f <= app.FieldChannels; f++ {
		label := fmt.Sprintf("%-12s", f.String())
		value := m.settings.Format(f)
		if f == m.focus {
			b.WriteString(focusStyle.Render("› "+label) + " " + valueStyle.Render(value))
			if _, ok := f.Range(); ok {
				b.WriteString(helpStyle.Render("  ←/→"))
			}
		} else {
			b.WriteString(labelStyle.Render("  "+label) + " " + valueStyle.Render(value))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.statusLine() + "\n")
	if m.playing != "" {
		b.WriteString(okStyle.Render("▶ playing "+m.playing) + "\n")
	}
	if m.notice != "" {
		style := okStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.notice) + "\n")
	}
	b.WriteString("\n")

	if m.state.Phase == app.PhaseDone && m.state.Filtered != nil {
		for _, line := range renderWaveform(m.state.Filtered.Peaks(max(width-2, 10)), waveformHeight) {
			b.WriteString(waveStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if text := m.state.Transcript(); text != "" {
		style := textStyle
		switch {
		case m.state.Phase == app.PhaseFailed, m.state.Outcome.Kind == transcriber.OutcomeServiceError:
			style = errorStyle
		case m.state.Outcome.Kind == transcriber.OutcomeNoSpeech:
			style = noSpeechStyle
		}
		for _, line := range wrapText(text, max(width-2, 10)) {
			b.WriteString(style.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(helpKeyStyle.Render("ctrl+r") + helpStyle.Render(" record  ") +
		helpKeyStyle.Render("ctrl+p") + helpStyle.Render(" play  ") +
		helpKeyStyle.Render("ctrl+x") + helpStyle.Render(" stop  ") +
		helpKeyStyle.Render("ctrl+o") + helpStyle.Render(" upload  ") +
		helpKeyStyle.Render("ctrl+y") + helpStyle.Render(" copy  ") +
		helpKeyStyle.Render("esc") + helpStyle.Render(" quit"))
	return b.String()
}

func (m tuiModel) statusLine() string {
	st := m.state
	if !st.Phase.Busy() {
		return statusStyle.Render("○ " + st.Status())
	}
	elapsed := time.Since(st.Started).Seconds()
	dots := strings.Repeat(".", m.frame%4)
	return busyStyle.Render(fmt.Sprintf("● %s %.1fs%s", strings.TrimSuffix(st.Status(), "..."), elapsed, dots))
}

// renderWaveform draws min/max peaks as height rows of block characters,
// +1.0 at the top and -1.0 at the bottom.
func renderWaveform(peaks []audio.Peak, height int) []string {
	if len(peaks) == 0 || height <= 0 {
		return nil
	}
	rows := make([]string, height)
	line := make([]rune, len(peaks))
	for r := 0; r < height; r++ {
		top := 1 - 2*float64(r)/float64(height)
		bottom := 1 - 2*float64(r+1)/float64(height)
		for i, p := range peaks {
			if p.Max >= bottom && p.Min <= top {
				line[i] = '█'
			} else {
				line[i] = ' '
			}
		}
		rows[r] = strings.TrimRight(string(line), " ")
	}
	return rows
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	rs := []rune(text)
	for len(rs) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if rs[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(rs[:splitAt]))
		rs = []rune(strings.TrimLeft(string(rs[splitAt:]), " "))
	}
	if len(rs) > 0 {
		lines = append(lines, string(rs))
	}
	return lines
}
