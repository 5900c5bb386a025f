package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/whisp/internal/recorder"
	"github.com/balkashynov/whisp/internal/visual"
)

// Session is the part of the recorder controller the screen drives.
type Session interface {
	Start(ctx context.Context, opts recorder.StartOptions) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) (*recorder.Result, error)
	Save(ctx context.Context) error
	Discard(ctx context.Context) error
	Detach(ctx context.Context) error
	State() recorder.State
	Elapsed() int
	SystemAudioActive() bool
	GuardExit() bool
	OnVisible()
	Events() <-chan recorder.Event
}

type recorderKeys struct {
	Pause   key.Binding
	Stop    key.Binding
	Retry   key.Binding
	Discard key.Binding
	Quit    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

func (k recorderKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Stop, k.Retry, k.Discard, k.Quit}
}

func (k recorderKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newRecorderKeys() recorderKeys {
	return recorderKeys{
		Pause:   key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause/resume")),
		Stop:    key.NewBinding(key.WithKeys("s", "enter"), key.WithHelp("s", "stop & save")),
		Retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry save")),
		Discard: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "discard and quit")),
		Cancel:  key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "keep recording")),
	}
}

// RecorderOptions configures the recorder screen.
type RecorderOptions struct {
	Start recorder.StartOptions
	// Feed drives the waveform; its period sets the redraw rate.
	Feed  *visual.Feed
	Scale float64
	// Resume shows a recovered recording instead of starting a new one.
	Resume bool
}

// RecorderModel is the live recording screen.
type RecorderModel struct {
	session Session
	opts    RecorderOptions
	keys    recorderKeys
	help    help.Model
	spinner spinner.Model
	shimmer *Shimmer

	width  int
	height int

	state      recorder.State
	elapsed    int
	systemOn   bool
	warning    string
	err        error
	busy       string // non-empty while a stop or save is in flight
	confirming bool

	savedNoteID uint
	discarded   bool
	detached    bool
	quitting    bool
}

type (
	startedMsg   struct{ err error }
	eventMsg     recorder.Event
	frameMsg     struct{}
	stoppedMsg   struct{ err error }
	savedMsg     struct{ err error }
	discardedMsg struct{ err error }
	detachedMsg  struct{ err error }
)

// NewRecorderModel builds the screen around a session.
func NewRecorderModel(session Session, opts RecorderOptions) RecorderModel {
	if opts.Scale <= 0 {
		opts.Scale = 300
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright))

	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorHelpText))

	return RecorderModel{
		session: session,
		opts:    opts,
		keys:    newRecorderKeys(),
		help:    h,
		spinner: sp,
		shimmer: NewShimmer(),
		state:   session.State(),
		elapsed: session.Elapsed(),
	}
}

func (m RecorderModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent(), m.frame()}
	if !m.opts.Resume {
		cmds = append(cmds, m.start())
	}
	return tea.Batch(cmds...)
}

func (m RecorderModel) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.session.Start(context.Background(), m.opts.Start)}
	}
}

func (m RecorderModel) waitForEvent() tea.Cmd {
	events := m.session.Events()
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func (m RecorderModel) frame() tea.Cmd {
	pause := 32 * time.Millisecond
	if m.opts.Feed != nil {
		pause = m.opts.Feed.Period()
	}
	return tea.Tick(pause, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m RecorderModel) stop() tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.Stop(context.Background())
		return stoppedMsg{err: err}
	}
}

func (m RecorderModel) save() tea.Cmd {
	return func() tea.Msg {
		return savedMsg{err: m.session.Save(context.Background())}
	}
}

func (m RecorderModel) discard() tea.Cmd {
	return func() tea.Msg {
		return discardedMsg{err: m.session.Discard(context.Background())}
	}
}

// detach leaves the recording in the chunk store for `whisp recover`.
func (m RecorderModel) detach() tea.Cmd {
	return func() tea.Msg {
		return detachedMsg{err: m.session.Detach(context.Background())}
	}
}

// Update handles messages
func (m RecorderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.FocusMsg:
		m.session.OnVisible()
		return m, nil

	case frameMsg:
		if m.opts.Feed != nil {
			m.opts.Feed.Next()
		}
		if m.quitting {
			return m, nil
		}
		return m, m.frame()

	case shimmerTickMsg:
		return m, m.shimmer.Advance(len(m.busy))

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startedMsg:
		m.state = m.session.State()
		if msg.err != nil && !errors.Is(msg.err, recorder.ErrSuperseded) {
			m.err = msg.err
		}
		return m, nil

	case eventMsg:
		m.applyEvent(recorder.Event(msg))
		if recorder.Event(msg).Kind == recorder.EventSaved {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.waitForEvent()

	case stoppedMsg:
		m.state = m.session.State()
		m.finishBusy()
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case savedMsg:
		m.state = m.session.State()
		m.finishBusy()
		m.err = msg.err
		return m, nil

	case discardedMsg:
		m.finishBusy()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.discarded = true
		m.quitting = true
		return m, tea.Quit

	case detachedMsg:
		m.err = msg.err
		m.detached = msg.err == nil
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *RecorderModel) applyEvent(e recorder.Event) {
	switch e.Kind {
	case recorder.EventTick:
		m.elapsed = e.Elapsed
	case recorder.EventStateChanged, recorder.EventRecovered:
		m.state = e.State
		m.elapsed = e.Elapsed
		m.systemOn = m.session.SystemAudioActive()
	case recorder.EventWarning:
		if e.Err != nil {
			m.warning = e.Err.Error()
		}
		m.systemOn = m.session.SystemAudioActive()
	case recorder.EventError:
		m.err = e.Err
		m.state = m.session.State()
	case recorder.EventSaved:
		m.savedNoteID = e.NoteID
		m.state = e.State
	}
}

func (m *RecorderModel) beginBusy(label string) tea.Cmd {
	m.busy = label
	m.err = nil
	return tea.Batch(m.spinner.Tick, m.shimmer.Start())
}

func (m *RecorderModel) finishBusy() {
	m.busy = ""
	m.shimmer.Stop()
}

func (m RecorderModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	if m.confirming {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirming = false
			m.quitting = true
			return m, m.detach()
		case key.Matches(msg, m.keys.Cancel):
			m.confirming = false
		}
		return m, nil
	}

	if m.busy != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.session.GuardExit() {
			m.confirming = true
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Pause):
		var err error
		switch m.session.State() {
		case recorder.StateRecording:
			err = m.session.Pause(ctx)
		case recorder.StatePaused:
			err = m.session.Resume(ctx)
		}
		m.state = m.session.State()
		if err != nil {
			m.err = err
		}
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		switch m.session.State() {
		case recorder.StateRecording, recorder.StatePaused:
			return m, tea.Batch(m.beginBusy("Saving recording"), m.stop())
		case recorder.StateStopped, recorder.StateRecoveredStopped:
			return m, tea.Batch(m.beginBusy("Saving recording"), m.save())
		}

	case key.Matches(msg, m.keys.Retry):
		if m.session.State().HasResult() {
			return m, tea.Batch(m.beginBusy("Retrying save"), m.save())
		}

	case key.Matches(msg, m.keys.Discard):
		if m.session.State().HasResult() {
			return m, tea.Batch(m.beginBusy("Discarding"), m.discard())
		}
	}
	return m, nil
}

// View renders the recorder screen
func (m RecorderModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var sections []string
	center := lipgloss.NewStyle().Width(m.width).Align(lipgloss.Center)

	sections = append(sections, center.Render(m.renderBadge()))
	sections = append(sections, center.Render(renderBigClock(m.elapsed, m.clockColor())))

	if m.opts.Feed != nil {
		cols := max(min(m.width-4, 96), 1)
		wave := RenderWaveform(padLevels(m.opts.Feed.Samples(), cols), m.opts.Scale, 4, m.state != recorder.StateRecording)
		sections = append(sections, center.Render(wave))
	}

	if m.systemOn {
		sections = append(sections, center.Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).Render("microphone + system audio")))
	}
	if m.warning != "" {
		sections = append(sections, center.Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning)).Render("⚠ "+m.warning)))
	}
	if m.err != nil {
		sections = append(sections, center.Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Bold(true).Render("✗ "+m.err.Error())))
	}
	if m.busy != "" {
		sections = append(sections, center.Render(m.spinner.View()+" "+m.shimmer.Render(m.busy)))
	}
	if m.confirming {
		sections = append(sections, center.Render(m.renderConfirm()))
	}

	content := strings.Join(sections, "\n\n")
	body := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-2, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, body, center.Render(m.help.View(m.keys)))
}

func (m RecorderModel) renderBadge() string {
	label, color := strings.ToUpper(string(m.state)), ColorSecondaryText
	switch m.state {
	case recorder.StateRecording:
		label, color = "● REC", ColorRecording
	case recorder.StatePaused:
		label, color = "❚❚ PAUSED", ColorWarning
	case recorder.StateStopped:
		label, color = "■ STOPPED", ColorAccentBright
	case recorder.StateRecoveredStopped:
		label, color = "↺ RECOVERED", ColorAccentBright
	case recorder.StateAcquiring:
		label = "waiting for microphone…"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(label)
}

func (m RecorderModel) clockColor() string {
	if m.state == recorder.StateRecording {
		return ColorAccentBright
	}
	return ColorDisabledText
}

func (m RecorderModel) renderConfirm() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorWarning)).
		Padding(0, 2)
	return box.Render(fmt.Sprintf("Quit now? The %s recorded so far is kept for `whisp recover`.  y / n", formatElapsed(m.elapsed)))
}

// SavedNoteID is the note created by a successful save, or 0.
func (m RecorderModel) SavedNoteID() uint { return m.savedNoteID }

// Discarded reports whether the user threw the recording away.
func (m RecorderModel) Discarded() bool { return m.discarded }

// Detached reports whether the user quit mid-recording, leaving it for recovery.
func (m RecorderModel) Detached() bool { return m.detached }

// Err is the last error shown on screen.
func (m RecorderModel) Err() error { return m.err }
