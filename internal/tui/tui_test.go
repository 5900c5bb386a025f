package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/whisp/internal/models"
	"github.com/balkashynov/whisp/internal/recorder"
	"github.com/balkashynov/whisp/internal/visual"
)

type fakeSession struct {
	state    recorder.State
	elapsed  int
	events   chan recorder.Event
	calls    []string
	saveErr  error
	visible  int
	startErr error
}

func newFakeSession(state recorder.State) *fakeSession {
	return &fakeSession{state: state, events: make(chan recorder.Event, 8)}
}

func (f *fakeSession) Start(ctx context.Context, opts recorder.StartOptions) error {
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return f.startErr
	}
	f.state = recorder.StateRecording
	return nil
}

func (f *fakeSession) Pause(ctx context.Context) error {
	f.calls = append(f.calls, "pause")
	f.state = recorder.StatePaused
	return nil
}

func (f *fakeSession) Resume(ctx context.Context) error {
	f.calls = append(f.calls, "resume")
	f.state = recorder.StateRecording
	return nil
}

func (f *fakeSession) Stop(ctx context.Context) (*recorder.Result, error) {
	f.calls = append(f.calls, "stop")
	f.state = recorder.StateStopped
	return &recorder.Result{}, f.saveErr
}

func (f *fakeSession) Save(ctx context.Context) error {
	f.calls = append(f.calls, "save")
	return f.saveErr
}

func (f *fakeSession) Discard(ctx context.Context) error {
	f.calls = append(f.calls, "discard")
	f.state = recorder.StateIdle
	return nil
}

func (f *fakeSession) Detach(ctx context.Context) error {
	f.calls = append(f.calls, "detach")
	f.state = recorder.StateIdle
	return nil
}

func (f *fakeSession) State() recorder.State         { return f.state }
func (f *fakeSession) Elapsed() int                  { return f.elapsed }
func (f *fakeSession) SystemAudioActive() bool       { return false }
func (f *fakeSession) GuardExit() bool               { return f.state.Active() }
func (f *fakeSession) OnVisible()                    { f.visible++ }
func (f *fakeSession) Events() <-chan recorder.Event { return f.events }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (RecorderModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	rm, ok := next.(RecorderModel)
	require.True(t, ok)
	return rm, cmd
}

func TestBarHeights(t *testing.T) {
	// rows=4 gives 32 eighths, so one pixel is one eighth
	heights := barHeights([]float64{0, 0.01, 0.1, 1, visual.NoSignal}, 100, 4)
	assert.Equal(t, []int{2, 2, 10, 32, -1}, heights)
}

func TestRenderWaveform(t *testing.T) {
	out := RenderWaveform([]float64{1, visual.NoSignal}, 100, 2, false)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "█")
	assert.Contains(t, lines[1], "█")
	assert.Contains(t, lines[1], "▁")
}

func TestPadLevels(t *testing.T) {
	assert.Equal(t, []float64{visual.NoSignal, visual.NoSignal, 0.5}, padLevels([]float64{0.5}, 3))
	assert.Equal(t, []float64{0.2, 0.3}, padLevels([]float64{0.1, 0.2, 0.3}, 2))
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{-4, "00:00"},
		{65, "01:05"},
		{3599, "59:59"},
		{3661, "1:01:01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.seconds))
	}
}

func TestRenderBigClock(t *testing.T) {
	out := renderBigClock(65, ColorAccentBright)
	assert.Len(t, strings.Split(out, "\n"), 5)
}

func TestRecorderModelPauseAndResume(t *testing.T) {
	s := newFakeSession(recorder.StateRecording)
	m := NewRecorderModel(s, RecorderOptions{Resume: true})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, recorder.StatePaused, m.state)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, recorder.StateRecording, m.state)
	assert.Equal(t, []string{"pause", "resume"}, s.calls)
}

func TestRecorderModelQuitKeepsRecordingForRecovery(t *testing.T) {
	s := newFakeSession(recorder.StateRecording)
	m := NewRecorderModel(s, RecorderOptions{Resume: true})

	m, cmd := update(t, m, runes("q"))
	assert.Nil(t, cmd)
	assert.True(t, m.confirming)

	m, _ = update(t, m, runes("n"))
	assert.False(t, m.confirming)

	m, _ = update(t, m, runes("q"))
	m, cmd = update(t, m, runes("y"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.IsType(t, detachedMsg{}, msg)
	assert.Equal(t, []string{"detach"}, s.calls)

	m, cmd = update(t, m, msg)
	assert.True(t, m.Detached())
	assert.False(t, m.Discarded())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRecorderModelQuitsImmediatelyWhenIdle(t *testing.T) {
	s := newFakeSession(recorder.StateIdle)
	m := NewRecorderModel(s, RecorderOptions{Resume: true})

	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRecorderModelSavedEventQuits(t *testing.T) {
	s := newFakeSession(recorder.StateStopped)
	m := NewRecorderModel(s, RecorderOptions{Resume: true})

	m, cmd := update(t, m, eventMsg(recorder.Event{Kind: recorder.EventSaved, State: recorder.StateIdle, NoteID: 42}))
	assert.Equal(t, uint(42), m.SavedNoteID())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRecorderModelFailedSaveShowsError(t *testing.T) {
	s := newFakeSession(recorder.StateStopped)
	s.saveErr = errors.New("upload failed")
	m := NewRecorderModel(s, RecorderOptions{Resume: true})

	m, _ = update(t, m, runes("r"))
	assert.Equal(t, "Retrying save", m.busy)

	m, _ = update(t, m, savedMsg{err: s.Save(context.Background())})
	assert.Empty(t, m.busy)
	require.Error(t, m.Err())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Contains(t, m.View(), "upload failed")
}

func TestRecorderModelTracksEvents(t *testing.T) {
	s := newFakeSession(recorder.StateRecording)
	m := NewRecorderModel(s, RecorderOptions{Resume: true})

	m, _ = update(t, m, eventMsg(recorder.Event{Kind: recorder.EventTick, Elapsed: 9}))
	assert.Equal(t, 9, m.elapsed)

	m, _ = update(t, m, eventMsg(recorder.Event{Kind: recorder.EventWarning, Err: recorder.ErrSystemAudioDropped}))
	assert.Equal(t, recorder.ErrSystemAudioDropped.Error(), m.warning)

	m, _ = update(t, m, tea.FocusMsg{})
	assert.Equal(t, 1, s.visible)
	assert.Nil(t, m.Err())
}

func TestRecorderModelStartError(t *testing.T) {
	s := newFakeSession(recorder.StateIdle)
	s.startErr = recorder.ErrPermissionDenied
	m := NewRecorderModel(s, RecorderOptions{})

	msg := m.start()()
	m, _ = update(t, m, msg)
	assert.ErrorIs(t, m.Err(), recorder.ErrPermissionDenied)
}

func sampleNotes() []models.Note {
	return []models.Note{
		{ID: 1, Title: "Groceries", Transcript: "milk and eggs"},
		{ID: 2, Title: "Standup", Transcript: "deploy the billing service"},
		{ID: 3, Title: "Ideas", Transcript: "a podcast about bread"},
	}
}

func TestNotesModelSearchFilters(t *testing.T) {
	m := NewNotesModel(sampleNotes(), nil)

	next, _ := m.Update(runes("/"))
	m = next.(NotesModel)
	assert.Equal(t, FocusSearch, m.focus)

	for _, r := range "bread" {
		next, _ = m.Update(runes(string(r)))
		m = next.(NotesModel)
	}
	require.Len(t, m.notes, 1)
	note, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, uint(3), note.ID)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(NotesModel)
	assert.Len(t, m.notes, 3)
}

func TestNotesModelDelete(t *testing.T) {
	var removed []uint
	m := NewNotesModel(sampleNotes(), func(id uint) error {
		removed = append(removed, id)
		return nil
	})

	next, _ := m.Update(runes("j"))
	next, _ = next.Update(runes("d"))
	m = next.(NotesModel)
	assert.Equal(t, FocusModal, m.focus)

	next, _ = m.Update(runes("y"))
	m = next.(NotesModel)
	assert.Equal(t, []uint{2}, removed)
	assert.Len(t, m.notes, 2)
	note, _ := m.Selected()
	assert.Equal(t, uint(3), note.ID)
}

func TestNotesModelEditQuits(t *testing.T) {
	m := NewNotesModel(sampleNotes(), nil)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, uint(1), next.(NotesModel).EditID())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEditNoteModelSaves(t *testing.T) {
	note := models.Note{ID: 5, Title: "Old", Transcript: "body"}
	var gotTitle string
	m := NewEditNoteModel(note, func(id uint, title, transcript string) (*models.Note, error) {
		gotTitle = title
		return &models.Note{ID: id, Title: title, Transcript: transcript}, nil
	})

	next, _ := m.Update(runes("er"))
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	em := next.(EditNoteModel)

	assert.True(t, em.Completed())
	assert.Equal(t, "Older", gotTitle)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEditNoteModelRequiresTitle(t *testing.T) {
	m := NewEditNoteModel(models.Note{ID: 5, Title: "X"}, func(uint, string, string) (*models.Note, error) {
		t.Fatal("save should not be called")
		return nil, nil
	})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	em := next.(EditNoteModel)
	assert.False(t, em.Completed())
	assert.Equal(t, "Note title is required", em.validationErr)
}
