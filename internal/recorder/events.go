package recorder

// EventKind classifies controller notifications.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventTick
	EventWarning
	EventError
	EventRecovered
	EventSaved
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state"
	case EventTick:
		return "tick"
	case EventWarning:
		return "warning"
	case EventError:
		return "error"
	case EventRecovered:
		return "recovered"
	case EventSaved:
		return "saved"
	}
	return "unknown"
}

// Event is delivered on Controller.Events. Warnings are non-fatal; the
// recording carries on.
type Event struct {
	Kind    EventKind
	State   State
	Elapsed int
	Err     error
	NoteID  uint
}
