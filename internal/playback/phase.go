package playback

// Phase is the controller's position in the per-client playback lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhasePlaying
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type Event int

const (
	EventSourceAdopted Event = iota
	EventSourceCleared
	EventMetadataLoaded
	EventPlay
	EventPause
	EventEnded
)

func (e Event) String() string {
	switch e {
	case EventSourceAdopted:
		return "source_adopted"
	case EventSourceCleared:
		return "source_cleared"
	case EventMetadataLoaded:
		return "metadata_loaded"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Ended only leaves through a source change: a finished source is never
// restarted in place.
var transitions = map[Phase]map[Event]Phase{
	PhaseIdle: {
		EventSourceAdopted: PhaseLoading,
		EventSourceCleared: PhaseIdle,
	},
	PhaseLoading: {
		EventSourceCleared:  PhaseIdle,
		EventMetadataLoaded: PhaseReady,
		EventPlay:           PhasePlaying,
		EventPause:          PhaseLoading,
	},
	PhaseReady: {
		EventSourceCleared:  PhaseIdle,
		EventMetadataLoaded: PhaseReady,
		EventPlay:           PhasePlaying,
		EventPause:          PhaseReady,
		EventEnded:          PhaseEnded,
	},
	PhasePlaying: {
		EventSourceCleared:  PhaseIdle,
		EventMetadataLoaded: PhasePlaying,
		EventPlay:           PhasePlaying,
		EventPause:          PhaseReady,
		EventEnded:          PhaseEnded,
	},
	PhaseEnded: {
		EventSourceCleared: PhaseIdle,
		EventPause:         PhaseEnded,
	},
}

// Next returns the phase reached from p on e. ok is false when e is not a
// legal event in p, in which case p is returned unchanged.
func Next(p Phase, e Event) (Phase, bool) {
	next, ok := transitions[p][e]
	if !ok {
		return p, false
	}
	return next, true
}
