package session

type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

type Phase string

const (
	PhaseNone         Phase = ""
	PhaseResampling   Phase = "resampling"
	PhaseSegmenting   Phase = "segmenting"
	PhaseTranscribing Phase = "transcribing"
	PhaseRefining     Phase = "refining"
	PhaseDelivering   Phase = "delivering"
)

// Status is a point-in-time view of the coordinator. Phase is only set
// while State is StateProcessing.
type Status struct {
	State State
	Phase Phase
}

func (s Status) String() string {
	if s.State == StateProcessing && s.Phase != PhaseNone {
		return s.State.String() + "(" + string(s.Phase) + ")"
	}
	return s.State.String()
}
