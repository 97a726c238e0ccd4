package session

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrNoAudioCaptured  = errors.New("no audio captured")

	ErrDevice        = errors.New("audio device error")
	ErrTranscription = errors.New("transcription failed")
	ErrRefinement    = errors.New("refinement failed")
	ErrDelivery      = errors.New("delivery failed")
)

// PhaseError reports the processing phase a session failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// IsStateError reports whether err is an operator mistake rather than a
// pipeline failure. None of them emits session-failed. ErrNoAudioCaptured
// from Stop arrives after the device was closed, with the coordinator Idle
// again.
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyRecording) || errors.Is(err, ErrNotRecording) || errors.Is(err, ErrNoAudioCaptured)
}
