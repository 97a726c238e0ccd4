package session

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventRecordingStarted      EventKind = "recording-started"
	EventRecordingStopped      EventKind = "recording-stopped"
	EventTranscriptionStarted  EventKind = "transcription-started"
	EventRefinementStarted     EventKind = "llm-refinement-started"
	EventRefinementComplete    EventKind = "llm-refinement-complete"
	EventRefinementFailed      EventKind = "llm-refinement-failed"
	EventTranscriptionComplete EventKind = "transcription-complete"
	EventPhaseStarted          EventKind = "phase-started"
	EventPhaseCompleted        EventKind = "phase-completed"
	EventPhaseFailed           EventKind = "phase-failed"
	EventSessionFailed         EventKind = "session-failed"
)

// Event is one lifecycle notification. Text carries the refined text for
// llm-refinement-complete and the final text for transcription-complete.
type Event struct {
	Kind  EventKind
	Phase Phase
	Text  string
	Err   error
	At    time.Time
}

type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

type observerList struct {
	mu      sync.Mutex
	nextID  int
	entries []observerEntry
}

type observerEntry struct {
	id       int
	observer Observer
}

func (l *observerList) add(o Observer) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, observerEntry{id: id, observer: o})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, entry := range l.entries {
			if entry.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// emit calls every observer in subscription order. The list is copied first
// so observers may subscribe or call back into the coordinator.
func (l *observerList) emit(e Event) {
	l.mu.Lock()
	entries := append([]observerEntry(nil), l.entries...)
	l.mu.Unlock()

	for _, entry := range entries {
		entry.observer.OnEvent(e)
	}
}
