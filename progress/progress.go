// Package progress defines the status events the core emits for the presentation layer.
package progress

import "time"

// Phase is a step in the life of one project's install or update.
type Phase int

const (
	Resolving Phase = iota
	Downloading
	Verifying
	Installed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Resolving:
		return "resolving"
	case Downloading:
		return "downloading"
	case Verifying:
		return "verifying"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event reports a phase transition for a project. Err is set for Failed.
type Event struct {
	ProjectID string
	Phase     Phase
	Version   string
	Err       error
	At        time.Time
}

// Sink receives events. Implementations must be safe for concurrent use and must not
// block for long; the core calls them from worker goroutines.
type Sink func(Event)

// Emit sends an event to s if s is set.
func (s Sink) Emit(projectID string, phase Phase, version string, err error) {
	if s == nil {
		return
	}
	s(Event{ProjectID: projectID, Phase: phase, Version: version, Err: err, At: time.Now()})
}

// Channel returns a Sink that forwards into ch, dropping events once done is closed.
func Channel(ch chan<- Event, done <-chan struct{}) Sink {
	return func(e Event) {
		select {
		case ch <- e:
		case <-done:
		}
	}
}
