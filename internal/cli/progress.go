package cli

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/voxtype/internal/session"
	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func noop() {}

// phaseSource is the part of the coordinator a progress display follows.
type phaseSource interface {
	Subscribe(session.Observer) func()
}

func newSpinner(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)
}

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return noop
	}
	return tick(newSpinner(os.Stderr, description), 120*time.Millisecond)
}

// startPhaseSpinner shows a spinner while a session is processed and
// relabels it each time the coordinator enters a new phase.
func startPhaseSpinner(enabled bool, source phaseSource) stopFunc {
	if !enabled {
		return noop
	}
	return followPhases(os.Stderr, source)
}

func followPhases(w io.Writer, source phaseSource) stopFunc {
	bar := newSpinner(w, "Processing")
	unsubscribe := source.Subscribe(session.ObserverFunc(func(e session.Event) {
		if e.Kind == session.EventPhaseStarted {
			bar.Describe(phaseLabel(e.Phase))
		}
	}))
	stop := tick(bar, 120*time.Millisecond)
	return func() {
		unsubscribe()
		stop()
	}
}

func phaseLabel(p session.Phase) string {
	if p == session.PhaseNone {
		return "Processing"
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// startDurationProgress fills a bar over a fixed recording length, one step
// per second.
func startDurationProgress(enabled bool, description string, duration time.Duration) stopFunc {
	if !enabled || duration <= 0 {
		return noop
	}

	total := max(int64(duration/time.Second), 1)
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return tick(bar, time.Second)
}

// tick advances bar every interval. The returned stop is safe to call more
// than once.
func tick(bar *progressbar.ProgressBar, interval time.Duration) stopFunc {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
