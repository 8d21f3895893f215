package manager

import (
	"time"

	"github.com/provideo/provideo/internal/session"
	"github.com/provideo/provideo/pkg/types"
)

// progressRecordInterval throttles history writes during playback
const progressRecordInterval = 10 * time.Second

// pump forwards a session's event stream unchanged while recording playback
// progress into the history store. Runs until the session closes its stream;
// the final position is flushed on close so a dispose never loses progress.
func (m *Manager) pump(id int64, source types.SourceDescriptor, s *session.Session) <-chan session.Event {
	out := make(chan session.Event, 64)

	go func() {
		defer close(out)

		var (
			lastRecord time.Time
			positionMs int64
			durationMs int64
			completed  bool
		)

		record := func() {
			if m.cfg.History == nil || durationMs <= 0 {
				return
			}
			err := m.cfg.History.RecordProgress(source.URI, s.Metadata().Title, positionMs, durationMs)
			if err != nil {
				m.logger.Warn("recording playback progress failed", "id", id, "error", err)
			}
		}

		for ev := range s.Events() {
			switch ev := ev.(type) {
			case session.PositionChanged:
				positionMs = ev.PositionMs
				if time.Since(lastRecord) >= progressRecordInterval {
					lastRecord = time.Now()
					record()
				}

			case session.DurationChanged:
				durationMs = ev.DurationMs

			case session.PlaybackCompleted:
				completed = true
				if m.cfg.History != nil {
					if err := m.cfg.History.MarkCompleted(source.URI); err != nil {
						m.logger.Warn("marking media completed failed", "id", id, "error", err)
					}
				}
			}

			out <- ev
		}

		if !completed && positionMs > 0 {
			record()
		}
	}()

	return out
}
