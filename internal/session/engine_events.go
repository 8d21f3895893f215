package session

import (
	"time"

	"github.com/provideo/provideo/internal/engine"
	"github.com/provideo/provideo/internal/format"
)

func (s *Session) handleEngineEvent(ev engine.Event) {
	switch ev := ev.(type) {
	case engine.StateChanged:
		s.handleEngineState(ev)

	case engine.TracksChanged:
		s.handleTracksChanged(ev.Tracks)

	case engine.VideoSizeChanged:
		s.write(func(sn *snapshot) {
			sn.width = ev.Width
			sn.height = ev.Height
		})
		s.emit(VideoSizeChanged{Width: ev.Width, Height: ev.Height})

	case engine.DurationKnown:
		s.write(func(sn *snapshot) { sn.durationMs = ev.DurationMs })
		s.emit(DurationChanged{DurationMs: ev.DurationMs})

	case engine.Completed:
		s.write(func(sn *snapshot) { sn.playing = false })
		s.setState(StateCompleted)
		s.emit(PlaybackCompleted{})

	case engine.Error:
		s.handleEngineError(ev)

	case engine.CueChanged:
		s.mu.RLock()
		mode := s.snap.renderMode
		s.mu.RUnlock()
		if mode != "" {
			s.emit(EmbeddedSubtitleCue{
				Text:    ev.Text,
				StartMs: ev.StartMs,
				EndMs:   ev.EndMs,
				Active:  ev.Active,
			})
		}

	case engine.MetadataExtracted:
		meta := ev.Metadata
		s.write(func(sn *snapshot) { sn.videoMeta = &meta })
		s.emit(VideoMetadataExtracted{Metadata: meta})

	case engine.ChaptersExtracted:
		s.write(func(sn *snapshot) { sn.chapters = ev.Chapters })
		s.emit(ChaptersExtracted{Chapters: ev.Chapters})
	}
}

// handleEngineState maps the engine's load state onto the session lifecycle
// and drives the buffering/recovery bookkeeping.
func (s *Session) handleEngineState(ev engine.StateChanged) {
	switch ev.State {
	case engine.StateBuffering:
		if s.snap.buffering {
			return
		}
		reason := BufferingReasonNetworkUnstable
		if s.snap.state == StateIdle || s.snap.state == StatePreparing {
			reason = BufferingReasonInitial
		} else {
			s.resilience.bufferingDueToNetwork = true
			s.resilience.wasPlayingBeforeStall = ev.PlayWhenReady
		}
		s.stateBeforeBuffering = s.snap.state
		s.write(func(sn *snapshot) { sn.buffering = true })
		s.setState(StateBuffering)
		s.emit(BufferingStarted{Reason: reason})

	case engine.StateReady:
		wasBuffering := s.snap.buffering
		s.write(func(sn *snapshot) {
			sn.buffering = false
			sn.playing = ev.PlayWhenReady
		})
		if wasBuffering {
			s.emit(BufferingEnded{})
			if s.resilience.bufferingDueToNetwork {
				s.resilience.bufferingDueToNetwork = false
				if s.resilience.retryCount > 0 {
					s.emit(PlaybackRecovered{RetriesUsed: s.resilience.retryCount})
					s.resilience.retryCount = 0
				}
			}
		}
		switch {
		case ev.PlayWhenReady:
			s.setState(StatePlaying)
		case wasBuffering && (s.stateBeforeBuffering == StatePlaying || s.stateBeforeBuffering == StatePaused):
			s.setState(StatePaused)
		case s.snap.state == StatePlaying || s.snap.state == StatePaused:
			s.setState(StatePaused)
		default:
			s.setState(StateReady)
		}

	case engine.StateEnded:
		// completion is reported via the dedicated Completed event

	case engine.StateIdle:
		// transient while the engine reconfigures; nothing to surface
	}
}

func (s *Session) handleEngineError(ev engine.Error) {
	if ev.Kind == engine.ErrorKindNetwork {
		s.resilience.hadNetworkError = true
		s.logger.Warn("network playback error", "code", ev.Code, "message", ev.Message)
		s.emit(NetworkError{
			Message:      ev.Message,
			WillRetry:    false,
			RetryAttempt: s.resilience.retryCount,
			MaxRetries:   maxNetworkRetries,
		})
		return
	}

	code := "PLAYBACK_ERROR"
	if ev.Kind == engine.ErrorKindSource {
		code = "INVALID_SOURCE"
	}
	s.logger.Error("playback error", "kind", ev.Kind, "code", ev.Code, "message", ev.Message)
	s.write(func(sn *snapshot) { sn.playing = false })
	s.setState(StateError)
	s.emit(Error{Code: code, Message: ev.Message})
}

// handleConnectivity reports reachability flips and runs the single
// autonomous recovery: when the network comes back after being lost while a
// network error was pending, seek to the current position to force a reload
// and resume if playback was interrupted mid-play.
func (s *Session) handleConnectivity(connected bool) {
	s.emit(NetworkStateChanged{Connected: connected})

	if !connected {
		s.resilience.wasDisconnected = true
		return
	}
	if !s.resilience.wasDisconnected || !s.resilience.hadNetworkError {
		s.resilience.wasDisconnected = false
		return
	}
	s.resilience.wasDisconnected = false
	s.resilience.hadNetworkError = false
	s.scheduleRetry()
}

func (s *Session) scheduleRetry() {
	s.resilience.retryCount++
	attempt := s.resilience.retryCount
	delay := format.ExponentialBackoff(attempt-1, format.BackoffBase, format.BackoffMax)
	s.logger.Info("scheduling playback recovery", "attempt", attempt, "delay", delay)
	s.emit(NetworkError{
		Message:      "connectivity restored, reloading",
		WillRetry:    true,
		RetryAttempt: attempt,
		MaxRetries:   maxNetworkRetries,
	})

	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.AfterFunc(delay, func() {
		s.post(s.retryNow)
	})
}

func (s *Session) retryNow() {
	if s.disposed {
		return
	}
	pos := s.eng.PositionMs()
	if err := s.eng.SeekTo(pos); err != nil {
		s.logger.Warn("recovery seek failed", "error", err)
		return
	}
	s.emitted.positionMs = -1
	if s.resilience.wasPlayingBeforeStall {
		if err := s.eng.Play(); err != nil {
			s.logger.Warn("recovery resume failed", "error", err)
		}
	}
}

// pollTick samples position, buffered position, duration and bandwidth from
// the engine, emitting only what cleared the dedup gates. While casting,
// position truth comes from the remote device instead.
func (s *Session) pollTick() {
	if s.disposed {
		return
	}
	if s.snap.casting {
		return
	}

	pos := s.eng.PositionMs()
	if pos != s.emitted.positionMs &&
		format.ShouldEmitPosition(pos, s.emitted.positionMs, format.PositionEmitThresholdMs) {
		s.emitted.positionMs = pos
		s.write(func(sn *snapshot) { sn.positionMs = pos })
		s.emit(PositionChanged{PositionMs: pos})
	}

	buffered := s.eng.BufferedPositionMs()
	if buffered != s.emitted.bufferedMs &&
		format.ShouldEmitPosition(buffered, s.emitted.bufferedMs, format.PositionEmitThresholdMs) {
		s.emitted.bufferedMs = buffered
		s.write(func(sn *snapshot) { sn.bufferedMs = buffered })
		s.emit(BufferedPositionChanged{PositionMs: buffered})
	}

	if duration := s.eng.DurationMs(); duration > 0 && duration != s.snap.durationMs {
		s.write(func(sn *snapshot) { sn.durationMs = duration })
		s.emit(DurationChanged{DurationMs: duration})
	}

	s.pollBandwidth()
}

func (s *Session) pollBandwidth() {
	now := time.Now()
	if !s.emitted.bandwidthAt.IsZero() && now.Sub(s.emitted.bandwidthAt) < format.BandwidthThrottleWindow {
		return
	}
	estimate := s.eng.BandwidthEstimate()
	if estimate <= 0 {
		return
	}
	if !format.ShouldEmitBandwidth(estimate, s.emitted.bandwidth, format.BandwidthEmitFraction) {
		return
	}
	s.emitted.bandwidth = estimate
	s.emitted.bandwidthAt = now
	s.write(func(sn *snapshot) { sn.bandwidth = estimate })
	s.emit(BandwidthEstimateChanged{BitsPerSecond: estimate})
}
