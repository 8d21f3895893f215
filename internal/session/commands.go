package session

import (
	"github.com/provideo/provideo/internal/format"
	"github.com/provideo/provideo/pkg/types"
)

// Play starts or resumes playback. While casting the command targets the
// remote device; local play state still updates for wake-lock bookkeeping.
func (s *Session) Play() {
	s.post(func() {
		if s.snap.casting && s.bridge != nil {
			if err := s.bridge.RemotePlay(); err != nil {
				s.logger.Warn("remote play failed", "error", err)
			}
		} else if err := s.eng.Play(); err != nil {
			s.logger.Warn("play failed", "error", err)
			return
		}
		s.write(func(sn *snapshot) { sn.playing = true })
		if !s.snap.buffering {
			s.setState(StatePlaying)
		}
	})
}

// Pause halts playback, redirecting to the remote device while casting
func (s *Session) Pause() {
	s.post(func() {
		if s.snap.casting && s.bridge != nil {
			if err := s.bridge.RemotePause(); err != nil {
				s.logger.Warn("remote pause failed", "error", err)
			}
		} else if err := s.eng.Pause(); err != nil {
			s.logger.Warn("pause failed", "error", err)
			return
		}
		s.write(func(sn *snapshot) { sn.playing = false })
		if !s.snap.buffering {
			s.setState(StatePaused)
		}
	})
}

// Stop is pause plus seek to zero, not a distinct engine state
func (s *Session) Stop() {
	s.Pause()
	s.SeekTo(0)
}

// SeekTo moves the playhead. The position dedup state is invalidated in the
// same owner-goroutine step, so the next poll always emits the new position.
func (s *Session) SeekTo(positionMs int64) {
	if positionMs < 0 {
		positionMs = 0
	}
	s.post(func() {
		if s.snap.casting && s.bridge != nil {
			if err := s.bridge.RemoteSeek(positionMs); err != nil {
				s.logger.Warn("remote seek failed", "error", err)
				return
			}
		} else if err := s.eng.SeekTo(positionMs); err != nil {
			s.logger.Warn("seek failed", "error", err)
			return
		}
		s.emitted.positionMs = -1
		s.write(func(sn *snapshot) { sn.positionMs = positionMs })
	})
}

// SkipBy seeks relative to the current position, clamped to the media range
func (s *Session) SkipBy(deltaMs int64) {
	s.post(func() {
		target := format.SkipClamp(s.snap.positionMs, deltaMs, s.snap.durationMs)
		if s.snap.casting && s.bridge != nil {
			if err := s.bridge.RemoteSeek(target); err != nil {
				s.logger.Warn("remote seek failed", "error", err)
				return
			}
		} else if err := s.eng.SeekTo(target); err != nil {
			s.logger.Warn("seek failed", "error", err)
			return
		}
		s.emitted.positionMs = -1
		s.write(func(sn *snapshot) { sn.positionMs = target })
	})
}

// SetVolume clamps to [0,1] and passes through to the engine
func (s *Session) SetVolume(volume float64) {
	clamped := format.ClampVolume(volume)
	s.post(func() {
		if err := s.eng.SetVolume(clamped); err != nil {
			s.logger.Warn("set volume failed", "error", err)
			return
		}
		s.write(func(sn *snapshot) { sn.volume = clamped })
	})
}

// SetSpeed clamps to [0.25,4] and passes through to the engine
func (s *Session) SetSpeed(speed float64) {
	clamped := format.ClampSpeed(speed)
	s.post(func() {
		if err := s.eng.SetSpeed(clamped); err != nil {
			s.logger.Warn("set speed failed", "error", err)
			return
		}
		s.write(func(sn *snapshot) { sn.speed = clamped })
	})
}

func (s *Session) SetLooping(looping bool) {
	s.post(func() {
		if err := s.eng.SetLooping(looping); err != nil {
			s.logger.Warn("set looping failed", "error", err)
			return
		}
		s.write(func(sn *snapshot) { sn.looping = looping })
	})
}

func (s *Session) SetScalingMode(mode types.ScalingMode) {
	s.post(func() {
		if err := s.eng.SetScalingMode(mode); err != nil {
			s.logger.Warn("set scaling mode failed", "error", err)
		}
	})
}

// SetSubtitleRenderMode selects who draws subtitle cues. In flutter mode the
// caller renders cues from embeddedSubtitleCue events; native mode leaves
// drawing to the engine.
func (s *Session) SetSubtitleRenderMode(mode types.SubtitleRenderMode) {
	s.post(func() {
		s.write(func(sn *snapshot) { sn.renderMode = mode })
	})
}

// EnterPip requests picture-in-picture. Returns false when the session was
// created without PiP permission.
func (s *Session) EnterPip() bool {
	if !s.opts.AllowPip {
		return false
	}
	s.post(func() {
		if s.snap.pipActive {
			return
		}
		s.write(func(sn *snapshot) { sn.pipActive = true })
		s.emit(PipStateChanged{Active: true})
	})
	return true
}

// SetPipActions replaces the set of remote-control actions shown on the
// PiP window
func (s *Session) SetPipActions(actions []string) {
	copied := append([]string(nil), actions...)
	s.post(func() {
		s.write(func(sn *snapshot) { sn.pipActions = copied })
	})
}

func (s *Session) PipActions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.snap.pipActions...)
}

func (s *Session) ExitPip() {
	s.post(func() {
		if !s.snap.pipActive {
			return
		}
		s.write(func(sn *snapshot) { sn.pipActive = false })
		s.emit(PipStateChanged{Active: false})
	})
}

// HandleAppBackgrounded is called by the host when the app leaves the
// foreground. Sessions configured to auto-enter PiP do so here; others keep
// whatever background-playback arrangement is already in place. Returns true
// when a PiP transition was requested.
func (s *Session) HandleAppBackgrounded() bool {
	if !s.opts.AutoEnterPipOnBackground {
		return false
	}
	return s.EnterPip()
}

func (s *Session) EnterFullscreen() bool {
	s.post(func() {
		if s.snap.fullscreen {
			return
		}
		s.write(func(sn *snapshot) { sn.fullscreen = true })
		s.emit(FullscreenStateChanged{Active: true})
	})
	return true
}

func (s *Session) ExitFullscreen() {
	s.post(func() {
		if !s.snap.fullscreen {
			return
		}
		s.write(func(sn *snapshot) { sn.fullscreen = false })
		s.emit(FullscreenStateChanged{Active: false})
	})
}

// SetBackgroundPlayback registers or unregisters this session with the
// process-wide background registry. Returns false when background playback
// was not allowed at creation.
func (s *Session) SetBackgroundPlayback(enabled bool) bool {
	if enabled && !s.opts.AllowBackgroundPlayback {
		return false
	}
	s.post(func() {
		if s.snap.backgroundOn == enabled {
			return
		}
		if s.registry != nil {
			if enabled {
				s.registry.Register(s.id, s.eng, s.snap.metadata)
			} else {
				s.registry.Unregister(s.id)
			}
		}
		s.write(func(sn *snapshot) { sn.backgroundOn = enabled })
		s.emit(BackgroundPlaybackChanged{Enabled: enabled})
	})
	return true
}

// SetMediaMetadata updates notification/cast display metadata
func (s *Session) SetMediaMetadata(meta types.MediaMetadata) {
	s.post(func() {
		s.write(func(sn *snapshot) { sn.metadata = meta })
		if s.registry != nil && s.snap.backgroundOn {
			s.registry.UpdateMetadata(s.id, meta)
		}
	})
}

// Snapshot getters; all safe from any goroutine.

func (s *Session) State() LifecycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.state
}

func (s *Session) PositionMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.positionMs
}

func (s *Session) DurationMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.durationMs
}

func (s *Session) BufferedPositionMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.bufferedMs
}

func (s *Session) IsPlaying() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.playing
}

func (s *Session) IsCasting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.casting
}

func (s *Session) CastState() types.CastState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.castState
}

func (s *Session) CastDevice() *types.CastDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.castDevice == nil {
		return nil
	}
	device := *s.snap.castDevice
	return &device
}

func (s *Session) Metadata() types.MediaMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.metadata
}
