package session

import (
	"fmt"
	"mime"
	"path/filepath"

	"github.com/provideo/provideo/internal/cast"
	"github.com/provideo/provideo/internal/format"
	"github.com/provideo/provideo/pkg/types"
)

// castHooks binds the bridge's lifecycle back into session state. Every hook
// already runs on the owner goroutine; the bridge marshals through post.
func (s *Session) castHooks() cast.Hooks {
	return cast.Hooks{
		StateChanged: func(state types.CastState, device *types.CastDevice) {
			s.write(func(sn *snapshot) {
				sn.castState = state
				sn.castDevice = device
			})
			s.emit(CastStateChanged{State: state, Device: device})
		},

		// the remote device acknowledged the load; only now does local
		// playback yield
		RemoteLoaded: func() {
			if err := s.eng.Pause(); err != nil {
				s.logger.Warn("pausing local playback for cast failed", "error", err)
			}
			if err := s.eng.SetSurfaceVisible(false); err != nil {
				s.logger.Warn("hiding local surface failed", "error", err)
			}
			s.write(func(sn *snapshot) { sn.casting = true })
			s.logger.Info("playback handed off to cast device")
		},

		SessionEnded: func(lastRemotePositionMs int64, wasCasting bool) {
			s.write(func(sn *snapshot) { sn.casting = false })
			if !wasCasting {
				return
			}
			if lastRemotePositionMs >= 0 {
				if err := s.eng.SeekTo(lastRemotePositionMs); err != nil {
					s.logger.Warn("restoring local position failed", "error", err)
				}
				s.emitted.positionMs = -1
				s.write(func(sn *snapshot) { sn.positionMs = lastRemotePositionMs })
			}
			if err := s.eng.SetSurfaceVisible(true); err != nil {
				s.logger.Warn("restoring local surface failed", "error", err)
			}
			if s.snap.playing {
				if err := s.eng.Play(); err != nil {
					s.logger.Warn("resuming local playback failed", "error", err)
				}
			}
			s.logger.Info("cast session ended, local playback restored",
				"position", lastRemotePositionMs)
		},

		StartFailed: func(code int) {
			s.write(func(sn *snapshot) { sn.casting = false })
			s.emit(Error{
				Code:    "OPERATION_ERROR",
				Message: fmt.Sprintf("cast session failed to start (code %d)", code),
			})
		},

		// remote position supersedes local position truth while casting
		RemotePosition: func(positionMs int64) {
			if !format.ShouldEmitPosition(positionMs, s.emitted.positionMs, format.PositionEmitThresholdMs) {
				return
			}
			s.emitted.positionMs = positionMs
			s.write(func(sn *snapshot) { sn.positionMs = positionMs })
			s.emit(PositionChanged{PositionMs: positionMs})
		},
	}
}

// castMedia assembles the handoff payload from current local state
func (s *Session) castMedia() (cast.MediaRequest, bool) {
	if s.source.URI == "" {
		return cast.MediaRequest{}, false
	}
	return cast.MediaRequest{
		ContentURI:    s.source.URI,
		ContentType:   contentTypeForSource(s.source.URI),
		Metadata:      s.snap.metadata,
		CurrentTimeMs: s.eng.PositionMs(),
	}, true
}

func contentTypeForSource(uri string) string {
	if ct := mime.TypeByExtension(filepath.Ext(uri)); ct != "" {
		return ct
	}
	switch format.ContainerFormatFromPath(uri) {
	case "hls":
		return "application/x-mpegurl"
	case "dash":
		return "application/dash+xml"
	case "matroska":
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}

// StartCasting begins a handoff to a remote device, opening the platform
// route picker when no session is active yet. Returns false when casting is
// unavailable for this session.
func (s *Session) StartCasting() bool {
	if s.bridge == nil {
		return false
	}
	s.post(func() {
		if err := s.bridge.StartCasting(); err != nil {
			s.logger.Warn("start casting failed", "error", err)
			s.emit(Error{Code: "OPERATION_ERROR", Message: err.Error()})
		}
	})
	return true
}

// StopCasting ends the active cast session; no-op when not connected
func (s *Session) StopCasting() bool {
	if s.bridge == nil {
		return false
	}
	s.post(func() {
		if err := s.bridge.StopCasting(); err != nil {
			s.logger.Warn("stop casting failed", "error", err)
		}
	})
	return true
}

// CastDevices lists devices the platform picker has surfaced; may be empty
func (s *Session) CastDevices() []types.CastDevice {
	if s.bridge == nil {
		return nil
	}
	return s.bridge.Devices()
}

// CastingSupported reports whether a cast controller was injected
func (s *Session) CastingSupported() bool { return s.bridge != nil }
