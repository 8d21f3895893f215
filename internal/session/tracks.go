package session

import (
	"strings"

	"github.com/provideo/provideo/internal/format"
	"github.com/provideo/provideo/pkg/types"
)

// SetSubtitleTrack selects a subtitle track by id. Accepts embedded
// "group:index" ids, external "ext-N" ids, or "" to turn subtitles off.
// Unknown or malformed ids are silently ignored: track lists can change out
// from under a caller holding a stale id, and that is not an error.
// Any call, including "", permanently disables auto-selection.
func (s *Session) SetSubtitleTrack(id string) {
	s.post(func() {
		s.latch = latchManualOrSkipped

		if id == "" {
			if err := s.eng.SelectTrack(types.TrackKindSubtitle, ""); err != nil {
				s.logger.Warn("clear subtitle track failed", "error", err)
				return
			}
			s.write(func(sn *snapshot) { sn.selectedSub = nil })
			s.emit(SelectedSubtitleChanged{Track: nil})
			return
		}

		engineID, track := s.resolveSubtitleID(id)
		if track == nil {
			s.logger.Debug("ignoring unknown subtitle track id", "id", id)
			return
		}
		s.selectSubtitle(engineID, track)
	})
}

// resolveSubtitleID maps a caller-facing subtitle id to the engine's track id
// and its descriptor. External ids resolve through the ext registry; embedded
// ids must match a currently known subtitle track. Returns nil when stale.
func (s *Session) resolveSubtitleID(id string) (string, *types.TrackDescriptor) {
	if strings.HasPrefix(id, externalIDPrefix) {
		engineID, ok := s.extEngine[id]
		if !ok {
			return "", nil
		}
		if track := s.findTrack(s.snap.subtitleTracks, engineID); track != nil {
			ext := *track
			ext.ID = id
			return engineID, &ext
		}
		return "", nil
	}
	if _, _, ok := format.ParseTrackID(id); !ok {
		return "", nil
	}
	return id, s.findTrack(s.snap.subtitleTracks, id)
}

func (s *Session) selectSubtitle(engineID string, track *types.TrackDescriptor) {
	if err := s.eng.SelectTrack(types.TrackKindSubtitle, engineID); err != nil {
		s.logger.Warn("select subtitle track failed", "id", engineID, "error", err)
		return
	}
	selected := *track
	selected.IsSelected = true
	s.write(func(sn *snapshot) { sn.selectedSub = &selected })
	s.emit(SelectedSubtitleChanged{Track: &selected})
}

// SetAudioTrack selects an audio track by "group:index" id, or "" to restore
// the engine default. Stale and malformed ids are silent no-ops.
func (s *Session) SetAudioTrack(id string) {
	s.post(func() {
		if id == "" {
			if err := s.eng.SelectTrack(types.TrackKindAudio, ""); err != nil {
				s.logger.Warn("clear audio track failed", "error", err)
				return
			}
			s.write(func(sn *snapshot) { sn.selectedAudio = nil })
			s.emit(SelectedAudioChanged{Track: nil})
			return
		}
		if _, _, ok := format.ParseTrackID(id); !ok {
			return
		}
		track := s.findTrack(s.snap.audioTracks, id)
		if track == nil {
			s.logger.Debug("ignoring unknown audio track id", "id", id)
			return
		}
		if err := s.eng.SelectTrack(types.TrackKindAudio, id); err != nil {
			s.logger.Warn("select audio track failed", "id", id, "error", err)
			return
		}
		selected := *track
		selected.IsSelected = true
		s.write(func(sn *snapshot) { sn.selectedAudio = &selected })
		s.emit(SelectedAudioChanged{Track: &selected})
	})
}

// SetVideoQuality pins playback to one quality level, or restores automatic
// (ABR) selection with "" / "auto". Returns false for malformed ids; stale
// ids pass validation here and no-op on the owner goroutine.
func (s *Session) SetVideoQuality(id string) bool {
	auto := id == "" || strings.EqualFold(id, "auto")
	if !auto {
		if _, _, ok := format.ParseTrackID(id); !ok {
			return false
		}
	}
	s.post(func() {
		if auto {
			if err := s.eng.SelectTrack(types.TrackKindVideo, ""); err != nil {
				s.logger.Warn("clear quality override failed", "error", err)
				return
			}
			s.write(func(sn *snapshot) { sn.selectedQuality = nil })
			s.emit(SelectedQualityChanged{Track: nil})
			return
		}
		track := s.findTrack(s.snap.qualityTracks, id)
		if track == nil {
			s.logger.Debug("ignoring unknown quality track id", "id", id)
			return
		}
		if err := s.eng.SelectTrack(types.TrackKindVideo, id); err != nil {
			s.logger.Warn("select quality failed", "id", id, "error", err)
			return
		}
		selected := *track
		selected.IsSelected = true
		s.write(func(sn *snapshot) { sn.selectedQuality = &selected })
		s.emit(SelectedQualityChanged{Track: &selected})
	})
	return true
}

// SubtitleTracks, AudioTracks and VideoQualities return copies of the
// current track lists, with external subtitles reported under their ext ids.
func (s *Session) SubtitleTracks() []types.TrackDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.TrackDescriptor(nil), s.snap.subtitleTracks...)
}

func (s *Session) AudioTracks() []types.TrackDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.TrackDescriptor(nil), s.snap.audioTracks...)
}

func (s *Session) VideoQualities() []types.TrackDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.TrackDescriptor(nil), s.snap.qualityTracks...)
}

// CurrentVideoQuality returns the pinned quality, or nil for automatic
func (s *Session) CurrentVideoQuality() *types.TrackDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.selectedQuality == nil {
		return nil
	}
	track := *s.snap.selectedQuality
	return &track
}

func (s *Session) SelectedSubtitleTrack() *types.TrackDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.selectedSub == nil {
		return nil
	}
	track := *s.snap.selectedSub
	return &track
}

// handleTracksChanged re-derives the three per-kind track lists from the
// engine's full list and emits them. Auto-selection of a default subtitle
// happens on the first callback only; the latch makes sure later track-list
// refreshes never re-trigger it, even when no manual selection ever happened.
func (s *Session) handleTracksChanged(tracks []types.TrackDescriptor) {
	var subs, audio, video []types.TrackDescriptor
	for _, track := range tracks {
		switch track.Kind {
		case types.TrackKindSubtitle:
			subs = append(subs, track)
		case types.TrackKindAudio:
			audio = append(audio, track)
		case types.TrackKindVideo:
			video = append(video, track)
		}
	}

	s.mapExternalTracks(subs)

	s.write(func(sn *snapshot) {
		sn.subtitleTracks = subs
		sn.audioTracks = audio
		sn.qualityTracks = video
	})
	s.emit(SubtitleTracksChanged{Tracks: subs})
	s.emit(AudioTracksChanged{Tracks: audio})
	s.emit(VideoQualityTracksChanged{Tracks: video})

	if s.pendingDefaultExt != "" {
		if engineID, ok := s.extEngine[s.pendingDefaultExt]; ok {
			if track := s.findTrack(subs, engineID); track != nil {
				ext := *track
				ext.ID = s.pendingDefaultExt
				s.latch = latchManualOrSkipped
				s.selectSubtitle(engineID, &ext)
				s.pendingDefaultExt = ""
			}
		}
	}

	if s.latch == latchNotYetEvaluated {
		s.evaluateAutoSelect(subs)
	}
}

// mapExternalTracks pairs the engine's external subtitle entries with the
// session's ext-N registry, in order of addition.
func (s *Session) mapExternalTracks(subs []types.TrackDescriptor) {
	var external []string
	for _, track := range subs {
		if track.IsExternal {
			external = append(external, track.ID)
		}
	}
	for i, extID := range s.extOrder {
		if i >= len(external) {
			break
		}
		s.extEngine[extID] = external[i]
	}
}

// evaluateAutoSelect runs once, on the first track discovery. Preference
// order: configured subtitle language, then the first track.
func (s *Session) evaluateAutoSelect(subs []types.TrackDescriptor) {
	if !s.opts.ShowSubtitlesByDefault || len(subs) == 0 {
		s.latch = latchManualOrSkipped
		return
	}
	s.latch = latchAutoSelected

	chosen := subs[0]
	if lang := s.opts.PreferredSubtitleLanguage; lang != "" {
		for _, track := range subs {
			if strings.EqualFold(track.Language, lang) {
				chosen = track
				break
			}
		}
	}
	s.selectSubtitle(chosen.ID, &chosen)
}

func (s *Session) findTrack(tracks []types.TrackDescriptor, id string) *types.TrackDescriptor {
	for i := range tracks {
		if tracks[i].ID == id {
			return &tracks[i]
		}
	}
	return nil
}
