package engine

import "github.com/provideo/provideo/pkg/types"

// Event is a normalized native-player callback. The concrete types below are
// the only implementations; consumers dispatch with a type switch.
type Event interface {
	isEngineEvent()
}

// StateChanged reports a load-state transition together with the engine's
// current play-when-ready intent.
type StateChanged struct {
	State         State
	PlayWhenReady bool
}

// TracksChanged reports the full current track list after the engine
// (re-)reads the container or the stream variant changes.
type TracksChanged struct {
	Tracks []types.TrackDescriptor
}

// VideoSizeChanged reports the decoded video dimensions
type VideoSizeChanged struct {
	Width  int
	Height int
}

// DurationKnown fires when the media duration becomes available or changes
type DurationKnown struct {
	DurationMs int64
}

// Completed fires when playback reaches the end of media (and looping is off)
type Completed struct{}

// Error reports a native player error, already classified by kind
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

// CueChanged carries the currently displayed embedded subtitle cue. A nil-text
// cue (Text == "" and Active == false) clears the display.
type CueChanged struct {
	Text    string
	StartMs int64
	EndMs   int64
	Active  bool
}

// MetadataExtracted fires once per prepared media with container-level info
type MetadataExtracted struct {
	Metadata types.VideoMetadata
}

// ChaptersExtracted fires when container chapters are available
type ChaptersExtracted struct {
	Chapters []types.Chapter
}

func (StateChanged) isEngineEvent()      {}
func (TracksChanged) isEngineEvent()     {}
func (VideoSizeChanged) isEngineEvent()  {}
func (DurationKnown) isEngineEvent()     {}
func (Completed) isEngineEvent()         {}
func (Error) isEngineEvent()             {}
func (CueChanged) isEngineEvent()        {}
func (MetadataExtracted) isEngineEvent() {}
func (ChaptersExtracted) isEngineEvent() {}
