package session

import "github.com/provideo/provideo/pkg/types"

// EventType discriminates outbound session events
type EventType string

const (
	EventPlaybackStateChanged      EventType = "playbackStateChanged"
	EventPositionChanged           EventType = "positionChanged"
	EventBufferedPositionChanged   EventType = "bufferedPositionChanged"
	EventDurationChanged           EventType = "durationChanged"
	EventPlaybackCompleted         EventType = "playbackCompleted"
	EventVideoSizeChanged          EventType = "videoSizeChanged"
	EventSubtitleTracksChanged     EventType = "subtitleTracksChanged"
	EventSelectedSubtitleChanged   EventType = "selectedSubtitleChanged"
	EventAudioTracksChanged        EventType = "audioTracksChanged"
	EventSelectedAudioChanged      EventType = "selectedAudioChanged"
	EventVideoQualityTracksChanged EventType = "videoQualityTracksChanged"
	EventSelectedQualityChanged    EventType = "selectedQualityChanged"
	EventVideoMetadataExtracted    EventType = "videoMetadataExtracted"
	EventPipStateChanged           EventType = "pipStateChanged"
	EventFullscreenStateChanged    EventType = "fullscreenStateChanged"
	EventBackgroundPlaybackChanged EventType = "backgroundPlaybackChanged"
	EventBandwidthEstimateChanged  EventType = "bandwidthEstimateChanged"
	EventBufferingStarted          EventType = "bufferingStarted"
	EventBufferingEnded            EventType = "bufferingEnded"
	EventNetworkError              EventType = "networkError"
	EventPlaybackRecovered         EventType = "playbackRecovered"
	EventNetworkStateChanged       EventType = "networkStateChanged"
	EventCastStateChanged          EventType = "castStateChanged"
	EventError                     EventType = "error"
	EventChaptersExtracted         EventType = "chaptersExtracted"
	EventEmbeddedSubtitleCue       EventType = "embeddedSubtitleCue"
)

// BufferingReason distinguishes initial prebuffer from mid-playback stalls
type BufferingReason string

const (
	BufferingReasonInitial         BufferingReason = "initial"
	BufferingReasonNetworkUnstable BufferingReason = "networkUnstable"
)

// Event is a normalized outbound session event. Variants are the only
// implementations; consumers dispatch on Type() or with a type switch.
// Events for one session arrive in production order (FIFO).
type Event interface {
	Type() EventType
}

type PlaybackStateChanged struct {
	State LifecycleState `json:"state"`
}

type PositionChanged struct {
	PositionMs int64 `json:"positionMs"`
}

type BufferedPositionChanged struct {
	PositionMs int64 `json:"positionMs"`
}

type DurationChanged struct {
	DurationMs int64 `json:"durationMs"`
}

type PlaybackCompleted struct{}

type VideoSizeChanged struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type SubtitleTracksChanged struct {
	Tracks []types.TrackDescriptor `json:"tracks"`
}

// SelectedSubtitleChanged carries nil when subtitles are turned off
type SelectedSubtitleChanged struct {
	Track *types.TrackDescriptor `json:"track"`
}

type AudioTracksChanged struct {
	Tracks []types.TrackDescriptor `json:"tracks"`
}

type SelectedAudioChanged struct {
	Track *types.TrackDescriptor `json:"track"`
}

type VideoQualityTracksChanged struct {
	Tracks []types.TrackDescriptor `json:"tracks"`
}

// SelectedQualityChanged carries nil for automatic (ABR) selection
type SelectedQualityChanged struct {
	Track *types.TrackDescriptor `json:"track"`
}

type VideoMetadataExtracted struct {
	Metadata types.VideoMetadata `json:"metadata"`
}

type PipStateChanged struct {
	Active bool `json:"active"`
}

type FullscreenStateChanged struct {
	Active bool `json:"active"`
}

type BackgroundPlaybackChanged struct {
	Enabled bool `json:"enabled"`
}

type BandwidthEstimateChanged struct {
	BitsPerSecond int64 `json:"bitsPerSecond"`
}

type BufferingStarted struct {
	Reason BufferingReason `json:"reason"`
}

type BufferingEnded struct{}

type NetworkError struct {
	Message      string `json:"message"`
	WillRetry    bool   `json:"willRetry"`
	RetryAttempt int    `json:"retryAttempt"`
	MaxRetries   int    `json:"maxRetries"`
}

type PlaybackRecovered struct {
	RetriesUsed int `json:"retriesUsed"`
}

type NetworkStateChanged struct {
	Connected bool `json:"isConnected"`
}

type CastStateChanged struct {
	State  types.CastState   `json:"state"`
	Device *types.CastDevice `json:"device,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ChaptersExtracted struct {
	Chapters []types.Chapter `json:"chapters"`
}

// EmbeddedSubtitleCue carries the active embedded cue; an inactive cue with
// empty text clears the display
type EmbeddedSubtitleCue struct {
	Text    string `json:"text"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Active  bool   `json:"active"`
}

func (PlaybackStateChanged) Type() EventType      { return EventPlaybackStateChanged }
func (PositionChanged) Type() EventType           { return EventPositionChanged }
func (BufferedPositionChanged) Type() EventType   { return EventBufferedPositionChanged }
func (DurationChanged) Type() EventType           { return EventDurationChanged }
func (PlaybackCompleted) Type() EventType         { return EventPlaybackCompleted }
func (VideoSizeChanged) Type() EventType          { return EventVideoSizeChanged }
func (SubtitleTracksChanged) Type() EventType     { return EventSubtitleTracksChanged }
func (SelectedSubtitleChanged) Type() EventType   { return EventSelectedSubtitleChanged }
func (AudioTracksChanged) Type() EventType        { return EventAudioTracksChanged }
func (SelectedAudioChanged) Type() EventType      { return EventSelectedAudioChanged }
func (VideoQualityTracksChanged) Type() EventType { return EventVideoQualityTracksChanged }
func (SelectedQualityChanged) Type() EventType    { return EventSelectedQualityChanged }
func (VideoMetadataExtracted) Type() EventType    { return EventVideoMetadataExtracted }
func (PipStateChanged) Type() EventType           { return EventPipStateChanged }
func (FullscreenStateChanged) Type() EventType    { return EventFullscreenStateChanged }
func (BackgroundPlaybackChanged) Type() EventType { return EventBackgroundPlaybackChanged }
func (BandwidthEstimateChanged) Type() EventType  { return EventBandwidthEstimateChanged }
func (BufferingStarted) Type() EventType          { return EventBufferingStarted }
func (BufferingEnded) Type() EventType            { return EventBufferingEnded }
func (NetworkError) Type() EventType              { return EventNetworkError }
func (PlaybackRecovered) Type() EventType         { return EventPlaybackRecovered }
func (NetworkStateChanged) Type() EventType       { return EventNetworkStateChanged }
func (CastStateChanged) Type() EventType          { return EventCastStateChanged }
func (Error) Type() EventType                     { return EventError }
func (ChaptersExtracted) Type() EventType         { return EventChaptersExtracted }
func (EmbeddedSubtitleCue) Type() EventType       { return EventEmbeddedSubtitleCue }
