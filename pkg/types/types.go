package types

// Source types
type SourceType string

const (
	SourceTypeNetwork SourceType = "network"
	SourceTypeFile    SourceType = "file"
	SourceTypeAsset   SourceType = "asset"
)

// SourceDescriptor identifies a piece of media to play
type SourceDescriptor struct {
	Type SourceType `json:"type"`
	URI  string     `json:"uri"`
}

// Track kinds
type TrackKind string

const (
	TrackKindSubtitle TrackKind = "subtitle"
	TrackKindAudio    TrackKind = "audio"
	TrackKindVideo    TrackKind = "video"
)

// TrackDescriptor describes an embedded or external track.
// Embedded tracks use "group:index" ids, external subtitles use "ext-N" ids.
type TrackDescriptor struct {
	ID         string    `json:"id"`
	Kind       TrackKind `json:"kind"`
	Label      string    `json:"label,omitempty"`
	Language   string    `json:"language,omitempty"`
	Codec      string    `json:"codec,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Bitrate    int64     `json:"bitrate,omitempty"`
	IsExternal bool      `json:"isExternal,omitempty"`
	IsSelected bool      `json:"isSelected,omitempty"`
}

// SubtitleFormat names a subtitle file format
type SubtitleFormat string

const (
	SubtitleFormatSRT  SubtitleFormat = "srt"
	SubtitleFormatVTT  SubtitleFormat = "vtt"
	SubtitleFormatSSA  SubtitleFormat = "ssa"
	SubtitleFormatASS  SubtitleFormat = "ass"
	SubtitleFormatTTML SubtitleFormat = "ttml"
)

// ExternalSubtitle is a subtitle track loaded from outside the container
type ExternalSubtitle struct {
	ID       string         `json:"id"`
	Source   SourceType     `json:"sourceType"`
	Path     string         `json:"path"`
	Format   SubtitleFormat `json:"format"`
	Label    string         `json:"label,omitempty"`
	Language string         `json:"language,omitempty"`
	Loaded   bool           `json:"loaded"`
}

// MediaMetadata is display metadata for notifications and cast devices
type MediaMetadata struct {
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	ArtworkURI string `json:"artworkUri,omitempty"`
}

// ScalingMode controls how video fills its surface
type ScalingMode string

const (
	ScalingModeFit     ScalingMode = "fit"
	ScalingModeFill    ScalingMode = "fill"
	ScalingModeStretch ScalingMode = "stretch"
)

// SubtitleRenderMode selects who draws subtitle cues
type SubtitleRenderMode string

const (
	SubtitleRenderAuto    SubtitleRenderMode = "auto"
	SubtitleRenderNative  SubtitleRenderMode = "native"
	SubtitleRenderFlutter SubtitleRenderMode = "flutter"
)

// ABRMode controls adaptive bitrate behaviour
type ABRMode string

const (
	ABRModeAuto   ABRMode = "auto"
	ABRModeManual ABRMode = "manual"
)

// CastDevice describes a remote rendering device
type CastDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// CastState is the cast connection lifecycle state
type CastState string

const (
	CastStateNotConnected  CastState = "notConnected"
	CastStateConnecting    CastState = "connecting"
	CastStateConnected     CastState = "connected"
	CastStateDisconnecting CastState = "disconnecting"
)

// Chapter is a named timeline marker extracted from the container
type Chapter struct {
	Title   string `json:"title,omitempty"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs,omitempty"`
}

// VideoMetadata is container-level information surfaced once per prepared media
type VideoMetadata struct {
	DurationMs int64   `json:"durationMs"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Container  string  `json:"container,omitempty"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
	FrameRate  float64 `json:"frameRate,omitempty"`
}
