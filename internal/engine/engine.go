package engine

import (
	"github.com/provideo/provideo/internal/buffering"
	"github.com/provideo/provideo/pkg/types"
)

// State is the native player's load state, normalized across engines
type State string

const (
	StateIdle      State = "idle"
	StateBuffering State = "buffering"
	StateReady     State = "ready"
	StateEnded     State = "ended"
)

// ErrorKind classifies engine errors by the native error-code taxonomy.
// Classification happens inside the engine adapter, never by string matching
// in the session.
type ErrorKind string

const (
	ErrorKindNetwork ErrorKind = "network"
	ErrorKindSource  ErrorKind = "source"
	ErrorKindDecode  ErrorKind = "decode"
	ErrorKindOther   ErrorKind = "other"
)

// LoadOptions carries everything the engine needs to construct its load
// controller and start asynchronous preparation.
type LoadOptions struct {
	Buffering       buffering.Config
	ABRMode         types.ABRMode
	MinBitrate      int64
	MaxBitrate      int64
	Headers         map[string]string
	UserAgent       string
	StartPositionMs int64
	Looping         bool
	Volume          float64
}

// Engine is the narrow capability surface the playback session depends on.
// Concrete adapters (mpv here, platform media frameworks elsewhere) live
// behind this interface and are swappable.
//
// All methods are non-blocking from the caller's perspective; results of
// asynchronous work surface on the Events channel. Implementations must be
// safe for calls from a single goroutine interleaved with their own internal
// callback threads.
type Engine interface {
	// Load begins asynchronous preparation of the source. The engine reports
	// readiness or failure via Events.
	Load(source types.SourceDescriptor, opts LoadOptions) error

	Play() error
	Pause() error
	SeekTo(positionMs int64) error
	SetVolume(volume float64) error
	SetSpeed(speed float64) error
	SetLooping(looping bool) error
	SetScalingMode(mode types.ScalingMode) error

	// SelectTrack overrides track selection for one kind. An empty id clears
	// the override (back to engine default / ABR auto for video).
	SelectTrack(kind types.TrackKind, id string) error

	// AddSubtitleSource registers a sideloaded subtitle file with the engine
	// so it appears as a selectable text track.
	AddSubtitleSource(uri string, format types.SubtitleFormat, label, language string) error

	// SetSurfaceVisible shows or hides the local video surface. Used for the
	// cast handoff, where audio/video moves to the remote device.
	SetSurfaceVisible(visible bool) error

	PositionMs() int64
	BufferedPositionMs() int64
	DurationMs() int64

	// BandwidthEstimate returns the engine's current network throughput
	// estimate in bits per second, or 0 when unknown.
	BandwidthEstimate() int64

	// Events returns the engine's normalized callback stream. The channel is
	// closed by Release.
	Events() <-chan Event

	// Release tears down the native player. Idempotent.
	Release() error
}
