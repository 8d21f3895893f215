package cast

import (
	"fmt"
	"log/slog"

	"github.com/provideo/provideo/pkg/types"
)

// MediaRequest is what gets pushed to a remote device on handoff
type MediaRequest struct {
	ContentURI    string
	ContentType   string
	Metadata      types.MediaMetadata
	CurrentTimeMs int64
	Autoplay      bool
}

// Controller is the platform cast framework client: session lifecycle events
// plus the remote-media command surface. Device discovery and selection stay
// with the platform's route picker; the controller cannot enumerate devices
// beyond what the picker exposes.
type Controller interface {
	Events() <-chan SessionEvent

	// Load pushes media to the connected remote device and returns after the
	// device acknowledges (or rejects) the load.
	Load(media MediaRequest) error

	Play() error
	Pause() error
	SeekTo(positionMs int64) error

	// EndSession tears down the active cast session
	EndSession() error

	// ShowRoutePicker opens the platform device-selection UI
	ShowRoutePicker() error

	HasActiveSession() bool
	KnownDevices() []types.CastDevice
}

// Hooks are the bridge's callbacks into the owning session. Every hook is
// invoked on the session's owner goroutine.
type Hooks struct {
	// StateChanged fires on every cast connection state transition
	StateChanged func(state types.CastState, device *types.CastDevice)
	// RemoteLoaded fires after the remote device acknowledged the media load;
	// only now does the session pause and hide local playback
	RemoteLoaded func()
	// SessionEnded hands position truth back to the session. wasCasting is
	// false when the session never reached an acknowledged load.
	SessionEnded func(lastRemotePositionMs int64, wasCasting bool)
	// StartFailed fires when a session could not be established
	StartFailed func(code int)
	// RemotePosition reports the remote device's periodic position while
	// casting
	RemotePosition func(positionMs int64)
}

// Bridge tracks the cast session lifecycle for one playback session and
// mediates the local/remote handoff. All state lives on the session's owner
// goroutine: controller events are marshaled there through post, so no
// internal locking is needed.
type Bridge struct {
	controller Controller
	hooks      Hooks
	logger     *slog.Logger

	// post marshals a function onto the session owner goroutine
	post func(func())
	// media supplies the current local media and position; called on the
	// owner goroutine when a handoff begins
	media func() (MediaRequest, bool)

	stop chan struct{}

	// owner-goroutine state
	state          types.CastState
	device         *types.CastDevice
	lastRemotePos  int64
	casting        bool
	remotePosValid bool
}

func NewBridge(controller Controller, hooks Hooks, post func(func()), media func() (MediaRequest, bool), logger *slog.Logger) *Bridge {
	return &Bridge{
		controller: controller,
		hooks:      hooks,
		logger:     logger.With("component", "cast"),
		post:       post,
		media:      media,
		stop:       make(chan struct{}),
		state:      types.CastStateNotConnected,
	}
}

// Run consumes controller events until Close. Call from its own goroutine.
func (b *Bridge) Run() {
	events := b.controller.Events()
	for {
		select {
		case <-b.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.post(func() { b.handle(ev) })
		}
	}
}

// Close stops event consumption. Idempotent.
func (b *Bridge) Close() {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
}

// State and Device report the current connection, owner goroutine only
func (b *Bridge) State() types.CastState      { return b.state }
func (b *Bridge) Device() *types.CastDevice   { return b.device }
func (b *Bridge) IsCasting() bool             { return b.casting }
func (b *Bridge) Devices() []types.CastDevice { return b.controller.KnownDevices() }

// StartCasting begins a handoff. With an active session the media is pushed
// directly; otherwise the platform route picker takes over and the handoff
// continues from the session-started event.
func (b *Bridge) StartCasting() error {
	if b.controller.HasActiveSession() {
		b.beginHandoff()
		return nil
	}
	if err := b.controller.ShowRoutePicker(); err != nil {
		return fmt.Errorf("failed to show route picker: %w", err)
	}
	return nil
}

// StopCasting ends the current session. No-op when nothing is connected.
func (b *Bridge) StopCasting() error {
	if b.state != types.CastStateConnected && b.state != types.CastStateConnecting {
		return nil
	}
	return b.controller.EndSession()
}

// Remote command surface used by the session while casting
func (b *Bridge) RemotePlay() error            { return b.controller.Play() }
func (b *Bridge) RemotePause() error           { return b.controller.Pause() }
func (b *Bridge) RemoteSeek(posMs int64) error { return b.controller.SeekTo(posMs) }

func (b *Bridge) handle(ev SessionEvent) {
	switch ev := ev.(type) {
	case Starting:
		b.setState(types.CastStateConnecting, &ev.Device)

	case Started:
		b.setState(types.CastStateConnected, &ev.Device)
		b.beginHandoff()

	case Resuming:
		b.setState(types.CastStateConnecting, &ev.Device)

	case Resumed:
		b.setState(types.CastStateConnected, &ev.Device)
		if !ev.WasSuspended {
			b.beginHandoff()
		}

	case StartFailed:
		b.casting = false
		b.setState(types.CastStateNotConnected, nil)
		if b.hooks.StartFailed != nil {
			b.hooks.StartFailed(ev.Code)
		}

	case ResumeFailed:
		b.casting = false
		b.setState(types.CastStateNotConnected, nil)
		if b.hooks.StartFailed != nil {
			b.hooks.StartFailed(ev.Code)
		}

	case Ending:
		// last chance to capture remote position before the connection drops
		b.setState(types.CastStateDisconnecting, b.device)

	case Ended:
		wasCasting := b.casting
		lastPos := b.lastRemotePos
		hadPos := b.remotePosValid
		b.casting = false
		b.remotePosValid = false
		b.setState(types.CastStateNotConnected, nil)
		if b.hooks.SessionEnded != nil {
			if !hadPos {
				lastPos = -1
			}
			b.hooks.SessionEnded(lastPos, wasCasting)
		}

	case Suspended:
		b.logger.Debug("cast session suspended")

	case RemoteStatus:
		if ev.PositionMs >= 0 {
			b.lastRemotePos = ev.PositionMs
			b.remotePosValid = true
			if b.casting && b.hooks.RemotePosition != nil {
				b.hooks.RemotePosition(ev.PositionMs)
			}
		}
	}
}

// beginHandoff pushes the current local media to the remote device. The load
// blocks on remote acknowledgment, so it runs off the owner goroutine; only
// a successful ack flips the session into casting mode.
func (b *Bridge) beginHandoff() {
	media, ok := b.media()
	if !ok {
		b.logger.Warn("cast session started with no local media to hand off")
		return
	}
	media.Autoplay = true

	go func() {
		err := b.controller.Load(media)
		b.post(func() {
			if err != nil {
				b.logger.Error("remote media load failed", "error", err)
				if b.hooks.StartFailed != nil {
					b.hooks.StartFailed(-1)
				}
				return
			}
			b.casting = true
			b.lastRemotePos = media.CurrentTimeMs
			b.remotePosValid = true
			if b.hooks.RemoteLoaded != nil {
				b.hooks.RemoteLoaded()
			}
		})
	}()
}

func (b *Bridge) setState(state types.CastState, device *types.CastDevice) {
	if b.state == state && equalDevice(b.device, device) {
		return
	}
	b.state = state
	b.device = device
	if b.hooks.StateChanged != nil {
		b.hooks.StateChanged(state, device)
	}
}

func equalDevice(a, b *types.CastDevice) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
