package cast

import "github.com/provideo/provideo/pkg/types"

// SessionEvent is the sealed cast-framework session lifecycle event. The
// concrete types below are the only implementations; the bridge dispatches
// with a type switch, keeping it independent of any particular cast SDK's
// callback shape.
type SessionEvent interface {
	isCastSessionEvent()
}

type Starting struct {
	Device types.CastDevice
}

type Started struct {
	Device types.CastDevice
}

type StartFailed struct {
	Code int
}

type Ending struct{}

type Ended struct {
	Code int
}

type Resuming struct {
	Device types.CastDevice
}

type Resumed struct {
	Device       types.CastDevice
	WasSuspended bool
}

type ResumeFailed struct {
	Code int
}

type Suspended struct{}

// RemoteStatus is the remote device's periodic playback status. While a cast
// session is active this is the position truth.
type RemoteStatus struct {
	PositionMs  int64
	PlayerState string
}

func (Starting) isCastSessionEvent()     {}
func (Started) isCastSessionEvent()      {}
func (StartFailed) isCastSessionEvent()  {}
func (Ending) isCastSessionEvent()       {}
func (Ended) isCastSessionEvent()        {}
func (Resuming) isCastSessionEvent()     {}
func (Resumed) isCastSessionEvent()      {}
func (ResumeFailed) isCastSessionEvent() {}
func (Suspended) isCastSessionEvent()    {}
func (RemoteStatus) isCastSessionEvent() {}
