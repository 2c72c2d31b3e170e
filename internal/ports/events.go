package ports

import "voicelink/internal/domain"

// Event is the closed set of transport-originated events. Events are
// delivered in the order the transport emits them and dispatched through
// a single handler, so no variant can be silently ignored by a missing
// callback.
type Event interface {
	event()
}

// ErrorEvent reports a transport runtime error. It always forces the
// session into the error state.
type ErrorEvent struct {
	Code    int
	Message string
}

// UserJoinedEvent reports a remote participant joining the room.
type UserJoinedEvent struct {
	UserID string
}

// UserLeftEvent reports a remote participant leaving the room.
type UserLeftEvent struct {
	UserID string
}

// UserPublishedEvent reports a remote participant publishing a stream.
type UserPublishedEvent struct {
	UserID string
	Kind   MediaKind
}

// UserUnpublishedEvent reports a remote participant unpublishing a stream.
type UserUnpublishedEvent struct {
	UserID string
	Kind   MediaKind
	Reason string
}

// LocalAudioLevelEvent reports the local capture level, normalized [0,1].
type LocalAudioLevelEvent struct {
	Level float64
}

// RemoteAudioLevelEvent reports one remote participant's level.
type RemoteAudioLevelEvent struct {
	UserID string
	Level  float64
}

// DeviceStateEvent reports an audio device appearing or disappearing.
type DeviceStateEvent struct {
	Device domain.AudioDevice
	Active bool
}

// NetworkQualityEvent reports uplink/downlink quality grades, higher is
// worse.
type NetworkQualityEvent struct {
	Uplink   int
	Downlink int
}

// BinaryMessageEvent carries one raw frame from the room's binary channel.
type BinaryMessageEvent struct {
	UserID  string
	Payload []byte
}

func (ErrorEvent) event()            {}
func (UserJoinedEvent) event()       {}
func (UserLeftEvent) event()         {}
func (UserPublishedEvent) event()    {}
func (UserUnpublishedEvent) event()  {}
func (LocalAudioLevelEvent) event()  {}
func (RemoteAudioLevelEvent) event() {}
func (DeviceStateEvent) event()      {}
func (NetworkQualityEvent) event()   {}
func (BinaryMessageEvent) event()    {}
