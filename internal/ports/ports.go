package ports

import (
	"context"

	"voicelink/internal/domain"
)

// MediaKind names a publishable media type.
type MediaKind string

const MediaKindAudio MediaKind = "audio"

// PublishOptions controls how a transport join publishes and subscribes.
type PublishOptions struct {
	AutoPublish    bool
	SubscribeAudio bool
	SubscribeVideo bool
}

// Transport is the real-time media engine control surface. The core issues
// intent calls and consumes the engine's event feed; codec and network
// internals stay behind this boundary.
type Transport interface {
	Initialize(appID string) error
	Join(ctx context.Context, token, roomID, identity string, opts PublishOptions) error
	SetCaptureDevice(deviceID string) error
	StartCapture(deviceID string) error
	Publish(kind MediaKind) error
	Leave(ctx context.Context) error
	StopCapture() error
	Dispose() error
}

// CaptureStream is one open microphone stream. FrequencyData fills dst
// with 0-255 frequency-domain bins and returns the count written.
type CaptureStream interface {
	DeviceID() string
	FrequencyData(dst []byte) int
	Close() error
}

// MediaDevices is the platform media layer the audio manager arbitrates.
type MediaDevices interface {
	// RequestAccess opens a one-shot probe stream to trigger the
	// permission prompt. The caller releases it immediately.
	RequestAccess(ctx context.Context) (CaptureStream, error)
	Enumerate(ctx context.Context) ([]domain.AudioDevice, error)
	Open(ctx context.Context, deviceID string) (CaptureStream, error)
}

// AgentStartRequest is the control-plane start payload.
type AgentStartRequest struct {
	AppID     string `json:"appId"`
	RoomID    string `json:"roomId"`
	TaskID    string `json:"taskId"`
	PersonaID string `json:"personaId"`
	UserID    string `json:"userId"`
}

// AgentControlPlane starts and stops the remote agent process.
type AgentControlPlane interface {
	StartAgent(ctx context.Context, req AgentStartRequest) (taskID string, err error)
	StopAgent(ctx context.Context, taskID string) error
}

// AgentStartParams are the session-level inputs for starting an agent.
type AgentStartParams struct {
	AppID     string
	RoomID    string
	UserID    string
	PersonaID string
}

// AgentLifecycle is the coordinator view the session controller consumes.
type AgentLifecycle interface {
	Start(ctx context.Context, params AgentStartParams) (domain.AgentTask, error)
	Stop(ctx context.Context) error
	Task() (domain.AgentTask, bool)
	Reset()
}

// CaptureManager is the microphone view the session controller consumes.
type CaptureManager interface {
	StartRecording(ctx context.Context, deviceID string) error
	StopRecording()
	StopMonitoring()
	SelectedDevice() (domain.AudioDevice, bool)
	Muted() bool
	RefreshDevices()
}

// EventSink receives session observations for the presentation layer.
type EventSink interface {
	CallStateChanged(state domain.CallState)
	TranscriptAppended(msg domain.TranscriptMessage)
	CaptionUpdated(caption domain.LiveCaption)
	CaptionCleared(userID string)
	SessionError(code domain.ErrorCode, detail string)
}
