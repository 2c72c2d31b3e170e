package domain

import "time"

// CallState models the voice call lifecycle.
type CallState string

const (
	CallStateIdle          CallState = "idle"
	CallStateConnecting    CallState = "connecting"
	CallStateConnected     CallState = "connected"
	CallStateSpeaking      CallState = "speaking"
	CallStateListening     CallState = "listening"
	CallStateThinking      CallState = "thinking"
	CallStateDisconnecting CallState = "disconnecting"
	CallStateError         CallState = "error"
)

// Live reports whether the state represents an established call.
func (s CallState) Live() bool {
	switch s {
	case CallStateConnected, CallStateSpeaking, CallStateListening, CallStateThinking:
		return true
	default:
		return false
	}
}

// Session is the aggregate call state owned by the session controller.
type Session struct {
	State     CallState `json:"state"`
	PersonaID string    `json:"personaId,omitempty"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	TaskID    string    `json:"taskId,omitempty"`
	LastError *Error    `json:"lastError,omitempty"`
}

// Persona describes a selectable agent personality.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Voice        string `json:"voice,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SubtitleUnit is one decoded transcription unit from the subtitle channel.
type SubtitleUnit struct {
	Text      string `json:"text"`
	Language  string `json:"language"`
	UserID    string `json:"userId"`
	Sequence  int    `json:"sequence"`
	Definite  bool   `json:"definite"`
	Paragraph bool   `json:"paragraph"`
}

// CompleteSentence reports whether the unit finalizes an utterance.
func (u SubtitleUnit) CompleteSentence() bool {
	return u.Definite && u.Paragraph
}

// CompletePhrase reports whether the unit closes a phrase within an utterance.
func (u SubtitleUnit) CompletePhrase() bool {
	return u.Definite
}

// SubtitleBatch is one decoded subtitle payload.
type SubtitleBatch struct {
	Type string         `json:"type"`
	Data []SubtitleUnit `json:"data"`
}

// LiveCaption is the in-progress transcription of one speaker's utterance.
type LiveCaption struct {
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Sequence  int       `json:"sequence"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TranscriptMessage is one finalized chat turn. Never mutated after creation.
type TranscriptMessage struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Source    *SubtitleUnit `json:"source,omitempty"`
}

// DeviceKind distinguishes audio endpoint directions.
type DeviceKind string

const (
	DeviceKindInput  DeviceKind = "audioinput"
	DeviceKindOutput DeviceKind = "audiooutput"
)

// AudioDevice is one audio endpoint. Labels may be blank before permission
// is granted.
type AudioDevice struct {
	DeviceID string     `json:"deviceId"`
	Label    string     `json:"label"`
	Kind     DeviceKind `json:"kind"`
}

// PermissionState tracks microphone permission.
type PermissionState string

const (
	PermissionUnchecked PermissionState = "unchecked"
	PermissionGranted   PermissionState = "granted"
	PermissionDenied    PermissionState = "denied"
)

// CaptureMode is the microphone usage mode. Monitoring and Recording are
// mutually exclusive; each owns at most one open capture stream.
type CaptureMode string

const (
	CaptureModeIdle       CaptureMode = "idle"
	CaptureModeMonitoring CaptureMode = "monitoring"
	CaptureModeRecording  CaptureMode = "recording"
)

// VolumeLevel is a normalized [0,1] volume sample.
type VolumeLevel struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

// Percentage returns the RMS level as a 0-100 integer.
func (v VolumeLevel) Percentage() int {
	return int(v.RMS*100 + 0.5)
}

// AgentTask identifies a running remote agent process.
type AgentTask struct {
	TaskID    string `json:"taskId"`
	AppID     string `json:"appId"`
	RoomID    string `json:"roomId"`
	PersonaID string `json:"personaId"`
}
