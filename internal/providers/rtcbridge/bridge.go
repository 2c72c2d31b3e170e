// Package rtcbridge adapts a websocket signaling gateway to the transport
// port: control calls become JSON commands, inbound envelopes become the
// closed event union, delivered in wire order.
package rtcbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voicelink/internal/domain"
	"voicelink/internal/ports"
)

// Config controls the signaling endpoint.
type Config struct {
	URL       string
	AuthToken string
}

// Bridge implements ports.Transport over one signaling websocket.
type Bridge struct {
	cfg     Config
	log     *zap.Logger
	handler func(ports.Event)

	mu       sync.Mutex
	conn     *websocket.Conn
	appID    string
	readDone chan struct{}

	errMu sync.Mutex
	err   error
}

// New creates a disconnected bridge.
func New(cfg Config, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{cfg: cfg, log: log}
}

// OnEvent registers the single event handler. Must be set before Join;
// events are delivered from one goroutine in the order they arrive.
func (b *Bridge) OnEvent(handler func(ports.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Initialize records the application id used by subsequent joins.
func (b *Bridge) Initialize(appID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.appID != "" && b.appID != appID {
		return domain.NewError(domain.ErrTransport, "bridge already initialized for another app")
	}
	b.appID = appID
	return nil
}

// Join dials the gateway and enters the room.
func (b *Bridge) Join(ctx context.Context, token, roomID, identity string, opts ports.PublishOptions) error {
	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		return domain.NewError(domain.ErrTransport, "already joined")
	}
	appID := b.appID
	b.mu.Unlock()

	headers := http.Header{}
	if b.cfg.AuthToken != "" {
		headers.Set("Authorization", "Bearer "+b.cfg.AuthToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.URL, headers)
	if err != nil {
		return domain.NewError(domain.ErrTransport, "failed to dial signaling gateway").WithCause(err)
	}

	join := command{
		Op:             "join",
		AppID:          appID,
		Token:          token,
		RoomID:         roomID,
		Identity:       identity,
		AutoPublish:    opts.AutoPublish,
		SubscribeAudio: opts.SubscribeAudio,
		SubscribeVideo: opts.SubscribeVideo,
	}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return domain.NewError(domain.ErrTransport, "failed to send join").WithCause(err)
	}

	done := make(chan struct{})

	b.mu.Lock()
	b.conn = conn
	b.readDone = done
	b.mu.Unlock()

	go b.readLoop(conn, done)
	b.log.Info("joined signaling gateway", zap.String("roomId", roomID), zap.String("identity", identity))
	return nil
}

// SetCaptureDevice selects the capture device on the media engine.
func (b *Bridge) SetCaptureDevice(deviceID string) error {
	return b.send(command{Op: "setCaptureDevice", DeviceID: deviceID})
}

// StartCapture starts microphone capture on the media engine.
func (b *Bridge) StartCapture(deviceID string) error {
	return b.send(command{Op: "startCapture", DeviceID: deviceID})
}

// Publish publishes the captured media into the room.
func (b *Bridge) Publish(kind ports.MediaKind) error {
	return b.send(command{Op: "publish", Kind: string(kind)})
}

// StopCapture stops microphone capture.
func (b *Bridge) StopCapture() error {
	return b.send(command{Op: "stopCapture"})
}

// Leave exits the room and closes the socket.
func (b *Bridge) Leave(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	done := b.readDone
	b.conn = nil
	b.readDone = nil
	b.mu.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.WriteJSON(command{Op: "leave"}); err != nil {
		b.log.Warn("failed to send leave", zap.Error(err))
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.takeErr()
}

// Dispose force-closes whatever is still open.
func (b *Bridge) Dispose() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.readDone = nil
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

func (b *Bridge) send(cmd command) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return domain.NewError(domain.ErrTransport, "not joined")
	}
	if err := conn.WriteJSON(cmd); err != nil {
		return domain.NewError(domain.ErrTransport, "failed to send "+cmd.Op).WithCause(err)
	}
	return nil
}

func (b *Bridge) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			b.setErr(err)
			return
		}

		if kind == websocket.BinaryMessage {
			b.deliver(ports.BinaryMessageEvent{Payload: payload})
			continue
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			b.log.Debug("dropped undecodable signaling envelope", zap.Int("size", len(payload)))
			continue
		}
		if event := env.toEvent(); event != nil {
			b.deliver(event)
		} else {
			b.log.Debug("unknown signaling event", zap.String("event", env.Event))
		}
	}
}

func (b *Bridge) deliver(event ports.Event) {
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

func (b *Bridge) setErr(err error) {
	// A locally initiated close surfaces as net.ErrClosed in the read
	// loop; that is a clean shutdown, not a transport failure.
	if errors.Is(err, net.ErrClosed) {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

func (b *Bridge) takeErr() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	err := b.err
	b.err = nil
	return err
}

type command struct {
	Op             string `json:"op"`
	AppID          string `json:"appId,omitempty"`
	Token          string `json:"token,omitempty"`
	RoomID         string `json:"roomId,omitempty"`
	Identity       string `json:"identity,omitempty"`
	DeviceID       string `json:"deviceId,omitempty"`
	Kind           string `json:"kind,omitempty"`
	AutoPublish    bool   `json:"autoPublish,omitempty"`
	SubscribeAudio bool   `json:"subscribeAudio,omitempty"`
	SubscribeVideo bool   `json:"subscribeVideo,omitempty"`
}

type envelope struct {
	Event    string  `json:"event"`
	Code     int     `json:"code,omitempty"`
	Message  string  `json:"message,omitempty"`
	UserID   string  `json:"userId,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Level    float64 `json:"level,omitempty"`
	Uplink   int     `json:"uplink,omitempty"`
	Downlink int     `json:"downlink,omitempty"`
	DeviceID string  `json:"deviceId,omitempty"`
	Label    string  `json:"label,omitempty"`
	Active   bool    `json:"active,omitempty"`
}

func (e envelope) toEvent() ports.Event {
	switch e.Event {
	case "error":
		return ports.ErrorEvent{Code: e.Code, Message: e.Message}
	case "user-joined":
		return ports.UserJoinedEvent{UserID: e.UserID}
	case "user-left":
		return ports.UserLeftEvent{UserID: e.UserID}
	case "user-published-stream":
		return ports.UserPublishedEvent{UserID: e.UserID, Kind: ports.MediaKind(e.Kind)}
	case "user-unpublished-stream":
		return ports.UserUnpublishedEvent{UserID: e.UserID, Kind: ports.MediaKind(e.Kind), Reason: e.Reason}
	case "local-audio-level":
		return ports.LocalAudioLevelEvent{Level: e.Level}
	case "remote-audio-level":
		return ports.RemoteAudioLevelEvent{UserID: e.UserID, Level: e.Level}
	case "device-state-changed":
		return ports.DeviceStateEvent{
			Device: domain.AudioDevice{DeviceID: e.DeviceID, Label: e.Label, Kind: domain.DeviceKindInput},
			Active: e.Active,
		}
	case "network-quality":
		return ports.NetworkQualityEvent{Uplink: e.Uplink, Downlink: e.Downlink}
	default:
		return nil
	}
}
