package rtcbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelink/internal/ports"
)

// gatewayStub is a one-connection signaling server. Received commands are
// queued; test bodies push frames to the client through the send channels.
type gatewayStub struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	auth     string
	commands []command

	connected chan *websocket.Conn
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()
	stub := &gatewayStub{t: t, connected: make(chan *websocket.Conn, 1)}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.auth = r.Header.Get("Authorization")
		stub.mu.Unlock()

		conn, err := stub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		stub.connected <- conn

		for {
			var cmd command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			stub.mu.Lock()
			stub.commands = append(stub.commands, cmd)
			stub.mu.Unlock()
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *gatewayStub) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *gatewayStub) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.connected:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func (s *gatewayStub) waitCommand(t *testing.T, op string) command {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		for _, cmd := range s.commands {
			if cmd.Op == op {
				s.mu.Unlock()
				return cmd
			}
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("command %q never arrived", op)
	return command{}
}

type eventCollector struct {
	mu     sync.Mutex
	events []ports.Event
}

func (c *eventCollector) handle(event ports.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) wait(t *testing.T, n int) []ports.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.events) >= n {
			out := append([]ports.Event(nil), c.events...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d events before deadline", n)
	return nil
}

func joinedBridge(t *testing.T, stub *gatewayStub, collector *eventCollector) *Bridge {
	t.Helper()
	b := New(Config{URL: stub.url(), AuthToken: "secret"}, nil)
	b.OnEvent(collector.handle)
	require.NoError(t, b.Initialize("app-1"))
	require.NoError(t, b.Join(context.Background(), "tok", "Room123", "User123", ports.PublishOptions{
		AutoPublish:    true,
		SubscribeAudio: true,
	}))
	return b
}

func TestJoinSendsCommandWithAuth(t *testing.T) {
	stub := newGatewayStub(t)
	collector := &eventCollector{}
	b := joinedBridge(t, stub, collector)
	defer func() { _ = b.Dispose() }()

	join := stub.waitCommand(t, "join")
	assert.Equal(t, "app-1", join.AppID)
	assert.Equal(t, "tok", join.Token)
	assert.Equal(t, "Room123", join.RoomID)
	assert.Equal(t, "User123", join.Identity)
	assert.True(t, join.AutoPublish)
	assert.True(t, join.SubscribeAudio)

	stub.mu.Lock()
	auth := stub.auth
	stub.mu.Unlock()
	assert.Equal(t, "Bearer secret", auth)
}

func TestInitializeRejectsSecondApp(t *testing.T) {
	b := New(Config{}, nil)
	require.NoError(t, b.Initialize("app-1"))
	require.NoError(t, b.Initialize("app-1"))
	require.Error(t, b.Initialize("app-2"))
}

func TestDoubleJoinRejected(t *testing.T) {
	stub := newGatewayStub(t)
	b := joinedBridge(t, stub, &eventCollector{})
	defer func() { _ = b.Dispose() }()

	err := b.Join(context.Background(), "tok", "Room123", "User123", ports.PublishOptions{})
	require.Error(t, err)
}

func TestCommandsRequireJoin(t *testing.T) {
	b := New(Config{}, nil)
	require.Error(t, b.StartCapture("mic-a"))
	require.Error(t, b.Publish(ports.MediaKindAudio))
	require.Error(t, b.StopCapture())
}

func TestCaptureCommandsOnTheWire(t *testing.T) {
	stub := newGatewayStub(t)
	b := joinedBridge(t, stub, &eventCollector{})
	defer func() { _ = b.Dispose() }()

	require.NoError(t, b.SetCaptureDevice("mic-a"))
	require.NoError(t, b.StartCapture("mic-a"))
	require.NoError(t, b.Publish(ports.MediaKindAudio))
	require.NoError(t, b.StopCapture())

	assert.Equal(t, "mic-a", stub.waitCommand(t, "setCaptureDevice").DeviceID)
	assert.Equal(t, "mic-a", stub.waitCommand(t, "startCapture").DeviceID)
	assert.Equal(t, "audio", stub.waitCommand(t, "publish").Kind)
	stub.waitCommand(t, "stopCapture")
}

func TestEnvelopesBecomeEvents(t *testing.T) {
	stub := newGatewayStub(t)
	collector := &eventCollector{}
	b := joinedBridge(t, stub, collector)
	defer func() { _ = b.Dispose() }()

	conn := stub.waitConn(t)
	frames := []string{
		`{"event":"user-joined","userId":"bot-agent"}`,
		`{"event":"local-audio-level","level":0.42}`,
		`{"event":"remote-audio-level","userId":"bot-agent","level":0.7}`,
		`{"event":"network-quality","uplink":5,"downlink":4}`,
		`{"event":"device-state-changed","deviceId":"mic-b","label":"Mic B","active":true}`,
		`{"event":"error","code":1101,"message":"kicked"}`,
	}
	for _, frame := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	}

	events := collector.wait(t, len(frames))
	assert.Equal(t, ports.UserJoinedEvent{UserID: "bot-agent"}, events[0])
	assert.Equal(t, ports.LocalAudioLevelEvent{Level: 0.42}, events[1])
	assert.Equal(t, ports.RemoteAudioLevelEvent{UserID: "bot-agent", Level: 0.7}, events[2])
	assert.Equal(t, ports.NetworkQualityEvent{Uplink: 5, Downlink: 4}, events[3])

	device, ok := events[4].(ports.DeviceStateEvent)
	require.True(t, ok)
	assert.Equal(t, "mic-b", device.Device.DeviceID)
	assert.True(t, device.Active)

	assert.Equal(t, ports.ErrorEvent{Code: 1101, Message: "kicked"}, events[5])
}

func TestBinaryFramesPassThroughOpaque(t *testing.T) {
	stub := newGatewayStub(t)
	collector := &eventCollector{}
	b := joinedBridge(t, stub, collector)
	defer func() { _ = b.Dispose() }()

	conn := stub.waitConn(t)
	payload := []byte{0x73, 0x75, 0x62, 0x76, 0x00, 0x00, 0x00, 0x00}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, payload))

	events := collector.wait(t, 1)
	bin, ok := events[0].(ports.BinaryMessageEvent)
	require.True(t, ok)
	assert.Equal(t, payload, bin.Payload)
}

func TestUnknownAndMalformedEnvelopesDropped(t *testing.T) {
	stub := newGatewayStub(t)
	collector := &eventCollector{}
	b := joinedBridge(t, stub, collector)
	defer func() { _ = b.Dispose() }()

	conn := stub.waitConn(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"solar-flare"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{{{`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"user-left","userId":"u2"}`)))

	events := collector.wait(t, 1)
	assert.Equal(t, ports.UserLeftEvent{UserID: "u2"}, events[0])
}

func TestLeaveSendsCommandAndSwallowsNormalClose(t *testing.T) {
	stub := newGatewayStub(t)
	b := joinedBridge(t, stub, &eventCollector{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Leave(ctx))
	stub.waitCommand(t, "leave")

	// A second leave on a closed bridge is a no-op.
	require.NoError(t, b.Leave(ctx))
}

func TestCommandEncodingOmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(command{Op: "stopCapture"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"stopCapture"}`, string(raw))
}
