package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"voicelink/internal/domain"
	"voicelink/internal/ports"
	"voicelink/internal/subtitle"
)

const (
	defaultSpeakingThreshold  = 0.1
	defaultListeningThreshold = 0.1

	// networkQualityBad mirrors the transport's worst quality grade.
	networkQualityBad = 5
)

// Config carries the session identity and tunables.
type Config struct {
	AppID  string
	RoomID string
	UserID string
	Token  string

	Personas []domain.Persona

	// Audio-level thresholds flipping the speaking/listening refinements.
	// Best-effort UI hints, not load-bearing contracts.
	SpeakingThreshold  float64
	ListeningThreshold float64
}

// CallController is the top-level session state machine. It reconciles
// user intents, transport events, and agent lifecycle into one coherent
// call state, and owns the transcript view.
type CallController struct {
	transport  ports.Transport
	mic        ports.CaptureManager
	agent      ports.AgentLifecycle
	transcript *subtitle.Reconciler
	events     ports.EventSink
	log        *zap.Logger
	cfg        Config

	mu          sync.Mutex
	session     domain.Session
	persona     *domain.Persona
	connecting  bool
	tearingDown bool
	capturing   bool
}

// NewCallController wires a controller in the idle state.
func NewCallController(
	transport ports.Transport,
	mic ports.CaptureManager,
	agent ports.AgentLifecycle,
	events ports.EventSink,
	log *zap.Logger,
	cfg Config,
) *CallController {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SpeakingThreshold <= 0 {
		cfg.SpeakingThreshold = defaultSpeakingThreshold
	}
	if cfg.ListeningThreshold <= 0 {
		cfg.ListeningThreshold = defaultListeningThreshold
	}
	return &CallController{
		transport:  transport,
		mic:        mic,
		agent:      agent,
		transcript: subtitle.NewReconciler(),
		events:     events,
		log:        log,
		cfg:        cfg,
		session: domain.Session{
			State:  domain.CallStateIdle,
			RoomID: cfg.RoomID,
			UserID: cfg.UserID,
		},
	}
}

// SelectPersona chooses the agent personality for the next call.
func (c *CallController) SelectPersona(id string) error {
	persona, ok := c.findPersona(id)
	if !ok {
		return domain.NewError(domain.ErrNoPersona, "unknown persona "+id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.persona = &persona
	c.session.PersonaID = persona.ID
	c.log.Info("persona selected", zap.String("personaId", persona.ID), zap.String("name", persona.Name))
	return nil
}

func (c *CallController) findPersona(id string) (domain.Persona, bool) {
	for _, p := range c.cfg.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Persona{}, false
}

// StartCall drives Idle→Connecting→Connected: join the transport, begin
// and publish capture when a device is resolved, then start the agent.
// Any failure mid-sequence records the error, forces the error state, and
// best-effort releases everything acquired so far.
func (c *CallController) StartCall(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	if c.persona == nil {
		c.mu.Unlock()
		return domain.NewError(domain.ErrNoPersona, "no persona selected")
	}
	if c.connecting || c.tearingDown {
		c.mu.Unlock()
		return domain.NewError(domain.ErrOperationInFlight, "call setup already in flight")
	}
	if c.session.State != domain.CallStateIdle && c.session.State != domain.CallStateError {
		c.mu.Unlock()
		return domain.NewError(domain.ErrInvalidTransition, "call is already active")
	}
	c.connecting = true
	c.session.LastError = nil
	persona := *c.persona
	c.setStateLocked(domain.CallStateConnecting)
	c.mu.Unlock()
	c.emitState(domain.CallStateConnecting)

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	opts := ports.PublishOptions{AutoPublish: true, SubscribeAudio: true}
	if err := c.transport.Join(ctx, c.cfg.Token, c.cfg.RoomID, c.cfg.UserID, opts); err != nil {
		return c.failConnect(ctx, domain.NewError(domain.ErrTransport, "failed to join room").WithCause(err))
	}
	c.log.Info("joined room", zap.String("roomId", c.cfg.RoomID))

	if deviceID == "" {
		if selected, ok := c.mic.SelectedDevice(); ok {
			deviceID = selected.DeviceID
		}
	}
	if deviceID == "" {
		c.log.Warn("no capture device resolved, continuing without publishing audio")
	} else if err := c.beginCapture(ctx, deviceID); err != nil {
		return c.failConnect(ctx, err)
	}

	task, err := c.agent.Start(ctx, ports.AgentStartParams{
		AppID:     c.cfg.AppID,
		RoomID:    c.cfg.RoomID,
		UserID:    c.cfg.UserID,
		PersonaID: persona.ID,
	})
	if err != nil {
		return c.failConnect(ctx, err)
	}

	c.mu.Lock()
	c.session.TaskID = task.TaskID
	c.setStateLocked(domain.CallStateConnected)
	c.mu.Unlock()
	c.emitState(domain.CallStateConnected)

	c.log.Info("call connected", zap.String("taskId", task.TaskID), zap.String("personaId", persona.ID))
	return nil
}

func (c *CallController) beginCapture(ctx context.Context, deviceID string) error {
	// The monitoring stream must be gone before capture claims the device.
	c.mic.StopMonitoring()

	if err := c.transport.SetCaptureDevice(deviceID); err != nil {
		return domain.NewError(domain.ErrTransport, "failed to select capture device").WithCause(err)
	}
	if err := c.transport.StartCapture(deviceID); err != nil {
		return domain.NewError(domain.ErrTransport, "failed to start capture").WithCause(err)
	}

	// The engine holds the device from here on; mark it acquired now so a
	// failed publish or recording start still unwinds the capture.
	c.mu.Lock()
	c.capturing = true
	c.mu.Unlock()

	if err := c.transport.Publish(ports.MediaKindAudio); err != nil {
		return domain.NewError(domain.ErrTransport, "failed to publish audio").WithCause(err)
	}
	return c.mic.StartRecording(ctx, deviceID)
}

// failConnect records the failure and unwinds whatever the connect
// sequence already acquired. A failed start never leaves the transport
// half-joined.
func (c *CallController) failConnect(ctx context.Context, err error) error {
	c.log.Error("call setup failed", zap.Error(err))

	c.releaseCall(ctx)

	c.mu.Lock()
	c.session.LastError = domain.AsError(err, domain.ErrTransport)
	c.session.TaskID = ""
	c.setStateLocked(domain.CallStateError)
	c.mu.Unlock()
	c.emitState(domain.CallStateError)

	if c.events != nil {
		c.events.SessionError(domain.AsError(err, domain.ErrTransport).Code, err.Error())
	}
	return err
}

// releaseCall is the shared best-effort teardown: stop the agent, stop
// and unpublish capture, leave the room. Failures are logged, never
// propagated; teardown must terminate.
func (c *CallController) releaseCall(ctx context.Context) {
	if err := c.agent.Stop(ctx); err != nil {
		c.log.Warn("agent stop during teardown failed", zap.Error(err))
	}

	c.mu.Lock()
	capturing := c.capturing
	c.capturing = false
	c.mu.Unlock()

	if capturing {
		if err := c.transport.StopCapture(); err != nil {
			c.log.Warn("stop capture during teardown failed", zap.Error(err))
		}
		c.mic.StopRecording()
	}

	if err := c.transport.Leave(ctx); err != nil {
		c.log.Warn("leave during teardown failed", zap.Error(err))
	}
}

// EndCall drives any live state through Disconnecting back to Idle.
// Calling it while idle is a no-op and issues no control-plane calls.
// While a StartCall is still connecting the teardown is rejected rather
// than interleaved with the connect sequence.
func (c *CallController) EndCall(ctx context.Context) error {
	c.mu.Lock()
	if c.session.State == domain.CallStateIdle || c.tearingDown {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return domain.NewError(domain.ErrOperationInFlight, "call setup still in flight")
	}
	c.tearingDown = true
	c.setStateLocked(domain.CallStateDisconnecting)
	c.mu.Unlock()
	c.emitState(domain.CallStateDisconnecting)

	c.releaseCall(ctx)

	c.mu.Lock()
	c.session.TaskID = ""
	c.tearingDown = false
	c.setStateLocked(domain.CallStateIdle)
	c.mu.Unlock()
	c.emitState(domain.CallStateIdle)

	c.log.Info("call ended")
	return nil
}

// Reset returns the session to its initial values from any state,
// best-effort disconnecting first when live. Transcript, captions, task
// id, and errors are all cleared.
func (c *CallController) Reset(ctx context.Context) {
	c.mu.Lock()
	live := c.session.State.Live() || c.session.State == domain.CallStateConnecting
	c.mu.Unlock()

	if live {
		c.releaseCall(ctx)
	}

	c.transcript.Reset()
	c.agent.Reset()
	c.mic.StopRecording()
	c.mic.StopMonitoring()

	c.mu.Lock()
	c.persona = nil
	c.capturing = false
	c.session = domain.Session{
		State:  domain.CallStateIdle,
		RoomID: c.cfg.RoomID,
		UserID: c.cfg.UserID,
	}
	c.mu.Unlock()

	c.emitState(domain.CallStateIdle)
	c.log.Info("session reset")
}

// Shutdown is the host's teardown hook for page-unload style lifecycle
// signals: best-effort end the call, then dispose the transport.
func (c *CallController) Shutdown(ctx context.Context) {
	if err := c.EndCall(ctx); err != nil {
		c.log.Warn("end call during shutdown failed", zap.Error(err))
	}
	if err := c.transport.Dispose(); err != nil {
		c.log.Warn("transport dispose failed", zap.Error(err))
	}
}

// Snapshot returns a copy of the session aggregate.
func (c *CallController) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Messages returns the finalized transcript.
func (c *CallController) Messages() []domain.TranscriptMessage {
	return c.transcript.Messages()
}

// LiveCaptions returns the in-progress captions keyed by speaker.
func (c *CallController) LiveCaptions() map[string]domain.LiveCaption {
	return c.transcript.LiveCaptions()
}

// setStateLocked applies a transition and reports whether the state
// actually changed. The caller emits the change through emitState after
// releasing the lock; a sink may reenter the controller.
func (c *CallController) setStateLocked(state domain.CallState) bool {
	if c.session.State == state {
		return false
	}
	c.session.State = state
	return true
}

func (c *CallController) emitState(state domain.CallState) {
	if c.events != nil {
		c.events.CallStateChanged(state)
	}
}
