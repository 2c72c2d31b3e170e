// Package agent coordinates the remote conversational agent task.
package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicelink/internal/domain"
	"voicelink/internal/ports"
)

// Coordinator issues idempotent start/stop requests to the agent control
// plane and tracks the active task. One task per session; single in-flight
// call at a time.
type Coordinator struct {
	api ports.AgentControlPlane
	log *zap.Logger

	mu       sync.Mutex
	task     *domain.AgentTask
	inFlight bool
}

// NewCoordinator creates a coordinator with no active task.
func NewCoordinator(api ports.AgentControlPlane, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{api: api, log: log}
}

// Start launches the remote agent. A stray task left over on the control
// plane is stopped best-effort first; that cleanup may fail without
// blocking the start, since control-plane idempotency cannot be assumed.
func (c *Coordinator) Start(ctx context.Context, params ports.AgentStartParams) (domain.AgentTask, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return domain.AgentTask{}, domain.NewError(domain.ErrOperationInFlight, "agent start already in flight")
	}
	c.inFlight = true
	previous := ""
	if c.task != nil {
		previous = c.task.TaskID
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	// The task id doubles as the stable cleanup handle: reuse the user
	// identity when present so an orphaned task from a crashed session
	// can be reclaimed.
	taskID := params.UserID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if previous == "" {
		previous = taskID
	}

	if err := c.api.StopAgent(ctx, previous); err != nil {
		c.log.Warn("pre-start cleanup of stray agent task failed", zap.String("taskId", previous), zap.Error(err))
	}

	granted, err := c.api.StartAgent(ctx, ports.AgentStartRequest{
		AppID:     params.AppID,
		RoomID:    params.RoomID,
		TaskID:    taskID,
		PersonaID: params.PersonaID,
		UserID:    params.UserID,
	})
	if err != nil {
		return domain.AgentTask{}, domain.NewError(domain.ErrAgentStart, "failed to start agent").WithCause(err)
	}
	if granted == "" {
		granted = taskID
	}

	task := domain.AgentTask{
		TaskID:    granted,
		AppID:     params.AppID,
		RoomID:    params.RoomID,
		PersonaID: params.PersonaID,
	}

	c.mu.Lock()
	c.task = &task
	c.mu.Unlock()

	c.log.Info("agent started", zap.String("taskId", task.TaskID), zap.String("personaId", task.PersonaID))
	return task, nil
}

// Stop stops the active agent task. Safe to call with no task known: that
// is a logged no-op. The tracked task is cleared regardless of the stop
// request's outcome, so a failed stop is reported but never leaves a task
// pinned to a finished session.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return domain.NewError(domain.ErrOperationInFlight, "agent call already in flight")
	}
	if c.task == nil {
		c.mu.Unlock()
		c.log.Info("agent stop requested with no active task")
		return nil
	}
	c.inFlight = true
	taskID := c.task.TaskID
	c.task = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if err := c.api.StopAgent(ctx, taskID); err != nil {
		c.log.Warn("agent stop failed", zap.String("taskId", taskID), zap.Error(err))
		return domain.NewError(domain.ErrAgentStop, "failed to stop agent").WithCause(err)
	}

	c.log.Info("agent stopped", zap.String("taskId", taskID))
	return nil
}

// Task returns the active task, if any.
func (c *Coordinator) Task() (domain.AgentTask, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task == nil {
		return domain.AgentTask{}, false
	}
	return *c.task, true
}

// Reset forgets the tracked task without contacting the control plane.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.task = nil
}
