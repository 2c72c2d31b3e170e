// Package agentapi is the HTTP adapter for the agent control plane.
package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"voicelink/internal/ports"
)

// Config controls the control-plane endpoint.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client implements ports.AgentControlPlane over the start-agent and
// stop-agent HTTP endpoints.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// NewClient creates a control-plane client.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type startResponse struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error,omitempty"`
}

type stopRequest struct {
	TaskID string `json:"taskId"`
}

type stopResponse struct {
	Error string `json:"error,omitempty"`
}

type startRequest struct {
	AppID         string        `json:"appId"`
	RoomID        string        `json:"roomId"`
	TaskID        string        `json:"taskId"`
	PersonaConfig personaConfig `json:"personaConfig"`
}

type personaConfig struct {
	PersonaID    string `json:"personaId"`
	TargetUserID string `json:"targetUserId,omitempty"`
}

// StartAgent issues the start request and returns the granted task id.
func (c *Client) StartAgent(ctx context.Context, req ports.AgentStartRequest) (string, error) {
	body := startRequest{
		AppID:  req.AppID,
		RoomID: req.RoomID,
		TaskID: req.TaskID,
		PersonaConfig: personaConfig{
			PersonaID:    req.PersonaID,
			TargetUserID: req.UserID,
		},
	}

	var resp startResponse
	if err := c.post(ctx, "start-agent", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", errors.Errorf("control plane rejected start: %s", resp.Error)
	}

	taskID := resp.TaskID
	if taskID == "" {
		taskID = req.TaskID
	}
	c.log.Info("control plane started agent", zap.String("taskId", taskID))
	return taskID, nil
}

// StopAgent issues the stop request for taskID.
func (c *Client) StopAgent(ctx context.Context, taskID string) error {
	var resp stopResponse
	if err := c.post(ctx, "stop-agent", stopRequest{TaskID: taskID}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.Errorf("control plane rejected stop: %s", resp.Error)
	}
	c.log.Info("control plane stopped agent", zap.String("taskId", taskID))
	return nil
}

func (c *Client) post(ctx context.Context, action string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s request", action)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "failed to build %s request", action)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", action)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response", action)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("%s returned %s: %s", action, resp.Status, truncate(raw, 256))
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", action)
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
