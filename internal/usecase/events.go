package usecase

import (
	"go.uber.org/zap"

	"voicelink/internal/domain"
	"voicelink/internal/ports"
	"voicelink/internal/subtitle"
)

// Handle dispatches one transport event. Events are processed in arrival
// order; subtitle-derived transcript updates never change the call state,
// while a transport error always forces the error state.
func (c *CallController) Handle(event ports.Event) {
	switch e := event.(type) {
	case ports.ErrorEvent:
		c.handleTransportError(e)
	case ports.LocalAudioLevelEvent:
		c.handleLocalLevel(e)
	case ports.RemoteAudioLevelEvent:
		c.handleRemoteLevel(e)
	case ports.BinaryMessageEvent:
		c.handleBinaryMessage(e)
	case ports.DeviceStateEvent:
		c.log.Info("audio device state changed",
			zap.String("deviceId", e.Device.DeviceID),
			zap.String("label", e.Device.Label),
			zap.Bool("active", e.Active))
		c.mic.RefreshDevices()
	case ports.NetworkQualityEvent:
		if (e.Uplink+e.Downlink)/2 >= networkQualityBad {
			c.log.Warn("network quality degraded",
				zap.Int("uplink", e.Uplink), zap.Int("downlink", e.Downlink))
		}
	case ports.UserJoinedEvent:
		c.log.Info("user joined", zap.String("userId", e.UserID))
	case ports.UserLeftEvent:
		c.log.Info("user left", zap.String("userId", e.UserID))
	case ports.UserPublishedEvent:
		c.log.Info("user published stream", zap.String("userId", e.UserID), zap.String("kind", string(e.Kind)))
	case ports.UserUnpublishedEvent:
		c.log.Info("user unpublished stream",
			zap.String("userId", e.UserID), zap.String("kind", string(e.Kind)), zap.String("reason", e.Reason))
	}
}

func (c *CallController) handleTransportError(e ports.ErrorEvent) {
	err := domain.NewError(domain.ErrTransport, e.Message)
	c.log.Error("transport error", zap.Int("code", e.Code), zap.String("message", e.Message))

	c.mu.Lock()
	c.session.LastError = err
	changed := c.setStateLocked(domain.CallStateError)
	c.mu.Unlock()
	if changed {
		c.emitState(domain.CallStateError)
	}

	if c.events != nil {
		c.events.SessionError(domain.ErrTransport, e.Message)
	}
}

// handleLocalLevel flips the speaking refinement while locally capturing.
func (c *CallController) handleLocalLevel(e ports.LocalAudioLevelEvent) {
	c.mu.Lock()
	if !c.session.State.Live() || !c.capturing {
		c.mu.Unlock()
		return
	}
	changed := false
	if e.Level > c.cfg.SpeakingThreshold && !c.mic.Muted() {
		changed = c.setStateLocked(domain.CallStateSpeaking)
	}
	c.mu.Unlock()
	if changed {
		c.emitState(domain.CallStateSpeaking)
	}
}

// handleRemoteLevel flips the listening refinement when the agent talks.
func (c *CallController) handleRemoteLevel(e ports.RemoteAudioLevelEvent) {
	c.mu.Lock()
	if !c.session.State.Live() {
		c.mu.Unlock()
		return
	}
	changed := false
	if e.Level > c.cfg.ListeningThreshold && subtitle.RoleForUser(e.UserID) == domain.RoleAssistant {
		changed = c.setStateLocked(domain.CallStateListening)
	}
	c.mu.Unlock()
	if changed {
		c.emitState(domain.CallStateListening)
	}
}

// handleBinaryMessage decodes one subtitle frame and folds it into the
// transcript. Malformed frames are dropped with a diagnostic log; they
// never surface as session errors.
func (c *CallController) handleBinaryMessage(e ports.BinaryMessageEvent) {
	batch := subtitle.Decode(e.Payload)
	if batch == nil {
		c.log.Debug("dropped undecodable binary frame",
			zap.String("userId", e.UserID), zap.Int("size", len(e.Payload)))
		return
	}

	result := c.transcript.Apply(*batch)
	if c.events == nil {
		return
	}
	for _, caption := range result.CaptionUpdates {
		c.events.CaptionUpdated(caption)
	}
	for _, msg := range result.NewMessages {
		c.events.TranscriptAppended(msg)
	}
	for _, userID := range result.CaptionsCleared {
		c.events.CaptionCleared(userID)
	}
}
