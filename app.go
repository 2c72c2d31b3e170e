// Package voicelink is the embedding surface for the voice-session core.
// The host application constructs an App with its own event sink and
// media device layer, forwards intents to it, and reads session state,
// transcript, and captions back out.
package voicelink

import (
	"context"
	"errors"

	"voicelink/internal/audio"
	"voicelink/internal/bootstrap"
	"voicelink/internal/config"
	"voicelink/internal/domain"
	"voicelink/internal/ports"
	"voicelink/internal/usecase"
)

// App is the application root.
type App struct {
	controller *usecase.CallController
	mic        *audio.Manager
	cfg        config.Config
}

// NewApp assembles the core. The host supplies the presentation event
// sink and the platform media device layer.
func NewApp(sink ports.EventSink, devices ports.MediaDevices) (*App, error) {
	if devices == nil {
		return nil, errors.New("media device layer is required")
	}

	services, err := bootstrap.Build(sink, devices)
	if err != nil {
		return nil, err
	}

	return &App{
		controller: services.Controller,
		mic:        services.Microphone,
		cfg:        services.Config,
	}, nil
}

// SelectPersona chooses the agent personality for the next call.
func (a *App) SelectPersona(id string) error {
	return a.controller.SelectPersona(id)
}

// StartCall connects the session. An empty deviceID falls back to the
// currently selected microphone.
func (a *App) StartCall(ctx context.Context, deviceID string) error {
	return a.controller.StartCall(ctx, deviceID)
}

// EndCall disconnects the session. No-op while idle.
func (a *App) EndCall(ctx context.Context) error {
	return a.controller.EndCall(ctx)
}

// Reset returns everything to initial values, disconnecting first if live.
func (a *App) Reset(ctx context.Context) {
	a.controller.Reset(ctx)
}

// Shutdown is the host lifecycle hook for navigation-away/close signals.
func (a *App) Shutdown(ctx context.Context) {
	a.controller.Shutdown(ctx)
}

// Session returns a copy of the session aggregate.
func (a *App) Session() domain.Session {
	return a.controller.Snapshot()
}

// Transcript returns the finalized transcript in order.
func (a *App) Transcript() []domain.TranscriptMessage {
	return a.controller.Messages()
}

// LiveCaptions returns the in-progress captions keyed by speaker.
func (a *App) LiveCaptions() map[string]domain.LiveCaption {
	return a.controller.LiveCaptions()
}

// Personas returns the selectable persona catalogue.
func (a *App) Personas() []domain.Persona {
	return append([]domain.Persona(nil), a.cfg.Personas...)
}

// RequestPermission asks for one-shot microphone access.
func (a *App) RequestPermission(ctx context.Context) error {
	return a.mic.RequestPermission(ctx)
}

// Devices lists audio input endpoints, refreshing the catalogue.
func (a *App) Devices(ctx context.Context) []domain.AudioDevice {
	return a.mic.EnumerateDevices(ctx)
}

// SwitchDevice re-targets capture at a different microphone.
func (a *App) SwitchDevice(ctx context.Context, deviceID string) error {
	return a.mic.SwitchDevice(ctx, deviceID)
}

// StartMonitoring begins volume-only metering on the given device.
func (a *App) StartMonitoring(ctx context.Context, deviceID string) error {
	return a.mic.StartMonitoring(ctx, deviceID)
}

// StopMonitoring ends volume-only metering.
func (a *App) StopMonitoring() {
	a.mic.StopMonitoring()
}

// ToggleMute flips the mute flag and returns the new value.
func (a *App) ToggleMute() bool {
	muted := !a.mic.Muted()
	a.mic.SetMuted(muted)
	return muted
}

// Volume returns the latest normalized volume sample.
func (a *App) Volume() domain.VolumeLevel {
	return a.mic.Volume()
}
