package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelink/internal/domain"
	"voicelink/internal/ports"
)

type noopSink struct{}

func (noopSink) CallStateChanged(domain.CallState)           {}
func (noopSink) TranscriptAppended(domain.TranscriptMessage) {}
func (noopSink) CaptionUpdated(domain.LiveCaption)           {}
func (noopSink) CaptionCleared(string)                       {}
func (noopSink) SessionError(domain.ErrorCode, string)       {}

type noopDevices struct{}

func (noopDevices) RequestAccess(context.Context) (ports.CaptureStream, error) {
	return nil, context.Canceled
}

func (noopDevices) Enumerate(context.Context) ([]domain.AudioDevice, error) {
	return nil, nil
}

func (noopDevices) Open(context.Context, string) (ports.CaptureStream, error) {
	return nil, context.Canceled
}

func TestBuildFailsWithoutAppID(t *testing.T) {
	t.Setenv("VOICELINK_RTC_APP_ID", "")
	_, err := Build(noopSink{}, noopDevices{})
	require.Error(t, err)
}

func TestBuildAssemblesGraph(t *testing.T) {
	t.Setenv("VOICELINK_RTC_APP_ID", "app-1")

	services, err := Build(noopSink{}, noopDevices{})
	require.NoError(t, err)

	assert.NotNil(t, services.Controller)
	assert.NotNil(t, services.Microphone)
	assert.NotNil(t, services.Transport)
	assert.NotNil(t, services.Log)
	assert.Equal(t, "app-1", services.Config.RTC.AppID)
	assert.Equal(t, domain.CallStateIdle, services.Controller.Snapshot().State)

	// The transport was initialized for the configured app.
	require.NoError(t, services.Transport.Initialize("app-1"))
	require.Error(t, services.Transport.Initialize("app-2"))
}
