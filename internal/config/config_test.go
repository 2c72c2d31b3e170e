package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAppID(t *testing.T) {
	t.Setenv("VOICELINK_RTC_APP_ID", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOICELINK_RTC_APP_ID")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOICELINK_RTC_APP_ID", "app-1")
	t.Setenv("VOICELINK_RTC_ROOM_ID", "")
	t.Setenv("VOICELINK_RTC_USER_ID", "")
	t.Setenv("VOICELINK_AGENT_TIMEOUT_MS", "")
	t.Setenv("VOICELINK_AUDIO_FRAME_MS", "")
	t.Setenv("VOICELINK_SPEAKING_THRESHOLD", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "app-1", cfg.RTC.AppID)
	assert.Equal(t, "Room123", cfg.RTC.RoomID)
	assert.Equal(t, "User123", cfg.RTC.UserID)
	assert.Equal(t, 15*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 16*time.Millisecond, cfg.Audio.FrameInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Audio.SettleDelay)
	assert.InDelta(t, 0.1, cfg.Session.SpeakingThreshold, 1e-9)
	assert.InDelta(t, 0.1, cfg.Session.ListeningThreshold, 1e-9)
	assert.NotEmpty(t, cfg.Personas)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VOICELINK_RTC_APP_ID", "app-1")
	t.Setenv("VOICELINK_RTC_ROOM_ID", "ops-room")
	t.Setenv("VOICELINK_RTC_USER_ID", "alice")
	t.Setenv("VOICELINK_AGENT_API_URL", "https://agents.internal/v1")
	t.Setenv("VOICELINK_AGENT_API_TOKEN", "tok")
	t.Setenv("VOICELINK_AGENT_TIMEOUT_MS", "3000")
	t.Setenv("VOICELINK_SPEAKING_THRESHOLD", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ops-room", cfg.RTC.RoomID)
	assert.Equal(t, "alice", cfg.RTC.UserID)
	assert.Equal(t, "https://agents.internal/v1", cfg.Agent.APIBaseURL)
	assert.Equal(t, "tok", cfg.Agent.AuthToken)
	assert.Equal(t, 3*time.Second, cfg.Agent.Timeout)
	assert.InDelta(t, 0.25, cfg.Session.SpeakingThreshold, 1e-9)
}

func TestLoadIgnoresGarbageNumbers(t *testing.T) {
	t.Setenv("VOICELINK_RTC_APP_ID", "app-1")
	t.Setenv("VOICELINK_AGENT_TIMEOUT_MS", "soon")
	t.Setenv("VOICELINK_SPEAKING_THRESHOLD", "loud")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Agent.Timeout)
	assert.InDelta(t, 0.1, cfg.Session.SpeakingThreshold, 1e-9)
}

func TestDefaultPersonasAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DefaultPersonas() {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Name)
		assert.False(t, seen[p.ID], "duplicate persona id %s", p.ID)
		seen[p.ID] = true
	}
}
