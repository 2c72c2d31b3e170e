// Package config resolves runtime configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voicelink/internal/domain"
)

// Config stores all runtime configuration.
type Config struct {
	RTC      RTCConfig
	Agent    AgentConfig
	Audio    AudioConfig
	Session  SessionConfig
	Personas []domain.Persona
}

type RTCConfig struct {
	AppID      string
	Token      string
	RoomID     string
	UserID     string
	GatewayURL string
}

type AgentConfig struct {
	APIBaseURL string
	AuthToken  string
	Timeout    time.Duration
}

type AudioConfig struct {
	FrameInterval time.Duration
	SettleDelay   time.Duration
}

type SessionConfig struct {
	SpeakingThreshold  float64
	ListeningThreshold float64
}

// Load resolves configuration from the environment and an optional .env
// file, with sensible defaults. Only the RTC app id is mandatory.
func Load() (Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := Config{
		RTC: RTCConfig{
			AppID:      strings.TrimSpace(os.Getenv("VOICELINK_RTC_APP_ID")),
			Token:      strings.TrimSpace(os.Getenv("VOICELINK_RTC_TOKEN")),
			RoomID:     envOrDefault("VOICELINK_RTC_ROOM_ID", "Room123"),
			UserID:     envOrDefault("VOICELINK_RTC_USER_ID", "User123"),
			GatewayURL: envOrDefault("VOICELINK_RTC_GATEWAY_URL", "wss://localhost:8443/rtc"),
		},
		Agent: AgentConfig{
			APIBaseURL: envOrDefault("VOICELINK_AGENT_API_URL", "https://localhost:8443/agent"),
			AuthToken:  strings.TrimSpace(os.Getenv("VOICELINK_AGENT_API_TOKEN")),
			Timeout:    time.Duration(envOrDefaultInt("VOICELINK_AGENT_TIMEOUT_MS", 15000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			FrameInterval: time.Duration(envOrDefaultInt("VOICELINK_AUDIO_FRAME_MS", 16)) * time.Millisecond,
			SettleDelay:   time.Duration(envOrDefaultInt("VOICELINK_DEVICE_SETTLE_MS", 200)) * time.Millisecond,
		},
		Session: SessionConfig{
			SpeakingThreshold:  envOrDefaultFloat("VOICELINK_SPEAKING_THRESHOLD", 0.1),
			ListeningThreshold: envOrDefaultFloat("VOICELINK_LISTENING_THRESHOLD", 0.1),
		},
		Personas: DefaultPersonas(),
	}

	if cfg.RTC.AppID == "" {
		return Config{}, errors.New("VOICELINK_RTC_APP_ID is not configured")
	}
	if cfg.Audio.FrameInterval <= 0 {
		cfg.Audio.FrameInterval = 16 * time.Millisecond
	}
	if cfg.Session.SpeakingThreshold <= 0 {
		cfg.Session.SpeakingThreshold = 0.1
	}
	if cfg.Session.ListeningThreshold <= 0 {
		cfg.Session.ListeningThreshold = 0.1
	}

	return cfg, nil
}

// DefaultPersonas is the built-in persona catalogue.
func DefaultPersonas() []domain.Persona {
	return []domain.Persona{
		{
			ID:          "assistant",
			Name:        "Assistant",
			Description: "A friendly general-purpose voice assistant.",
			Voice:       "standard",
		},
		{
			ID:          "storyteller",
			Name:        "Storyteller",
			Description: "Narrates and improvises stories on request.",
			Voice:       "warm",
		},
		{
			ID:          "interviewer",
			Name:        "Interviewer",
			Description: "Runs mock interviews and gives feedback.",
			Voice:       "neutral",
		},
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
