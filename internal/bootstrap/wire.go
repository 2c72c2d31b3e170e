// Package bootstrap assembles the runtime dependency graph.
package bootstrap

import (
	"go.uber.org/zap"

	"voicelink/internal/agent"
	"voicelink/internal/audio"
	"voicelink/internal/config"
	"voicelink/internal/ports"
	"voicelink/internal/providers/agentapi"
	"voicelink/internal/providers/rtcbridge"
	"voicelink/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.CallController
	Microphone *audio.Manager
	Transport  *rtcbridge.Bridge
	Config     config.Config
	Log        *zap.Logger
}

// Build wires all dependencies. The host supplies the platform-owned
// collaborators: the presentation event sink and the media device layer.
func Build(sink ports.EventSink, devices ports.MediaDevices) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return Services{}, err
	}

	mic := audio.NewManager(devices, log.Named("audio"),
		audio.WithFrameInterval(cfg.Audio.FrameInterval),
		audio.WithSettleDelay(cfg.Audio.SettleDelay),
	)

	bridge := rtcbridge.New(rtcbridge.Config{
		URL:       cfg.RTC.GatewayURL,
		AuthToken: cfg.RTC.Token,
	}, log.Named("rtc"))

	coordinator := agent.NewCoordinator(agentapi.NewClient(agentapi.Config{
		BaseURL:   cfg.Agent.APIBaseURL,
		AuthToken: cfg.Agent.AuthToken,
		Timeout:   cfg.Agent.Timeout,
	}, log.Named("agentapi")), log.Named("agent"))

	controller := usecase.NewCallController(bridge, mic, coordinator, sink, log.Named("session"), usecase.Config{
		AppID:              cfg.RTC.AppID,
		RoomID:             cfg.RTC.RoomID,
		UserID:             cfg.RTC.UserID,
		Token:              cfg.RTC.Token,
		Personas:           cfg.Personas,
		SpeakingThreshold:  cfg.Session.SpeakingThreshold,
		ListeningThreshold: cfg.Session.ListeningThreshold,
	})

	// All transport events funnel through the controller in wire order.
	bridge.OnEvent(controller.Handle)

	if err := bridge.Initialize(cfg.RTC.AppID); err != nil {
		return Services{}, err
	}

	return Services{
		Controller: controller,
		Microphone: mic,
		Transport:  bridge,
		Config:     cfg,
		Log:        log,
	}, nil
}
