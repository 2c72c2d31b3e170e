// Package audio arbitrates access to the physical microphone: permission,
// device catalogue, exclusive monitor/record modes, and volume sampling.
package audio

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"voicelink/internal/domain"
	"voicelink/internal/ports"
)

const (
	defaultFrameInterval = 16 * time.Millisecond
	defaultSettleDelay   = 200 * time.Millisecond

	// frequencyBins matches an analyser with fftSize 256.
	frequencyBins = 128
)

// Option tunes a Manager.
type Option func(*Manager)

// WithFrameInterval overrides the volume sampling cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.frameInterval = d
		}
	}
}

// WithSettleDelay overrides the stop→start settle pause used on device switch.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.settleDelay = d
		}
	}
}

// Manager owns the microphone resource. At most one capture stream is open
// at any time; entering a mode tears the previous one down first.
type Manager struct {
	devices ports.MediaDevices
	log     *zap.Logger

	frameInterval time.Duration
	settleDelay   time.Duration

	mu         sync.Mutex
	permission domain.PermissionState
	mode       domain.CaptureMode
	catalogue  []domain.AudioDevice
	selected   *domain.AudioDevice
	stream     ports.CaptureStream
	muted      bool
	switching  bool
	lastErr    error

	samplerStop chan struct{}
	samplerDone chan struct{}

	volMu  sync.Mutex
	volume domain.VolumeLevel

	refreshMu sync.Mutex
	debounced func(func())
}

// NewManager creates an idle manager with an unchecked permission state.
func NewManager(devices ports.MediaDevices, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		devices:       devices,
		log:           log,
		frameInterval: defaultFrameInterval,
		settleDelay:   defaultSettleDelay,
		permission:    domain.PermissionUnchecked,
		mode:          domain.CaptureModeIdle,
		debounced:     debounce.New(300 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequestPermission requests one-shot microphone access and releases the
// probe stream immediately. The device catalogue is unaffected.
func (m *Manager) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestPermissionLocked(ctx)
}

func (m *Manager) requestPermissionLocked(ctx context.Context) error {
	if m.permission == domain.PermissionGranted {
		return nil
	}

	probe, err := m.devices.RequestAccess(ctx)
	if err != nil {
		m.permission = domain.PermissionDenied
		m.lastErr = domain.NewError(domain.ErrPermissionDenied, "microphone access denied").WithCause(err)
		m.log.Warn("microphone permission denied", zap.Error(err))
		return m.lastErr
	}
	if closeErr := probe.Close(); closeErr != nil {
		m.log.Warn("failed to release permission probe stream", zap.Error(closeErr))
	}

	m.permission = domain.PermissionGranted
	m.lastErr = nil
	m.log.Info("microphone permission granted")
	return nil
}

// EnumerateDevices lists audio input endpoints. Safe before permission is
// granted (labels may be blank) and never fails: an underlying failure is
// recorded and an empty catalogue returned.
func (m *Manager) EnumerateDevices(ctx context.Context) []domain.AudioDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCatalogueLocked(ctx)
	return append([]domain.AudioDevice(nil), m.catalogue...)
}

func (m *Manager) refreshCatalogueLocked(ctx context.Context) {
	all, err := m.devices.Enumerate(ctx)
	if err != nil {
		m.lastErr = domain.NewError(domain.ErrMediaFailure, "device enumeration failed").WithCause(err)
		m.log.Warn("device enumeration failed", zap.Error(err))
		m.catalogue = nil
		return
	}

	m.catalogue = lo.Filter(all, func(d domain.AudioDevice, _ int) bool {
		return d.Kind == domain.DeviceKindInput && d.DeviceID != ""
	})
	if m.selected == nil && len(m.catalogue) > 0 {
		first := m.catalogue[0]
		m.selected = &first
	}
	m.log.Debug("device catalogue refreshed", zap.Int("inputs", len(m.catalogue)))
}

// RefreshDevices schedules a debounced catalogue refresh. Device-change
// notifications often arrive in bursts while the OS settles.
func (m *Manager) RefreshDevices() {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	m.debounced(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.refreshCatalogueLocked(context.Background())
	})
}

// StartMonitoring begins volume-only sampling. Requests permission first
// if ungranted. Calling it while already monitoring is a no-op.
func (m *Manager) StartMonitoring(ctx context.Context, deviceID string) error {
	return m.enter(ctx, domain.CaptureModeMonitoring, deviceID)
}

// StopMonitoring ends volume-only sampling. No-op unless monitoring.
func (m *Manager) StopMonitoring() {
	m.exit(domain.CaptureModeMonitoring)
}

// StartRecording opens the capture stream backing an active publication.
// Any monitoring stream is released first.
func (m *Manager) StartRecording(ctx context.Context, deviceID string) error {
	return m.enter(ctx, domain.CaptureModeRecording, deviceID)
}

// StopRecording releases the capture stream. No-op unless recording.
func (m *Manager) StopRecording() {
	m.exit(domain.CaptureModeRecording)
}

func (m *Manager) enter(ctx context.Context, mode domain.CaptureMode, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == mode {
		return nil
	}
	if err := m.requestPermissionLocked(ctx); err != nil {
		return err
	}

	// Exclusivity: never two live OS streams.
	m.releaseStreamLocked()

	if deviceID == "" && m.selected != nil {
		deviceID = m.selected.DeviceID
	}

	stream, err := m.devices.Open(ctx, deviceID)
	if err != nil {
		m.mode = domain.CaptureModeIdle
		m.lastErr = domain.NewError(domain.ErrMediaFailure, fmt.Sprintf("failed to open capture stream for device %q", deviceID)).WithCause(err)
		m.log.Warn("capture stream open failed", zap.String("deviceId", deviceID), zap.Error(err))
		return m.lastErr
	}

	m.stream = stream
	m.mode = mode
	m.lastErr = nil
	m.startSamplerLocked(stream)
	m.log.Info("capture mode entered", zap.String("mode", string(mode)), zap.String("deviceId", stream.DeviceID()))
	return nil
}

func (m *Manager) exit(mode domain.CaptureMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != mode {
		return
	}
	m.releaseStreamLocked()
	m.mode = domain.CaptureModeIdle
	m.muted = false
	m.log.Info("capture mode exited", zap.String("mode", string(mode)))
}

// releaseStreamLocked stops the sampler, zeroes the reported volume, and
// closes the open stream, in that order.
func (m *Manager) releaseStreamLocked() {
	if m.samplerStop != nil {
		close(m.samplerStop)
		<-m.samplerDone
		m.samplerStop = nil
		m.samplerDone = nil
	}

	m.volMu.Lock()
	m.volume = domain.VolumeLevel{}
	m.volMu.Unlock()

	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.log.Warn("failed to close capture stream", zap.Error(err))
		}
		m.stream = nil
	}
}

// SwitchDevice re-targets capture at deviceID. If the id is not in the
// catalogue the catalogue is refreshed once and the lookup retried. When a
// mode is active it is restarted on the new device as one logical
// stop→settle→start operation; a mid-switch failure leaves the manager
// idle with the error recorded, never holding a dangling stream.
func (m *Manager) SwitchDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	if m.switching {
		m.mu.Unlock()
		return domain.NewError(domain.ErrOperationInFlight, "device switch already in flight")
	}
	m.switching = true
	defer func() {
		m.mu.Lock()
		m.switching = false
		m.mu.Unlock()
	}()

	target, ok := m.lookupLocked(deviceID)
	if !ok {
		m.refreshCatalogueLocked(ctx)
		target, ok = m.lookupLocked(deviceID)
	}
	if !ok {
		labels := lo.Map(m.catalogue, func(d domain.AudioDevice, _ int) string { return d.Label })
		err := domain.NewError(domain.ErrDeviceNotFound,
			fmt.Sprintf("device %q not found; available: %s", deviceID, strings.Join(labels, ", ")))
		m.lastErr = err
		m.mu.Unlock()
		return err
	}

	m.selected = &target
	mode := m.mode
	if mode == domain.CaptureModeIdle {
		m.lastErr = nil
		m.mu.Unlock()
		return nil
	}

	m.releaseStreamLocked()
	m.mode = domain.CaptureModeIdle
	m.mu.Unlock()

	// Settle before reacquiring; some platforms report the old stream as
	// still held for a short window after close.
	if m.settleDelay > 0 {
		select {
		case <-time.After(m.settleDelay):
		case <-ctx.Done():
			m.recordErr(domain.NewError(domain.ErrMediaFailure, "device switch cancelled").WithCause(ctx.Err()))
			return ctx.Err()
		}
	}

	if err := m.enter(ctx, mode, target.DeviceID); err != nil {
		m.log.Warn("device switch failed", zap.String("deviceId", deviceID), zap.Error(err))
		return err
	}
	m.log.Info("device switched", zap.String("deviceId", target.DeviceID), zap.String("label", target.Label))
	return nil
}

func (m *Manager) lookupLocked(deviceID string) (domain.AudioDevice, bool) {
	return lo.Find(m.catalogue, func(d domain.AudioDevice) bool { return d.DeviceID == deviceID })
}

func (m *Manager) recordErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// SetMuted toggles mute without releasing the stream.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

// Muted reports whether capture is muted.
func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// Mode returns the current capture mode.
func (m *Manager) Mode() domain.CaptureMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Permission returns the permission state.
func (m *Manager) Permission() domain.PermissionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

// Err returns the last recorded failure, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SelectedDevice returns the currently selected input device.
func (m *Manager) SelectedDevice() (domain.AudioDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == nil {
		return domain.AudioDevice{}, false
	}
	return *m.selected, true
}

// HasDevices reports whether the catalogue holds at least one input.
func (m *Manager) HasDevices() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.catalogue) > 0
}

// Volume returns the most recent sample. Zero once sampling stops.
func (m *Manager) Volume() domain.VolumeLevel {
	m.volMu.Lock()
	defer m.volMu.Unlock()
	return m.volume
}

func (m *Manager) startSamplerLocked(stream ports.CaptureStream) {
	stop := make(chan struct{})
	done := make(chan struct{})
	m.samplerStop = stop
	m.samplerDone = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.frameInterval)
		defer ticker.Stop()

		buf := make([]byte, frequencyBins)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n := stream.FrequencyData(buf)
				if n <= 0 {
					continue
				}
				level := measure(buf[:n])
				m.volMu.Lock()
				m.volume = level
				m.volMu.Unlock()
			}
		}
	}()
}

// measure computes normalized RMS and peak over 0-255 frequency bins.
func measure(bins []byte) domain.VolumeLevel {
	var sum float64
	var peak byte
	for _, v := range bins {
		sum += float64(v) * float64(v)
		if v > peak {
			peak = v
		}
	}
	rms := math.Sqrt(sum / float64(len(bins)))
	return domain.VolumeLevel{
		RMS:  rms / 255,
		Peak: float64(peak) / 255,
	}
}
