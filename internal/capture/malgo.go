package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/balkashynov/whisp/internal/audio"
)

// HostDevices opens the host's default capture device as the microphone and
// its loopback (what-you-hear) device as the shared surface. Loopback is
// only offered by some backends (WASAPI); elsewhere DisplayMedia fails and
// the engine falls back to microphone only.
type HostDevices struct {
	log     *zap.SugaredLogger
	backlog int
}

// NewHostDevices creates host devices. backlog is the number of device
// callbacks buffered before frames are dropped.
func NewHostDevices(log *zap.SugaredLogger, backlog int) *HostDevices {
	if backlog <= 0 {
		backlog = 64
	}
	return &HostDevices{log: log, backlog: backlog}
}

// UserMedia implements MediaDevices.
func (d *HostDevices) UserMedia(ctx context.Context, f audio.Format) (*Stream, error) {
	tr, err := d.open(ctx, malgo.Capture, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &Stream{Audio: []AudioTrack{tr}}, nil
}

// DisplayMedia implements MediaDevices.
func (d *HostDevices) DisplayMedia(ctx context.Context, f audio.Format) (*Stream, error) {
	tr, err := d.open(ctx, malgo.Loopback, f)
	if err != nil {
		return nil, err
	}
	return &Stream{Audio: []AudioTrack{tr}}, nil
}

// DeviceInfo describes one host capture device.
type DeviceInfo struct {
	Name      string
	IsDefault bool
}

// ListCaptureDevices enumerates the host's capture devices.
func ListCaptureDevices() ([]DeviceInfo, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		out = append(out, DeviceInfo{Name: infos[i].Name(), IsDefault: infos[i].IsDefault != 0})
	}
	return out, nil
}

func (d *HostDevices) open(ctx context.Context, kind malgo.DeviceType, f audio.Format) (*deviceTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		d.log.Debugw("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	t := &deviceTrack{
		mctx:   mctx,
		frames: make(chan []byte, d.backlog),
		ended:  make(chan struct{}),
	}

	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(f.Channels)
	cfg.SampleRate = uint32(f.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// the backend reuses input after the callback returns
			b := make([]byte, len(input))
			copy(b, input)
			select {
			case t.frames <- b:
			default:
			}
		},
		Stop: func() {
			t.end()
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init device: %w", err)
	}
	t.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start device: %w", err)
	}
	return t, nil
}

// deviceTrack is a live miniaudio capture device.
type deviceTrack struct {
	mctx     *malgo.AllocatedContext
	dev      *malgo.Device
	frames   chan []byte
	ended    chan struct{}
	endOnce  sync.Once
	stopOnce sync.Once
}

func (t *deviceTrack) Kind() Kind             { return KindAudio }
func (t *deviceTrack) Frames() <-chan []byte  { return t.frames }
func (t *deviceTrack) Ended() <-chan struct{} { return t.ended }

func (t *deviceTrack) Stop() {
	t.stopOnce.Do(func() {
		_ = t.dev.Stop()
		t.dev.Uninit()
		_ = t.mctx.Uninit()
		t.mctx.Free()
		t.end()
	})
}

func (t *deviceTrack) end() {
	t.endOnce.Do(func() { close(t.ended) })
}
