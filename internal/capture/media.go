// Package capture acquires live audio sources, mixes them into one stream,
// taps that stream for level metering and encodes it into ordered chunks.
package capture

import (
	"context"
	"errors"

	"github.com/balkashynov/whisp/internal/audio"
)

// Errors surfaced by the capture engine.
var (
	ErrPermissionDenied          = errors.New("microphone access denied")
	ErrDeviceUnavailable         = errors.New("microphone unavailable")
	ErrDisplayCaptureUnavailable = errors.New("system audio unavailable")
	ErrSystemAudioDropped        = errors.New("system audio stopped")
	ErrEncoderInitFailed         = errors.New("encoder failed to start")
	ErrContextClosed             = errors.New("audio context closed prematurely")
	ErrReleased                  = errors.New("capture already released")
	ErrNotRecording              = errors.New("capture is not recording")
)

// Kind tells audio and video tracks apart.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is a live hardware or software media source.
type Track interface {
	Kind() Kind
	// Stop releases the underlying source. Safe to call more than once.
	Stop()
	// Ended is closed once the track stops producing media, whether
	// stopped locally or ended by its source.
	Ended() <-chan struct{}
}

// AudioTrack delivers interleaved 16-bit PCM frames in the format it was
// opened with.
type AudioTrack interface {
	Track
	Frames() <-chan []byte
}

// Stream groups the tracks returned by one acquisition.
type Stream struct {
	Audio []AudioTrack
	Video []Track
}

// Stop stops every track in the stream.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	for _, t := range s.Audio {
		t.Stop()
	}
	for _, t := range s.Video {
		t.Stop()
	}
}

// MediaDevices opens capture sources.
type MediaDevices interface {
	// UserMedia opens the microphone.
	UserMedia(ctx context.Context, f audio.Format) (*Stream, error)
	// DisplayMedia opens a shared surface. The stream may carry video
	// tracks and zero or more audio tracks.
	DisplayMedia(ctx context.Context, f audio.Format) (*Stream, error)
}
