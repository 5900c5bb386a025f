// Package mock provides scriptable capture devices for tests.
package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/balkashynov/whisp/internal/audio"
	"github.com/balkashynov/whisp/internal/capture"
)

// ErrPickerCancelled mimics a user dismissing the share picker.
var ErrPickerCancelled = errors.New("mock: share picker cancelled")

var _ capture.AudioTrack = (*Track)(nil)
var _ capture.MediaDevices = (*Devices)(nil)

// Track is a fake media track. Frames are delivered unbuffered, so Push
// returns only once the consumer has taken the frame.
type Track struct {
	kind    capture.Kind
	frames  chan []byte
	ended   chan struct{}
	endOnce sync.Once
	stopped atomic.Bool
}

// NewAudioTrack returns a live audio track.
func NewAudioTrack() *Track {
	return &Track{kind: capture.KindAudio, frames: make(chan []byte), ended: make(chan struct{})}
}

// NewVideoTrack returns a live video track.
func NewVideoTrack() *Track {
	return &Track{kind: capture.KindVideo, frames: make(chan []byte), ended: make(chan struct{})}
}

func (t *Track) Kind() capture.Kind     { return t.kind }
func (t *Track) Frames() <-chan []byte  { return t.frames }
func (t *Track) Ended() <-chan struct{} { return t.ended }
func (t *Track) Live() bool             { return !t.stopped.Load() && !t.isEnded() }
func (t *Track) Stopped() bool          { return t.stopped.Load() }

// Stop marks the track stopped by its consumer.
func (t *Track) Stop() {
	t.stopped.Store(true)
	t.End()
}

// End simulates the source going away.
func (t *Track) End() {
	t.endOnce.Do(func() { close(t.ended) })
}

// Push hands frame to the consumer. It returns false if the track ended first.
func (t *Track) Push(frame []byte) bool {
	select {
	case t.frames <- frame:
		return true
	case <-t.ended:
		return false
	}
}

func (t *Track) isEnded() bool {
	select {
	case <-t.ended:
		return true
	default:
		return false
	}
}

// Devices hands out fresh mock tracks on every acquisition.
type Devices struct {
	mu sync.Mutex

	// UserErr fails microphone acquisition.
	UserErr error
	// DisplayErr fails display acquisition.
	DisplayErr error
	// DisplayWithoutAudio returns a shared surface with only a video track.
	DisplayWithoutAudio bool
	// Gate, when set, blocks UserMedia until it is closed.
	Gate chan struct{}

	mics     []*Track
	displays []*Track
	videos   []*Track
}

// UserMedia implements capture.MediaDevices.
func (d *Devices) UserMedia(ctx context.Context, _ audio.Format) (*capture.Stream, error) {
	d.mu.Lock()
	gate := d.Gate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.UserErr != nil {
		return nil, d.UserErr
	}
	mic := NewAudioTrack()
	d.mics = append(d.mics, mic)
	return &capture.Stream{Audio: []capture.AudioTrack{mic}}, nil
}

// DisplayMedia implements capture.MediaDevices.
func (d *Devices) DisplayMedia(_ context.Context, _ audio.Format) (*capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DisplayErr != nil {
		return nil, d.DisplayErr
	}

	video := NewVideoTrack()
	d.videos = append(d.videos, video)
	stream := &capture.Stream{Video: []capture.Track{video}}
	if !d.DisplayWithoutAudio {
		sys := NewAudioTrack()
		d.displays = append(d.displays, sys)
		stream.Audio = []capture.AudioTrack{sys}
	}
	return stream, nil
}

// Mic returns the most recently opened microphone track.
func (d *Devices) Mic() *Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.mics) == 0 {
		return nil
	}
	return d.mics[len(d.mics)-1]
}

// Display returns the most recently opened system audio track.
func (d *Devices) Display() *Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.displays) == 0 {
		return nil
	}
	return d.displays[len(d.displays)-1]
}

// Tracks returns every track ever handed out.
func (d *Devices) Tracks() []*Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := make([]*Track, 0, len(d.mics)+len(d.displays)+len(d.videos))
	all = append(all, d.mics...)
	all = append(all, d.displays...)
	return append(all, d.videos...)
}

// LiveTracks counts tracks that have not been stopped or ended.
func (d *Devices) LiveTracks() int {
	n := 0
	for _, t := range d.Tracks() {
		if t.Live() {
			n++
		}
	}
	return n
}
