// Package audio holds the PCM primitives shared by capture, recovery and upload:
// 16-bit little-endian sample helpers, mixing, RMS and WAV containers.
package audio

import (
	"fmt"
	"time"
)

// MIME types of the two encodings whisp produces.
const (
	// RawMIMEType describes chunk payloads: headerless signed 16-bit PCM.
	RawMIMEType = "audio/L16"
	// MIMEType describes finalized recordings.
	MIMEType = "audio/wav"
)

const bytesPerSample = 2

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate reports whether the format can describe real audio.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audio: invalid channel count %d", f.Channels)
	}
	return nil
}

// FrameSize is the number of bytes in one interleaved sample frame.
func (f Format) FrameSize() int {
	return f.Channels * bytesPerSample
}

// BytesPerSecond is the PCM byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// BytesFor returns the frame-aligned number of bytes holding d of audio.
func (f Format) BytesFor(d time.Duration) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * f.FrameSize()
}

// Duration returns how long n bytes of PCM in this format play for.
func (f Format) Duration(n int) time.Duration {
	if f.BytesPerSecond() == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.BytesPerSecond()))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}
