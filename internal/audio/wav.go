package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNoAudio is returned when there is nothing to assemble.
var ErrNoAudio = errors.New("audio: no samples")

// EncodeWAV wraps 16-bit PCM in a WAV container.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, f.SampleRate, 16, f.Channels, 1)

	samples := Samples(pcm)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: f.Channels,
			SampleRate:  f.SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalize wav: %w", err)
	}
	return out.buf, nil
}

// Reassemble concatenates raw PCM chunks in the given order and wraps the
// result in a playable WAV container.
func Reassemble(chunks [][]byte, f Format) ([]byte, error) {
	var pcm bytes.Buffer
	for _, c := range chunks {
		pcm.Write(c)
	}
	if pcm.Len() < f.FrameSize() {
		return nil, ErrNoAudio
	}
	return EncodeWAV(pcm.Bytes(), f)
}

// DecodeWAV reads a 16-bit PCM WAV file.
func DecodeWAV(r io.ReadSeeker) ([]byte, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, errors.New("audio: not a valid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, Format{}, fmt.Errorf("audio: unsupported bit depth %d", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("audio: decode wav: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	f := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return Bytes(samples), f, nil
}

// memFile is an in-memory io.WriteSeeker for the WAV encoder, which seeks
// back to patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("audio: negative position")
	}
	m.pos = int(next)
	return next, nil
}
