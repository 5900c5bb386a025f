package audio

import (
	"encoding/binary"
	"math"
)

// Samples decodes little-endian int16 PCM. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/bytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Bytes encodes samples as little-endian int16 PCM.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square amplitude of pcm normalized to [0,1].
// Empty input is silence.
func RMS(pcm []byte) float64 {
	n := len(pcm) / bytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Mix adds src onto base sample by sample, clamping to the int16 range.
// The result has the length of base; src beyond it is dropped and a
// shorter src leaves the tail of base untouched.
func Mix(base, src []byte) []byte {
	out := make([]byte, len(base)&^1)
	copy(out, base)

	n := min(len(out), len(src)) / bytesPerSample
	for i := 0; i < n; i++ {
		a := int32(int16(binary.LittleEndian.Uint16(out[i*2:])))
		b := int32(int16(binary.LittleEndian.Uint16(src[i*2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(a+b)))
	}
	return out
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
