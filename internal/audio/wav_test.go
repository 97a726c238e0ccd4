package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteWAVThenReadPreservesSamples(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	input := Buffer{Samples: sineWave(440, TargetSampleRate, TargetSampleRate/2, 0.5), SampleRate: TargetSampleRate}
	require.NoError(t, WriteWAV(f, input))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := ReadWAV(f)
	require.NoError(t, err)
	require.Equal(t, TargetSampleRate, decoded.SampleRate)
	require.Len(t, decoded.Samples, len(input.Samples))
	require.Equal(t, 500*time.Millisecond, decoded.Duration())
	for i := range input.Samples {
		require.InDelta(t, input.Samples[i], decoded.Samples[i], 1.0/16000)
	}
}

func TestReadWAVDownmixesStereo(t *testing.T) {
	t.Parallel()

	raw := makePCM16WAV([]int16{16384, 0, -16384, -16384, 32767, 32767}, 48000, 2)
	decoded, err := ReadWAV(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 48000, decoded.SampleRate)
	require.Len(t, decoded.Samples, 3)
	require.InDelta(t, 0.25, decoded.Samples[0], 1e-4)
	require.InDelta(t, -0.5, decoded.Samples[1], 1e-4)
	require.InDelta(t, 1.0, decoded.Samples[2], 1e-4)
}

func TestReadWAVInvalidFile(t *testing.T) {
	t.Parallel()

	_, err := ReadWAV(bytes.NewReader([]byte("hello, this is not a riff file at all")))
	require.ErrorIs(t, err, ErrInvalidWAV)
}

func TestDownmixAveragesChannels(t *testing.T) {
	t.Parallel()

	out := Downmix(nil, []float32{1, 0, 0.5, 0.5, -1, 1, 0.3}, 2)
	require.Equal(t, []float32{0.5, 0.5, 0}, out)

	mono := Downmix([]float32{0.1}, []float32{0.2, 0.3}, 1)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, mono)
}

func makePCM16WAV(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}
