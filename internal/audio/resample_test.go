package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, rate, n int, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResampleIdentityWhenRatesMatch(t *testing.T) {
	t.Parallel()

	for _, input := range [][]float32{
		nil,
		{},
		{0.1},
		sineWave(440, 16000, 1000, 0.3),
	} {
		out, err := Resample(input, 16000, 16000)
		require.NoError(t, err)
		require.Equal(t, input, out)
	}
}

func TestResample48kTo16kLength(t *testing.T) {
	t.Parallel()

	input := sineWave(440, 48000, 48000, 0.5)
	out, err := Resample(input, 48000, TargetSampleRate)
	require.NoError(t, err)
	require.InDelta(t, len(input)/3, len(out), 2)
}

func TestResample44100To16kLength(t *testing.T) {
	t.Parallel()

	input := sineWave(440, 44100, 44100, 0.5)
	out, err := Resample(input, 44100, TargetSampleRate)
	require.NoError(t, err)
	require.InDelta(t, 16000, len(out), 2)
}

func TestResampleUpsampleLength(t *testing.T) {
	t.Parallel()

	input := sineWave(220, 8000, 8000, 0.5)
	out, err := Resample(input, 8000, TargetSampleRate)
	require.NoError(t, err)
	require.Len(t, out, 16000)
}

func TestResamplePreservesLowFrequencyTone(t *testing.T) {
	t.Parallel()

	input := sineWave(440, 48000, 48000, 0.5)
	out, err := Resample(input, 48000, TargetSampleRate)
	require.NoError(t, err)

	for _, i := range []int{4000, 8000, 8123, 12000} {
		expected := 0.5 * math.Sin(2*math.Pi*440*float64(3*i)/48000)
		require.InDeltaf(t, expected, float64(out[i]), 0.01, "sample %d", i)
	}

	level := Measure(out[1000:15000])
	require.InDelta(t, 20*math.Log10(0.5/math.Sqrt2), level.RMSdBFS, 0.2)
}

func TestResampleIsDeterministic(t *testing.T) {
	t.Parallel()

	input := sineWave(1000, 48000, 9600, 0.4)
	first, err := Resample(input, 48000, TargetSampleRate)
	require.NoError(t, err)
	second, err := Resample(input, 48000, TargetSampleRate)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, math.Float32bits(first[i]), math.Float32bits(second[i]))
	}
}

func TestResampleRejectsDegenerateInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  []float32
		source int
		target int
	}{
		{name: "empty input", input: nil, source: 48000, target: 16000},
		{name: "zero source rate", input: []float32{0.1}, source: 0, target: 16000},
		{name: "negative target rate", input: []float32{0.1}, source: 48000, target: -1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Resample(tt.input, tt.source, tt.target)
			require.ErrorIs(t, err, ErrResample)
		})
	}
}
