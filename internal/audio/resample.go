package audio

import (
	"errors"
	"fmt"
	"math"
)

// TargetSampleRate is the rate the transcription engine expects.
const TargetSampleRate = 16000

// Windowed-sinc interpolation constants. These are fixed: changing any of
// them changes every resampled buffer.
const (
	sincLen            = 256
	sincCutoff         = 0.95
	oversamplingFactor = 256
)

var ErrResample = errors.New("resample failed")

// Resample converts mono samples from sourceRate to targetRate. Equal rates
// return the input unchanged. The output holds ceil(len(samples) *
// targetRate / sourceRate) samples and is bit-identical across calls with
// the same arguments.
func Resample(samples []float32, sourceRate, targetRate int) ([]float32, error) {
	if sourceRate == targetRate && sourceRate > 0 {
		return samples, nil
	}
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("%w: invalid rates %d -> %d", ErrResample, sourceRate, targetRate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrResample)
	}

	ratio := float64(targetRate) / float64(sourceRate)
	outLen := int((int64(len(samples))*int64(targetRate) + int64(sourceRate) - 1) / int64(sourceRate))
	if outLen <= 0 {
		return nil, fmt.Errorf("%w: ratio %.6f yields no output for %d samples", ErrResample, ratio, len(samples))
	}

	table := newSincTable(math.Min(1, ratio) * sincCutoff)
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(int64(i)*int64(sourceRate)) / float64(targetRate)
		out[i] = table.interpolate(samples, pos)
	}

	return out, nil
}

// sincTable holds the windowed-sinc kernel sampled at oversamplingFactor
// sub-positions between two input samples. Row j is the kernel for a
// fractional offset of j/oversamplingFactor.
type sincTable struct {
	rows [][]float64
}

func newSincTable(cutoff float64) sincTable {
	rows := make([][]float64, oversamplingFactor+1)
	half := sincLen / 2
	for j := range rows {
		frac := float64(j) / oversamplingFactor
		row := make([]float64, sincLen)
		for k := range row {
			x := float64(k-half+1) - frac
			row[k] = cutoff * sinc(cutoff*x) * blackmanHarris2(x+float64(half), sincLen)
		}
		rows[j] = row
	}
	return sincTable{rows: rows}
}

func (t sincTable) interpolate(in []float32, pos float64) float32 {
	base := int(math.Floor(pos))
	frac := (pos - float64(base)) * oversamplingFactor
	j := int(frac)
	if j >= oversamplingFactor {
		j = oversamplingFactor - 1
	}
	w := frac - float64(j)

	lo, hi := t.rows[j], t.rows[j+1]
	start := base - sincLen/2 + 1

	var acc float64
	for k := 0; k < sincLen; k++ {
		idx := start + k
		if idx < 0 || idx >= len(in) {
			continue
		}
		coeff := lo[k] + (hi[k]-lo[k])*w
		acc += float64(in[idx]) * coeff
	}
	return float32(acc)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackmanHarris2 is the squared Blackman-Harris window over n points,
// evaluated at a continuous position.
func blackmanHarris2(pos float64, n int) float64 {
	if pos < 0 || pos > float64(n) {
		return 0
	}
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	phase := 2 * math.Pi * pos / float64(n)
	w := a0 - a1*math.Cos(phase) + a2*math.Cos(2*phase) - a3*math.Cos(3*phase)
	return w * w
}
