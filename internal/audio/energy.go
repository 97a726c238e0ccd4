package audio

import "math"

// Level summarizes the loudness of a block of samples.
type Level struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int
}

func Measure(samples []float32) Level {
	if len(samples) == 0 {
		return Level{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	var peak, sumSquares float64
	for _, s := range samples {
		v := float64(s)
		abs := math.Abs(v)
		if abs > peak {
			peak = abs
		}
		sumSquares += v * v
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)))
	return Level{
		RMSdBFS:  amplitudeToDBFS(rms),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  len(samples),
	}
}

// IsSilent reports whether samples stay under thresholdDBFS, allowing peaks
// up to 6 dB above it.
func IsSilent(samples []float32, thresholdDBFS float64) (bool, Level) {
	level := Measure(samples)
	if level.Samples == 0 {
		return true, level
	}
	if math.IsInf(level.RMSdBFS, -1) && math.IsInf(level.PeakdBFS, -1) {
		return true, level
	}

	peakGate := thresholdDBFS + 6
	return level.RMSdBFS <= thresholdDBFS && level.PeakdBFS <= peakGate, level
}

const (
	energyMidpointDBFS = -45.0
	energySlopeDB      = 2.5
)

// EnergyModel maps chunk RMS loudness onto a logistic speech probability
// centered at energyMidpointDBFS.
type EnergyModel struct {
	MidpointDBFS float64
	SlopeDB      float64
}

func NewEnergyModel() *EnergyModel {
	return &EnergyModel{MidpointDBFS: energyMidpointDBFS, SlopeDB: energySlopeDB}
}

func (m *EnergyModel) SpeechProbability(chunk []float32) (float64, error) {
	level := Measure(chunk)
	if math.IsInf(level.RMSdBFS, -1) {
		return 0, nil
	}

	slope := m.SlopeDB
	if slope <= 0 {
		slope = energySlopeDB
	}
	return 1 / (1 + math.Exp(-(level.RMSdBFS-m.MidpointDBFS)/slope)), nil
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
