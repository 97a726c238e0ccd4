package audio

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	// ChunkSize is 32 ms at TargetSampleRate.
	ChunkSize = 512
	// SpeechThreshold is the probability above which a chunk counts as speech.
	SpeechThreshold = 0.5
	// PaddingChunks grows every speech run on both sides (~96 ms).
	PaddingChunks = 3
	// MostlySpeechRatio: above this share of speech chunks the input is kept whole.
	MostlySpeechRatio = 0.8
)

var ErrSegmentation = errors.New("speech segmentation failed")

type Label int

const (
	NonSpeech Label = iota
	Speech
)

func (l Label) String() string {
	if l == Speech {
		return "speech"
	}
	return "non-speech"
}

// VoiceModel scores one chunk of TargetSampleRate audio with a speech
// probability in [0, 1].
type VoiceModel interface {
	SpeechProbability(chunk []float32) (float64, error)
}

type Decision string

const (
	DecisionTooShort     Decision = "too_short"
	DecisionMostlySpeech Decision = "mostly_speech"
	DecisionNoSpeech     Decision = "no_speech"
	DecisionTrimmed      Decision = "trimmed"
	DecisionFallback     Decision = "fallback"
)

type Segmentation struct {
	Samples      []float32
	TotalChunks  int
	SpeechChunks int
	Decision     Decision
}

func (s Segmentation) SpeechRatio() float64 {
	if s.TotalChunks == 0 {
		return 0
	}
	return float64(s.SpeechChunks) / float64(s.TotalChunks)
}

type Segmenter struct {
	model  VoiceModel
	logger *zap.Logger
}

func NewSegmenter(model VoiceModel, logger *zap.Logger) *Segmenter {
	if model == nil {
		model = NewEnergyModel()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Segmenter{model: model, logger: logger}
}

// ExtractSpeech drops non-speech chunks from samples. On a model failure the
// unfiltered input is returned alongside an ErrSegmentation error.
func (s *Segmenter) ExtractSpeech(samples []float32) (Segmentation, error) {
	if len(samples) < ChunkSize {
		s.logger.Warn("audio too short for speech segmentation; returning as-is", zap.Int("samples", len(samples)))
		return Segmentation{Samples: samples, Decision: DecisionTooShort}, nil
	}

	labels, err := s.Label(samples)
	if err != nil {
		return Segmentation{Samples: samples, Decision: DecisionFallback}, err
	}

	result := Segmentation{TotalChunks: len(labels)}
	var speech []float32
	for i, label := range labels {
		if label != Speech {
			continue
		}
		result.SpeechChunks++
		start, end := chunkBounds(i, len(samples))
		speech = append(speech, samples[start:end]...)
	}

	switch {
	case result.SpeechRatio() > MostlySpeechRatio:
		result.Samples = samples
		result.Decision = DecisionMostlySpeech
	case result.SpeechChunks == 0:
		result.Samples = []float32{}
		result.Decision = DecisionNoSpeech
	default:
		result.Samples = speech
		result.Decision = DecisionTrimmed
	}

	s.logger.Info(
		"speech segmentation finished",
		zap.String("decision", string(result.Decision)),
		zap.Int("speech_chunks", result.SpeechChunks),
		zap.Int("total_chunks", result.TotalChunks),
		zap.Int("samples", len(result.Samples)),
	)

	return result, nil
}

// Label classifies every ChunkSize window of samples, then marks the
// PaddingChunks neighbours of each speech chunk as speech too. A trailing
// partial chunk is scored zero-padded.
func (s *Segmenter) Label(samples []float32) ([]Label, error) {
	count := (len(samples) + ChunkSize - 1) / ChunkSize
	raw := make([]bool, count)
	window := make([]float32, ChunkSize)

	for i := 0; i < count; i++ {
		start, end := chunkBounds(i, len(samples))
		chunk := samples[start:end]
		if len(chunk) < ChunkSize {
			n := copy(window, chunk)
			clear(window[n:])
			chunk = window
		}

		prob, err := s.model.SpeechProbability(chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrSegmentation, i, err)
		}
		raw[i] = prob > SpeechThreshold
	}

	labels := make([]Label, count)
	for i, isSpeech := range raw {
		if !isSpeech {
			continue
		}
		lo := max(0, i-PaddingChunks)
		hi := min(count-1, i+PaddingChunks)
		for j := lo; j <= hi; j++ {
			labels[j] = Speech
		}
	}

	return labels, nil
}

func chunkBounds(index, total int) (int, int) {
	start := index * ChunkSize
	end := min(start+ChunkSize, total)
	return start, end
}
