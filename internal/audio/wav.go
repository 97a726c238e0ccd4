package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const wavBitDepth = 16

// WriteWAV encodes a mono buffer as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, buf Buffer) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("write wav: invalid sample rate %d", buf.SampleRate)
	}

	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		data[i] = floatToPCM16(s)
	}

	enc := wav.NewEncoder(w, buf.SampleRate, wavBitDepth, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// ReadWAV decodes an integer PCM file and downmixes it to mono.
func ReadWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != 1 {
		return Buffer{}, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return Buffer{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, dec.BitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := int(dec.NumChans)
	interleaved := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		interleaved[i] = pcmToFloat(v, int(dec.BitDepth))
	}

	return Buffer{
		Samples:    Downmix(make([]float32, 0, len(interleaved)/max(channels, 1)), interleaved, channels),
		SampleRate: int(dec.SampleRate),
	}, nil
}

func floatToPCM16(s float32) int {
	v := math.Round(float64(s) * 32767)
	return int(math.Max(-32768, math.Min(32767, v)))
}

func pcmToFloat(v, bitDepth int) float32 {
	if bitDepth == 8 {
		return float32(v-128) / 128
	}
	return float32(float64(v) / float64(int64(1)<<(bitDepth-1)))
}
