package audio

import "time"

// Buffer is a mono sample snapshot tagged with its sample rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

func (b Buffer) Len() int {
	return len(b.Samples)
}

func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Downmix averages interleaved frames into dst. A trailing partial frame is
// dropped.
func Downmix(dst, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return append(dst, interleaved...)
	}

	frames := len(interleaved) / channels
	for f := 0; f < frames; f++ {
		frame := interleaved[f*channels : (f+1)*channels]
		var sum float32
		for _, s := range frame {
			sum += s
		}
		dst = append(dst, sum/float32(channels))
	}
	return dst
}
