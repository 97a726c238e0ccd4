package capture

import (
	"encoding/binary"
	"fmt"
	"math"
)

type SampleFormat string

const (
	FormatF32LE SampleFormat = "f32le"
	FormatS16LE SampleFormat = "s16le"
	FormatS24LE SampleFormat = "s24le"
	FormatS32LE SampleFormat = "s32le"
	FormatU8    SampleFormat = "u8"
	FormatU16LE SampleFormat = "u16le"
)

func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16LE, FormatU16LE:
		return 2
	case FormatS24LE:
		return 3
	case FormatF32LE, FormatS32LE:
		return 4
	default:
		return 0
	}
}

// Supported reports whether samples in f can be converted to float32.
func (f SampleFormat) Supported() bool {
	return f.BytesPerSample() > 0
}

// StreamConfig is the native configuration a device is opened with.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

func (c StreamConfig) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, c.Channels)
	}
	if !c.Format.Supported() {
		return fmt.Errorf("%w: sample format %q", ErrUnsupportedFormat, c.Format)
	}
	return nil
}

// Decoder turns raw interleaved PCM bytes into float32 samples. Bytes that
// do not complete a frame are held until the next call.
type Decoder struct {
	format     SampleFormat
	frameBytes int
	pending    []byte
}

func NewDecoder(cfg StreamConfig) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Decoder{
		format:     cfg.Format,
		frameBytes: cfg.Format.BytesPerSample() * cfg.Channels,
	}, nil
}

func (d *Decoder) Decode(chunk []byte) []float32 {
	data := chunk
	if len(d.pending) > 0 {
		data = append(d.pending, chunk...)
		d.pending = nil
	}

	whole := len(data) - len(data)%d.frameBytes
	if whole < len(data) {
		d.pending = append([]byte(nil), data[whole:]...)
	}

	width := d.format.BytesPerSample()
	out := make([]float32, 0, whole/width)
	for i := 0; i < whole; i += width {
		out = append(out, decodeSample(data[i:i+width], d.format))
	}
	return out
}

func decodeSample(sample []byte, format SampleFormat) float32 {
	switch format {
	case FormatF32LE:
		return math.Float32frombits(binary.LittleEndian.Uint32(sample))
	case FormatU8:
		return (float32(sample[0]) - 128) / 128
	case FormatS16LE:
		v := int16(binary.LittleEndian.Uint16(sample))
		return float32(v) / 32768
	case FormatU16LE:
		v := binary.LittleEndian.Uint16(sample)
		return (float32(v) - 32768) / 32768
	case FormatS24LE:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float32(v) / 8388608
	case FormatS32LE:
		v := int32(binary.LittleEndian.Uint32(sample))
		return float32(float64(v) / 2147483648)
	default:
		return 0
	}
}
