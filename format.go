package outputworker

import "fmt"

// SampleFormat enumerates the PCM sample encodings a filter chain or
// backend can negotiate. Undefined is the zero value so a partially
// configured AudioFormat is distinguishable from a fully specified one.
type SampleFormat uint8

const (
	SampleFormatUndefined SampleFormat = iota
	SampleFormatS16
	SampleFormatS24
	SampleFormatS32
	SampleFormatFloat32
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS16:
		return "S16"
	case SampleFormatS24:
		return "S24"
	case SampleFormatS32:
		return "S32"
	case SampleFormatFloat32:
		return "F32"
	default:
		return "undefined"
	}
}

// BytesPerSample returns the width of a single sample in one channel,
// or 0 for an undefined format.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16:
		return 2
	case SampleFormatS24:
		return 3
	case SampleFormatS32, SampleFormatFloat32:
		return 4
	default:
		return 0
	}
}

// AudioFormat describes the shape of a PCM stream: sample rate, sample
// encoding, and channel count. The zero value is "undefined" in every
// field and is used as a mask: ApplyMask lets a caller override only
// the fields a peer actually cares about.
type AudioFormat struct {
	SampleRate uint32
	Format     SampleFormat
	Channels   uint8
}

// Valid reports whether the format has no fields left undefined and
// the values are within sane bounds.
func (f AudioFormat) Valid() bool {
	return f.SampleRate > 0 && f.Format != SampleFormatUndefined && f.Channels > 0 && f.Channels <= 8
}

// FullyDefined reports whether every field is set. Unlike Valid it
// does not bound the channel count; callers in the worker care about
// "nothing left to infer", not "in range".
func (f AudioFormat) FullyDefined() bool {
	return f.SampleRate != 0 && f.Format != SampleFormatUndefined && f.Channels != 0
}

// FrameSize returns the number of bytes spanning one sample across all
// channels, i.e. the atomic unit of backend I/O alignment. Returns 0
// if the sample format or the channel count is undefined.
func (f AudioFormat) FrameSize() int {
	return f.Format.BytesPerSample() * int(f.Channels)
}

// ApplyMask returns a copy of f with every field set on other
// overriding the corresponding field in f. It is used to let a
// user-configured format mask narrow down a format a filter chain
// produced, without requiring the user to specify every field.
func (f AudioFormat) ApplyMask(other AudioFormat) AudioFormat {
	out := f
	if other.SampleRate != 0 {
		out.SampleRate = other.SampleRate
	}
	if other.Format != SampleFormatUndefined {
		out.Format = other.Format
	}
	if other.Channels != 0 {
		out.Channels = other.Channels
	}
	return out
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%dhz:%s:%dch", f.SampleRate, f.Format, f.Channels)
}
