// Package convert implements outputworker.ConvertFilter, casting PCM
// between sample formats and channel counts. Resampling is explicitly
// out of scope: SetOutFormat rejects a sample rate change it cannot
// perform losslessly, matching the excluded resampling feature.
package convert

import (
	"github.com/pkg/errors"

	"github.com/mpdgo/outputworker"
)

// Filter converts PCM from its negotiated input format to a
// configured output format.
type Filter struct {
	in  outputworker.AudioFormat
	out outputworker.AudioFormat
}

// New returns an unconfigured Filter; until SetOutFormat is called,
// FilterPCM passes PCM through unchanged.
func New() *Filter {
	return &Filter{}
}

func (f *Filter) Open(in outputworker.AudioFormat) (outputworker.AudioFormat, error) {
	f.in = in
	if f.out.Format == outputworker.SampleFormatUndefined {
		f.out = in
	}
	return f.out, nil
}

func (f *Filter) Close() {}

// SetOutFormat sets the target format. Only the sample format and
// channel count may change from whatever Open negotiated; a sample
// rate mismatch is rejected.
func (f *Filter) SetOutFormat(format outputworker.AudioFormat) error {
	if f.in.SampleRate != 0 && format.SampleRate != 0 && format.SampleRate != f.in.SampleRate {
		return errors.Errorf("convert: resampling not supported (%dhz -> %dhz)", f.in.SampleRate, format.SampleRate)
	}
	f.out = format
	if f.out.SampleRate == 0 {
		f.out.SampleRate = f.in.SampleRate
	}
	return nil
}

// FilterPCM converts pcm from f.in to f.out. Only S16 is supported as
// an intermediate format today; other sample widths pass through
// unconverted when the format already matches.
func (f *Filter) FilterPCM(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return pcm, nil
	}
	if f.out.Format == f.in.Format && f.out.Channels == f.in.Channels {
		return pcm, nil
	}
	if f.in.Format != outputworker.SampleFormatS16 || f.out.Format != outputworker.SampleFormatS16 {
		return nil, errors.Errorf("convert: unsupported format cast %s -> %s", f.in.Format, f.out.Format)
	}
	return convertChannels(pcm, int(f.in.Channels), int(f.out.Channels)), nil
}

// convertChannels performs mono<->stereo up/down mixing on S16LE PCM.
// Any other channel-count pair passes through unchanged, since the
// general N:M mixing matrix is out of scope.
func convertChannels(pcm []byte, inCh, outCh int) []byte {
	if inCh == outCh || inCh <= 0 || outCh <= 0 {
		return pcm
	}
	const sampleSize = 2
	switch {
	case inCh == 1 && outCh == 2:
		out := make([]byte, len(pcm)*2)
		for i := 0; i+sampleSize <= len(pcm); i += sampleSize {
			copy(out[i*2:], pcm[i:i+sampleSize])
			copy(out[i*2+sampleSize:], pcm[i:i+sampleSize])
		}
		return out
	case inCh == 2 && outCh == 1:
		frame := sampleSize * 2
		out := make([]byte, 0, len(pcm)/2)
		for i := 0; i+frame <= len(pcm); i += frame {
			l := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
			r := int16(uint16(pcm[i+2]) | uint16(pcm[i+3])<<8)
			mixed := int16((int32(l) + int32(r)) / 2)
			u := uint16(mixed)
			out = append(out, byte(u), byte(u>>8))
		}
		return out
	default:
		return pcm
	}
}
