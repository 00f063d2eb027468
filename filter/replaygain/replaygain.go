// Package replaygain implements outputworker.ReplayGainFilter by
// scaling S16LE samples by a gain derived from track or album replay
// gain tags.
package replaygain

import (
	"math"

	"github.com/mpdgo/outputworker"
)

// Mode selects whether track or album gain is applied.
type Mode int

const (
	ModeTrack Mode = iota
	ModeAlbum
)

// Filter applies a scalar gain to S16LE PCM, clamping peaks to avoid
// digital clipping when a track's true peak exceeds what its gain
// value assumed.
type Filter struct {
	mode   Mode
	info   *outputworker.ReplayGainInfo
	format outputworker.AudioFormat
	scale  float64
}

// New builds a replay gain filter using the given mode. SetInfo must
// be called before FilterPCM has any effect; until then the filter is
// a pass-through.
func New(mode Mode) *Filter {
	return &Filter{mode: mode, scale: 1.0}
}

func (f *Filter) Open(in outputworker.AudioFormat) (outputworker.AudioFormat, error) {
	f.format = in
	return in, nil
}

func (f *Filter) Close() {}

// SetInfo updates the gain applied to subsequent PCM. A nil info
// disables gain adjustment.
func (f *Filter) SetInfo(info *outputworker.ReplayGainInfo) {
	f.info = info
	f.scale = computeScale(f.mode, info)
}

func computeScale(mode Mode, info *outputworker.ReplayGainInfo) float64 {
	if info == nil {
		return 1.0
	}
	var dB, peak float64
	if mode == ModeAlbum && info.AlbumGain != 0 {
		dB, peak = float64(info.AlbumGain), float64(info.AlbumPeak)
	} else {
		dB, peak = float64(info.TrackGain), float64(info.TrackPeak)
	}
	if dB == 0 {
		return 1.0
	}
	scale := math.Pow(10, dB/20)
	if peak > 0 && scale*peak > 1.0 {
		scale = 1.0 / peak
	}
	return scale
}

// FilterPCM scales every S16LE sample in pcm by the current gain,
// saturating at the format's full-scale range.
func (f *Filter) FilterPCM(pcm []byte) ([]byte, error) {
	if f.scale == 1.0 || len(pcm) == 0 {
		return pcm, nil
	}
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		scaled := float64(sample) * f.scale
		out[i], out[i+1] = encodeS16(clampS16(scaled))
	}
	return out, nil
}

func clampS16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func encodeS16(v int16) (byte, byte) {
	u := uint16(v)
	return byte(u), byte(u >> 8)
}
