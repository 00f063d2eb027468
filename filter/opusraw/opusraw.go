// Package opusraw implements outputworker.FilterPort with an in-process
// layeh.com/gopus encoder, grounded on latoulicious-HKTM's
// pkg/audio/opus.go OpusProcessor. Unlike filter/opusenc, which spawns
// ffmpeg through a dca encode session and can resample on the way in,
// this filter never shells out: it requires its input already be
// 48kHz stereo S16LE and encodes each fixed-size frame synchronously,
// one FilterPCM call producing exactly one Opus packet (or none, if
// pcm does not yet add up to a full frame).
package opusraw

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"layeh.com/gopus"

	"github.com/mpdgo/outputworker"
)

const (
	sampleRate = 48000
	channels   = 2
)

// FrameSize is the Opus frame size in samples per channel for a 20ms
// frame at 48kHz, the duration Discord voice expects.
const FrameSize = 960

// Config controls the gopus encoder's bitrate and VBR behavior.
type Config struct {
	Bitrate int
	VBR     bool
}

// DefaultConfig mirrors latoulicious-HKTM's OpusConfig defaults.
func DefaultConfig() Config {
	return Config{Bitrate: 64000, VBR: true}
}

// Filter encodes fixed-size S16LE stereo PCM frames to Opus.
type Filter struct {
	cfg     Config
	encoder *gopus.Encoder
	pending []int16
}

// New builds an opusraw Filter with the given config.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Open requires 48kHz stereo S16LE input; it does not resample, so a
// convert filter must run ahead of it in the chain for anything else.
func (f *Filter) Open(in outputworker.AudioFormat) (outputworker.AudioFormat, error) {
	if in.SampleRate != sampleRate || in.Channels != channels || in.Format != outputworker.SampleFormatS16 {
		return outputworker.AudioFormat{}, errors.Errorf("opusraw: requires %dHz stereo s16, got %s", sampleRate, in)
	}
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return outputworker.AudioFormat{}, errors.Wrap(err, "opusraw: new encoder")
	}
	enc.SetBitrate(f.cfg.Bitrate)
	enc.SetVbr(f.cfg.VBR)
	f.encoder = enc
	f.pending = nil
	return in, nil
}

func (f *Filter) Close() {
	f.encoder = nil
	f.pending = nil
}

// FilterPCM buffers pcm until a full FrameSize*channels sample frame
// is available, then encodes exactly that many samples and carries
// any remainder over to the next call.
func (f *Filter) FilterPCM(pcm []byte) ([]byte, error) {
	for i := 0; i+1 < len(pcm); i += 2 {
		f.pending = append(f.pending, int16(binary.LittleEndian.Uint16(pcm[i:i+2])))
	}

	need := FrameSize * channels
	if len(f.pending) < need {
		return nil, nil
	}

	frame := f.pending[:need]
	out, err := f.encoder.Encode(frame, FrameSize, 4000)
	f.pending = append([]int16(nil), f.pending[need:]...)
	if err != nil {
		return nil, errors.Wrap(err, "opusraw: encode")
	}
	return out, nil
}
