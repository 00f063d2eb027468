// Package opusenc implements outputworker.FilterPort by running PCM
// through a github.com/jonas747/dca encode session, grounded on the
// teacher's own discordvoice.SourceCloser and its defaultEncodeOptions
// in voice.go. It is the last filter stage ahead of backend/discord,
// which expects pre-framed Opus.
package opusenc

import (
	"io"

	"github.com/jonas747/dca"
	"github.com/pkg/errors"

	"github.com/mpdgo/outputworker"
)

// DefaultEncodeOptions mirrors the teacher's own defaultEncodeOptions.
var DefaultEncodeOptions = dca.EncodeOptions{
	Volume:           256,
	Channels:         2,
	FrameRate:        48000,
	FrameDuration:    20,
	Bitrate:          128,
	RawOutput:        false,
	Application:      dca.AudioApplicationAudio,
	CompressionLevel: 10,
	PacketLoss:       1,
	BufferedFrames:   100,
	VBR:              false,
}

// Filter feeds PCM into a dca encode session through an in-process
// pipe and drains whatever Opus frames ffmpeg has produced so far on
// every FilterPCM call. Because dca encodes asynchronously via a
// spawned ffmpeg process, a single FilterPCM call does not map one
// input chunk to one output frame; callers should expect FilterPCM to
// sometimes return no bytes even on success, and more than one frame's
// worth of bytes on a later call.
type Filter struct {
	opts *dca.EncodeOptions

	pw  *io.PipeWriter
	enc *dca.EncodeSession

	frames chan []byte
	done   chan struct{}
}

// New builds an opusenc Filter with the given encode options. A nil
// opts falls back to DefaultEncodeOptions.
func New(opts *dca.EncodeOptions) *Filter {
	if opts == nil {
		cp := DefaultEncodeOptions
		opts = &cp
	}
	return &Filter{opts: opts}
}

// Open starts the ffmpeg encode session. The format returned is fixed
// by the encode options, not negotiated from in, since dca resamples
// whatever PCM it is given to its configured output format.
func (f *Filter) Open(outputworker.AudioFormat) (outputworker.AudioFormat, error) {
	pr, pw := io.Pipe()
	enc, err := dca.EncodeMem(pr, f.opts)
	if err != nil {
		pw.Close()
		return outputworker.AudioFormat{}, errors.Wrap(err, "opusenc: start encoder")
	}
	f.pw = pw
	f.enc = enc
	f.frames = make(chan []byte, f.opts.BufferedFrames)
	f.done = make(chan struct{})
	go f.drain()

	return outputworker.AudioFormat{
		SampleRate: uint32(f.opts.FrameRate),
		Format:     outputworker.SampleFormatS16,
		Channels:   uint8(f.opts.Channels),
	}, nil
}

func (f *Filter) drain() {
	defer close(f.done)
	for {
		frame, err := f.enc.OpusFrame()
		if err != nil {
			return
		}
		select {
		case f.frames <- frame:
		case <-f.done:
			return
		}
	}
}

func (f *Filter) Close() {
	if f.pw != nil {
		f.pw.Close()
	}
	if f.enc != nil {
		f.enc.Cleanup()
	}
	if f.done != nil {
		select {
		case <-f.done:
		default:
			close(f.done)
		}
	}
}

// FilterPCM writes pcm into the encoder and returns whatever Opus
// frames are immediately ready, concatenated. An empty pcm still
// drains any frames produced since the last call.
func (f *Filter) FilterPCM(pcm []byte) ([]byte, error) {
	if len(pcm) > 0 {
		if _, err := f.pw.Write(pcm); err != nil {
			return nil, errors.Wrap(err, "opusenc: write pcm")
		}
	}

	var out []byte
	for {
		select {
		case frame := <-f.frames:
			out = append(out, frame...)
		default:
			return out, nil
		}
	}
}
