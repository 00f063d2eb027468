package chunkpipe

import (
	"io"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/mpdgo/outputworker"
)

// Source provides successive frames of decoded PCM and the format they
// are encoded in, mirroring the teacher's own ReadFrame/FrameDuration
// Source contract in player.go.
type Source interface {
	ReadFrame() ([]byte, error)
	FrameDuration() time.Duration
	Format() outputworker.AudioFormat
}

// SourceCloser is a Source that owns a resource needing cleanup, same
// split the teacher makes between Source and SourceCloser.
type SourceCloser interface {
	Source
	io.Closer
}

const mp3BytesPerFrame = 4608

// mp3Source decodes an MP3 stream into fixed PCM frames, grounded on
// the teacher's mp3.SourceCloser.
type mp3Source struct {
	decoder *gomp3.Decoder
	rc      io.ReadCloser
}

// NewMP3Source wraps r as a Source of decoded S16LE stereo PCM frames.
// If r implements io.Closer, it is closed when the Source is closed.
func NewMP3Source(r io.Reader) (SourceCloser, error) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	dec, err := gomp3.NewDecoder(rc)
	if err != nil {
		return nil, err
	}
	return &mp3Source{decoder: dec, rc: rc}, nil
}

func (s *mp3Source) ReadFrame() ([]byte, error) {
	frame := make([]byte, mp3BytesPerFrame)
	n, err := s.decoder.Read(frame)
	frame = frame[:n]
	if n > 0 && err == io.EOF {
		err = nil
	}
	return frame, err
}

func (s *mp3Source) FrameDuration() time.Duration {
	const bytesPerSample = 4 // S16LE stereo
	bytesPerSecond := bytesPerSample * s.decoder.SampleRate()
	secondsPerFrame := float64(mp3BytesPerFrame) / float64(bytesPerSecond)
	return time.Duration(secondsPerFrame * float64(time.Second))
}

func (s *mp3Source) Format() outputworker.AudioFormat {
	return outputworker.AudioFormat{
		SampleRate: uint32(s.decoder.SampleRate()),
		Format:     outputworker.SampleFormatS16,
		Channels:   2,
	}
}

func (s *mp3Source) Close() error {
	return s.rc.Close()
}

// silenceFrameDuration is the pacing a silenceSource reads itself at,
// matching the 20ms frame the rest of the domain stack assumes for
// Discord-bound output.
const silenceFrameDuration = 20 * time.Millisecond

// silenceSource is a placeholder Source that produces zero-filled PCM
// frames forever, at the real-time pace a decoded stream would, so an
// output has something to open against before any real audio source
// is wired up.
type silenceSource struct {
	format    outputworker.AudioFormat
	frameSize int
}

// NewSilenceSource returns a SourceCloser that never ends, generating
// silent frames in format at real-time pace. Close is a no-op.
func NewSilenceSource(format outputworker.AudioFormat) SourceCloser {
	frameSamples := int(float64(format.SampleRate) * silenceFrameDuration.Seconds())
	return &silenceSource{
		format:    format,
		frameSize: frameSamples * format.FrameSize(),
	}
}

func (s *silenceSource) ReadFrame() ([]byte, error) {
	time.Sleep(silenceFrameDuration)
	return make([]byte, s.frameSize), nil
}

func (s *silenceSource) FrameDuration() time.Duration {
	return silenceFrameDuration
}

func (s *silenceSource) Format() outputworker.AudioFormat {
	return s.format
}

func (s *silenceSource) Close() error {
	return nil
}
