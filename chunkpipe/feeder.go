package chunkpipe

import (
	"time"

	"github.com/mpdgo/outputworker"
)

// Feeder drains a Source into a Pipe one frame at a time, wrapping
// each frame in an *outputworker.MusicChunk. It plays the role the
// teacher's payloadSender played between a queued Payload and a
// discord voice connection, generalized to push chunks instead of
// writing frames directly to a device.
type Feeder struct {
	pipe    *Pipe
	src     SourceCloser
	tag     *outputworker.MusicTag
	onEnd   func(elapsed time.Duration, err error)
	pushTmo time.Duration
}

// FeederOption configures a Feeder at construction.
type FeederOption func(*Feeder)

// WithTag attaches a tag to the first chunk read from the source.
func WithTag(tag *outputworker.MusicTag) FeederOption {
	return func(f *Feeder) { f.tag = tag }
}

// WithOnEnd registers a callback invoked once the source is exhausted
// or Push repeatedly fails, mirroring the teacher's song.onEnd.
func WithOnEnd(fn func(elapsed time.Duration, err error)) FeederOption {
	return func(f *Feeder) { f.onEnd = fn }
}

// WithPushTimeout bounds how long Feed retries a full pipe before
// giving up, mirroring the teacher's SendTimeout.
func WithPushTimeout(d time.Duration) FeederOption {
	return func(f *Feeder) { f.pushTmo = d }
}

// NewFeeder builds a Feeder that reads src and pushes into pipe.
func NewFeeder(pipe *Pipe, src SourceCloser, opts ...FeederOption) *Feeder {
	f := &Feeder{
		pipe:    pipe,
		src:     src,
		onEnd:   func(time.Duration, error) {},
		pushTmo: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Feed reads frames from the source until it is exhausted or an
// unrecoverable error occurs, pushing one *outputworker.MusicChunk per
// frame into the pipe. It blocks the calling goroutine and is meant to
// be run with `go feeder.Feed()`.
func (f *Feeder) Feed() {
	defer f.src.Close()

	var elapsed time.Duration
	frameDur := f.src.FrameDuration()
	tag := f.tag

	for {
		data, err := f.src.ReadFrame()
		if len(data) > 0 {
			chunk := &outputworker.MusicChunk{Data: data, Tag: tag}
			tag = nil
			if pushErr := f.pushRetry(chunk); pushErr != nil {
				f.onEnd(elapsed, pushErr)
				return
			}
			elapsed += frameDur
		}
		if err != nil {
			f.onEnd(elapsed, err)
			return
		}
	}
}

func (f *Feeder) pushRetry(chunk *outputworker.MusicChunk) error {
	deadline := time.Now().Add(f.pushTmo)
	for {
		err := f.pipe.Push(chunk)
		if err == nil {
			return nil
		}
		if err != ErrFull {
			return err
		}
		if time.Now().After(deadline) {
			return ErrFull
		}
		time.Sleep(5 * time.Millisecond)
	}
}
