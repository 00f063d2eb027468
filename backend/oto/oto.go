// Package oto wraps a github.com/hajimehoshi/oto player as an
// outputworker.BackendPort for local speaker playback, grounded on the
// teacher's own examples/native/main.go oto.NewPlayer wiring.
package oto

import (
	"time"

	hajimehoshi_oto "github.com/hajimehoshi/oto"
	"github.com/pkg/errors"

	"github.com/mpdgo/outputworker"
)

// BufferSize mirrors the teacher's 1<<15 byte buffer.
const BufferSize = 1 << 15

// Backend plays S16LE PCM through the system's default audio device.
type Backend struct {
	player  *hajimehoshi_oto.Player
	enabled bool
}

// New returns a ready-to-enable oto backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Enable() error {
	b.enabled = true
	return nil
}

func (b *Backend) Disable() {
	b.enabled = false
}

// Open creates the underlying oto.Player for the negotiated format.
// oto only supports S16LE samples, matching outputworker's own
// SampleFormatS16.
func (b *Backend) Open(format outputworker.AudioFormat) error {
	if format.Format != outputworker.SampleFormatS16 {
		return errors.Errorf("oto backend: unsupported sample format %s", format.Format)
	}
	p, err := hajimehoshi_oto.NewPlayer(int(format.SampleRate), int(format.Channels), 2, BufferSize)
	if err != nil {
		return errors.Wrap(err, "oto: open player")
	}
	b.player = p
	return nil
}

func (b *Backend) Close() {
	if b.player != nil {
		_ = b.player.Close()
		b.player = nil
	}
}

// Play writes pcm to the player. oto's Write blocks until the driver
// accepts the data, so a full write means the whole buffer was
// consumed.
func (b *Backend) Play(pcm []byte) (int, error) {
	n, err := b.player.Write(pcm)
	if err != nil {
		return n, errors.Wrap(err, "oto: write")
	}
	return n, nil
}

func (b *Backend) Pause() error {
	return nil
}

func (b *Backend) Drain() {}

func (b *Backend) Cancel() {}

// Delay is unavailable from oto's API; a well-behaved caller only
// calls backend.Delay to throttle reads ahead of the hardware clock,
// so reporting zero just removes that throttle.
func (b *Backend) Delay() time.Duration {
	return 0
}

func (b *Backend) SendTag(*outputworker.MusicTag) error {
	return nil
}
