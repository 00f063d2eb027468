// Package null implements a no-device outputworker.BackendPort, used
// by tests and headless daemons that need a worker running without
// any real audio sink.
package null

import (
	"time"

	"github.com/mpdgo/outputworker"
)

// Backend discards every frame it is given and reports zero delay.
type Backend struct {
	enabled bool
	open    bool
}

// New returns a ready-to-enable null backend.
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

func (b *Backend) Open(outputworker.AudioFormat) error {
	b.open = true
	return nil
}

func (b *Backend) Close() {
	b.open = false
}

func (b *Backend) Play(pcm []byte) (int, error) {
	return len(pcm), nil
}

func (b *Backend) Pause() error {
	return nil
}

func (b *Backend) Drain() {}

func (b *Backend) Cancel() {}

func (b *Backend) Delay() time.Duration {
	return 0
}

func (b *Backend) SendTag(*outputworker.MusicTag) error {
	return nil
}
