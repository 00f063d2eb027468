// Package chunkpipe feeds outputworker.MusicChunk values from decoded
// audio sources into the bounded queue an OutputWorker reads from. It
// plays the role the teacher's Player queue and payloadSender played,
// generalized from one Discord-bound io.Writer to the chunk-oriented
// Pipe contract.
package chunkpipe

import (
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/pkg/errors"

	"github.com/mpdgo/outputworker"
)

// ErrFull is returned when Push would exceed the configured capacity,
// mirroring the teacher's own ErrSendFull.
var ErrFull = errors.New("chunkpipe: queue is full")

// ErrClosed is returned from Push/Pop once the pipe has been closed.
var ErrClosed = errors.New("chunkpipe: pipe is closed")

// Pipe is a bounded FIFO of *outputworker.MusicChunk, implementing
// outputworker.Pipe for the worker side and a Push/Pop contract for
// the producer side. Like the teacher's Player, it wraps
// go-datastructures/queue rather than a channel or its buggy
// ring buffer, per voice.go's own comment on why.
//
// Beyond enqueuing, Push links every chunk it accepts onto the
// previous chunk's Next field, materializing the linked chain
// outputworker.OutputWorker walks: once a chunk becomes the worker's
// currentChunk, the worker never calls back into the Pipe again for
// it, only follows currentChunk.Next, so that field has to already be
// set by the time a second chunk arrives.
type Pipe struct {
	q        *queue.Queue
	capacity int64

	mu   sync.Mutex
	tail *outputworker.MusicChunk

	onPush func()
}

// Option configures a Pipe at construction.
type Option func(*Pipe)

// WithOnPush registers a callback run after every chunk Push links and
// enqueues successfully. A producer pairs this with
// OutputState.SetAllowPlay to wake a worker parked on the condvar with
// nothing left to play, mirroring the teacher's own payloadSender
// waking a writer as soon as a Payload is available.
func WithOnPush(fn func()) Option {
	return func(p *Pipe) { p.onPush = fn }
}

// New creates a Pipe with the given capacity.
func New(capacity int, opts ...Option) *Pipe {
	p := &Pipe{q: queue.New(int64(capacity)), capacity: int64(capacity)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Push enqueues a chunk, failing with ErrFull once the pipe is at
// capacity so a producer can apply backpressure instead of growing
// memory without bound. On success, chunk is linked onto the tail of
// the chain built by prior Push calls before onPush, if any, runs.
func (p *Pipe) Push(chunk *outputworker.MusicChunk) error {
	if p.q.Len() >= p.capacity {
		return ErrFull
	}
	if err := p.q.Put(chunk); err != nil {
		return ErrClosed
	}

	p.mu.Lock()
	if p.tail != nil {
		p.tail.Next = chunk
	}
	p.tail = chunk
	p.mu.Unlock()

	if p.onPush != nil {
		p.onPush()
	}
	return nil
}

// Pop blocks for up to timeout for a chunk to become available. A
// zero timeout blocks indefinitely.
func (p *Pipe) Pop(timeout time.Duration) (*outputworker.MusicChunk, error) {
	items, err := p.q.Poll(1, timeout)
	if err == queue.ErrTimeout {
		return nil, err
	}
	if err != nil {
		return nil, ErrClosed
	}
	chunk, ok := items[0].(*outputworker.MusicChunk)
	if !ok {
		return nil, errors.New("chunkpipe: unexpected item in queue")
	}
	return chunk, nil
}

// Peek implements outputworker.Pipe: it returns the next chunk without
// removing it, or nil if the pipe is empty or closed.
func (p *Pipe) Peek() *outputworker.MusicChunk {
	item, err := p.q.Peek()
	if err != nil {
		return nil
	}
	chunk, ok := item.(*outputworker.MusicChunk)
	if !ok {
		return nil
	}
	return chunk
}

// Len reports the number of chunks currently queued.
func (p *Pipe) Len() int {
	return int(p.q.Len())
}

// Close disposes the underlying queue, unblocking any pending Pop.
func (p *Pipe) Close() {
	p.q.Dispose()
}

// Closed reports whether Close has been called.
func (p *Pipe) Closed() bool {
	return p.q.Disposed()
}
