package chunkpipe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mpdgo/outputworker"
)

// countingBackend is a minimal outputworker.BackendPort that records
// every Play call, standing in for a real device the way worker_test.go's
// fakeBackend does in the core package's own tests.
type countingBackend struct {
	mu     sync.Mutex
	played [][]byte
}

func (b *countingBackend) Enable() error                       { return nil }
func (b *countingBackend) Disable()                            {}
func (b *countingBackend) Open(outputworker.AudioFormat) error { return nil }
func (b *countingBackend) Close()                              {}

func (b *countingBackend) Play(pcm []byte) (int, error) {
	b.mu.Lock()
	b.played = append(b.played, append([]byte(nil), pcm...))
	b.mu.Unlock()
	return len(pcm), nil
}

func (b *countingBackend) Pause() error                         { return nil }
func (b *countingBackend) Drain()                                {}
func (b *countingBackend) Cancel()                               {}
func (b *countingBackend) Delay() time.Duration                  { return 0 }
func (b *countingBackend) SendTag(*outputworker.MusicTag) error { return nil }

func (b *countingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.played)
}

// TestPipeFeedsMultipleChunksToRealWorker runs a real Pipe and a real
// OutputWorker together, pushing chunks one at a time the way a
// Feeder would. It exists because worker_test.go's own scenarios only
// ever exercise manually Next-linked fakePipe chunks, which would
// never have caught Push failing to link the chain itself.
func TestPipeFeedsMultipleChunksToRealWorker(t *testing.T) {
	t.Parallel()

	backend := &countingBackend{}
	format := outputworker.AudioFormat{SampleRate: 44100, Format: outputworker.SampleFormatS16, Channels: 2}

	state := outputworker.NewOutputState("test", "counting", backend,
		outputworker.WithFilterChain(outputworker.NewFilterChain(), nil, nil, nil),
	)
	pipe := New(8, WithOnPush(func() { state.SetAllowPlay(true) }))
	state.SetPipe(pipe)
	state.SetInAudioFormat(format)

	worker := outputworker.NewWorker(state)
	go worker.Run()

	state.Enable()
	state.Open()

	const chunkCount = 3
	for i := 0; i < chunkCount; i++ {
		chunk := &outputworker.MusicChunk{Data: []byte{byte(i), 0, byte(i), 0}}
		require.NoError(t, pipe.Push(chunk))
	}

	require.Eventually(t, func() bool {
		return backend.count() >= chunkCount
	}, time.Second, 5*time.Millisecond, "not every pushed chunk reached the backend")

	state.Kill()
}
