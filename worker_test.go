package outputworker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records every call it receives and lets a test script
// the Play() return sequence, mirroring the teacher's own nopDevice
// style of minimal test doubles.
type fakeBackend struct {
	mu sync.Mutex

	enableErr error
	openErr   error

	playReturns []int // consumed in order; out of values means len(pcm)
	playCalls   [][]byte
	enabled     bool
	opened      bool
	closed      int
	drained     int
	cancelled   int
	paused      int
	pauseErr    error
	delay       time.Duration
	tags        []*MusicTag
}

func (b *fakeBackend) Enable() error {
	b.enabled = b.enableErr == nil
	return b.enableErr
}
func (b *fakeBackend) Disable() { b.enabled = false }
func (b *fakeBackend) Open(AudioFormat) error {
	if b.openErr == nil {
		b.opened = true
	}
	return b.openErr
}
func (b *fakeBackend) Close() {
	b.opened = false
	b.closed++
}
func (b *fakeBackend) Play(pcm []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playCalls = append(b.playCalls, pcm)
	if len(b.playReturns) > 0 {
		n := b.playReturns[0]
		b.playReturns = b.playReturns[1:]
		return n, nil
	}
	return len(pcm), nil
}
func (b *fakeBackend) Pause() error {
	b.paused++
	return b.pauseErr
}
func (b *fakeBackend) Drain()  { b.drained++ }
func (b *fakeBackend) Cancel() { b.cancelled++ }
func (b *fakeBackend) Delay() time.Duration {
	return b.delay
}
func (b *fakeBackend) SendTag(tag *MusicTag) error {
	b.tags = append(b.tags, tag)
	return nil
}

func (b *fakeBackend) totalPlayed() int {
	n := 0
	for _, c := range b.playCalls {
		n += len(c)
	}
	return n
}

// fakePipe is a single-slot Pipe backed by a manually threaded chunk
// chain via MusicChunk.Next, matching how play()/getNextChunk expect a
// Pipe to behave.
type fakePipe struct {
	head *MusicChunk
}

func (p *fakePipe) Peek() *MusicChunk { return p.head }

func testFormat() AudioFormat {
	return AudioFormat{SampleRate: 44100, Format: SampleFormatS16, Channels: 2}
}

func newTestState(backend *fakeBackend, pipe Pipe) *OutputState {
	s := NewOutputState("test", "fake", backend,
		WithFilterChain(NewFilterChain(), nil, nil, nil),
	)
	s.SetPipe(pipe)
	s.SetInAudioFormat(testFormat())
	return s
}

// S1: two chunks of 4 frames each, at 4 bytes a frame (2ch x S16), so
// 16 bytes a chunk and 32 bytes in all.
func TestScenario1_EnableOpenPlaysAllChunks(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	chunk2 := &MusicChunk{Data: make([]byte, 16)}
	chunk1 := &MusicChunk{Data: make([]byte, 16), Next: chunk2}
	pipe := &fakePipe{head: chunk1}

	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	s.SetAllowPlay(true)

	require.Eventually(t, func() bool {
		return backend.totalPlayed() == 32
	}, time.Second, time.Millisecond, "expected 32 bytes played")

	s.Kill()
}

func TestScenario2_CancelMidPlayStopsDelivery(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{delay: 50 * time.Millisecond}
	chunk2 := &MusicChunk{Data: make([]byte, 16)}
	chunk1 := &MusicChunk{Data: make([]byte, 16), Next: chunk2}
	pipe := &fakePipe{head: chunk1}

	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	s.SetAllowPlay(true)

	require.Eventually(t, func() bool {
		return len(backend.playCalls) >= 1
	}, time.Second, time.Millisecond)

	s.Cancel()

	s.Mu.Lock()
	assert.Nil(t, s.currentChunk)
	s.Mu.Unlock()
	assert.GreaterOrEqual(t, backend.cancelled, 1)

	s.Kill()
}

func TestScenario3_PlayReturningZeroClosesAbruptly(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{playReturns: []int{16, 0}}
	chunk2 := &MusicChunk{Data: make([]byte, 16)}
	chunk1 := &MusicChunk{Data: make([]byte, 16), Next: chunk2}
	pipe := &fakePipe{head: chunk1}

	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	s.SetAllowPlay(true)

	require.Eventually(t, func() bool {
		return backend.closed >= 1
	}, time.Second, time.Millisecond)

	assert.False(t, s.IsOpen())
	assert.True(t, s.FailTimerDefined())

	s.Kill()
}

func TestScenario4_CrossFadeMixRatio(t *testing.T) {
	t.Parallel()
	primary := make([]byte, 100)
	other := make([]byte, 60)
	for i := range primary {
		primary[i] = 1
	}
	for i := range other {
		other[i] = 2
	}

	var buf CrossFadeBuffer
	dither := newDitherState()
	out := buf.Mix(primary[:60], other, 0.75, &dither)
	assert.Len(t, out, 60, "expected exactly other_length bytes")
}

func TestScenario5_PauseLoopExitsOnClose(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{delay: 10 * time.Millisecond}
	pipe := &fakePipe{}

	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	s.Pause()

	require.Eventually(t, func() bool {
		return backend.paused >= 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, backend.cancelled)

	s.Close()
	assert.False(t, s.IsOpen())

	s.Kill()
}

func TestScenario6_ReopenWithUndefinedMaskReopensImplicitly(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	pipe := &fakePipe{}

	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	require.True(t, s.IsOpen())

	s.Reopen()
	assert.True(t, s.IsOpen())
	assert.GreaterOrEqual(t, backend.drained, 1)
	assert.GreaterOrEqual(t, backend.closed, 1)
	assert.True(t, backend.opened)

	s.Kill()
}

func TestBoundary9_PauseWhileClosedActsImmediately(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	pipe := &fakePipe{}
	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Pause()

	assert.Equal(t, 0, backend.cancelled)
	assert.Equal(t, 0, backend.paused)

	s.Kill()
}

func TestInvariant6_EnableDisableEnableRoundTrip(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	pipe := &fakePipe{}
	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Disable()
	s.Enable()

	assert.True(t, s.IsReallyEnabled())
	assert.False(t, s.IsOpen())

	s.Kill()
}

func TestInvariant7_OpenCloseOpenSameFormat(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	pipe := &fakePipe{}
	s := newTestState(backend, pipe)
	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	s.Mu.Lock()
	first := s.outAudioFormat
	s.Mu.Unlock()

	s.Close()
	s.Open()
	s.Mu.Lock()
	second := s.outAudioFormat
	s.Mu.Unlock()

	assert.Equal(t, first, second)

	s.Kill()
}

func TestInvariant8_SameSerialCallsSetInfoOnce(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}

	calls := 0
	rg := &countingReplayGain{onSetInfo: func() { calls++ }}

	chunk1 := &MusicChunk{Data: make([]byte, 16), ReplayGainSerial: 7}
	chunk2 := &MusicChunk{Data: make([]byte, 16), ReplayGainSerial: 7}
	chunk1.Next = chunk2
	pipe := &fakePipe{head: chunk1}

	s := NewOutputState("test", "fake", backend,
		WithFilterChain(NewFilterChain(), nil, rg, nil),
	)
	s.SetPipe(pipe)
	s.SetInAudioFormat(testFormat())

	w := NewWorker(s)
	go w.Run()

	s.Enable()
	s.Open()
	s.SetAllowPlay(true)

	require.Eventually(t, func() bool {
		return backend.totalPlayed() == 32
	}, time.Second, time.Millisecond)

	assert.Equal(t, 1, calls, "expected exactly one SetInfo call for the repeated serial")

	s.Kill()
}

// countingReplayGain is a minimal ReplayGainFilter double that counts
// SetInfo invocations and passes PCM through unmodified.
type countingReplayGain struct {
	onSetInfo func()
}

func (f *countingReplayGain) Open(in AudioFormat) (AudioFormat, error) { return in, nil }
func (f *countingReplayGain) Close()                                  {}
func (f *countingReplayGain) FilterPCM(pcm []byte) ([]byte, error)    { return pcm, nil }
func (f *countingReplayGain) SetInfo(info *ReplayGainInfo) {
	if f.onSetInfo != nil {
		f.onSetInfo()
	}
}
