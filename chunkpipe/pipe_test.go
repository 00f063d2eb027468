package chunkpipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpdgo/outputworker"
)

func TestPipePushPopOrder(t *testing.T) {
	t.Parallel()
	p := New(2)

	c1 := &outputworker.MusicChunk{Data: []byte("a")}
	c2 := &outputworker.MusicChunk{Data: []byte("b")}

	require.NoError(t, p.Push(c1))
	require.NoError(t, p.Push(c2))

	assert.ErrorIs(t, p.Push(&outputworker.MusicChunk{}), ErrFull)

	got, err := p.Pop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	got, err = p.Pop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, c2, got)
}

func TestPipePeekDoesNotRemove(t *testing.T) {
	t.Parallel()
	p := New(1)
	c := &outputworker.MusicChunk{Data: []byte("x")}
	require.NoError(t, p.Push(c))

	assert.Equal(t, c, p.Peek())
	assert.Equal(t, c, p.Peek())
	assert.Equal(t, 1, p.Len())
}

func TestPipeCloseUnblocksPop(t *testing.T) {
	t.Parallel()
	p := New(1)
	done := make(chan struct{})
	go func() {
		_, err := p.Pop(5 * time.Second)
		assert.Error(t, err)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
	assert.True(t, p.Closed())
}
