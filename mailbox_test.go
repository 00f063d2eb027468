package outputworker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotify struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotify) Signal() {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func TestMailboxPostBlocksUntilAcked(t *testing.T) {
	t.Parallel()
	notify := &countingNotify{}
	m := newCommandMailbox(notify)

	var order []string
	var mu sync.Mutex

	done := make(chan struct{})
	go func() {
		m.Mu.Lock()
		for m.command == CmdNone {
			m.Cond.Wait()
		}
		mu.Lock()
		order = append(order, "worker saw "+m.command.String())
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		m.ack()
		m.Mu.Unlock()
		close(done)
	}()

	m.post(CmdOpen)
	mu.Lock()
	order = append(order, "post returned")
	mu.Unlock()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "worker saw open", order[0])
	assert.Equal(t, "post returned", order[1])

	notify.mu.Lock()
	defer notify.mu.Unlock()
	assert.Equal(t, 1, notify.count)
}

func TestMailboxSetAllowPlayBypassesCommandSlot(t *testing.T) {
	t.Parallel()
	m := newCommandMailbox(nil)
	woken := make(chan struct{})

	go func() {
		m.Mu.Lock()
		for !m.allowPlay {
			m.Cond.Wait()
		}
		m.Mu.Unlock()
		close(woken)
	}()

	time.Sleep(10 * time.Millisecond)
	m.setAllowPlay(true)

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("setAllowPlay did not wake the waiter")
	}
}
