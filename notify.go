package outputworker

// ChanNotify is a minimal channel-backed signaler satisfying both
// ClientNotify and PlayerController. Signals coalesce: a receiver that
// is slow to drain the channel does not block the worker, it just
// observes one wakeup instead of several.
type ChanNotify struct {
	c chan struct{}
}

// NewChanNotify creates a ready-to-use signaler.
func NewChanNotify() *ChanNotify {
	return &ChanNotify{c: make(chan struct{}, 1)}
}

// Signal implements ClientNotify and PlayerController.LockSignal.
func (n *ChanNotify) Signal() {
	select {
	case n.c <- struct{}{}:
	default:
	}
}

// LockSignal implements PlayerController.
func (n *ChanNotify) LockSignal() { n.Signal() }

// C exposes the channel a controller selects on to wait for a wakeup.
func (n *ChanNotify) C() <-chan struct{} {
	return n.c
}
