package outputworker

// FilterPort is one stage of the filter chain. Open and Close are
// idempotent per open session: a well-behaved implementation tolerates
// being closed without ever having been opened, and Open is never
// called twice without an intervening Close.
type FilterPort interface {
	Open(in AudioFormat) (AudioFormat, error)
	Close()
	// FilterPCM may return a borrowed or newly-owned buffer; the
	// caller must not retain it across the next FilterPCM call.
	FilterPCM(pcm []byte) ([]byte, error)
}

// ReplayGainFilter is a FilterPort extended with replay-gain specific
// configuration. SetInfo(nil) disables gain adjustment.
type ReplayGainFilter interface {
	FilterPort
	SetInfo(info *ReplayGainInfo)
}

// ConvertFilter is a FilterPort extended with the ability to target a
// specific output format, independent of what it was opened with.
type ConvertFilter interface {
	FilterPort
	SetOutFormat(format AudioFormat) error
}

// FilterChain runs PCM through a fixed stack of filters in order.
// Open/Close are idempotent per open session; FilterPCM propagates the
// first failure and stops.
type FilterChain struct {
	stages []FilterPort
	opened bool
}

// NewFilterChain builds a chain that applies stages in the given
// order.
func NewFilterChain(stages ...FilterPort) *FilterChain {
	return &FilterChain{stages: stages}
}

// Open opens every stage in order, propagating the output format of
// each stage as the input format of the next. If any stage fails, the
// stages already opened are closed before the error is returned.
func (c *FilterChain) Open(in AudioFormat) (AudioFormat, error) {
	if c.opened {
		return in, nil
	}
	format := in
	opened := make([]FilterPort, 0, len(c.stages))
	for _, stage := range c.stages {
		out, err := stage.Open(format)
		if err != nil {
			for i := len(opened) - 1; i >= 0; i-- {
				opened[i].Close()
			}
			return AudioFormat{}, err
		}
		opened = append(opened, stage)
		format = out
	}
	c.opened = true
	return format, nil
}

// Close closes every stage in reverse order. Safe to call on an
// unopened or already-closed chain.
func (c *FilterChain) Close() {
	if !c.opened {
		return
	}
	for i := len(c.stages) - 1; i >= 0; i-- {
		c.stages[i].Close()
	}
	c.opened = false
}

// FilterPCM runs pcm through every stage in order. A stage that
// returns a zero-length buffer short-circuits the remaining stages and
// returns that empty buffer, matching the "zero length allowed"
// contract chunk_data relies on.
func (c *FilterChain) FilterPCM(pcm []byte) ([]byte, error) {
	data := pcm
	for _, stage := range c.stages {
		out, err := stage.FilterPCM(data)
		if err != nil {
			return nil, err
		}
		data = out
		if len(data) == 0 {
			return data, nil
		}
	}
	return data, nil
}
