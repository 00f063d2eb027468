package outputworker

import "github.com/google/uuid"

// OutputState holds every field the worker goroutine and the
// controller share. Every field below the embedded CommandMailbox is
// guarded by CommandMailbox.Mu; both threads must hold it to read or
// write any of them, per spec.md §3's invariant list.
type OutputState struct {
	*CommandMailbox

	ID         uuid.UUID
	Name       string
	PluginName string

	reallyEnabled bool
	open          bool
	pause         bool

	currentChunk         *MusicChunk
	currentChunkFinished bool
	inPlaybackLoop       bool

	pipe Pipe

	inAudioFormat     AudioFormat
	outAudioFormat    AudioFormat
	configAudioFormat AudioFormat

	filter                *FilterChain
	convertFilter         ConvertFilter
	replayGainFilter      ReplayGainFilter
	otherReplayGainFilter ReplayGainFilter
	replayGainSerial      uint32
	otherReplayGainSerial uint32

	crossFadeBuffer CrossFadeBuffer
	crossFadeDither ditherState

	failTimer FailTimer

	backend    BackendPort
	controller PlayerController
	log        Logger

	sendTagEnabled bool
}

// NewOutputState constructs the shared state for one output. The
// worker goroutine must be started with Run before any command is
// posted.
func NewOutputState(name, pluginName string, backend BackendPort, opts ...StateOption) *OutputState {
	s := &OutputState{
		ID:              uuid.New(),
		Name:            name,
		PluginName:      pluginName,
		backend:         backend,
		log:             nopLogger{},
		sendTagEnabled:  true,
		crossFadeDither: newDitherState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CommandMailbox = newCommandMailbox(s.controllerNotify())
	return s
}

// controllerNotify resolves the ClientNotify the mailbox signals
// after each ack; a nil controller falls back to a no-op so tests
// needn't supply one.
func (s *OutputState) controllerNotify() ClientNotify {
	if n, ok := s.controller.(ClientNotify); ok {
		return n
	}
	return noopNotify{}
}

type noopNotify struct{}

func (noopNotify) Signal() {}

// StateOption configures an OutputState at construction time.
type StateOption func(*OutputState)

// WithLogger injects a structured logging sink.
func WithLogger(l Logger) StateOption {
	return func(s *OutputState) {
		if l != nil {
			s.log = l
		}
	}
}

// WithController injects the controller signaled on Play() completion
// and, if it also implements ClientNotify, on every command ack.
func WithController(c PlayerController) StateOption {
	return func(s *OutputState) {
		s.controller = c
	}
}

// WithFilterChain installs the main filter chain and the optional
// replay-gain filters used for the primary and cross-fade "other"
// chunk.
func WithFilterChain(chain *FilterChain, convert ConvertFilter, replayGain, otherReplayGain ReplayGainFilter) StateOption {
	return func(s *OutputState) {
		s.filter = chain
		s.convertFilter = convert
		s.replayGainFilter = replayGain
		s.otherReplayGainFilter = otherReplayGain
	}
}

// WithConfigFormat sets the user-configured format mask applied to
// whatever the filter chain produces when deriving the backend's
// output format.
func WithConfigFormat(mask AudioFormat) StateOption {
	return func(s *OutputState) {
		s.configAudioFormat = mask
	}
}

// WithSendTag enables or disables tag delivery to the backend.
func WithSendTag(enabled bool) StateOption {
	return func(s *OutputState) {
		s.sendTagEnabled = enabled
	}
}

// SetPipe and SetInAudioFormat must be called before OPEN is posted,
// per spec.md §6. Each takes the mutex itself, so the caller must not
// already hold it.
func (s *OutputState) SetPipe(p Pipe) {
	s.Mu.Lock()
	s.pipe = p
	s.Mu.Unlock()
}

func (s *OutputState) SetInAudioFormat(f AudioFormat) {
	s.Mu.Lock()
	s.inAudioFormat = f
	s.Mu.Unlock()
}

// IsOpen reports whether the device is currently open for I/O.
func (s *OutputState) IsOpen() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.open
}

// IsReallyEnabled reports whether ENABLE has succeeded and DISABLE has
// not been processed since.
func (s *OutputState) IsReallyEnabled() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.reallyEnabled
}

// FailTimerDefined reports whether the cooldown gate is currently set.
func (s *OutputState) FailTimerDefined() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.failTimer.IsDefined()
}

// assertInvariants panics if any of spec.md §3's boundary invariants
// is violated. Called at the top of every dispatch iteration; a panic
// here means a bug in this package, not a runtime condition callers
// should handle. Outside the playback loop, currentChunk may still
// hold the finished last chunk of the previous play(), since
// getNextChunk resumes from its Next link.
func (s *OutputState) assertInvariants() {
	if s.open && (s.pipe == nil || !s.inAudioFormat.Valid()) {
		panic("outputworker: open without a valid pipe and input format")
	}
	if s.open && !s.reallyEnabled {
		panic("outputworker: open without really_enabled")
	}
	if s.currentChunk != nil && !s.inPlaybackLoop && !s.currentChunkFinished {
		panic("outputworker: unfinished current chunk set outside playback loop")
	}
}
