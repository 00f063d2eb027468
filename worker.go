package outputworker

import (
	"time"

	"github.com/pkg/errors"
)

// dispatchSignal is the control signal dispatchOnce returns to Run.
// PAUSE, DRAIN and CANCEL return Continue to mark that they must not
// be followed by an idle-step Play() attempt in the same breath; every
// other command returns Idle. Run treats both the same way (loop
// again) — the distinction exists to keep the state machine's shape
// legible, not because the two signals drive different control flow
// here.
type dispatchSignal uint8

const (
	sigIdle dispatchSignal = iota
	sigContinue
	sigTerminated
)

// OutputWorker is the single-threaded state machine that owns one
// OutputState. Run must be called exactly once, typically via
// `go worker.Run()`; it returns only after a KILL command.
type OutputWorker struct {
	state *OutputState
}

// NewWorker wraps state in a worker ready to Run.
func NewWorker(state *OutputState) *OutputWorker {
	return &OutputWorker{state: state}
}

// State returns the OutputState a controller posts commands to. It is
// safe to call from any goroutine; OutputState's own methods handle
// the locking.
func (w *OutputWorker) State() *OutputState {
	return w.state
}

// Run is the worker's goroutine body. It takes the mutex on entry and
// only releases it around backend calls other than Delay, the
// replay-gain, convert and per-chunk FilterPCM filter calls, controller
// signals, and the condvar wait. The main FilterChain's Open and Close
// are called with the mutex held.
func (w *OutputWorker) Run() {
	s := w.state
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for {
		s.assertInvariants()
		if w.dispatchOnce() == sigTerminated {
			return
		}
	}
}

// dispatchOnce processes whatever is in the command slot, or attempts
// an idle Play() step if the slot is empty. Called with Mu held;
// returns with Mu held.
func (w *OutputWorker) dispatchOnce() dispatchSignal {
	s := w.state
	switch s.command {
	case CmdNone:
		return w.idleStep()
	case CmdEnable:
		w.doEnable()
		s.ack()
		return sigIdle
	case CmdDisable:
		w.doDisable()
		s.ack()
		return sigIdle
	case CmdOpen:
		if err := w.doOpen(); err != nil {
			s.log.Error("open failed", "output", s.Name, "err", err)
		}
		s.ack()
		return sigIdle
	case CmdReopen:
		w.doReopen()
		s.ack()
		return sigIdle
	case CmdClose:
		w.doClose(true)
		s.ack()
		return sigIdle
	case CmdPause:
		// doPause acks the PAUSE command itself partway through, then
		// loops until a different command interrupts it; that command
		// is ack'd by the next call to dispatchOnce, not here.
		w.doPause()
		return sigContinue
	case CmdDrain:
		w.doDrain()
		s.ack()
		return sigContinue
	case CmdCancel:
		w.doCancel()
		s.ack()
		return sigContinue
	case CmdKill:
		s.currentChunk = nil
		s.ack()
		return sigTerminated
	default:
		return sigIdle
	}
}

// idleStep runs when the command slot is empty: it attempts a Play()
// if the output is open and allowed to play, and otherwise waits on
// the condvar for the next command or wakeup.
func (w *OutputWorker) idleStep() dispatchSignal {
	s := w.state
	if s.open && s.allowPlay {
		if w.play() {
			return sigContinue
		}
	}
	if s.command == CmdNone {
		s.wokenForPlay = false
		s.Cond.Wait()
	}
	return sigIdle
}

// withUnlocked releases Mu for the duration of fn, matching the
// "unlock -> blocking call -> lock" discipline spec.md requires around
// every backend or filter call. Expressed as a scoped helper so a
// panic inside fn cannot leak the lock.
func (w *OutputWorker) withUnlocked(fn func()) {
	s := w.state
	s.Mu.Unlock()
	defer s.Mu.Lock()
	fn()
}

// ---- ENABLE / DISABLE ----

func (w *OutputWorker) doEnable() {
	s := w.state
	if s.reallyEnabled {
		return
	}
	var err error
	w.withUnlocked(func() { err = s.backend.Enable() })
	if err != nil {
		s.log.Error("enable failed", "output", s.Name, "plugin", s.PluginName, "err", err)
		return
	}
	s.reallyEnabled = true
}

func (w *OutputWorker) doDisable() {
	s := w.state
	if s.open {
		w.doClose(false)
	}
	if s.reallyEnabled {
		w.withUnlocked(func() { s.backend.Disable() })
		s.reallyEnabled = false
	}
}

// ---- OPEN / CLOSE / REOPEN ----

func (w *OutputWorker) doOpen() error {
	s := w.state
	if s.open {
		panic("outputworker: OPEN while already open")
	}
	if s.pipe == nil || !s.inAudioFormat.Valid() {
		panic("outputworker: OPEN without a pipe and a valid input format")
	}
	s.failTimer.Reset()

	if !s.reallyEnabled {
		w.doEnable()
		if !s.reallyEnabled {
			return errors.Wrapf(ErrEnableFailed, "output %s", s.Name)
		}
	}

	filterOut, err := s.filter.Open(s.inAudioFormat)
	if err != nil {
		s.failTimer.Update()
		s.log.Error("filter open failed", "output", s.Name, "err", err)
		return errors.Wrap(ErrFilterOpenFailed, err.Error())
	}

	outFormat := filterOut.ApplyMask(s.configAudioFormat)

	var openErr error
	w.withUnlocked(func() { openErr = s.backend.Open(outFormat) })
	if openErr != nil {
		s.filter.Close()
		s.failTimer.Update()
		s.log.Error("backend open failed", "output", s.Name, "plugin", s.PluginName, "err", openErr)
		return errors.Wrap(ErrBackendOpenFailed, openErr.Error())
	}

	if s.convertFilter != nil {
		var cerr error
		w.withUnlocked(func() { cerr = s.convertFilter.SetOutFormat(outFormat) })
		if cerr != nil {
			w.withUnlocked(func() { s.backend.Close() })
			s.filter.Close()
			s.failTimer.Update()
			s.log.Error("convert configuration failed", "output", s.Name, "err", cerr)
			return errors.Wrap(ErrConvertConfigFailed, cerr.Error())
		}
	}

	s.outAudioFormat = outFormat
	s.open = true
	s.log.Info("opened output", "output", s.Name, "plugin", s.PluginName, "format", outFormat.String())
	return nil
}

// doClose tears the device down. graceful selects backend.Drain over
// backend.Cancel before backend.Close, per spec.md §4.5's CLOSE
// transition. It is a no-op if the output is already closed.
func (w *OutputWorker) doClose(graceful bool) {
	s := w.state
	if !s.open {
		return
	}
	s.pipe = nil
	s.currentChunk = nil
	s.open = false
	w.withUnlocked(func() {
		if graceful {
			s.backend.Drain()
		} else {
			s.backend.Cancel()
		}
		s.backend.Close()
	})
	s.filter.Close()
	s.log.Info("closed output", "output", s.Name, "plugin", s.PluginName, "graceful", graceful)
}

func (w *OutputWorker) doReopen() {
	s := w.state

	if !s.configAudioFormat.FullyDefined() {
		savedPipe := s.pipe
		w.doClose(true)
		s.pipe = savedPipe
		if err := w.doOpen(); err != nil {
			s.log.Error("reopen failed", "output", s.Name, "err", err)
		}
		return
	}

	if !s.open {
		if err := w.doOpen(); err != nil {
			s.log.Error("reopen failed", "output", s.Name, "err", err)
		}
		return
	}

	s.filter.Close()
	filterOut, err := s.filter.Open(s.inAudioFormat)
	if err != nil {
		w.doClose(false)
		s.failTimer.Update()
		s.log.Error("reopen filter failed", "output", s.Name, "err", err)
		return
	}
	outFormat := filterOut.ApplyMask(s.configAudioFormat)
	if s.convertFilter != nil {
		var cerr error
		w.withUnlocked(func() { cerr = s.convertFilter.SetOutFormat(outFormat) })
		if cerr != nil {
			w.doClose(false)
			s.failTimer.Update()
			s.log.Error("reopen convert failed", "output", s.Name, "err", cerr)
			return
		}
	}
	s.outAudioFormat = outFormat
}

// ---- PAUSE / DRAIN / CANCEL ----

func (w *OutputWorker) doPause() {
	s := w.state
	if !s.open {
		s.ack()
		return
	}
	w.withUnlocked(func() { s.backend.Cancel() })
	s.pause = true
	s.ack()

	for s.command == CmdNone {
		if !w.waitForDelay() {
			break
		}
		var err error
		w.withUnlocked(func() { err = s.backend.Pause() })
		if err != nil {
			s.log.Error("pause failed", "output", s.Name, "err", err)
			w.doClose(false)
			break
		}
	}
	s.pause = false
}

func (w *OutputWorker) doDrain() {
	s := w.state
	if !s.open {
		return
	}
	if s.currentChunk != nil || (s.pipe != nil && s.pipe.Peek() != nil) {
		panic("outputworker: DRAIN with chunks still pending")
	}
	w.withUnlocked(func() { s.backend.Drain() })
}

func (w *OutputWorker) doCancel() {
	s := w.state
	s.currentChunk = nil
	if s.open {
		w.withUnlocked(func() { s.backend.Cancel() })
	}
}

// ---- the hot path ----

// getNextChunk returns the chunk that follows the current one, or the
// head of the pipe if nothing is current yet.
func (s *OutputState) getNextChunk() *MusicChunk {
	if s.currentChunk != nil {
		return s.currentChunk.Next
	}
	if s.pipe != nil {
		return s.pipe.Peek()
	}
	return nil
}

// play walks the chunk chain starting from getNextChunk, stopping
// early if a command arrives or a chunk fails to play. It returns
// false only if there was nothing to play at all.
func (w *OutputWorker) play() bool {
	s := w.state
	chunk := s.getNextChunk()
	if chunk == nil {
		return false
	}
	if s.inPlaybackLoop {
		panic("outputworker: Play called while already in a playback loop")
	}
	s.inPlaybackLoop = true
	s.currentChunkFinished = false

	for chunk != nil && s.command == CmdNone {
		s.currentChunk = chunk
		if !w.playChunk(chunk) {
			break
		}
		chunk = chunk.Next
	}

	s.inPlaybackLoop = false
	s.currentChunkFinished = true
	w.signalController()
	return true
}

func (w *OutputWorker) signalController() {
	s := w.state
	if s.controller == nil {
		return
	}
	w.withUnlocked(func() { s.controller.LockSignal() })
}

// playChunk delivers one chunk's audio to the backend, handing it all
// remaining bytes on each write until they are consumed, honoring
// device-imposed delay between writes. It returns false if
// the chunk failed to filter or the backend reported an unrecoverable
// write failure; in either case the output has already been closed
// abruptly and the fail timer updated.
func (w *OutputWorker) playChunk(chunk *MusicChunk) bool {
	s := w.state

	if s.sendTagEnabled && chunk.Tag != nil {
		var err error
		w.withUnlocked(func() { err = s.backend.SendTag(chunk.Tag) })
		if err != nil {
			s.log.Error("send_tag failed", "output", s.Name, "err", err)
		}
	}

	data, err := w.filterChunk(chunk)
	if err != nil {
		s.log.Error("filter_pcm failed", "output", s.Name, "err", err)
		w.doClose(false)
		s.failTimer.Update()
		return false
	}

	frameSize := s.outAudioFormat.FrameSize()
	for len(data) > 0 && s.command == CmdNone {
		if !w.waitForDelay() {
			break
		}

		var n int
		var playErr error
		w.withUnlocked(func() { n, playErr = s.backend.Play(data) })
		if n == 0 {
			if playErr != nil {
				s.log.Error("play failed", "output", s.Name, "err", playErr)
			}
			w.doClose(false)
			s.failTimer.Update()
			return false
		}
		if n > len(data) {
			panic("outputworker: backend reported writing more than it was given")
		}
		if frameSize > 0 && n%frameSize != 0 {
			panic("outputworker: backend wrote a non-frame-aligned byte count")
		}
		data = data[n:]
	}
	return true
}

// filterChunk produces the PCM the backend should receive for chunk:
// replay-gain normalized, optionally cross-faded with chunk.Other, and
// run through the main filter chain.
func (w *OutputWorker) filterChunk(chunk *MusicChunk) ([]byte, error) {
	s := w.state

	data, err := w.chunkData(chunk, s.replayGainFilter, &s.replayGainSerial)
	if err != nil {
		return nil, errors.Wrap(err, "primary replay gain filter")
	}
	if len(data) == 0 {
		return data, nil
	}

	if chunk.Other != nil {
		otherData, err := w.chunkData(chunk.Other, s.otherReplayGainFilter, &s.otherReplayGainSerial)
		if err != nil {
			return nil, errors.Wrap(err, "cross-fade replay gain filter")
		}
		if len(otherData) == 0 {
			return otherData, nil
		}

		length := len(data)
		if length > len(otherData) {
			length = len(otherData)
		}
		data = s.crossFadeBuffer.Mix(data[:length], otherData, 1-chunk.MixRatio, &s.crossFadeDither)
	}

	var out []byte
	w.withUnlocked(func() { out, err = s.filter.FilterPCM(data) })
	if err != nil {
		return nil, errors.Wrap(err, "main filter chain")
	}
	return out, nil
}

// chunkData reconfigures rg (if its serial is stale) and runs chunk's
// raw data through it. rg may be nil, in which case the chunk's data
// passes through unfiltered. A zero-length result is a valid outcome,
// not an error.
func (w *OutputWorker) chunkData(chunk *MusicChunk, rg ReplayGainFilter, serial *uint32) ([]byte, error) {
	s := w.state
	if s.inAudioFormat.FrameSize() > 0 && len(chunk.Data)%s.inAudioFormat.FrameSize() != 0 {
		panic("outputworker: chunk data is not frame-aligned")
	}
	if rg == nil {
		return chunk.Data, nil
	}

	if chunk.ReplayGainSerial != *serial {
		var info *ReplayGainInfo
		if chunk.ReplayGainSerial != 0 {
			i := chunk.ReplayGainInfo
			info = &i
		}
		w.withUnlocked(func() { rg.SetInfo(info) })
		*serial = chunk.ReplayGainSerial
	}

	var out []byte
	var err error
	w.withUnlocked(func() { out, err = rg.FilterPCM(chunk.Data) })
	return out, err
}

// waitForDelay asks the backend how long until it can accept more
// audio and, if nonzero, blocks on the condvar for up to that long or
// until a command arrives. It returns false if interrupted by a
// command.
func (w *OutputWorker) waitForDelay() bool {
	s := w.state
	d := s.backend.Delay()
	if d <= 0 {
		return true
	}
	return w.condWaitTimeout(d)
}

// condWaitTimeout waits on Cond for at most d, or until s.command
// becomes non-None, whichever comes first. It returns true if the
// timeout elapsed without a command arriving.
func (w *OutputWorker) condWaitTimeout(d time.Duration) bool {
	s := w.state
	timedOut := false
	timer := time.AfterFunc(d, func() {
		s.Mu.Lock()
		timedOut = true
		s.Cond.Broadcast()
		s.Mu.Unlock()
	})
	for s.command == CmdNone && !timedOut {
		s.Cond.Wait()
	}
	timer.Stop()
	return s.command == CmdNone
}

// ---- controller-facing command surface ----

func (s *OutputState) Enable()  { s.post(CmdEnable) }
func (s *OutputState) Disable() { s.post(CmdDisable) }
func (s *OutputState) Open()    { s.post(CmdOpen) }
func (s *OutputState) Reopen()  { s.post(CmdReopen) }
func (s *OutputState) Close()   { s.post(CmdClose) }
func (s *OutputState) Pause()   { s.post(CmdPause) }
func (s *OutputState) Drain()   { s.post(CmdDrain) }
func (s *OutputState) Cancel()  { s.post(CmdCancel) }
func (s *OutputState) Kill()    { s.post(CmdKill) }

// SetAllowPlay lets the controller enable or disable idle-step Play()
// attempts without issuing a command, e.g. to pause the consumption of
// newly queued chunks without tearing down the device.
func (s *OutputState) SetAllowPlay(allow bool) { s.setAllowPlay(allow) }
