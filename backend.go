package outputworker

import "time"

// BackendPort is the abstract contract to a device plugin. Every
// method except Delay is called with the OutputState mutex released;
// the worker re-acquires it once the call returns. Delay is a cheap
// query and is called with the mutex held.
type BackendPort interface {
	// Enable prepares the device for use. Called at most once between
	// a Disable and the next Enable.
	Enable() error
	// Disable releases whatever Enable acquired.
	Disable()
	// Open begins an I/O session in the given format.
	Open(format AudioFormat) error
	// Close ends the current I/O session.
	Close()
	// Play writes pcm and returns the number of bytes actually
	// consumed. A return of 0 signals an unrecoverable failure of the
	// open session.
	Play(pcm []byte) (int, error)
	// Pause asks the device to idle without closing the session.
	// Called repeatedly until the worker is told to stop pausing.
	Pause() error
	// Drain blocks until all previously written audio has played.
	Drain()
	// Cancel discards any audio the device has buffered but not yet
	// played.
	Cancel()
	// Delay returns how long the caller should wait before the device
	// can accept more audio. 0 means "now".
	Delay() time.Duration
	// SendTag delivers a stream tag out of band from the PCM data.
	SendTag(tag *MusicTag) error
}
