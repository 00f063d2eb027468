package outputworker

import "github.com/pkg/errors"

// Sentinel error kinds. An OPEN failure wraps ErrEnableFailed,
// ErrFilterOpenFailed, ErrBackendOpenFailed or ErrConvertConfigFailed
// with github.com/pkg/errors, so errors.Cause recovers the kind; the
// worker logs that error and does not return it to the controller.
// Play, pause and filter_pcm failures are logged with the underlying
// error unwrapped: the worker never produces ErrPlayFailed,
// ErrPauseFailed, ErrFilterPcmFailed or ErrCrossFadeFormatUnsupported.
var (
	ErrEnableFailed               = errors.New("enable failed")
	ErrFilterOpenFailed           = errors.New("filter open failed")
	ErrBackendOpenFailed          = errors.New("backend open failed")
	ErrConvertConfigFailed        = errors.New("convert filter configuration failed")
	ErrPlayFailed                 = errors.New("play failed")
	ErrPauseFailed                = errors.New("pause failed")
	ErrFilterPcmFailed            = errors.New("filter_pcm failed")
	ErrCrossFadeFormatUnsupported = errors.New("cross-fade format unsupported")
)
