package nanny

import (
	"errors"
	"fmt"
)

// Errors returned by Manager operations. Check them with errors.Is.
var (
	// ErrUnsupported is returned when the environment has no usable cache.
	ErrUnsupported = errors.New("nanny: offline cache not supported")

	// ErrUpdateDisabled is returned by Update once an update request was
	// rejected by the cache or the cache became obsolete.
	ErrUpdateDisabled = errors.New("nanny: updates disabled")

	// ErrObsolete is returned by Start after the cache reported obsolete.
	ErrObsolete = errors.New("nanny: cache is obsolete")

	// ErrUnknownOption is returned by Get and Set for unrecognized names.
	ErrUnknownOption = errors.New("nanny: unknown option")

	// ErrInvalidOption is returned by Set when the value has the wrong type
	// or is out of range.
	ErrInvalidOption = errors.New("nanny: invalid option value")

	// ErrInvalidConfig is returned by New when configuration validation fails.
	ErrInvalidConfig = errors.New("nanny: invalid configuration")
)

// SetupError reports that the fallback resource could not be loaded. It is
// the only unrecoverable failure: no operation can proceed afterwards.
type SetupError struct {
	LoaderPath string
	Err        error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("nanny: setup failed loading %s: %v", e.LoaderPath, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
