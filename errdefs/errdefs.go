// Package errdefs declares the failure kinds shared by the trainer and the
// recognition loop, and maps them to process exit codes.
package errdefs

import (
	"github.com/pkg/errors"
)

var (
	ErrDeviceUnavailable  = errors.New("capture device unavailable")
	ErrResourceLoadFailed = errors.New("resource load failed")
	ErrCorpusNotFound     = errors.New("training corpus not found")
	ErrEmptyCorpus        = errors.New("training corpus has no usable images")
	ErrCorpusInvalid      = errors.New("training corpus layout is invalid")
	ErrMalformed          = errors.New("malformed label registry")
	ErrNotFound           = errors.New("label registry not found")
	ErrModelNotFound      = errors.New("model not found")
	ErrModelCorrupt       = errors.New("model corrupt")
)

const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitUsage              = 2
	ExitDeviceUnavailable  = 3
	ExitResourceLoadFailed = 4
	ExitCorpusNotFound     = 5
	ExitEmptyCorpus        = 6
)

// ExitCode returns the process exit code for err. Model and registry load
// failures count as resource load failures. A corpus tree that can not be
// turned into labels exits like a missing one.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrDeviceUnavailable):
		return ExitDeviceUnavailable
	case errors.Is(err, ErrResourceLoadFailed),
		errors.Is(err, ErrModelNotFound),
		errors.Is(err, ErrModelCorrupt),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrMalformed):
		return ExitResourceLoadFailed
	case errors.Is(err, ErrCorpusNotFound), errors.Is(err, ErrCorpusInvalid):
		return ExitCorpusNotFound
	case errors.Is(err, ErrEmptyCorpus):
		return ExitEmptyCorpus
	default:
		return ExitFailure
	}
}
