package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	// provider errors
	ErrTransientProvider = errors.New("transient provider error")
	ErrAuthFailed        = errors.New("provider authentication failed")
	ErrNotFound          = errors.New("remote object not found")

	// account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountDisabled = errors.New("account is disabled")

	// queue errors
	ErrEmailNotFound   = errors.New("email not found")
	ErrUnknownMutation = errors.New("unknown mutation kind")
)

// Transient wraps err as a retryable provider failure.
func Transient(err error, msg string) error {
	if err == nil {
		return errors.Wrap(ErrTransientProvider, msg)
	}
	return errors.Wrapf(ErrTransientProvider, "%s: %v", msg, err)
}

// AuthFailed wraps err as a credential failure.
func AuthFailed(err error, msg string) error {
	if err == nil {
		return errors.Wrap(ErrAuthFailed, msg)
	}
	return errors.Wrapf(ErrAuthFailed, "%s: %v", msg, err)
}

// NotFound wraps err as a missing remote object.
func NotFound(msg string) error {
	return errors.Wrap(ErrNotFound, msg)
}

func IsTransient(err error) bool {
	return stderrors.Is(err, ErrTransientProvider)
}

func IsAuthFailed(err error) bool {
	return stderrors.Is(err, ErrAuthFailed)
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
