package service

import (
	"errors"
	"fmt"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
)

var (
	// ErrRejected matches every refused refresh attempt, whatever the reason.
	ErrRejected = errors.New("service: refresh token rejected")

	// ErrUnauthenticated is the only error Authenticate returns.
	ErrUnauthenticated = errors.New("service: unauthenticated")

	// ErrStoreUnavailable marks transient storage failures. Nothing was
	// consumed; the caller may retry with the same token.
	ErrStoreUnavailable = errors.New("service: session store unavailable")
)

// RejectedError carries the internal reason for a refusal. It matches
// ErrRejected under errors.Is.
type RejectedError struct {
	Reason domain.RejectReason
}

func (e *RejectedError) Error() string {
	return "service: refresh token rejected: " + e.Reason.String()
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func reject(reason domain.RejectReason) error {
	return &RejectedError{Reason: reason}
}

// RejectReasonOf extracts the reason from a rejection.
func RejectReasonOf(err error) (domain.RejectReason, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
