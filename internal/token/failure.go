package token

import (
	"errors"

	"github.com/and161185/payables/internal/errs"
)

// Failure classifies why a token was rejected.
type Failure int

const (
	FailureNone Failure = iota
	FailureMalformed
	FailureSignature
	FailureExpired
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMalformed:
		return "malformed"
	case FailureSignature:
		return "signature"
	case FailureExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// FailureOf classifies an error returned by the codec. Errors that are not
// token failures count as malformed.
func FailureOf(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, errs.ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, errs.ErrSignatureInvalid):
		return FailureSignature
	default:
		return FailureMalformed
	}
}
