package dbusmeta

import (
	"errors"
	"fmt"
)

// ErrInvalidSignature is matched by every [SignatureError] through
// errors.Is.
var ErrInvalidSignature = errors.New("invalid type signature")

// SignatureError is the error returned when a type signature does
// not conform to the DBus grammar.
type SignatureError struct {
	// Signature is the offending signature.
	Signature string
	// Reason is an explanation of what is wrong with the signature.
	Reason error
}

func (e SignatureError) Error() string {
	return fmt.Sprintf("invalid type signature %q: %s", e.Signature, e.Reason)
}

func (e SignatureError) Unwrap() error {
	return e.Reason
}

func (e SignatureError) Is(target error) bool {
	return target == ErrInvalidSignature
}

func sigErr(sig string, reason string, args ...any) error {
	return SignatureError{sig, fmt.Errorf(reason, args...)}
}
