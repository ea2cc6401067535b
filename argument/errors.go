package argument

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol is matched by every [ProtocolError].
	ErrProtocol = errors.New("argument codec misuse")
	// ErrMalformed is matched by every [DataError].
	ErrMalformed = errors.New("malformed argument data")
)

// ProtocolError is the error returned when a [Marshaller] or
// [Demarshaller] is driven incorrectly, for example by ending a
// structure while an array is open, or appending a value that
// doesn't match the expected signature.
//
// Protocol errors are sticky: once one is returned, every further
// call on the same Marshaller or Demarshaller returns it again.
type ProtocolError struct {
	// Op is the operation that was attempted.
	Op string
	// Reason is an explanation of why the operation is not allowed.
	Reason error
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e ProtocolError) Unwrap() error {
	return e.Reason
}

func (e ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// DataError is the error returned when a [Demarshaller] encounters
// wire data that does not conform to the DBus format: truncated
// input, out of range booleans, invalid embedded signatures and so
// on. Errors caused by truncated input also match
// [io.ErrUnexpectedEOF].
type DataError struct {
	// Op is the operation that was attempted.
	Op string
	// Offset is the read position at which the problem was found.
	Offset int
	// Reason is an explanation of what is wrong with the data.
	Reason error
}

func (e DataError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Op, e.Offset, e.Reason)
}

func (e DataError) Unwrap() error {
	return e.Reason
}

func (e DataError) Is(target error) bool {
	return target == ErrMalformed
}

func protoErr(op, reason string, args ...any) error {
	return ProtocolError{op, fmt.Errorf(reason, args...)}
}
