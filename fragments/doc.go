// Package fragments provides low-level encoding and decoding helpers
// for the DBus wire format.
//
// The encoder and decoder deal in aligned scalars, length-prefixed
// strings and array framing over an in-memory buffer. They know
// nothing about type signatures: the argument package drives them
// according to a signature, and is responsible for producing and
// accepting only well-formed values.
//
// All alignment is computed relative to the start of the buffer,
// which is assumed to sit on an 8-byte boundary of the enclosing
// message.
package fragments
