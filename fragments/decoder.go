package fragments

import (
	"errors"
	"fmt"
	"io"
)

// A Decoder provides utilities to read a DBus wire format message
// from a byte slice.
//
// Methods advance the read cursor as needed to account for the
// padding required by DBus alignment rules, except for [Decoder.Read]
// which reads bytes verbatim.
//
// A Decoder never reads outside of In, or outside of the innermost
// array opened with [Decoder.BeginArray]. Reads that would overrun
// fail with an error wrapping [io.ErrUnexpectedEOF].
type Decoder struct {
	// Order is the byte order to use when reading multi-byte values.
	Order ByteOrder
	// In is the input to read.
	In []byte

	// offset is the read position within In. Alignment is computed
	// from it, so it must be the global offset within the message.
	offset int
	// limits is the stack of end offsets of open arrays.
	limits []int
}

// Offset returns the current read position.
func (d *Decoder) Offset() int {
	return d.offset
}

// limit returns the offset past which reads are not allowed.
func (d *Decoder) limit() int {
	if len(d.limits) == 0 {
		return len(d.In)
	}
	return d.limits[len(d.limits)-1]
}

// Remaining returns the number of bytes left to read in the
// innermost open array, or in the whole input if no array is open.
func (d *Decoder) Remaining() int {
	return d.limit() - d.offset
}

func (d *Decoder) eof(n int) error {
	return fmt.Errorf("reading %d bytes at offset %d with %d remaining: %w", n, d.offset, d.Remaining(), io.ErrUnexpectedEOF)
}

// Pad consumes padding bytes as needed to make the next read happen
// at a multiple of align bytes. If the decoder is already correctly
// aligned, no bytes are consumed. Padding bytes must be zero.
func (d *Decoder) Pad(align int) error {
	extra := d.offset % align
	if extra == 0 {
		return nil
	}
	skip := align - extra
	if skip > d.Remaining() {
		return d.eof(skip)
	}
	for _, b := range d.In[d.offset : d.offset+skip] {
		if b != 0 {
			return fmt.Errorf("non-zero padding byte at offset %d", d.offset)
		}
	}
	d.offset += skip
	return nil
}

// Read reads n bytes, with no framing or padding. The returned slice
// aliases In.
func (d *Decoder) Read(n int) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, d.eof(n)
	}
	bs := d.In[d.offset : d.offset+n : d.offset+n]
	d.offset += n
	return bs, nil
}

// Skip discards n bytes.
func (d *Decoder) Skip(n int) error {
	_, err := d.Read(n)
	return err
}

// Bytes reads a DBus byte array. The returned slice aliases In.
func (d *Decoder) Bytes() ([]byte, error) {
	ln, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if ln > MaxArrayLength {
		return nil, fmt.Errorf("byte array length %d exceeds maximum of %d", ln, MaxArrayLength)
	}
	return d.Read(int(ln))
}

// String reads a DBus string. Object paths use the same encoding.
func (d *Decoder) String() (string, error) {
	ln, err := d.Uint32()
	if err != nil {
		return "", err
	}
	if uint64(ln) >= uint64(d.Remaining()) {
		return "", d.eof(int(ln) + 1)
	}
	return d.terminated(int(ln))
}

// Signature reads a DBus type signature. The signature is not
// validated.
func (d *Decoder) Signature() (string, error) {
	ln, err := d.Uint8()
	if err != nil {
		return "", err
	}
	return d.terminated(int(ln))
}

// terminated reads n bytes followed by a NUL terminator.
func (d *Decoder) terminated(n int) (string, error) {
	start := d.offset
	bs, err := d.Read(n + 1)
	if err != nil {
		return "", err
	}
	if bs[n] != 0 {
		return "", fmt.Errorf("string at offset %d is missing its NUL terminator", start)
	}
	return string(bs[:n]), nil
}

// Uint8 reads a uint8.
func (d *Decoder) Uint8() (uint8, error) {
	bs, err := d.Read(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Uint16 reads a uint16.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.Pad(2); err != nil {
		return 0, err
	}
	bs, err := d.Read(2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(bs), nil
}

// Uint32 reads a uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.Pad(4); err != nil {
		return 0, err
	}
	bs, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// Uint64 reads a uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.Pad(8); err != nil {
		return 0, err
	}
	bs, err := d.Read(8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(bs), nil
}

// BeginArray reads an array header and the padding to elemAlign that
// follows it, and returns the array's length in bytes. Until the
// matching [Decoder.EndArray], reads are confined to the array's
// data.
func (d *Decoder) BeginArray(elemAlign int) (int, error) {
	ln, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if ln > MaxArrayLength {
		return 0, fmt.Errorf("array length %d exceeds maximum of %d", ln, MaxArrayLength)
	}
	if err := d.Pad(elemAlign); err != nil {
		return 0, err
	}
	if int(ln) > d.Remaining() {
		return 0, d.eof(int(ln))
	}
	d.limits = append(d.limits, d.offset+int(ln))
	return int(ln), nil
}

// EndArray closes the innermost array, skipping any of its data that
// was not read.
func (d *Decoder) EndArray() error {
	if len(d.limits) == 0 {
		return errors.New("EndArray called with no open array")
	}
	d.offset = d.limits[len(d.limits)-1]
	d.limits = d.limits[:len(d.limits)-1]
	return nil
}

// Array reads an array.
//
// readElement is called repeatedly while there is array data
// remaining to process, passing in the array index of the element to
// be decoded. readElement must consume at least one byte per call.
//
// Array returns the total number of array elements that were
// processed.
//
// elemAlign is the alignment of the array's element type, so that
// the decoder consumes array header padding appropriately even if
// the array contains no elements.
func (d *Decoder) Array(elemAlign int, readElement func(int) error) (int, error) {
	if _, err := d.BeginArray(elemAlign); err != nil {
		return 0, err
	}
	idx := 0
	for d.Remaining() > 0 {
		before := d.offset
		if err := readElement(idx); err != nil {
			return idx, err
		}
		if d.offset == before {
			return idx, fmt.Errorf("array element %d at offset %d consumed no data", idx, before)
		}
		idx++
	}
	return idx, d.EndArray()
}

// Struct reads a struct.
//
// Struct fields must be read within the provided fields function.
func (d *Decoder) Struct(fields func() error) error {
	if err := d.Pad(8); err != nil {
		return err
	}
	return fields()
}

// ByteOrderFlag reads a DBus byte order flag byte, and sets
// [Decoder.Order] to match it.
func (d *Decoder) ByteOrderFlag() error {
	v, err := d.Uint8()
	if err != nil {
		return err
	}
	order, err := OrderForFlag(v)
	if err != nil {
		return err
	}
	d.Order = order
	return nil
}
