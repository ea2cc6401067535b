package fragments

import "fmt"

// MaxArrayLength is the largest array payload, in bytes, that DBus
// allows.
const MaxArrayLength = 64 << 20

// An Encoder provides utilities to write a DBus wire format message
// to a byte slice.
//
// Methods insert padding as needed to conform to DBus alignment
// rules, except for [Encoder.Write] which outputs bytes verbatim.
type Encoder struct {
	// Order is the byte order to use when encoding multi-byte values.
	Order ByteOrder
	// Out is the encoded output.
	Out []byte

	// arrays is the stack of arrays opened with BeginArray and not
	// yet closed.
	arrays []arrayMark
}

type arrayMark struct {
	// lenOffset is where the array's uint32 length lives in Out.
	lenOffset int
	// start is where the first element begins, after alignment
	// padding.
	start int
}

// Pad inserts padding bytes as needed to make the message a multiple
// of align bytes. If the message is already correctly aligned, no
// padding is inserted.
func (e *Encoder) Pad(align int) {
	extra := len(e.Out) % align
	if extra == 0 {
		return
	}
	var pad [8]byte
	e.Out = append(e.Out, pad[:align-extra]...)
}

// Write writes bs as-is to the output. It is the caller's
// responsibility to ensure correct padding and encoding.
func (e *Encoder) Write(bs []byte) {
	e.Out = append(e.Out, bs...)
}

// Bytes writes bs to the output as a DBus byte array.
func (e *Encoder) Bytes(bs []byte) {
	e.Uint32(uint32(len(bs)))
	e.Out = append(e.Out, bs...)
}

// String writes s to the output. Object paths use the same encoding.
func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s)))
	e.Out = append(e.Out, s...)
	e.Out = append(e.Out, 0)
}

// Signature writes a type signature to the output. Signatures have a
// single byte length prefix, so sig must be at most 255 bytes.
func (e *Encoder) Signature(sig string) {
	e.Uint8(uint8(len(sig)))
	e.Out = append(e.Out, sig...)
	e.Out = append(e.Out, 0)
}

// Uint8 writes a uint8.
func (e *Encoder) Uint8(u8 uint8) {
	e.Out = append(e.Out, u8)
}

// Uint16 writes uint16.
func (e *Encoder) Uint16(u16 uint16) {
	e.Pad(2)
	e.Out = e.Order.AppendUint16(e.Out, u16)
}

// Uint32 writes uint32.
func (e *Encoder) Uint32(u32 uint32) {
	e.Pad(4)
	e.Out = e.Order.AppendUint32(e.Out, u32)
}

// Uint64 writes uint64.
func (e *Encoder) Uint64(u64 uint64) {
	e.Pad(8)
	e.Out = e.Order.AppendUint64(e.Out, u64)
}

// BeginArray writes an array header with a placeholder length, and
// pads the output to elemAlign. Array elements follow, and the
// array must be closed with [Encoder.EndArray].
//
// The padding to elemAlign is written even if the array ends up
// empty.
func (e *Encoder) BeginArray(elemAlign int) {
	e.Pad(4)
	m := arrayMark{lenOffset: len(e.Out)}
	e.Uint32(0)
	e.Pad(elemAlign)
	m.start = len(e.Out)
	e.arrays = append(e.arrays, m)
}

// EndArray closes the innermost open array, filling in its length.
func (e *Encoder) EndArray() error {
	if len(e.arrays) == 0 {
		return fmt.Errorf("EndArray called with no open array")
	}
	m := e.arrays[len(e.arrays)-1]
	e.arrays = e.arrays[:len(e.arrays)-1]
	ln := len(e.Out) - m.start
	if ln > MaxArrayLength {
		return fmt.Errorf("array is %d bytes, exceeds maximum of %d", ln, MaxArrayLength)
	}
	e.Order.PutUint32(e.Out[m.lenOffset:], uint32(ln))
	return nil
}

// Array writes an array to the output.
//
// Array elements must be added within the provided elements
// function. The elements function is responsible for padding each
// array element to the correct alignment for the element type.
//
// elemAlign is the alignment of the array's element type, so that
// the array header can be padded accordingly.
func (e *Encoder) Array(elemAlign int, elements func() error) error {
	e.BeginArray(elemAlign)
	err := elements()
	if endErr := e.EndArray(); err == nil {
		err = endErr
	}
	return err
}

// Struct writes a struct to the output.
//
// Struct fields must be added within the provided elements function.
func (e *Encoder) Struct(elements func() error) error {
	e.Pad(8)
	return elements()
}

// ByteOrderFlag writes the DBus byte order flag byte ('l' or 'B')
// that matches [Encoder.Order].
func (e *Encoder) ByteOrderFlag() {
	e.Write([]byte{e.Order.dbusFlag()})
}
