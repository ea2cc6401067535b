package argument

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/danderson/dbusmeta"
	"github.com/danderson/dbusmeta/fragments"
)

// An rframe is one open container on the Demarshaller's stack.
type rframe struct {
	kind dbusmeta.ElementKind
	// sig is the signature of the values not yet read from the
	// container. In arrays and maps it is instead the element
	// signature.
	sig string
}

// A Demarshaller decodes a sequence of values from the DBus wire
// format, guided by their signature.
//
// The Demarshaller describes the next value with
// [Demarshaller.CurrentSignature] and [Demarshaller.CurrentType], so
// callers can traverse data whose shape they don't know in advance:
// open containers with the Begin methods, loop until
// [Demarshaller.AtEnd], and close them with the matching End method.
//
// Reading a value that doesn't match the current signature is a
// [ProtocolError]. Wire data that doesn't conform to the format is a
// [DataError]. The Demarshaller never reads outside its input.
type Demarshaller struct {
	dec   fragments.Decoder
	stack []*rframe
	err   error
}

// NewDemarshaller returns a Demarshaller that reads values of the
// given signature from data.
func NewDemarshaller(order fragments.ByteOrder, signature string, data []byte) (*Demarshaller, error) {
	if _, err := dbusmeta.SplitSignature(signature); err != nil {
		return nil, err
	}
	return &Demarshaller{
		dec:   fragments.Decoder{Order: order, In: data},
		stack: []*rframe{{kind: dbusmeta.UnknownKind, sig: signature}},
	}, nil
}

func (d *Demarshaller) fail(err error) error {
	if d.err == nil {
		d.err = err
	}
	return d.err
}

func (d *Demarshaller) dataErr(op string, err error) error {
	return d.fail(DataError{op, d.dec.Offset(), err})
}

func (d *Demarshaller) top() *rframe {
	return d.stack[len(d.stack)-1]
}

func (d *Demarshaller) isArray() bool {
	k := d.top().kind
	return k == dbusmeta.ArrayKind || k == dbusmeta.MapKind
}

// Err returns the first error the Demarshaller encountered, if any.
func (d *Demarshaller) Err() error {
	return d.err
}

// Offset returns the current read position in the input.
func (d *Demarshaller) Offset() int {
	return d.dec.Offset()
}

// Depth returns the number of open containers.
func (d *Demarshaller) Depth() int {
	return len(d.stack) - 1
}

// AtEnd reports whether the innermost open container, or the top
// level if none is open, has no more values to read.
func (d *Demarshaller) AtEnd() bool {
	if d.err != nil {
		return true
	}
	if d.isArray() {
		return d.dec.Remaining() <= 0
	}
	return d.top().sig == ""
}

// CurrentSignature returns the signature of the next value, or "" if
// the innermost container has no more values.
func (d *Demarshaller) CurrentSignature() string {
	if d.AtEnd() {
		return ""
	}
	f := d.top()
	if d.isArray() {
		return f.sig
	}
	single, _, _ := dbusmeta.NextType(f.sig)
	return single
}

// CurrentType returns the kind of the next value.
func (d *Demarshaller) CurrentType() dbusmeta.ElementKind {
	return dbusmeta.KindOf(d.CurrentSignature())
}

// take verifies that the next value has signature sig.
func (d *Demarshaller) take(op, sig string) error {
	if d.err != nil {
		return d.err
	}
	cur := d.CurrentSignature()
	switch {
	case cur == "":
		return d.fail(protoErr(op, "no more values in %s", d.where()))
	case cur != sig:
		return d.fail(protoErr(op, "cannot read %q, next value is %q", sig, cur))
	}
	return nil
}

// takeContainer is take for a container of the given kind, returning
// the container's full signature.
func (d *Demarshaller) takeContainer(op string, kind dbusmeta.ElementKind) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	cur := d.CurrentSignature()
	switch {
	case cur == "":
		return "", d.fail(protoErr(op, "no more values in %s", d.where()))
	case dbusmeta.KindOf(cur) != kind:
		return "", d.fail(protoErr(op, "cannot begin %s, next value is %q", kind, cur))
	case len(d.stack) > maxDepth:
		return "", d.dataErr(op, fmt.Errorf("containers nested more than %d deep", maxDepth))
	}
	return cur, nil
}

// advance marks the current value of the innermost container as
// read.
func (d *Demarshaller) advance() {
	if d.isArray() {
		return
	}
	f := d.top()
	_, rest, _ := dbusmeta.NextType(f.sig)
	f.sig = rest
}

func (d *Demarshaller) where() string {
	if len(d.stack) == 1 {
		return "top level"
	}
	return d.top().kind.String()
}

// ReadByte reads a byte.
func (d *Demarshaller) ReadByte() (byte, error) {
	if err := d.take("ReadByte", "y"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint8()
	if err != nil {
		return 0, d.dataErr("ReadByte", err)
	}
	d.advance()
	return v, nil
}

// ReadBool reads a boolean.
func (d *Demarshaller) ReadBool() (bool, error) {
	if err := d.take("ReadBool", "b"); err != nil {
		return false, err
	}
	v, err := d.dec.Uint32()
	if err != nil {
		return false, d.dataErr("ReadBool", err)
	}
	if v > 1 {
		return false, d.dataErr("ReadBool", fmt.Errorf("invalid boolean value %d", v))
	}
	d.advance()
	return v == 1, nil
}

// ReadInt16 reads an int16.
func (d *Demarshaller) ReadInt16() (int16, error) {
	if err := d.take("ReadInt16", "n"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint16()
	if err != nil {
		return 0, d.dataErr("ReadInt16", err)
	}
	d.advance()
	return int16(v), nil
}

// ReadUint16 reads a uint16.
func (d *Demarshaller) ReadUint16() (uint16, error) {
	if err := d.take("ReadUint16", "q"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint16()
	if err != nil {
		return 0, d.dataErr("ReadUint16", err)
	}
	d.advance()
	return v, nil
}

// ReadInt32 reads an int32.
func (d *Demarshaller) ReadInt32() (int32, error) {
	if err := d.take("ReadInt32", "i"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint32()
	if err != nil {
		return 0, d.dataErr("ReadInt32", err)
	}
	d.advance()
	return int32(v), nil
}

// ReadUint32 reads a uint32.
func (d *Demarshaller) ReadUint32() (uint32, error) {
	if err := d.take("ReadUint32", "u"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint32()
	if err != nil {
		return 0, d.dataErr("ReadUint32", err)
	}
	d.advance()
	return v, nil
}

// ReadInt64 reads an int64.
func (d *Demarshaller) ReadInt64() (int64, error) {
	if err := d.take("ReadInt64", "x"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint64()
	if err != nil {
		return 0, d.dataErr("ReadInt64", err)
	}
	d.advance()
	return int64(v), nil
}

// ReadUint64 reads a uint64.
func (d *Demarshaller) ReadUint64() (uint64, error) {
	if err := d.take("ReadUint64", "t"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint64()
	if err != nil {
		return 0, d.dataErr("ReadUint64", err)
	}
	d.advance()
	return v, nil
}

// ReadDouble reads an IEEE 754 double.
func (d *Demarshaller) ReadDouble() (float64, error) {
	if err := d.take("ReadDouble", "d"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint64()
	if err != nil {
		return 0, d.dataErr("ReadDouble", err)
	}
	d.advance()
	return math.Float64frombits(v), nil
}

// ReadString reads a string.
func (d *Demarshaller) ReadString() (string, error) {
	if err := d.take("ReadString", "s"); err != nil {
		return "", err
	}
	v, err := d.dec.String()
	if err != nil {
		return "", d.dataErr("ReadString", err)
	}
	d.advance()
	return v, nil
}

// ReadObjectPath reads an object path.
func (d *Demarshaller) ReadObjectPath() (ObjectPath, error) {
	if err := d.take("ReadObjectPath", "o"); err != nil {
		return "", err
	}
	v, err := d.dec.String()
	if err != nil {
		return "", d.dataErr("ReadObjectPath", err)
	}
	if !dbusmeta.IsValidObjectPath(v) {
		return "", d.dataErr("ReadObjectPath", fmt.Errorf("invalid object path %q", v))
	}
	d.advance()
	return ObjectPath(v), nil
}

// ReadSignature reads a type signature.
func (d *Demarshaller) ReadSignature() (Signature, error) {
	if err := d.take("ReadSignature", "g"); err != nil {
		return "", err
	}
	v, err := d.dec.Signature()
	if err != nil {
		return "", d.dataErr("ReadSignature", err)
	}
	if !dbusmeta.IsValidSignature(v) {
		return "", d.dataErr("ReadSignature", fmt.Errorf("invalid signature %q", v))
	}
	d.advance()
	return Signature(v), nil
}

// ReadUnixFD reads a file descriptor index.
func (d *Demarshaller) ReadUnixFD() (UnixFD, error) {
	if err := d.take("ReadUnixFD", "h"); err != nil {
		return 0, err
	}
	v, err := d.dec.Uint32()
	if err != nil {
		return 0, d.dataErr("ReadUnixFD", err)
	}
	d.advance()
	return UnixFD(v), nil
}

// ReadBytes reads a byte array. The returned slice is a copy.
func (d *Demarshaller) ReadBytes() ([]byte, error) {
	if err := d.take("ReadBytes", "ay"); err != nil {
		return nil, err
	}
	v, err := d.dec.Bytes()
	if err != nil {
		return nil, d.dataErr("ReadBytes", err)
	}
	d.advance()
	return bytes.Clone(v), nil
}

// BeginStructure opens the structure that is the next value.
func (d *Demarshaller) BeginStructure() error {
	sig, err := d.takeContainer("BeginStructure", dbusmeta.StructureKind)
	if err != nil {
		return err
	}
	if err := d.dec.Pad(8); err != nil {
		return d.dataErr("BeginStructure", err)
	}
	d.advance()
	d.stack = append(d.stack, &rframe{kind: dbusmeta.StructureKind, sig: sig[1 : len(sig)-1]})
	return nil
}

// EndStructure closes the innermost structure, skipping any fields
// that were not read.
func (d *Demarshaller) EndStructure() error {
	return d.endSequence("EndStructure", dbusmeta.StructureKind)
}

// BeginArray opens the array that is the next value. The element
// signature is available from [Demarshaller.CurrentSignature] until
// the array is exhausted.
func (d *Demarshaller) BeginArray() error {
	return d.beginArray("BeginArray", dbusmeta.ArrayKind)
}

func (d *Demarshaller) beginArray(op string, kind dbusmeta.ElementKind) error {
	sig, err := d.takeContainer(op, kind)
	if err != nil {
		return err
	}
	elem := sig[1:]
	if _, err := d.dec.BeginArray(dbusmeta.Alignment(elem[0])); err != nil {
		return d.dataErr(op, err)
	}
	d.advance()
	d.stack = append(d.stack, &rframe{kind: kind, sig: elem})
	return nil
}

// EndArray closes the innermost array, skipping any elements that
// were not read.
func (d *Demarshaller) EndArray() error {
	return d.endArray("EndArray", dbusmeta.ArrayKind)
}

func (d *Demarshaller) endArray(op string, kind dbusmeta.ElementKind) error {
	if err := d.pop(op, kind); err != nil {
		return err
	}
	if err := d.dec.EndArray(); err != nil {
		return d.fail(ProtocolError{op, err})
	}
	return nil
}

// BeginMap opens the dict that is the next value. Its entries are
// read with [Demarshaller.BeginMapEntry].
func (d *Demarshaller) BeginMap() error {
	return d.beginArray("BeginMap", dbusmeta.MapKind)
}

// EndMap closes the innermost map, skipping any entries that were
// not read.
func (d *Demarshaller) EndMap() error {
	return d.endArray("EndMap", dbusmeta.MapKind)
}

// MapTypes returns the key and value signatures of the innermost
// open map.
func (d *Demarshaller) MapTypes() (key, value string, ok bool) {
	f := d.top()
	if f.kind != dbusmeta.MapKind {
		return "", "", false
	}
	return f.sig[1:2], f.sig[2 : len(f.sig)-1], true
}

// BeginMapEntry opens the next entry of the innermost map.
func (d *Demarshaller) BeginMapEntry() error {
	if d.err != nil {
		return d.err
	}
	f := d.top()
	if f.kind != dbusmeta.MapKind {
		return d.fail(protoErr("BeginMapEntry", "map entries can only be read from a map, not from %s", d.where()))
	}
	if d.AtEnd() {
		return d.fail(protoErr("BeginMapEntry", "no more entries in map"))
	}
	if err := d.dec.Pad(8); err != nil {
		return d.dataErr("BeginMapEntry", err)
	}
	d.stack = append(d.stack, &rframe{kind: dbusmeta.MapEntryKind, sig: f.sig[1 : len(f.sig)-1]})
	return nil
}

// EndMapEntry closes the innermost map entry, skipping the key or
// value if they were not read.
func (d *Demarshaller) EndMapEntry() error {
	return d.endSequence("EndMapEntry", dbusmeta.MapEntryKind)
}

// BeginVariant opens the variant that is the next value. The inner
// value's signature, read from the wire, is available from
// [Demarshaller.CurrentSignature].
func (d *Demarshaller) BeginVariant() error {
	if _, err := d.takeContainer("BeginVariant", dbusmeta.VariantKind); err != nil {
		return err
	}
	sig, err := d.dec.Signature()
	if err != nil {
		return d.dataErr("BeginVariant", err)
	}
	if !dbusmeta.IsValidSingleSignature(sig) {
		return d.dataErr("BeginVariant", fmt.Errorf("variant signature %q is not a single complete type", sig))
	}
	d.advance()
	d.stack = append(d.stack, &rframe{kind: dbusmeta.VariantKind, sig: sig})
	return nil
}

// EndVariant closes the innermost variant, skipping its value if it
// was not read.
func (d *Demarshaller) EndVariant() error {
	return d.endSequence("EndVariant", dbusmeta.VariantKind)
}

// pop removes the innermost container, which must be of kind.
func (d *Demarshaller) pop(op string, kind dbusmeta.ElementKind) error {
	if d.err != nil {
		return d.err
	}
	if len(d.stack) == 1 || d.top().kind != kind {
		return d.fail(protoErr(op, "innermost container is %s, not %s", d.where(), kind))
	}
	d.stack = d.stack[:len(d.stack)-1]
	return nil
}

// endSequence closes a structure, variant or map entry after skipping
// its unread values.
func (d *Demarshaller) endSequence(op string, kind dbusmeta.ElementKind) error {
	if d.err != nil {
		return d.err
	}
	if len(d.stack) == 1 || d.top().kind != kind {
		return d.fail(protoErr(op, "innermost container is %s, not %s", d.where(), kind))
	}
	for !d.AtEnd() {
		if err := d.Skip(); err != nil {
			return err
		}
	}
	return d.pop(op, kind)
}

// Skip skips over the next value without decoding it.
func (d *Demarshaller) Skip() error {
	if d.err != nil {
		return d.err
	}
	if d.top().kind == dbusmeta.MapKind {
		if err := d.BeginMapEntry(); err != nil {
			return err
		}
		return d.EndMapEntry()
	}
	switch d.CurrentType() {
	case dbusmeta.BasicKind:
		_, err := d.readBasic()
		return err
	case dbusmeta.VariantKind:
		if err := d.BeginVariant(); err != nil {
			return err
		}
		return d.EndVariant()
	case dbusmeta.ArrayKind:
		if err := d.BeginArray(); err != nil {
			return err
		}
		return d.EndArray()
	case dbusmeta.MapKind:
		if err := d.BeginMap(); err != nil {
			return err
		}
		return d.EndMap()
	case dbusmeta.StructureKind:
		if err := d.BeginStructure(); err != nil {
			return err
		}
		return d.EndStructure()
	default:
		return d.fail(protoErr("Skip", "no more values in %s", d.where()))
	}
}

// readBasic reads the next value, which must be of a basic type.
func (d *Demarshaller) readBasic() (any, error) {
	switch sig := d.CurrentSignature(); sig {
	case "y":
		return d.ReadByte()
	case "b":
		return d.ReadBool()
	case "n":
		return d.ReadInt16()
	case "q":
		return d.ReadUint16()
	case "i":
		return d.ReadInt32()
	case "u":
		return d.ReadUint32()
	case "x":
		return d.ReadInt64()
	case "t":
		return d.ReadUint64()
	case "d":
		return d.ReadDouble()
	case "s":
		return d.ReadString()
	case "o":
		return d.ReadObjectPath()
	case "g":
		return d.ReadSignature()
	case "h":
		return d.ReadUnixFD()
	default:
		return nil, d.fail(protoErr("ReadValue", "%q is not a basic type", sig))
	}
}

// ReadValue reads the next value into the generic value model
// described by [SignatureOf]. Byte arrays are returned as []byte.
func (d *Demarshaller) ReadValue() (any, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.top().kind == dbusmeta.MapKind {
		return nil, d.fail(protoErr("ReadValue", "map entries must be read with BeginMapEntry"))
	}
	sig := d.CurrentSignature()
	switch d.CurrentType() {
	case dbusmeta.BasicKind:
		return d.readBasic()
	case dbusmeta.VariantKind:
		if err := d.BeginVariant(); err != nil {
			return nil, err
		}
		v, err := d.ReadValue()
		if err != nil {
			return nil, err
		}
		if err := d.EndVariant(); err != nil {
			return nil, err
		}
		return Variant{v}, nil
	case dbusmeta.ArrayKind:
		if sig == "ay" {
			return d.ReadBytes()
		}
		ret := Array{Elem: sig[1:]}
		if err := d.BeginArray(); err != nil {
			return nil, err
		}
		for !d.AtEnd() {
			v, err := d.ReadValue()
			if err != nil {
				return nil, err
			}
			ret.Items = append(ret.Items, v)
		}
		if err := d.EndArray(); err != nil {
			return nil, err
		}
		return ret, nil
	case dbusmeta.MapKind:
		ret := Map{Key: sig[2:3], Value: sig[3 : len(sig)-1]}
		if err := d.BeginMap(); err != nil {
			return nil, err
		}
		for !d.AtEnd() {
			if err := d.BeginMapEntry(); err != nil {
				return nil, err
			}
			k, err := d.ReadValue()
			if err != nil {
				return nil, err
			}
			v, err := d.ReadValue()
			if err != nil {
				return nil, err
			}
			if err := d.EndMapEntry(); err != nil {
				return nil, err
			}
			ret.Entries = append(ret.Entries, MapEntry{k, v})
		}
		if err := d.EndMap(); err != nil {
			return nil, err
		}
		return ret, nil
	case dbusmeta.StructureKind:
		var ret Struct
		if err := d.BeginStructure(); err != nil {
			return nil, err
		}
		for !d.AtEnd() {
			v, err := d.ReadValue()
			if err != nil {
				return nil, err
			}
			ret.Fields = append(ret.Fields, v)
		}
		if err := d.EndStructure(); err != nil {
			return nil, err
		}
		return ret, nil
	default:
		return nil, d.fail(protoErr("ReadValue", "no more values in %s", d.where()))
	}
}

// ReadAll reads all remaining top-level values. It must be called
// with no container open, and fails if the input has trailing bytes.
func (d *Demarshaller) ReadAll() ([]any, error) {
	if len(d.stack) != 1 {
		return nil, d.fail(protoErr("ReadAll", "%s still open", d.where()))
	}
	var ret []any
	for !d.AtEnd() {
		v, err := d.ReadValue()
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return ret, nil
}

// errTrailingData is the reason for the DataError returned by Finish
// when the input has unread bytes.
var errTrailingData = errors.New("trailing data after last value")

// Finish verifies that every value has been read and that the input
// has no trailing bytes.
func (d *Demarshaller) Finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.stack) != 1 {
		return d.fail(protoErr("Finish", "%s still open", d.where()))
	}
	if !d.AtEnd() {
		return d.fail(protoErr("Finish", "unread values of type %q", d.top().sig))
	}
	if d.dec.Remaining() != 0 {
		return d.dataErr("Finish", errTrailingData)
	}
	return nil
}
