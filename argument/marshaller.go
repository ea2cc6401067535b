package argument

import (
	"math"

	"github.com/danderson/dbusmeta"
	"github.com/danderson/dbusmeta/fragments"
)

// maxDepth is the deepest container nesting the codec will produce
// or accept.
const maxDepth = 64

// A wframe is one open container on the Marshaller's stack.
type wframe struct {
	kind dbusmeta.ElementKind
	// free frames accept values of any type and accumulate their
	// signatures in got. Only the top level and structures can be
	// free.
	free bool
	got  string
	// want is the signature of the values still expected in the
	// container. In arrays and maps it is instead the element
	// signature, which repeats.
	want string
	// sig is the signature this container commits to its parent when
	// it ends. It is empty for free structures, whose signature is
	// only known at the end.
	sig string
}

// next returns the signature of the next value the frame accepts, or
// constrained=false if any value is accepted. An empty want with
// constrained=true means the frame is full.
func (f *wframe) next() (want string, constrained bool) {
	switch f.kind {
	case dbusmeta.ArrayKind, dbusmeta.MapKind:
		return f.want, true
	}
	if f.free {
		return "", false
	}
	single, _, ok := dbusmeta.NextType(f.want)
	if !ok {
		return "", true
	}
	return single, true
}

func (f *wframe) commit(sig string) {
	switch {
	case f.kind == dbusmeta.ArrayKind || f.kind == dbusmeta.MapKind:
	case f.free:
		f.got += sig
	default:
		f.want = f.want[len(sig):]
	}
}

// A Marshaller encodes a sequence of values in the DBus wire format.
//
// Values are appended one at a time. Containers are opened with a
// Begin method and closed with the matching End method, or written
// with the closure-scoped helpers such as [Marshaller.Structure]
// which cannot leave a container unbalanced.
//
// A Marshaller is either free, accepting any sequence of values and
// recording their signature, or bound to a signature with
// [NewMarshallerFor], in which case every value must match the next
// expected type. Any misuse results in a [ProtocolError], which is
// sticky.
type Marshaller struct {
	enc   fragments.Encoder
	stack []*wframe
	err   error
}

// NewMarshaller returns a free Marshaller that writes in the given
// byte order.
func NewMarshaller(order fragments.ByteOrder) *Marshaller {
	return &Marshaller{
		enc:   fragments.Encoder{Order: order},
		stack: []*wframe{{kind: dbusmeta.UnknownKind, free: true}},
	}
}

// NewMarshallerFor returns a Marshaller that only accepts values
// matching signature, in order.
func NewMarshallerFor(order fragments.ByteOrder, signature string) (*Marshaller, error) {
	if _, err := dbusmeta.SplitSignature(signature); err != nil {
		return nil, err
	}
	return &Marshaller{
		enc:   fragments.Encoder{Order: order},
		stack: []*wframe{{kind: dbusmeta.UnknownKind, want: signature, sig: signature}},
	}, nil
}

func (m *Marshaller) fail(err error) error {
	if m.err == nil {
		m.err = err
	}
	return m.err
}

func (m *Marshaller) top() *wframe {
	return m.stack[len(m.stack)-1]
}

// check verifies that a value of signature sig can be written next.
func (m *Marshaller) check(op, sig string) error {
	if m.err != nil {
		return m.err
	}
	f := m.top()
	want, constrained := f.next()
	switch {
	case constrained && want == "":
		return m.fail(protoErr(op, "no more values expected in %s", m.where()))
	case constrained && want != sig:
		return m.fail(protoErr(op, "cannot write %q, %s expects %q", sig, m.where(), want))
	case !constrained && len(m.stack) == 1 && len(f.got)+len(sig) > dbusmeta.MaxSignatureLength:
		return m.fail(protoErr(op, "signature would exceed %d bytes", dbusmeta.MaxSignatureLength))
	}
	return nil
}

// checkContainer is check for the opening of a container, whose full
// signature may not be known yet. It returns the expected signature
// of the container, or "" if the enclosing frame is free.
func (m *Marshaller) checkContainer(op string, kind dbusmeta.ElementKind) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if len(m.stack) > maxDepth {
		return "", m.fail(protoErr(op, "containers nested more than %d deep", maxDepth))
	}
	want, constrained := m.top().next()
	switch {
	case !constrained:
		return "", nil
	case want == "":
		return "", m.fail(protoErr(op, "no more values expected in %s", m.where()))
	case dbusmeta.KindOf(want) != kind:
		return "", m.fail(protoErr(op, "cannot begin %s, %s expects %q", kind, m.where(), want))
	}
	return want, nil
}

func (m *Marshaller) where() string {
	if len(m.stack) == 1 {
		return "top level"
	}
	return m.top().kind.String()
}

func (m *Marshaller) commit(sig string) {
	m.top().commit(sig)
}

func (m *Marshaller) push(f *wframe) {
	m.stack = append(m.stack, f)
}

// pop closes the innermost container, which must be of the given
// kind and complete.
func (m *Marshaller) pop(op string, kind dbusmeta.ElementKind) (*wframe, error) {
	if m.err != nil {
		return nil, m.err
	}
	f := m.top()
	if len(m.stack) == 1 || f.kind != kind {
		return nil, m.fail(protoErr(op, "innermost container is %s, not %s", m.where(), kind))
	}
	switch {
	case kind == dbusmeta.ArrayKind || kind == dbusmeta.MapKind:
	case f.free && f.got == "":
		return nil, m.fail(protoErr(op, "empty structures are not allowed"))
	case !f.free && f.want != "":
		return nil, m.fail(protoErr(op, "%s is missing values of type %q", kind, f.want))
	}
	m.stack = m.stack[:len(m.stack)-1]
	return f, nil
}

// AppendByte appends a byte.
func (m *Marshaller) AppendByte(v uint8) error {
	if err := m.check("AppendByte", "y"); err != nil {
		return err
	}
	m.enc.Uint8(v)
	m.commit("y")
	return nil
}

// AppendBool appends a boolean.
func (m *Marshaller) AppendBool(v bool) error {
	if err := m.check("AppendBool", "b"); err != nil {
		return err
	}
	var u uint32
	if v {
		u = 1
	}
	m.enc.Uint32(u)
	m.commit("b")
	return nil
}

// AppendInt16 appends an int16.
func (m *Marshaller) AppendInt16(v int16) error {
	if err := m.check("AppendInt16", "n"); err != nil {
		return err
	}
	m.enc.Uint16(uint16(v))
	m.commit("n")
	return nil
}

// AppendUint16 appends a uint16.
func (m *Marshaller) AppendUint16(v uint16) error {
	if err := m.check("AppendUint16", "q"); err != nil {
		return err
	}
	m.enc.Uint16(v)
	m.commit("q")
	return nil
}

// AppendInt32 appends an int32.
func (m *Marshaller) AppendInt32(v int32) error {
	if err := m.check("AppendInt32", "i"); err != nil {
		return err
	}
	m.enc.Uint32(uint32(v))
	m.commit("i")
	return nil
}

// AppendUint32 appends a uint32.
func (m *Marshaller) AppendUint32(v uint32) error {
	if err := m.check("AppendUint32", "u"); err != nil {
		return err
	}
	m.enc.Uint32(v)
	m.commit("u")
	return nil
}

// AppendInt64 appends an int64.
func (m *Marshaller) AppendInt64(v int64) error {
	if err := m.check("AppendInt64", "x"); err != nil {
		return err
	}
	m.enc.Uint64(uint64(v))
	m.commit("x")
	return nil
}

// AppendUint64 appends a uint64.
func (m *Marshaller) AppendUint64(v uint64) error {
	if err := m.check("AppendUint64", "t"); err != nil {
		return err
	}
	m.enc.Uint64(v)
	m.commit("t")
	return nil
}

// AppendDouble appends an IEEE 754 double.
func (m *Marshaller) AppendDouble(v float64) error {
	if err := m.check("AppendDouble", "d"); err != nil {
		return err
	}
	m.enc.Uint64(math.Float64bits(v))
	m.commit("d")
	return nil
}

// AppendString appends a string.
func (m *Marshaller) AppendString(v string) error {
	if err := m.check("AppendString", "s"); err != nil {
		return err
	}
	m.enc.String(v)
	m.commit("s")
	return nil
}

// AppendObjectPath appends an object path. The path must be valid.
func (m *Marshaller) AppendObjectPath(v ObjectPath) error {
	if err := m.check("AppendObjectPath", "o"); err != nil {
		return err
	}
	if !dbusmeta.IsValidObjectPath(string(v)) {
		return m.fail(protoErr("AppendObjectPath", "invalid object path %q", v))
	}
	m.enc.String(string(v))
	m.commit("o")
	return nil
}

// AppendSignature appends a type signature. The signature must be
// valid.
func (m *Marshaller) AppendSignature(v Signature) error {
	if err := m.check("AppendSignature", "g"); err != nil {
		return err
	}
	if !dbusmeta.IsValidSignature(string(v)) {
		return m.fail(protoErr("AppendSignature", "invalid signature %q", v))
	}
	m.enc.Signature(string(v))
	m.commit("g")
	return nil
}

// AppendUnixFD appends a file descriptor index.
func (m *Marshaller) AppendUnixFD(v UnixFD) error {
	if err := m.check("AppendUnixFD", "h"); err != nil {
		return err
	}
	m.enc.Uint32(uint32(v))
	m.commit("h")
	return nil
}

// AppendBytes appends a byte array.
func (m *Marshaller) AppendBytes(v []byte) error {
	if err := m.check("AppendBytes", "ay"); err != nil {
		return err
	}
	if len(v) > fragments.MaxArrayLength {
		return m.fail(protoErr("AppendBytes", "byte array of %d bytes exceeds maximum of %d", len(v), fragments.MaxArrayLength))
	}
	m.enc.Bytes(v)
	m.commit("ay")
	return nil
}

// BeginStructure opens a structure. Its fields are the values
// appended until the matching [Marshaller.EndStructure].
func (m *Marshaller) BeginStructure() error {
	want, err := m.checkContainer("BeginStructure", dbusmeta.StructureKind)
	if err != nil {
		return err
	}
	f := &wframe{kind: dbusmeta.StructureKind}
	if want == "" {
		f.free = true
	} else {
		f.want = want[1 : len(want)-1]
		f.sig = want
	}
	m.enc.Pad(8)
	m.push(f)
	return nil
}

// EndStructure closes the innermost structure.
func (m *Marshaller) EndStructure() error {
	f, err := m.pop("EndStructure", dbusmeta.StructureKind)
	if err != nil {
		return err
	}
	sig := f.sig
	if f.free {
		sig = "(" + f.got + ")"
		if !dbusmeta.IsValidSingleSignature(sig) {
			return m.fail(protoErr("EndStructure", "structure has invalid signature %q", sig))
		}
	}
	if err := m.checkEnd("EndStructure", sig); err != nil {
		return err
	}
	m.commit(sig)
	return nil
}

// checkEnd validates the signature of a just-closed container against
// the top-level length limit.
func (m *Marshaller) checkEnd(op, sig string) error {
	f := m.top()
	if len(m.stack) == 1 && f.free && len(f.got)+len(sig) > dbusmeta.MaxSignatureLength {
		return m.fail(protoErr(op, "signature would exceed %d bytes", dbusmeta.MaxSignatureLength))
	}
	return nil
}

// BeginArray opens an array of elements with signature elem.
func (m *Marshaller) BeginArray(elem string) error {
	if m.err != nil {
		return m.err
	}
	if !dbusmeta.IsValidSingleSignature(elem) || dbusmeta.KindOf(elem) == dbusmeta.MapEntryKind {
		return m.fail(protoErr("BeginArray", "invalid array element signature %q", elem))
	}
	return m.beginArray("BeginArray", dbusmeta.ArrayKind, elem)
}

func (m *Marshaller) beginArray(op string, kind dbusmeta.ElementKind, elem string) error {
	sig := "a" + elem
	if !dbusmeta.IsValidSingleSignature(sig) {
		return m.fail(protoErr(op, "invalid signature %q", sig))
	}
	want, err := m.checkContainer(op, kind)
	if err != nil {
		return err
	}
	if want != "" && want != sig {
		return m.fail(protoErr(op, "cannot write %q, %s expects %q", sig, m.where(), want))
	}
	m.enc.BeginArray(dbusmeta.Alignment(elem[0]))
	m.push(&wframe{kind: kind, want: elem, sig: sig})
	return nil
}

// EndArray closes the innermost array.
func (m *Marshaller) EndArray() error {
	return m.endArray("EndArray", dbusmeta.ArrayKind)
}

func (m *Marshaller) endArray(op string, kind dbusmeta.ElementKind) error {
	f, err := m.pop(op, kind)
	if err != nil {
		return err
	}
	if err := m.enc.EndArray(); err != nil {
		return m.fail(ProtocolError{op, err})
	}
	if err := m.checkEnd(op, f.sig); err != nil {
		return err
	}
	m.commit(f.sig)
	return nil
}

// BeginMap opens a dict with the given key and value signatures. The
// map's contents are entries written with [Marshaller.BeginMapEntry]
// or [Marshaller.MapEntry].
func (m *Marshaller) BeginMap(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if len(key) != 1 || !dbusmeta.IsBasicCode(key[0]) {
		return m.fail(protoErr("BeginMap", "map key %q is not a basic type", key))
	}
	if !dbusmeta.IsValidSingleSignature(value) {
		return m.fail(protoErr("BeginMap", "invalid map value signature %q", value))
	}
	return m.beginArray("BeginMap", dbusmeta.MapKind, "{"+key+value+"}")
}

// EndMap closes the innermost map.
func (m *Marshaller) EndMap() error {
	return m.endArray("EndMap", dbusmeta.MapKind)
}

// BeginMapEntry opens an entry of the innermost map. The entry must
// receive exactly a key and a value before
// [Marshaller.EndMapEntry].
func (m *Marshaller) BeginMapEntry() error {
	if m.err != nil {
		return m.err
	}
	f := m.top()
	if f.kind != dbusmeta.MapKind {
		return m.fail(protoErr("BeginMapEntry", "map entries can only be written in a map, not in %s", m.where()))
	}
	m.enc.Pad(8)
	m.push(&wframe{
		kind: dbusmeta.MapEntryKind,
		want: f.want[1 : len(f.want)-1],
		sig:  f.want,
	})
	return nil
}

// EndMapEntry closes the innermost map entry.
func (m *Marshaller) EndMapEntry() error {
	f, err := m.pop("EndMapEntry", dbusmeta.MapEntryKind)
	if err != nil {
		return err
	}
	m.commit(f.sig)
	return nil
}

// BeginVariant opens a variant holding one value of signature sig.
func (m *Marshaller) BeginVariant(sig string) error {
	if m.err != nil {
		return m.err
	}
	if !dbusmeta.IsValidSingleSignature(sig) {
		return m.fail(protoErr("BeginVariant", "invalid variant signature %q", sig))
	}
	if err := m.check("BeginVariant", "v"); err != nil {
		return err
	}
	if len(m.stack) > maxDepth {
		return m.fail(protoErr("BeginVariant", "containers nested more than %d deep", maxDepth))
	}
	m.enc.Signature(sig)
	m.push(&wframe{kind: dbusmeta.VariantKind, want: sig, sig: "v"})
	return nil
}

// EndVariant closes the innermost variant.
func (m *Marshaller) EndVariant() error {
	if _, err := m.pop("EndVariant", dbusmeta.VariantKind); err != nil {
		return err
	}
	m.commit("v")
	return nil
}

// scoped runs fn between begin and end, returning the first error.
func (m *Marshaller) scoped(begin func() error, fn func() error, end func() error) error {
	if err := begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return end()
}

// Structure writes a structure whose fields are appended by fields.
func (m *Marshaller) Structure(fields func() error) error {
	return m.scoped(m.BeginStructure, fields, m.EndStructure)
}

// Array writes an array of elem whose elements are appended by
// elements.
func (m *Marshaller) Array(elem string, elements func() error) error {
	return m.scoped(func() error { return m.BeginArray(elem) }, elements, m.EndArray)
}

// Map writes a map whose entries are written by entries, usually
// with [Marshaller.MapEntry].
func (m *Marshaller) Map(key, value string, entries func() error) error {
	return m.scoped(func() error { return m.BeginMap(key, value) }, entries, m.EndMap)
}

// MapEntry writes a map entry whose key and value are appended by
// kv.
func (m *Marshaller) MapEntry(kv func() error) error {
	return m.scoped(m.BeginMapEntry, kv, m.EndMapEntry)
}

// Variant writes a variant of signature sig whose value is appended
// by value.
func (m *Marshaller) Variant(sig string, value func() error) error {
	return m.scoped(func() error { return m.BeginVariant(sig) }, value, m.EndVariant)
}

// AppendValue appends v, which must be a value of the generic value
// model described by [SignatureOf].
func (m *Marshaller) AppendValue(v any) error {
	switch v := v.(type) {
	case uint8:
		return m.AppendByte(v)
	case bool:
		return m.AppendBool(v)
	case int16:
		return m.AppendInt16(v)
	case uint16:
		return m.AppendUint16(v)
	case int32:
		return m.AppendInt32(v)
	case uint32:
		return m.AppendUint32(v)
	case int64:
		return m.AppendInt64(v)
	case uint64:
		return m.AppendUint64(v)
	case float64:
		return m.AppendDouble(v)
	case string:
		return m.AppendString(v)
	case ObjectPath:
		return m.AppendObjectPath(v)
	case Signature:
		return m.AppendSignature(v)
	case UnixFD:
		return m.AppendUnixFD(v)
	case []byte:
		return m.AppendBytes(v)
	case Variant:
		sig, err := SignatureOf(v.Value)
		if err != nil {
			return m.fail(ProtocolError{"AppendValue", err})
		}
		return m.Variant(sig, func() error { return m.AppendValue(v.Value) })
	case Struct:
		return m.Structure(func() error {
			for _, f := range v.Fields {
				if err := m.AppendValue(f); err != nil {
					return err
				}
			}
			return nil
		})
	case Array:
		return m.Array(v.Elem, func() error {
			for _, it := range v.Items {
				if err := m.AppendValue(it); err != nil {
					return err
				}
			}
			return nil
		})
	case Map:
		return m.Map(v.Key, v.Value, func() error {
			for _, e := range v.Entries {
				err := m.MapEntry(func() error {
					if err := m.AppendValue(e.Key); err != nil {
						return err
					}
					return m.AppendValue(e.Value)
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return m.fail(protoErr("AppendValue", "no DBus representation for value of type %T", v))
	}
}

// Signature returns the signature of the values appended so far at
// the top level. Containers still open are not included.
func (m *Marshaller) Signature() string {
	f := m.stack[0]
	if f.free {
		return f.got
	}
	return f.sig
}

// Finish returns the encoded values and their signature. It fails if
// any container is still open, or if the Marshaller was bound to a
// signature and some of its values were not written.
func (m *Marshaller) Finish() ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if len(m.stack) > 1 {
		return nil, "", m.fail(protoErr("Finish", "%s still open", m.where()))
	}
	f := m.stack[0]
	if !f.free {
		if f.want != "" {
			return nil, "", m.fail(protoErr("Finish", "missing values of type %q", f.want))
		}
		return m.enc.Out, f.sig, nil
	}
	return m.enc.Out, f.got, nil
}
