package metaobject

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/danderson/dbusmeta"
)

// TypeID identifies a runtime value type. The ids of builtin types
// match the meta-type ids used by Qt, so that blobs produced here can
// be consumed by code that expects Qt's numbering.
type TypeID int32

// Builtin type ids.
const (
	UnknownType   TypeID = 0
	Bool          TypeID = 1
	Int           TypeID = 2
	UInt          TypeID = 3
	LongLong      TypeID = 4
	ULongLong     TypeID = 5
	Double        TypeID = 6
	VariantMap    TypeID = 8
	VariantList   TypeID = 9
	String        TypeID = 10
	StringList    TypeID = 11
	ByteArray     TypeID = 12
	Short         TypeID = 33
	UShort        TypeID = 36
	UChar         TypeID = 37
	Void          TypeID = 43
	ByteArrayList TypeID = 49
	FirstUserType TypeID = 65536

	// SelfType is the type id recorded in a MetaObject's type table
	// for the slot that refers to the interface's own dynamic
	// type. It does not name a registered type.
	SelfType TypeID = -1
)

// Type is a runtime type known to a [Registry].
type Type struct {
	ID   TypeID
	Name string
	// Signature is the DBus signature values of this type marshal
	// as. It is empty for Void.
	Signature string
	// Synthetic is true for opaque placeholder types that the
	// registry created on demand for signatures with no native
	// counterpart.
	Synthetic bool
}

func (t Type) String() string {
	if t.Signature == "" {
		return fmt.Sprintf("%s(%d)", t.Name, t.ID)
	}
	return fmt.Sprintf("%s(%d, %q)", t.Name, t.ID, t.Signature)
}

// TypeSpec describes an application type to register with
// [WithTypes] or [Registry.Register].
type TypeSpec struct {
	Name      string
	Signature string
}

// A Registry maps between type ids, type names and DBus signatures.
//
// Registries are append-only: once a type is registered, it keeps
// its id and name for the life of the registry. A Registry is safe
// for concurrent use.
type Registry struct {
	byName internTable[string, *Type]

	mu     sync.RWMutex
	byID   map[TypeID]*Type
	bySig  map[string]*Type
	nextID TypeID
}

type builtinType struct {
	Type
	// native is whether the type is the mapping for its signature
	// when looked up by signature. Types like QVariantMap have a
	// signature they marshal as, but are only reached by name.
	native bool
}

var builtinTypes = []builtinType{
	{Type{ID: Void, Name: "void"}, false},
	{Type{ID: Bool, Name: "bool", Signature: "b"}, true},
	{Type{ID: Int, Name: "int", Signature: "i"}, true},
	{Type{ID: UInt, Name: "uint", Signature: "u"}, true},
	{Type{ID: LongLong, Name: "qlonglong", Signature: "x"}, true},
	{Type{ID: ULongLong, Name: "qulonglong", Signature: "t"}, true},
	{Type{ID: Double, Name: "double", Signature: "d"}, true},
	{Type{ID: VariantMap, Name: "QVariantMap", Signature: "a{sv}"}, false},
	{Type{ID: VariantList, Name: "QVariantList", Signature: "av"}, true},
	{Type{ID: String, Name: "QString", Signature: "s"}, true},
	{Type{ID: StringList, Name: "QStringList", Signature: "as"}, true},
	{Type{ID: ByteArray, Name: "QByteArray", Signature: "ay"}, true},
	{Type{ID: Short, Name: "short", Signature: "n"}, true},
	{Type{ID: UShort, Name: "ushort", Signature: "q"}, true},
	{Type{ID: UChar, Name: "uchar", Signature: "y"}, true},
	{Type{ID: ByteArrayList, Name: "QByteArrayList", Signature: "aay"}, false},
}

// userTypes are registered in order starting at FirstUserType.
var userTypes = []struct {
	TypeSpec
	native bool
}{
	{TypeSpec{"QDBusObjectPath", "o"}, true},
	{TypeSpec{"QDBusSignature", "g"}, true},
	{TypeSpec{"QDBusUnixFileDescriptor", "h"}, true},
	{TypeSpec{"QDBusVariant", "v"}, true},
	{TypeSpec{"QList<QDBusObjectPath>", "ao"}, true},
	{TypeSpec{"QList<QDBusSignature>", "ag"}, true},
	{TypeSpec{"QList<QDBusUnixFileDescriptor>", "ah"}, true},
	{TypeSpec{"QList<bool>", "ab"}, true},
	{TypeSpec{"QList<short>", "an"}, true},
	{TypeSpec{"QList<ushort>", "aq"}, true},
	{TypeSpec{"QList<int>", "ai"}, true},
	{TypeSpec{"QList<uint>", "au"}, true},
	{TypeSpec{"QList<qlonglong>", "ax"}, true},
	{TypeSpec{"QList<qulonglong>", "at"}, true},
	{TypeSpec{"QList<double>", "ad"}, true},
	{TypeSpec{"QMap<QString,QString>", "a{ss}"}, false},
}

// NewRegistry returns a Registry holding the builtin types.
func NewRegistry() *Registry {
	r := &Registry{
		byID:   map[TypeID]*Type{},
		bySig:  map[string]*Type{},
		nextID: FirstUserType,
	}
	for _, b := range builtinTypes {
		t := b.Type
		r.add(&t, b.native)
	}
	for _, u := range userTypes {
		r.add(&Type{ID: r.allocID(), Name: u.Name, Signature: u.Signature}, u.native)
	}
	return r
}

func (r *Registry) allocID() TypeID {
	ret := r.nextID
	r.nextID++
	return ret
}

// add records t. The caller must either hold r.mu, or be
// constructing r.
func (r *Registry) add(t *Type, indexSignature bool) {
	r.byName.GetOrCreate(t.Name, func() *Type { return t })
	r.byID[t.ID] = t
	if indexSignature && r.bySig[t.Signature] == nil {
		r.bySig[t.Signature] = t
	}
}

// Register adds an application type that marshals as sig, and makes
// it the mapping for sig if sig has none yet. Registering the same
// name and signature again returns the existing type.
func (r *Registry) Register(name, sig string) (Type, error) {
	if name == "" {
		return Type{}, fmt.Errorf("cannot register type with empty name")
	}
	if !dbusmeta.IsValidSingleSignature(sig) {
		return Type{}, fmt.Errorf("cannot register type %s: %w", name, &dbusmeta.SignatureError{Signature: sig, Reason: errors.New("not a single complete type")})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byName.Get(name); ok {
		if t.Signature != sig {
			return Type{}, fmt.Errorf("type %s already registered with signature %q", name, t.Signature)
		}
		return *t, nil
	}
	t := &Type{ID: r.allocID(), Name: name, Signature: sig}
	r.add(t, true)
	return *t, nil
}

// ByID returns the type with the given id.
func (r *Registry) ByID(id TypeID) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return Type{}, false
	}
	return *t, true
}

// ByName returns the type with the given name.
func (r *Registry) ByName(name string) (Type, bool) {
	t, ok := r.byName.Get(name)
	if !ok {
		return Type{}, false
	}
	return *t, true
}

// ForSignature returns the type that natively maps to sig. Synthetic
// types, and types that are only reachable by name, are never
// returned.
func (r *Registry) ForSignature(sig string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySig[sig]
	if !ok {
		return Type{}, false
	}
	return *t, true
}

// Name returns the name of the type with the given id, or the empty
// string if there is no such type.
func (r *Registry) Name(id TypeID) string {
	t, ok := r.ByID(id)
	if !ok {
		return ""
	}
	return t.Name
}

// Len returns the number of types in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// synthesize returns the opaque type called name, registering it
// with signature sig if it doesn't exist yet. The boolean result
// reports whether the type is usable for sig: if name is already
// taken by a type with a different signature, it is not.
func (r *Registry) synthesize(name, sig string) (Type, bool) {
	if t, ok := r.byName.Get(name); ok {
		return *t, t.Signature == sig
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, _ := r.byName.GetOrCreate(name, func() *Type {
		t := &Type{ID: r.allocID(), Name: name, Signature: sig, Synthetic: true}
		r.byID[t.ID] = t
		return t
	})
	return *t, t.Signature == sig
}

// rawTypeName returns the name of the opaque placeholder type for
// sig.
func rawTypeName(sig string) string {
	return "QDBusRawType<0x" + hex.EncodeToString([]byte(sig)) + ">*"
}

// toolingTypeName returns the name of the placeholder type used for
// sig when annotations are disabled.
func toolingTypeName(sig string) string {
	return `{D-Bus type "` + sig + `"}`
}
