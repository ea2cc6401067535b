package metaobject

import (
	"fmt"
	"slices"
	"strings"

	"github.com/danderson/dbusmeta/fragments"
)

// A MetaObject is the compiled form of a DBus interface: a table of
// methods, signals and properties with resolved runtime types, laid
// out so that members can be looked up by index in constant time.
//
// The layout follows Qt's meta-object format: an integer blob with a
// header and fixed-size member and property records, a string table,
// and a table of type ids for each parameter slot. Two auxiliary
// tables give the raw DBus types of each member and property.
//
// MetaObjects are immutable, and safe for concurrent use.
type MetaObject struct {
	iface      string
	reg        *Registry
	data       []uint32
	stringData []byte
	metaTypes  []TypeID
	dropped    []Dropped
	cached     bool

	methodIdx map[string]int
	propIdx   map[string]int
}

// Dropped describes an interface member that was left out of a
// MetaObject because one of its types could not be resolved.
type Dropped struct {
	// Kind is "method", "signal" or "property".
	Kind string
	// Name is the member's name.
	Name string
	// Signature is the signature that could not be resolved.
	Signature string
	// Reason says why the signature could not be resolved.
	Reason string
}

func (d Dropped) String() string {
	return fmt.Sprintf("%s %s: cannot resolve %q: %s", d.Kind, d.Name, d.Signature, d.Reason)
}

func newMetaObject(iface string, reg *Registry, data []uint32, stringData []byte, metaTypes []TypeID, dropped []Dropped) *MetaObject {
	ret := &MetaObject{
		iface:      iface,
		reg:        reg,
		data:       data,
		stringData: stringData,
		metaTypes:  metaTypes,
		dropped:    dropped,
		methodIdx:  map[string]int{},
		propIdx:    map[string]int{},
	}
	for i := range ret.MethodCount() {
		ret.methodIdx[ret.Method(i).Prototype()] = i
	}
	for i := range ret.PropertyCount() {
		ret.propIdx[ret.Property(i).Name] = i
	}
	return ret
}

func (m *MetaObject) hdr(i int) int {
	return int(m.data[i])
}

// str returns the string with index i in the string table.
func (m *MetaObject) str(i uint32) string {
	ent := m.stringData[8*i:]
	off := fragments.NativeEndian.Uint32(ent)
	n := fragments.NativeEndian.Uint32(ent[4:])
	return string(m.stringData[off : off+n])
}

// typeName returns the name of the type described by a parameter
// type info word.
func (m *MetaObject) typeName(info uint32) string {
	if info&IsUnresolvedType != 0 {
		return m.str(info &^ IsUnresolvedType)
	}
	return m.reg.Name(TypeID(info))
}

// Interface returns the name of the DBus interface the MetaObject
// describes.
func (m *MetaObject) Interface() string { return m.iface }

// ClassName returns the interface name in class form, with dots
// replaced by "::".
func (m *MetaObject) ClassName() string { return m.str(m.data[hdrClassName]) }

// Cached reports whether the MetaObject is held in a [Cache].
// MetaObjects for "local." interfaces, for merged interfaces, and for
// objects that returned no introspection data are never cached.
func (m *MetaObject) Cached() bool { return m.cached }

// Dropped returns the members that were left out of the MetaObject.
func (m *MetaObject) Dropped() []Dropped { return slices.Clone(m.dropped) }

// MethodCount returns the number of methods, including signals.
// Signals come first: methods with index less than SignalCount are
// signals.
func (m *MetaObject) MethodCount() int { return m.hdr(hdrMethodCount) }

// SignalCount returns the number of signals.
func (m *MetaObject) SignalCount() int { return m.hdr(hdrSignalCount) }

// PropertyCount returns the number of properties.
func (m *MetaObject) PropertyCount() int { return m.hdr(hdrPropertyCount) }

// Data returns a copy of the MetaObject's integer blob.
func (m *MetaObject) Data() []uint32 { return slices.Clone(m.data) }

// StringData returns a copy of the MetaObject's string table blob.
func (m *MetaObject) StringData() []byte { return slices.Clone(m.stringData) }

// MetaTypes returns a copy of the MetaObject's parameter type table:
// one id per property, then [SelfType], then for each method the
// return type followed by one id per parameter.
func (m *MetaObject) MetaTypes() []TypeID { return slices.Clone(m.metaTypes) }

// MetaMethod describes a method or signal of a MetaObject.
type MetaMethod struct {
	Index int
	Name  string
	// Tag is NoReplyTag for methods whose callers should not wait
	// for a reply, and empty otherwise.
	Tag   string
	Flags MethodFlags
	// ReturnType is the type of the first output, or Void.
	ReturnType TypeID
	// ParameterTypes are the type names of the parameters. Outputs
	// after the first are passed by reference, and have names ending
	// in "&".
	ParameterTypes []string
	ParameterNames []string
}

// IsSignal reports whether the method is a signal.
func (m MetaMethod) IsSignal() bool { return m.Flags&MethodSignal != 0 }

// Prototype returns the method's normalized signature, for example
// "Frob(QString,int&)".
func (m MetaMethod) Prototype() string {
	return m.Name + "(" + strings.Join(m.ParameterTypes, ",") + ")"
}

func (m *MetaObject) methodRecord(i int) int {
	if i < 0 || i >= m.MethodCount() {
		panic(fmt.Sprintf("method index %d out of range [0:%d]", i, m.MethodCount()))
	}
	return m.hdr(hdrMethodData) + i*intsPerMethod
}

// Method returns the method with index i. It panics if i is not in
// the range [0, MethodCount).
func (m *MetaObject) Method(i int) MetaMethod {
	rec := m.data[m.methodRecord(i):]
	argc := int(rec[1])
	params := m.data[rec[2]:]
	ret := MetaMethod{
		Index:      i,
		Name:       m.str(rec[0]),
		Tag:        m.str(rec[3]),
		Flags:      MethodFlags(rec[4]),
		ReturnType: TypeID(params[0]),
	}
	for j := range argc {
		ret.ParameterTypes = append(ret.ParameterTypes, m.typeName(params[1+j]))
		ret.ParameterNames = append(ret.ParameterNames, m.str(params[1+argc+j]))
	}
	return ret
}

// ReturnTypeName returns the type name of method i's return value.
func (m *MetaObject) ReturnTypeName(i int) string {
	rec := m.data[m.methodRecord(i):]
	return m.typeName(m.data[rec[2]])
}

// IndexOfMethod returns the index of the method or signal with the
// given prototype, or -1.
func (m *MetaObject) IndexOfMethod(prototype string) int {
	if i, ok := m.methodIdx[prototype]; ok {
		return i
	}
	return -1
}

func (m *MetaObject) typeList(i, which int) []TypeID {
	m.methodRecord(i)
	off := m.data[m.hdr(hdrMethodDBusData)+i*dbusIntsPerMethod+which]
	n := m.data[off]
	ret := make([]TypeID, 0, n)
	for _, id := range m.data[off+1 : off+1+n] {
		ret = append(ret, TypeID(id))
	}
	return ret
}

// InputTypes returns the type ids of method i's inputs. For a
// signal, these are its arguments.
func (m *MetaObject) InputTypes(i int) []TypeID { return m.typeList(i, 0) }

// OutputTypes returns the type ids of method i's outputs.
func (m *MetaObject) OutputTypes(i int) []TypeID { return m.typeList(i, 1) }

// ParameterType returns the type id in the parameter type table for
// parameter n of method i, or of its return value if n is -1. Output
// parameters passed by reference have type UnknownType.
func (m *MetaObject) ParameterType(i, n int) TypeID {
	rec := m.data[m.methodRecord(i):]
	argc := int(rec[1])
	if n < -1 || n >= argc {
		panic(fmt.Sprintf("parameter index %d out of range [-1:%d]", n, argc))
	}
	return m.metaTypes[int(rec[5])+1+n]
}

// MetaProperty describes a property of a MetaObject.
type MetaProperty struct {
	Index    int
	Name     string
	Type     TypeID
	TypeName string
	Flags    PropertyFlags
	// Signature is the property's DBus signature.
	Signature string
}

// Readable reports whether the property can be read.
func (p MetaProperty) Readable() bool { return p.Flags&Readable != 0 }

// Writable reports whether the property can be written.
func (p MetaProperty) Writable() bool { return p.Flags&Writable != 0 }

func (m *MetaObject) propertyRecord(i int) int {
	if i < 0 || i >= m.PropertyCount() {
		panic(fmt.Sprintf("property index %d out of range [0:%d]", i, m.PropertyCount()))
	}
	return m.hdr(hdrPropertyData) + i*intsPerProperty
}

// Property returns the property with index i. It panics if i is not
// in the range [0, PropertyCount).
func (m *MetaObject) Property(i int) MetaProperty {
	rec := m.data[m.propertyRecord(i):]
	return MetaProperty{
		Index:     i,
		Name:      m.str(rec[0]),
		Type:      TypeID(rec[1]),
		TypeName:  m.typeName(rec[1]),
		Flags:     PropertyFlags(rec[2]),
		Signature: m.PropertySignature(i),
	}
}

// IndexOfProperty returns the index of the named property, or -1.
func (m *MetaObject) IndexOfProperty(name string) int {
	if i, ok := m.propIdx[name]; ok {
		return i
	}
	return -1
}

// PropertySignature returns the DBus signature of property i.
func (m *MetaObject) PropertySignature(i int) string {
	m.propertyRecord(i)
	return m.str(m.data[m.hdr(hdrPropertyDBusData)+i*dbusIntsPerProperty])
}

// String returns a human-readable listing of the MetaObject.
func (m *MetaObject) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "class %s (%s) {\n", m.ClassName(), m.iface)
	for i := range m.MethodCount() {
		mm := m.Method(i)
		kind := "method"
		if mm.IsSignal() {
			kind = "signal"
		}
		fmt.Fprintf(&ret, "  %s %s ", kind, m.ReturnTypeName(i))
		ret.WriteString(mm.Name)
		ret.WriteByte('(')
		for j, t := range mm.ParameterTypes {
			if j > 0 {
				ret.WriteString(", ")
			}
			ret.WriteString(t)
			if n := mm.ParameterNames[j]; n != "" {
				ret.WriteByte(' ')
				ret.WriteString(n)
			}
		}
		ret.WriteByte(')')
		if mm.Tag != "" {
			fmt.Fprintf(&ret, " [%s]", mm.Tag)
		}
		ret.WriteByte('\n')
	}
	for i := range m.PropertyCount() {
		p := m.Property(i)
		access := "readwrite"
		switch {
		case !p.Writable():
			access = "read"
		case !p.Readable():
			access = "write"
		}
		fmt.Fprintf(&ret, "  property %s %s [%s]\n", p.TypeName, p.Name, access)
	}
	for _, d := range m.dropped {
		fmt.Fprintf(&ret, "  // dropped %s\n", d)
	}
	ret.WriteString("}")
	return ret.String()
}
