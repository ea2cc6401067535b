package metaobject

import (
	"maps"
	"slices"
	"strings"

	"github.com/danderson/dbusmeta/fragments"
	"github.com/danderson/dbusmeta/introspect"
)

// MethodFlags describe a method or signal record.
type MethodFlags uint32

const (
	AccessPublic     MethodFlags = 0x02
	MethodSignal     MethodFlags = 0x04
	MethodSlot       MethodFlags = 0x08
	MethodScriptable MethodFlags = 0x40
)

// PropertyFlags describe a property record.
type PropertyFlags uint32

const (
	Readable   PropertyFlags = 0x1
	Writable   PropertyFlags = 0x2
	StdCppSet  PropertyFlags = 0x100
	Designable PropertyFlags = 0x1000
	Scriptable PropertyFlags = 0x4000
	Stored     PropertyFlags = 0x10000
)

// NoReplyTag is the tag of methods that callers should not wait for
// a reply from.
const NoReplyTag = "Q_NOREPLY"

// IsUnresolvedType marks a parameter type info word that holds a
// string table index naming the type, rather than a type id.
const IsUnresolvedType = 0x80000000

// Blob layout constants.
const (
	revision        = 12
	headerInts      = 16
	intsPerMethod   = 6
	intsPerProperty = 5
	// Per-member and per-property auxiliary words.
	dbusIntsPerMethod   = 2
	dbusIntsPerProperty = 2

	requiresVariantMetaObject = 0x02
	allocatedMetaObject       = 0x08
)

// Header word indexes.
const (
	hdrRevision = iota
	hdrClassName
	hdrClassInfoCount
	hdrClassInfoData
	hdrMethodCount
	hdrMethodData
	hdrPropertyCount
	hdrPropertyData
	hdrEnumeratorCount
	hdrEnumeratorData
	hdrConstructorCount
	hdrConstructorData
	hdrFlags
	hdrSignalCount
	hdrPropertyDBusData
	hdrMethodDBusData
)

// member is a method or signal with all its types resolved.
type member struct {
	name       string
	prototype  string
	tag        string
	flags      MethodFlags
	paramNames []string
	inputs     []Type
	outputs    []Type
}

// argc is the number of parameters of the member. The first output,
// if any, is the return value and not a parameter. Further outputs
// are passed by reference.
func (m *member) argc() int {
	return len(m.inputs) + max(0, len(m.outputs)-1)
}

type property struct {
	name  string
	sig   string
	typ   Type
	flags PropertyFlags
}

// generator lays out one interface as a MetaObject.
type generator struct {
	reg   *Registry
	chain []resolver

	signals map[string]*member
	methods map[string]*member
	props   map[string]*property
	dropped []Dropped
}

func newGenerator(reg *Registry, chain []resolver) *generator {
	return &generator{
		reg:     reg,
		chain:   chain,
		signals: map[string]*member{},
		methods: map[string]*member{},
		props:   map[string]*property{},
	}
}

// synthesize returns the MetaObject for iface, which may be nil to
// produce an empty MetaObject for the interface called name.
func synthesize(reg *Registry, chain []resolver, name string, iface *introspect.Interface) *MetaObject {
	g := newGenerator(reg, chain)
	if iface != nil {
		g.parseProperties(iface.Properties)
		g.parseSignals(iface.Signals)
		g.parseMethods(iface.Methods)
	}
	return g.write(name)
}

func (g *generator) drop(kind, name, sig, reason string) {
	g.dropped = append(g.dropped, Dropped{
		Kind:      kind,
		Name:      name,
		Signature: sig,
		Reason:    reason,
	})
}

func (g *generator) parseProperties(props []*introspect.Property) {
	for _, p := range props {
		t, reason := resolveType(g.chain, typeRequest{
			Sig:    p.Type,
			Member: p.Annotations,
			Dir:    "Out",
			Pos:    -1,
		})
		if reason != "" {
			g.drop("property", p.Name, p.Type, reason)
			continue
		}
		flags := StdCppSet | Scriptable | Stored | Designable
		if p.Access&introspect.Read != 0 {
			flags |= Readable
		}
		if p.Access&introspect.Write != 0 {
			flags |= Writable
		}
		g.props[p.Name] = &property{
			name:  p.Name,
			sig:   p.Type,
			typ:   t,
			flags: flags,
		}
	}
}

func (g *generator) parseSignals(sigs []*introspect.Signal) {
next:
	for _, s := range sigs {
		m := &member{
			name:  s.Name,
			flags: AccessPublic | MethodSignal | MethodScriptable,
		}
		var params []string
		for i, arg := range s.Args {
			t, reason := resolveType(g.chain, typeRequest{
				Sig:    arg.Type,
				Member: s.Annotations,
				Arg:    arg.Annotations,
				Dir:    "Out",
				Pos:    i,
			})
			if reason != "" {
				g.drop("signal", s.Name, arg.Type, reason)
				continue next
			}
			m.inputs = append(m.inputs, t)
			m.paramNames = append(m.paramNames, arg.Name)
			params = append(params, t.Name)
		}
		m.prototype = s.Name + "(" + strings.Join(params, ",") + ")"
		g.signals[m.prototype] = m
	}
}

func (g *generator) parseMethods(methods []*introspect.Method) {
next:
	for _, im := range methods {
		m := &member{
			name:  im.Name,
			flags: AccessPublic | MethodSlot | MethodScriptable,
		}
		var params []string
		for i, arg := range im.In {
			t, reason := resolveType(g.chain, typeRequest{
				Sig:    arg.Type,
				Member: im.Annotations,
				Arg:    arg.Annotations,
				Dir:    "In",
				Pos:    i,
			})
			if reason != "" {
				g.drop("method", im.Name, arg.Type, reason)
				continue next
			}
			m.inputs = append(m.inputs, t)
			m.paramNames = append(m.paramNames, arg.Name)
			params = append(params, t.Name)
		}
		for i, arg := range im.Out {
			t, reason := resolveType(g.chain, typeRequest{
				Sig:    arg.Type,
				Member: im.Annotations,
				Arg:    arg.Annotations,
				Dir:    "Out",
				Pos:    i,
			})
			if reason != "" {
				g.drop("method", im.Name, arg.Type, reason)
				continue next
			}
			m.outputs = append(m.outputs, t)
			if i > 0 {
				m.paramNames = append(m.paramNames, arg.Name)
				params = append(params, t.Name+"&")
			}
		}
		m.prototype = im.Name + "(" + strings.Join(params, ",") + ")"
		if im.NoReply || im.Annotations[introspect.AnnotationNoReply] == "true" {
			m.tag = NoReplyTag
		}
		// A method shadows a signal with the same prototype.
		delete(g.signals, m.prototype)
		g.methods[m.prototype] = m
	}
}

// stringTable interns the strings of a MetaObject.
type stringTable struct {
	idx  map[string]uint32
	strs []string
}

func newStringTable(first string) *stringTable {
	ret := &stringTable{idx: map[string]uint32{}}
	ret.enter(first)
	return ret
}

func (t *stringTable) enter(s string) uint32 {
	if i, ok := t.idx[s]; ok {
		return i
	}
	i := uint32(len(t.strs))
	t.idx[s] = i
	t.strs = append(t.strs, s)
	return i
}

// blob serializes the table as an array of (offset, length) pairs
// followed by the NUL-terminated strings. Offsets are from the start
// of the blob.
func (t *stringTable) blob() []byte {
	e := fragments.Encoder{Order: fragments.NativeEndian}
	off := 8 * len(t.strs)
	for _, s := range t.strs {
		e.Uint32(uint32(off))
		e.Uint32(uint32(len(s)))
		off += len(s) + 1
	}
	for _, s := range t.strs {
		e.Write([]byte(s))
		e.Uint8(0)
	}
	return e.Out
}

func className(iface string) string {
	if iface == "" {
		return "QDBusInterface"
	}
	return strings.ReplaceAll(iface, ".", "::")
}

func sortedMembers(m map[string]*member) []*member {
	var ret []*member
	for _, k := range slices.Sorted(maps.Keys(m)) {
		ret = append(ret, m[k])
	}
	return ret
}

// write serializes the parsed interface.
func (g *generator) write(name string) *MetaObject {
	// Signals come before other methods.
	members := append(sortedMembers(g.signals), sortedMembers(g.methods)...)
	var props []*property
	for _, k := range slices.Sorted(maps.Keys(g.props)) {
		props = append(props, g.props[k])
	}

	paramWords := 0
	auxWords := 0
	metaTypeCount := len(props) + 1
	for _, m := range members {
		// Return type, then a type and a name per parameter.
		paramWords += 1 + 2*m.argc()
		auxWords += 2 + len(m.inputs) + len(m.outputs)
		metaTypeCount += 1 + m.argc()
	}

	methodData := headerInts
	propertyData := methodData + len(members)*intsPerMethod + paramWords
	propertyDBusData := propertyData + len(props)*intsPerProperty
	methodDBusData := propertyDBusData + len(props)*dbusIntsPerProperty
	typeListData := methodDBusData + len(members)*dbusIntsPerMethod
	data := make([]uint32, typeListData+1+auxWords)

	strs := newStringTable(className(name))

	data[hdrRevision] = revision
	data[hdrClassName] = 0
	data[hdrMethodCount] = uint32(len(members))
	data[hdrMethodData] = uint32(methodData)
	data[hdrPropertyCount] = uint32(len(props))
	data[hdrPropertyData] = uint32(propertyData)
	data[hdrFlags] = requiresVariantMetaObject | allocatedMetaObject
	data[hdrSignalCount] = uint32(len(g.signals))
	data[hdrPropertyDBusData] = uint32(propertyDBusData)
	data[hdrMethodDBusData] = uint32(methodDBusData)

	metaTypes := make([]TypeID, metaTypeCount)
	metaTypes[len(props)] = SelfType

	var (
		off        = methodData
		paramOff   = methodData + len(members)*intsPerMethod
		auxOff     = methodDBusData
		typeOff    = typeListData
		metaTypeOf = len(props) + 1
	)
	data[typeOff] = 0 // end of auxiliary offsets
	typeOff++

	for _, m := range members {
		argc := m.argc()
		data[off] = strs.enter(m.name)
		data[off+1] = uint32(argc)
		data[off+2] = uint32(paramOff)
		data[off+3] = strs.enter(m.tag)
		data[off+4] = uint32(m.flags)
		data[off+5] = uint32(metaTypeOf)
		off += intsPerMethod

		ret := Void
		if len(m.outputs) > 0 {
			ret = m.outputs[0].ID
		}
		data[paramOff] = uint32(ret)
		metaTypes[metaTypeOf] = ret
		paramOff++
		metaTypeOf++
		for _, t := range m.inputs {
			data[paramOff] = uint32(t.ID)
			metaTypes[metaTypeOf] = t.ID
			paramOff++
			metaTypeOf++
		}
		for _, t := range m.outputs[min(1, len(m.outputs)):] {
			// Output parameters are references, which have no type
			// id of their own.
			data[paramOff] = IsUnresolvedType | strs.enter(t.Name+"&")
			metaTypes[metaTypeOf] = UnknownType
			paramOff++
			metaTypeOf++
		}
		for _, n := range m.paramNames {
			data[paramOff] = strs.enter(n)
			paramOff++
		}

		data[auxOff] = uint32(typeOff)
		typeOff = writeTypeList(data, typeOff, m.inputs)
		data[auxOff+1] = uint32(typeOff)
		typeOff = writeTypeList(data, typeOff, m.outputs)
		auxOff += dbusIntsPerMethod
	}

	off = propertyData
	auxOff = propertyDBusData
	for i, p := range props {
		data[off] = strs.enter(p.name)
		data[off+1] = uint32(p.typ.ID)
		data[off+2] = uint32(p.flags)
		data[off+3] = 0xffffffff // no notify signal
		data[off+4] = 0          // revision
		off += intsPerProperty

		data[auxOff] = strs.enter(p.sig)
		data[auxOff+1] = uint32(p.typ.ID)
		auxOff += dbusIntsPerProperty

		metaTypes[i] = p.typ.ID
	}

	return newMetaObject(name, g.reg, data, strs.blob(), metaTypes, g.dropped)
}

// writeTypeList writes a count-prefixed list of type ids at
// data[off:], and returns the offset following it.
func writeTypeList(data []uint32, off int, types []Type) int {
	data[off] = uint32(len(types))
	off++
	for _, t := range types {
		data[off] = uint32(t.ID)
		off++
	}
	return off
}
