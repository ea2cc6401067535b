package dbusmeta

import (
	"github.com/creachadair/mds/mapset"
)

// DBus type codes, as they appear in type signatures.
const (
	TypeByte       byte = 'y'
	TypeBoolean    byte = 'b'
	TypeInt16      byte = 'n'
	TypeUint16     byte = 'q'
	TypeInt32      byte = 'i'
	TypeUint32     byte = 'u'
	TypeInt64      byte = 'x'
	TypeUint64     byte = 't'
	TypeDouble     byte = 'd'
	TypeString     byte = 's'
	TypeObjectPath byte = 'o'
	TypeSignature  byte = 'g'
	TypeUnixFD     byte = 'h'
	TypeVariant    byte = 'v'
	TypeArray      byte = 'a'

	StructBegin    byte = '('
	StructEnd      byte = ')'
	DictEntryBegin byte = '{'
	DictEntryEnd   byte = '}'
)

var (
	// basicCodes is the set of type codes that describe values with
	// no internal structure. Only basic types can be dict entry keys.
	basicCodes = mapset.New(
		TypeByte,
		TypeBoolean,
		TypeInt16,
		TypeUint16,
		TypeInt32,
		TypeUint32,
		TypeInt64,
		TypeUint64,
		TypeDouble,
		TypeString,
		TypeObjectPath,
		TypeSignature,
		TypeUnixFD,
	)

	// alignments maps the first code of a type signature to the
	// alignment of that type's values on the wire.
	alignments = map[byte]int{
		TypeByte:       1,
		TypeBoolean:    4,
		TypeInt16:      2,
		TypeUint16:     2,
		TypeInt32:      4,
		TypeUint32:     4,
		TypeInt64:      8,
		TypeUint64:     8,
		TypeDouble:     8,
		TypeString:     4,
		TypeObjectPath: 4,
		TypeSignature:  1,
		TypeUnixFD:     4,
		TypeVariant:    1,
		TypeArray:      4,
		StructBegin:    8,
		DictEntryBegin: 8,
	}
)

// IsBasicCode reports whether c is the type code of a DBus basic
// type.
func IsBasicCode(c byte) bool {
	return basicCodes.Has(c)
}

// Alignment returns the wire alignment of values whose type signature
// starts with c, or 0 if c does not start a type.
func Alignment(c byte) int {
	return alignments[c]
}

// An ElementKind classifies the next value of a signature by its
// outermost container.
type ElementKind int

const (
	UnknownKind ElementKind = iota
	BasicKind
	VariantKind
	ArrayKind
	StructureKind
	MapKind
	MapEntryKind
)

func (k ElementKind) String() string {
	switch k {
	case BasicKind:
		return "basic"
	case VariantKind:
		return "variant"
	case ArrayKind:
		return "array"
	case StructureKind:
		return "structure"
	case MapKind:
		return "map"
	case MapEntryKind:
		return "map entry"
	default:
		return "unknown"
	}
}

// KindOf returns the ElementKind of the first type in sig.
//
// KindOf only inspects the leading codes, it does not validate the
// rest of the signature.
func KindOf(sig string) ElementKind {
	if sig == "" {
		return UnknownKind
	}
	switch c := sig[0]; {
	case basicCodes.Has(c):
		return BasicKind
	case c == TypeVariant:
		return VariantKind
	case c == TypeArray:
		if len(sig) > 1 && sig[1] == DictEntryBegin {
			return MapKind
		}
		return ArrayKind
	case c == StructBegin:
		return StructureKind
	case c == DictEntryBegin:
		return MapEntryKind
	}
	return UnknownKind
}
