package argument

import (
	"fmt"
	"strings"

	"github.com/danderson/dbusmeta"
)

// ObjectPath is a DBus object path.
type ObjectPath string

// Signature is a DBus type signature carried as a value.
type Signature string

// UnixFD is the index of a file descriptor in the out-of-band file
// descriptor list that accompanies a message. The descriptors
// themselves are handled by the transport.
type UnixFD uint32

// Struct is a DBus structure. It must have at least one field.
type Struct struct {
	Fields []any
}

// Array is a DBus array of values whose signature is Elem.
//
// Arrays of bytes are represented as []byte instead.
type Array struct {
	Elem  string
	Items []any
}

// Map is a DBus dict, an array of key/value entries. Key must be the
// signature of a basic type.
type Map struct {
	Key     string
	Value   string
	Entries []MapEntry
}

// MapEntry is one entry of a [Map].
type MapEntry struct {
	Key   any
	Value any
}

// Variant is a DBus variant: a value that carries its own signature.
type Variant struct {
	Value any
}

// SignatureOf returns the DBus type signature of v.
//
// v must be one of the Go types that the generic value model uses:
// uint8, bool, int16, uint16, int32, uint32, int64, uint64, float64,
// string, []byte, or one of the named types in this package.
func SignatureOf(v any) (string, error) {
	sig, err := signatureOf(v, 0)
	if err != nil {
		return "", err
	}
	if !dbusmeta.IsValidSingleSignature(sig) {
		return "", fmt.Errorf("value of type %T has invalid signature %q", v, sig)
	}
	return sig, nil
}

func signatureOf(v any, depth int) (string, error) {
	if depth > maxDepth {
		return "", fmt.Errorf("value nested more than %d levels deep", maxDepth)
	}
	switch v := v.(type) {
	case uint8:
		return "y", nil
	case bool:
		return "b", nil
	case int16:
		return "n", nil
	case uint16:
		return "q", nil
	case int32:
		return "i", nil
	case uint32:
		return "u", nil
	case int64:
		return "x", nil
	case uint64:
		return "t", nil
	case float64:
		return "d", nil
	case string:
		return "s", nil
	case ObjectPath:
		return "o", nil
	case Signature:
		return "g", nil
	case UnixFD:
		return "h", nil
	case []byte:
		return "ay", nil
	case Variant:
		return "v", nil
	case Array:
		return "a" + v.Elem, nil
	case Map:
		return "a{" + v.Key + v.Value + "}", nil
	case Struct:
		if len(v.Fields) == 0 {
			return "", fmt.Errorf("empty structs are not allowed")
		}
		var sb strings.Builder
		sb.WriteByte('(')
		for _, f := range v.Fields {
			fs, err := signatureOf(f, depth+1)
			if err != nil {
				return "", err
			}
			sb.WriteString(fs)
		}
		sb.WriteByte(')')
		return sb.String(), nil
	default:
		return "", fmt.Errorf("no DBus representation for value of type %T", v)
	}
}
