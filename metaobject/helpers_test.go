package metaobject_test

import (
	"encoding/binary"
	"testing"

	"github.com/danderson/dbusmeta/metaobject"
)

func mustRuntime(t *testing.T, opts ...metaobject.Option) *metaobject.Runtime {
	t.Helper()
	rt, err := metaobject.NewRuntime(opts...)
	if err != nil {
		t.Fatalf("NewRuntime() got err: %v", err)
	}
	return rt
}

func mustMetaObject(t *testing.T, rt *metaobject.Runtime, iface, doc string) *metaobject.MetaObject {
	t.Helper()
	mo, err := rt.Cache().MetaObjectForXML(iface, doc)
	if err != nil {
		t.Fatalf("MetaObjectForXML(%q) got err: %v", iface, err)
	}
	return mo
}

func mustType(t *testing.T, rt *metaobject.Runtime, name string) metaobject.Type {
	t.Helper()
	ret, ok := rt.Types().ByName(name)
	if !ok {
		t.Fatalf("type %q is not registered", name)
	}
	return ret
}

// iface wraps interface XML in a node document.
func iface(name, body string) string {
	return `<node><interface name="` + name + `">` + body + `</interface></node>`
}

// stringTable decodes a MetaObject string blob.
func stringTable(t *testing.T, blob []byte) []string {
	t.Helper()
	if len(blob) < 8 {
		t.Fatalf("string blob too short: %d bytes", len(blob))
	}
	// The first string's offset is the size of the offset table.
	n := binary.NativeEndian.Uint32(blob) / 8
	var ret []string
	for i := range n {
		off := binary.NativeEndian.Uint32(blob[8*i:])
		l := binary.NativeEndian.Uint32(blob[8*i+4:])
		if blob[off+l] != 0 {
			t.Fatalf("string %d is not NUL-terminated", i)
		}
		ret = append(ret, string(blob[off:off+l]))
	}
	return ret
}
