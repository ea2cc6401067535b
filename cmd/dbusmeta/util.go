package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/danderson/dbusmeta"
	"github.com/danderson/dbusmeta/introspect"
	"github.com/danderson/dbusmeta/metaobject"
)

type indenter struct {
	w       io.Writer
	prefix  string
	midLine bool
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) Write(bs []byte) (int, error) {
	ret := 0
	for len(bs) > 0 {
		if !i.midLine {
			i.midLine = true
			if _, err := io.WriteString(i.w, i.prefix); err != nil {
				return ret, err
			}
		}

		wr := bs
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.midLine = false
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			bs = nil
		}

		n, err := i.w.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

// describe writes a description of the single complete type sig, and
// recursively of its element types.
func describe(out *indenter, sig string, depth int) {
	out.indent(depth)
	kind := dbusmeta.KindOf(sig)
	out.f("%s: %s, alignment %d", sig, kind, dbusmeta.Alignment(sig[0]))

	var elems []string
	switch kind {
	case dbusmeta.ArrayKind:
		elems = []string{sig[1:]}
	case dbusmeta.MapKind:
		// a{KV}
		elems = []string{sig[2:3], sig[3 : len(sig)-1]}
	case dbusmeta.StructureKind:
		// Already validated by the caller, so this can't fail.
		elems, _ = dbusmeta.SplitSignature(sig[1 : len(sig)-1])
	}
	for _, e := range elems {
		describe(out, e, depth+1)
	}
}

// interfaceNames returns the names of the interfaces in the
// introspection document doc.
func interfaceNames(doc string) ([]string, error) {
	node, err := introspect.ParseXML(doc)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(node.Interfaces))
	for _, iface := range node.Interfaces {
		ret = append(ret, iface.Name)
	}
	return ret, nil
}

type tables struct {
	Data      []uint32
	Strings   []byte
	MetaTypes []metaobject.TypeID
	Dropped   []metaobject.Dropped
}

func rawTables(mo *metaobject.MetaObject) tables {
	return tables{
		Data:      mo.Data(),
		Strings:   mo.StringData(),
		MetaTypes: mo.MetaTypes(),
		Dropped:   mo.Dropped(),
	}
}
