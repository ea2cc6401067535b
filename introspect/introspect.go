// Package introspect models DBus interfaces as described by
// introspection data: their methods, signals and properties, with
// argument signatures and annotations.
package introspect

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Well-known annotation names.
const (
	AnnotationDeprecated         = "org.freedesktop.DBus.Deprecated"
	AnnotationNoReply            = "org.freedesktop.DBus.Method.NoReply"
	AnnotationEmitsChangedSignal = "org.freedesktop.DBus.Property.EmitsChangedSignal"
)

// MergedInterfaceName is the name of the interface produced by
// [Merge]. The "local." prefix marks it as synthetic.
const MergedInterfaceName = "local.Merged"

// Annotations maps annotation names to values.
type Annotations map[string]string

// Get returns the value of the named annotation, and whether it is
// present.
func (a Annotations) Get(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// Argument is an input or output of a method, or an argument of a
// signal.
type Argument struct {
	Name        string // optional
	Type        string
	Annotations Annotations
}

func (a Argument) String() string {
	if a.Name != "" {
		// Older DBus interfaces used arg-name style naming. Argument
		// names aren't load-bearing, so fix them up for readability.
		n := strings.ReplaceAll(a.Name, "-", "_")
		return fmt.Sprintf("%s %s", n, a.Type)
	}
	return a.Type
}

func signatures(args []Argument) string {
	var ret strings.Builder
	for _, a := range args {
		ret.WriteString(a.Type)
	}
	return ret.String()
}

// Method describes a DBus method.
type Method struct {
	Name        string
	In          []Argument
	Out         []Argument
	Annotations Annotations
	// Deprecated, if true, indicates that the method should be
	// avoided in new code.
	Deprecated bool
	// NoReply, if true, indicates that callers should not wait for a
	// reply to this method.
	NoReply bool
}

// Key returns the method's name and argument signatures, which
// identify it uniquely within an interface.
func (m *Method) Key() string {
	return m.Name + "(" + signatures(m.In) + ")" + signatures(m.Out)
}

func (m *Method) String() string {
	var ret strings.Builder
	ret.WriteString("func ")
	ret.WriteString(m.Name)
	ret.WriteByte('(')
	for i, arg := range m.In {
		if i > 0 {
			ret.WriteString(", ")
		}
		ret.WriteString(arg.String())
	}
	ret.WriteByte(')')

	if len(m.Out) > 0 {
		ret.WriteString(" (")
		for i, arg := range m.Out {
			if i > 0 {
				ret.WriteString(", ")
			}
			ret.WriteString(arg.String())
		}
		ret.WriteByte(')')
	}
	switch {
	case m.Deprecated && m.NoReply:
		ret.WriteString(" [deprecated,noreply]")
	case m.Deprecated:
		ret.WriteString(" [deprecated]")
	case m.NoReply:
		ret.WriteString(" [noreply]")
	}
	return ret.String()
}

// Signal describes a DBus signal.
type Signal struct {
	Name        string
	Args        []Argument
	Annotations Annotations
	// Deprecated, if true, indicates that the signal should be
	// avoided in new code.
	Deprecated bool
}

// Key returns the signal's name and argument signatures, which
// identify it uniquely within an interface.
func (s *Signal) Key() string {
	return s.Name + "(" + signatures(s.Args) + ")"
}

func (s *Signal) String() string {
	var ret strings.Builder
	ret.WriteString("signal ")
	ret.WriteString(s.Name)
	ret.WriteByte('(')
	for i, arg := range s.Args {
		if i > 0 {
			ret.WriteString(", ")
		}
		ret.WriteString(arg.String())
	}
	ret.WriteByte(')')
	if s.Deprecated {
		ret.WriteString(" [deprecated]")
	}
	return ret.String()
}

// Access is the access mode of a property.
type Access int

const (
	Read Access = 1 << iota
	Write
	ReadWrite = Read | Write
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadWrite:
		return "readwrite"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Property describes a DBus property.
type Property struct {
	Name        string
	Type        string
	Access      Access
	Annotations Annotations

	// If true, Constant indicates that the property's value never
	// changes, and thus can safely be cached locally.
	Constant bool
	// EmitsSignal is whether the property emits a PropertiesChanged
	// signal when updated.
	EmitsSignal bool
	// SignalIncludesValue is whether the PropertiesChanged signal
	// emitted when this property changes includes the new value.
	SignalIncludesValue bool
	// Deprecated, if true, indicates that the property should be
	// avoided in new code.
	Deprecated bool
}

func (p *Property) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "property %s %s [", p.Name, p.Type)

	switch {
	case p.Access == Read && p.Constant:
		ret.WriteString("const")
	case p.Access == ReadWrite:
		ret.WriteString("readwrite")
	case p.Access == Read:
		ret.WriteString("readonly")
	case p.Access == Write:
		ret.WriteString("writeonly")
	}
	if p.Deprecated {
		ret.WriteString(",deprecated")
	}

	if p.EmitsSignal && p.SignalIncludesValue {
		ret.WriteString(",signals")
	} else if p.EmitsSignal {
		ret.WriteString(",invalidates")
	}
	ret.WriteByte(']')
	return ret.String()
}

// Interface describes a DBus interface.
//
// Methods, signals and properties are kept in the order they were
// declared.
type Interface struct {
	Name        string
	Methods     []*Method
	Signals     []*Signal
	Properties  []*Property
	Annotations Annotations
}

// IsLocal reports whether the interface is synthetic, and so must
// never be cached by name.
func (i *Interface) IsLocal() bool {
	return strings.HasPrefix(i.Name, "local.")
}

// Empty reports whether the interface has no members.
func (i *Interface) Empty() bool {
	return len(i.Methods) == 0 && len(i.Signals) == 0 && len(i.Properties) == 0
}

func (i *Interface) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "interface %s {\n", i.Name)

	methods := slices.SortedFunc(slices.Values(i.Methods), func(a, b *Method) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, m := range methods {
		fmt.Fprintf(&ret, "  %s\n", m)
	}

	signals := slices.SortedFunc(slices.Values(i.Signals), func(a, b *Signal) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, s := range signals {
		fmt.Fprintf(&ret, "  %s\n", s)
	}

	props := slices.SortedFunc(slices.Values(i.Properties), func(a, b *Property) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, p := range props {
		fmt.Fprintf(&ret, "  %s\n", p)
	}
	ret.WriteString("}")
	return ret.String()
}

// Merge combines ifaces into a single interface named
// [MergedInterfaceName].
//
// Methods and signals are matched by their Key, and properties by
// name. When two interfaces declare the same member, the later one
// wins. The inputs are not modified, but the result shares members
// with them.
func Merge(ifaces ...*Interface) *Interface {
	ret := &Interface{Name: MergedInterfaceName}
	methods := map[string]int{}
	signals := map[string]int{}
	props := map[string]int{}
	for _, iface := range ifaces {
		for _, m := range iface.Methods {
			ret.Methods = upsert(ret.Methods, methods, m.Key(), m)
		}
		for _, s := range iface.Signals {
			ret.Signals = upsert(ret.Signals, signals, s.Key(), s)
		}
		for _, p := range iface.Properties {
			ret.Properties = upsert(ret.Properties, props, p.Name, p)
		}
		for k, v := range iface.Annotations {
			if ret.Annotations == nil {
				ret.Annotations = Annotations{}
			}
			ret.Annotations[k] = v
		}
	}
	return ret
}

// upsert sets the element of s identified by key to v, appending it
// if key is new. idx maps keys to their positions in s.
func upsert[T any](s []T, idx map[string]int, key string, v T) []T {
	if i, ok := idx[key]; ok {
		s[i] = v
		return s
	}
	idx[key] = len(s)
	return append(s, v)
}
