package introspect

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/danderson/dbusmeta"
)

// Node describes a DBus object as returned by the
// org.freedesktop.DBus.Introspectable.Introspect method.
type Node struct {
	// Name is the object path of the node, if the document provided
	// one.
	Name string
	// Interfaces are the interfaces of the object, in document order.
	Interfaces []*Interface
	// Children is the relative paths to child objects under this
	// object.
	Children []string
}

// Interface returns the named interface of the node, or nil.
func (n *Node) Interface(name string) *Interface {
	for _, iface := range n.Interfaces {
		if iface.Name == name {
			return iface
		}
	}
	return nil
}

// ParseXML parses a DBus introspection document.
//
// Argument and property signatures are recorded as given, even when
// invalid: it is up to consumers to decide what to do with members
// they cannot type. Invalid interface or member names, duplicate
// interfaces and unknown property access modes are errors.
//
// An empty or whitespace-only document yields an empty Node.
func ParseXML(doc string) (*Node, error) {
	if strings.TrimSpace(doc) == "" {
		return &Node{}, nil
	}
	var ret Node
	if err := xml.Unmarshal([]byte(doc), &ret); err != nil {
		return nil, fmt.Errorf("parsing introspection data: %w", err)
	}
	return &ret, nil
}

type xmlAnnotation struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func annotations(raw []xmlAnnotation) Annotations {
	if len(raw) == 0 {
		return nil
	}
	ret := make(Annotations, len(raw))
	for _, a := range raw {
		ret[a.Name] = a.Value
	}
	return ret
}

type xmlArg struct {
	Name      string          `xml:"name,attr"`
	Type      string          `xml:"type,attr"`
	Direction string          `xml:"direction,attr"`
	Meta      []xmlAnnotation `xml:"annotation"`
}

func (a xmlArg) arg() Argument {
	return Argument{
		Name:        a.Name,
		Type:        a.Type,
		Annotations: annotations(a.Meta),
	}
}

func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name       string       `xml:"name,attr"`
		Interfaces []*Interface `xml:"interface"`
		Children   []struct {
			Name string `xml:"name,attr"`
		} `xml:"node"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	n.Name = raw.Name
	n.Interfaces = raw.Interfaces
	seen := map[string]bool{}
	for _, iface := range n.Interfaces {
		if seen[iface.Name] {
			return fmt.Errorf("duplicate interface %q", iface.Name)
		}
		seen[iface.Name] = true
	}
	n.Children = make([]string, 0, len(raw.Children))
	for _, v := range raw.Children {
		n.Children = append(n.Children, v.Name)
	}
	return nil
}

func (i *Interface) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name       string          `xml:"name,attr"`
		Methods    []*Method       `xml:"method"`
		Signals    []*Signal       `xml:"signal"`
		Properties []*Property     `xml:"property"`
		Meta       []xmlAnnotation `xml:"annotation"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	if !dbusmeta.IsValidInterfaceName(raw.Name) {
		return fmt.Errorf("invalid interface name %q", raw.Name)
	}
	i.Name = raw.Name
	i.Methods = raw.Methods
	i.Signals = raw.Signals
	i.Properties = raw.Properties
	i.Annotations = annotations(raw.Meta)
	return nil
}

func (m *Method) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name string          `xml:"name,attr"`
		Args []xmlArg        `xml:"arg"`
		Meta []xmlAnnotation `xml:"annotation"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	if !dbusmeta.IsValidMemberName(raw.Name) {
		return fmt.Errorf("invalid method name %q", raw.Name)
	}
	m.Name = raw.Name
	m.In, m.Out = nil, nil
	for _, arg := range raw.Args {
		switch arg.Direction {
		case "", "in":
			m.In = append(m.In, arg.arg())
		case "out":
			m.Out = append(m.Out, arg.arg())
		default:
			return fmt.Errorf("unknown direction %q for arg %s of method %s", arg.Direction, arg.Name, raw.Name)
		}
	}
	m.Annotations = annotations(raw.Meta)
	m.Deprecated = m.Annotations[AnnotationDeprecated] == "true"
	m.NoReply = m.Annotations[AnnotationNoReply] == "true"
	return nil
}

func (s *Signal) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name string          `xml:"name,attr"`
		Args []xmlArg        `xml:"arg"`
		Meta []xmlAnnotation `xml:"annotation"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	if !dbusmeta.IsValidMemberName(raw.Name) {
		return fmt.Errorf("invalid signal name %q", raw.Name)
	}
	s.Name = raw.Name
	s.Args = nil
	for _, arg := range raw.Args {
		if arg.Direction != "" && arg.Direction != "out" {
			return fmt.Errorf("invalid direction %q for arg %s of signal %s", arg.Direction, arg.Name, raw.Name)
		}
		s.Args = append(s.Args, arg.arg())
	}
	s.Annotations = annotations(raw.Meta)
	s.Deprecated = s.Annotations[AnnotationDeprecated] == "true"
	return nil
}

func (p *Property) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name   string          `xml:"name,attr"`
		Type   string          `xml:"type,attr"`
		Access string          `xml:"access,attr"`
		Meta   []xmlAnnotation `xml:"annotation"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	if !dbusmeta.IsValidMemberName(raw.Name) {
		return fmt.Errorf("invalid property name %q", raw.Name)
	}
	p.Name = raw.Name
	p.Type = raw.Type
	switch raw.Access {
	case "read":
		p.Access = Read
	case "write":
		p.Access = Write
	case "readwrite":
		p.Access = ReadWrite
	default:
		return fmt.Errorf("unknown property access value %q for property %s", raw.Access, raw.Name)
	}
	p.Annotations = annotations(raw.Meta)
	p.Deprecated = p.Annotations[AnnotationDeprecated] == "true"
	p.Constant, p.EmitsSignal, p.SignalIncludesValue = false, true, true
	switch p.Annotations[AnnotationEmitsChangedSignal] {
	case "false":
		p.EmitsSignal = false
		p.SignalIncludesValue = false
	case "invalidates":
		p.SignalIncludesValue = false
	case "const":
		p.Constant = true
		p.EmitsSignal = false
		p.SignalIncludesValue = false
	}
	return nil
}
