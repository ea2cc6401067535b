package argument

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danderson/dbusmeta"
)

// Format reads the next value from d and renders it as human readable
// text, for debugging and diagnostics.
//
// Containers render as "[Argument: sig ...]", with arrays and maps
// enclosed in braces and map entries written as "key = value".
// Variants render as "[Variant(sig): value]".
func Format(d *Demarshaller) (string, error) {
	var out strings.Builder
	if err := formatArg(d, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// FormatAll renders all remaining values of the innermost container
// of d, separated by commas.
func FormatAll(d *Demarshaller) (string, error) {
	var out strings.Builder
	if err := formatSeq(d, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func formatSeq(d *Demarshaller, out *strings.Builder) error {
	first := true
	for !d.AtEnd() {
		if !first {
			out.WriteString(", ")
		}
		first = false
		if err := formatArg(d, out); err != nil {
			return err
		}
	}
	return d.Err()
}

func formatArg(d *Demarshaller, out *strings.Builder) error {
	sig := d.CurrentSignature()
	kind := d.CurrentType()

	bracket := kind != dbusmeta.BasicKind && kind != dbusmeta.VariantKind && kind != dbusmeta.MapEntryKind
	if bracket {
		out.WriteString("[Argument: ")
		out.WriteString(sig)
		out.WriteByte(' ')
	}

	switch kind {
	case dbusmeta.BasicKind:
		v, err := d.readBasic()
		if err != nil {
			return err
		}
		formatBasic(out, v)
	case dbusmeta.VariantKind:
		if err := d.BeginVariant(); err != nil {
			return err
		}
		out.WriteString("[Variant")
		if inner := d.CurrentSignature(); dbusmeta.KindOf(inner) == dbusmeta.BasicKind && inner != "o" && inner != "g" {
			fmt.Fprintf(out, "(%s)", inner)
		}
		out.WriteString(": ")
		if err := formatArg(d, out); err != nil {
			return err
		}
		out.WriteByte(']')
		if err := d.EndVariant(); err != nil {
			return err
		}
	case dbusmeta.StructureKind:
		if err := d.BeginStructure(); err != nil {
			return err
		}
		if err := formatSeq(d, out); err != nil {
			return err
		}
		if err := d.EndStructure(); err != nil {
			return err
		}
	case dbusmeta.ArrayKind:
		if err := d.BeginArray(); err != nil {
			return err
		}
		out.WriteByte('{')
		if err := formatSeq(d, out); err != nil {
			return err
		}
		out.WriteByte('}')
		if err := d.EndArray(); err != nil {
			return err
		}
	case dbusmeta.MapKind:
		if err := d.BeginMap(); err != nil {
			return err
		}
		out.WriteByte('{')
		if err := formatSeq(d, out); err != nil {
			return err
		}
		out.WriteByte('}')
		if err := d.EndMap(); err != nil {
			return err
		}
	case dbusmeta.MapEntryKind:
		if err := d.BeginMapEntry(); err != nil {
			return err
		}
		if err := formatArg(d, out); err != nil {
			return err
		}
		out.WriteString(" = ")
		if err := formatArg(d, out); err != nil {
			return err
		}
		if err := d.EndMapEntry(); err != nil {
			return err
		}
	default:
		if err := d.Err(); err != nil {
			return err
		}
		return d.fail(protoErr("Format", "no more values in %s", d.where()))
	}

	if bracket {
		out.WriteByte(']')
	}
	return nil
}

func formatBasic(out *strings.Builder, v any) {
	switch v := v.(type) {
	case string:
		out.WriteByte('"')
		out.WriteString(v)
		out.WriteByte('"')
	case ObjectPath:
		fmt.Fprintf(out, "[ObjectPath: %s]", v)
	case Signature:
		fmt.Fprintf(out, "[Signature: %s]", v)
	case UnixFD:
		fmt.Fprintf(out, "[Unix FD: %d]", v)
	case float64:
		out.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		fmt.Fprint(out, v)
	}
}
