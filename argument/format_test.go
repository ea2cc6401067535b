package argument_test

import (
	"testing"

	"github.com/danderson/dbusmeta/argument"
	"github.com/danderson/dbusmeta/fragments"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		vals []any
		want string
	}{
		{"scalars", []any{int32(1), "x", true, float64(2.5), uint8(7)}, `1, "x", true, 2.5, 7`},
		{"struct", []any{argument.Struct{Fields: []any{int32(1), "x"}}}, `[Argument: (is) 1, "x"]`},
		{"string array", []any{argument.Array{Elem: "s", Items: []any{"a", "b"}}}, `[Argument: as {"a", "b"}]`},
		{"empty array", []any{argument.Array{Elem: "i"}}, `[Argument: ai {}]`},
		{"bytes", []any{[]byte{1, 2}}, `[Argument: ay {1, 2}]`},
		{
			"vardict",
			[]any{argument.Map{
				Key:   "s",
				Value: "v",
				Entries: []argument.MapEntry{
					{"k", argument.Variant{Value: int32(1)}},
					{"p", argument.Variant{Value: argument.ObjectPath("/a")}},
				},
			}},
			`[Argument: a{sv} {"k" = [Variant(i): 1], "p" = [Variant: [ObjectPath: /a]]}]`,
		},
		{"variant struct", []any{argument.Variant{Value: argument.Struct{Fields: []any{int32(1)}}}}, `[Variant: [Argument: (i) 1]]`},
		{"nested variant", []any{argument.Variant{Value: argument.Variant{Value: "s"}}}, `[Variant: [Variant(s): "s"]]`},
		{"signature", []any{argument.Signature("a{sv}")}, `[Signature: a{sv}]`},
		{"unix fd", []any{argument.UnixFD(3)}, `[Unix FD: 3]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bs, sig := mustMarshal(t, fragments.LittleEndian, tc.vals...)
			d := mustDemarshaller(t, fragments.LittleEndian, sig, bs)
			got, err := argument.FormatAll(d)
			if err != nil {
				t.Fatalf("FormatAll() got err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("FormatAll() wrong output:\n  got: %s\n want: %s", got, tc.want)
			}
			if err := d.Finish(); err != nil {
				t.Fatalf("Finish() after FormatAll got err: %v", err)
			}
		})
	}
}

func TestFormatOne(t *testing.T) {
	bs, sig := mustMarshal(t, fragments.BigEndian, int32(1), "rest")
	d := mustDemarshaller(t, fragments.BigEndian, sig, bs)
	got, err := argument.Format(d)
	if err != nil {
		t.Fatalf("Format() got err: %v", err)
	}
	if got != "1" {
		t.Fatalf("Format() = %q, want 1", got)
	}
	if cur := d.CurrentSignature(); cur != "s" {
		t.Fatalf("CurrentSignature() after Format = %q, want s", cur)
	}
}

func TestFormatMalformed(t *testing.T) {
	d := mustDemarshaller(t, fragments.LittleEndian, "as", []byte{0x08, 0x00, 0x00, 0x00, 0x01, 0x00})
	if _, err := argument.FormatAll(d); err == nil {
		t.Fatal("FormatAll() of truncated input did not error")
	}
}
