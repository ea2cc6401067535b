package argument_test

import (
	"testing"

	"github.com/danderson/dbusmeta/argument"
)

func TestSignatureOf(t *testing.T) {
	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{uint8(1), "y", false},
		{true, "b", false},
		{int16(1), "n", false},
		{uint16(1), "q", false},
		{int32(1), "i", false},
		{uint32(1), "u", false},
		{int64(1), "x", false},
		{uint64(1), "t", false},
		{float64(1), "d", false},
		{"", "s", false},
		{argument.ObjectPath("/"), "o", false},
		{argument.Signature(""), "g", false},
		{argument.UnixFD(0), "h", false},
		{[]byte(nil), "ay", false},
		{argument.Variant{}, "v", false},
		{argument.Array{Elem: "(ii)"}, "a(ii)", false},
		{argument.Map{Key: "o", Value: "a{sv}"}, "a{oa{sv}}", false},
		{argument.Struct{Fields: []any{int32(1), argument.Variant{Value: "x"}, []byte{}}}, "(ivay)", false},

		{argument.Struct{}, "", true},
		{argument.Map{Key: "v", Value: "s"}, "", true},
		{argument.Array{Elem: ""}, "", true},
		{argument.Struct{Fields: []any{int(1)}}, "", true},
		{int8(1), "", true},
		{nil, "", true},
	}

	for _, tc := range tests {
		got, err := argument.SignatureOf(tc.in)
		if gotErr := err != nil; gotErr != tc.wantErr {
			t.Errorf("SignatureOf(%#v) got err %v, want err=%v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("SignatureOf(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
