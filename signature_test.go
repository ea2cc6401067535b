package dbusmeta

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateSingleType(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"y", 1},
		{"b", 1},
		{"n", 1},
		{"q", 1},
		{"i", 1},
		{"u", 1},
		{"x", 1},
		{"t", 1},
		{"d", 1},
		{"s", 1},
		{"o", 1},
		{"g", 1},
		{"h", 1},
		{"v", 1},
		{"ss", 1},
		{"as", 2},
		{"aas", 3},
		{"ay", 2},
		{"a{sv}", 5},
		{"a{sv}i", 5},
		{"a{ia{sv}}", 9},
		{"(is)", 4},
		{"(i(sv)a{ox})", 12},
		{"a(nb)", 5},
		{"a(y(nb))", 8},

		{"", -1},
		{"a", -1},
		{"aa", -1},
		{"(", -1},
		{"(i", -1},
		{"()", -1},
		{")", -1},
		{"{sv}", -1},
		{"a{vs}", -1},
		{"a{(i)s}", -1},
		{"a{ass}", -1},
		{"a{s}", -1},
		{"a{sii}", -1},
		{"a{sv", -1},
		{"({sv})", -1},
		{"z", -1},
		{"\x00", -1},
	}

	for _, tc := range tests {
		if got := validateSingleType(tc.in); got != tc.want {
			t.Errorf("validateSingleType(%q) = %d, want %d", tc.in, got, tc.want)
		} else if testing.Verbose() {
			t.Logf("validateSingleType(%q) = %d", tc.in, got)
		}
	}
}

func TestIsValidSignature(t *testing.T) {
	tests := []struct {
		in         string
		wantValid  bool
		wantSingle bool
	}{
		{"", true, false},
		{"s", true, true},
		{"sis", true, false},
		{"a{sv}", true, true},
		{"a{sv}as", true, false},
		{"(ii)(ss)", true, false},
		{"aay", true, true},
		{"a{s", false, false},
		{"sz", false, false},
		{"()", false, false},
		{"i)", false, false},

		{strings.Repeat("a", 32) + "y", true, true},
		{strings.Repeat("a", 33) + "y", false, false},
		{strings.Repeat("(", 32) + "y" + strings.Repeat(")", 32), true, true},
		{strings.Repeat("(", 33) + "y" + strings.Repeat(")", 33), false, false},
		{strings.Repeat("y", 255), true, false},
		{strings.Repeat("y", 256), false, false},
	}

	for _, tc := range tests {
		if got := IsValidSignature(tc.in); got != tc.wantValid {
			t.Errorf("IsValidSignature(%q) = %v, want %v", tc.in, got, tc.wantValid)
		}
		if got := IsValidSingleSignature(tc.in); got != tc.wantSingle {
			t.Errorf("IsValidSingleSignature(%q) = %v, want %v", tc.in, got, tc.wantSingle)
		}
	}
}

func TestSplitSignature(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"s", []string{"s"}, false},
		{"sia{sv}", []string{"s", "i", "a{sv}"}, false},
		{"(i(sv))aa{yv}g", []string{"(i(sv))", "aa{yv}", "g"}, false},
		{"ua{s", nil, true},
		{"z", nil, true},
	}

	for _, tc := range tests {
		got, err := SplitSignature(tc.in)
		if gotErr := err != nil; gotErr != tc.wantErr {
			t.Errorf("SplitSignature(%q) got err %v, want err=%v", tc.in, err, tc.wantErr)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("SplitSignature(%q) error %v does not match ErrInvalidSignature", tc.in, err)
			}
			var se SignatureError
			if !errors.As(err, &se) || se.Signature != tc.in {
				t.Errorf("SplitSignature(%q) error %#v is not a SignatureError for the input", tc.in, err)
			}
			continue
		}
		if diff := cmp.Diff(got, tc.want); diff != "" {
			t.Errorf("SplitSignature(%q) wrong output (-got+want):\n%s", tc.in, diff)
		}
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	sigs := []string{
		"",
		"y",
		"a{sv}",
		"sa{sv}as",
		"(ybnqiuxtdsogh)",
		"a(sa{sv})va{oa{sa{sv}}}",
		"aaaai(y)(yy)a{ya{yv}}",
	}

	for _, sig := range sigs {
		if !IsValidSignature(sig) {
			t.Fatalf("IsValidSignature(%q) = false, want true", sig)
		}
		var parts []string
		rest := sig
		for {
			single, next, ok := NextType(rest)
			if !ok {
				break
			}
			if !IsValidSingleSignature(single) {
				t.Errorf("NextType(%q) returned %q, which is not a single complete type", rest, single)
			}
			parts = append(parts, single)
			rest = next
		}
		if rest != "" {
			t.Errorf("splitting %q left %q unconsumed", sig, rest)
		}
		if got := strings.Join(parts, ""); got != sig {
			t.Errorf("split %q into %q, which joins to %q", sig, parts, got)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   string
		want ElementKind
	}{
		{"", UnknownKind},
		{"s", BasicKind},
		{"h", BasicKind},
		{"v", VariantKind},
		{"as", ArrayKind},
		{"ay", ArrayKind},
		{"a{sv}", MapKind},
		{"(ii)", StructureKind},
		{"{sv}", MapEntryKind},
		{"z", UnknownKind},
	}
	for _, tc := range tests {
		if got := KindOf(tc.in); got != tc.want {
			t.Errorf("KindOf(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
