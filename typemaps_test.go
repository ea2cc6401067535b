package dbusmeta

import "testing"

func TestTypeMaps(t *testing.T) {
	for c := range basicCodes {
		if Alignment(c) == 0 {
			t.Errorf("basic type %q has no alignment", c)
		}
		if !IsValidSingleSignature(string(c)) {
			t.Errorf("basic type %q is not a valid signature", c)
		}
		if got := KindOf(string(c)); got != BasicKind {
			t.Errorf("KindOf(%q) = %v, want %v", c, got, BasicKind)
		}
	}

	for c, align := range alignments {
		switch align {
		case 1, 2, 4, 8:
		default:
			t.Errorf("alignment of %q is %d, want a power of two <= 8", c, align)
		}
	}

	for _, c := range []byte{TypeVariant, TypeArray, StructBegin, DictEntryBegin} {
		if IsBasicCode(c) {
			t.Errorf("IsBasicCode(%q) = true, want false", c)
		}
	}
}
