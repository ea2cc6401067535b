package dbusmeta

const (
	// MaxSignatureLength is the longest type signature DBus allows.
	MaxSignatureLength = 255

	// maxArrayDepth and maxStructDepth are the nesting limits the
	// DBus protocol puts on signatures. Dict entries count as
	// structs.
	maxArrayDepth  = 32
	maxStructDepth = 32
)

// IsValidSignature reports whether sig is a sequence of zero or more
// complete types.
//
// The empty string is a valid signature describing no values. Callers
// that need at least one value should use [IsValidSingleSignature] or
// check for emptiness themselves.
func IsValidSignature(sig string) bool {
	if len(sig) > MaxSignatureLength {
		return false
	}
	for sig != "" {
		n := validateSingleType(sig)
		if n < 0 {
			return false
		}
		sig = sig[n:]
	}
	return true
}

// IsValidSingleSignature reports whether sig is exactly one complete
// type.
func IsValidSingleSignature(sig string) bool {
	if len(sig) > MaxSignatureLength {
		return false
	}
	return validateSingleType(sig) == len(sig) && sig != ""
}

// NextType splits the first complete type off the front of sig.
//
// If sig does not start with a complete type (including when sig is
// empty), NextType returns ok=false. Callers splitting a multi-type
// signature can therefore loop until ok is false and then check that
// rest is empty.
func NextType(sig string) (single, rest string, ok bool) {
	n := validateSingleType(sig)
	if n < 0 {
		return "", sig, false
	}
	return sig[:n], sig[n:], true
}

// SplitSignature splits sig into its complete types.
//
// Concatenating the returned types reproduces sig exactly.
func SplitSignature(sig string) ([]string, error) {
	if len(sig) > MaxSignatureLength {
		return nil, sigErr(sig, "signature is %d bytes, longer than the maximum of %d", len(sig), MaxSignatureLength)
	}
	var ret []string
	rest := sig
	for rest != "" {
		single, next, ok := NextType(rest)
		if !ok {
			return nil, sigErr(sig, "invalid type at offset %d", len(sig)-len(rest))
		}
		ret = append(ret, single)
		rest = next
	}
	return ret, nil
}

// validateSingleType returns the length of the complete type at the
// front of sig, or -1 if sig does not start with a valid complete
// type.
func validateSingleType(sig string) int {
	return singleTypeLen(sig, 0, 0)
}

// singleTypeLen is validateSingleType, tracking the array and struct
// nesting depth of sig within the enclosing signature.
func singleTypeLen(sig string, arrays, structs int) int {
	if sig == "" {
		return -1
	}
	switch c := sig[0]; {
	case basicCodes.Has(c) || c == TypeVariant:
		return 1
	case c == TypeArray:
		if arrays >= maxArrayDepth {
			return -1
		}
		if len(sig) > 1 && sig[1] == DictEntryBegin {
			if structs >= maxStructDepth {
				return -1
			}
			// Dict entry: exactly one basic key and one value of
			// any type.
			if len(sig) < 3 || !basicCodes.Has(sig[2]) {
				return -1
			}
			n := singleTypeLen(sig[3:], arrays+1, structs+1)
			if n < 0 {
				return -1
			}
			end := 3 + n
			if end >= len(sig) || sig[end] != DictEntryEnd {
				return -1
			}
			return end + 1
		}
		n := singleTypeLen(sig[1:], arrays+1, structs)
		if n < 0 {
			return -1
		}
		return n + 1
	case c == StructBegin:
		if structs >= maxStructDepth {
			return -1
		}
		i := 1
		for i < len(sig) && sig[i] != StructEnd {
			n := singleTypeLen(sig[i:], arrays, structs+1)
			if n < 0 {
				return -1
			}
			i += n
		}
		if i >= len(sig) {
			// Unterminated.
			return -1
		}
		if i == 1 {
			// Structs must have at least one field.
			return -1
		}
		return i + 1
	default:
		return -1
	}
}
