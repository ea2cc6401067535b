package dbusmeta

import "strings"

// MaxNameLength is the longest bus, interface, error or member name
// DBus allows.
const MaxNameLength = 255

func isNameChar(c byte, allowDash bool) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '_':
		return true
	case c == '-':
		return allowDash
	}
	return false
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// isValidElement reports whether elem is a valid dot-separated
// element of a name.
func isValidElement(elem string, allowDash, allowLeadingDigit bool) bool {
	if elem == "" {
		return false
	}
	if !allowLeadingDigit && isDigit(elem[0]) {
		return false
	}
	for i := range len(elem) {
		if !isNameChar(elem[i], allowDash) {
			return false
		}
	}
	return true
}

// isValidDottedName reports whether name is two or more valid
// elements separated by dots.
func isValidDottedName(name string, allowDash, allowLeadingDigit bool) bool {
	if name == "" || len(name) > MaxNameLength {
		return false
	}
	elems := strings.Split(name, ".")
	if len(elems) < 2 {
		return false
	}
	for _, e := range elems {
		if !isValidElement(e, allowDash, allowLeadingDigit) {
			return false
		}
	}
	return true
}

// IsValidMemberName reports whether name is a valid method, signal
// or property name.
func IsValidMemberName(name string) bool {
	if len(name) > MaxNameLength {
		return false
	}
	return isValidElement(name, false, false)
}

// IsValidInterfaceName reports whether name is a valid interface
// name, such as "org.freedesktop.DBus.Properties".
func IsValidInterfaceName(name string) bool {
	return isValidDottedName(name, false, false)
}

// IsValidErrorName reports whether name is a valid error name. Error
// names follow the same rules as interface names.
func IsValidErrorName(name string) bool {
	return IsValidInterfaceName(name)
}

// IsValidUniqueConnectionName reports whether name is a valid unique
// connection name assigned by a bus, such as ":1.42".
func IsValidUniqueConnectionName(name string) bool {
	rest, ok := strings.CutPrefix(name, ":")
	if !ok || len(name) > MaxNameLength {
		return false
	}
	return isValidDottedName(rest, true, true)
}

// IsValidBusName reports whether name is a valid bus name, either a
// unique connection name or a well-known name such as
// "org.freedesktop.DBus".
func IsValidBusName(name string) bool {
	if strings.HasPrefix(name, ":") {
		return IsValidUniqueConnectionName(name)
	}
	return isValidDottedName(name, true, false)
}

// IsValidObjectPath reports whether path is a valid object path.
func IsValidObjectPath(path string) bool {
	if path == "/" {
		return true
	}
	rest, ok := strings.CutPrefix(path, "/")
	if !ok || strings.HasSuffix(rest, "/") {
		return false
	}
	for _, elem := range strings.Split(rest, "/") {
		if elem == "" {
			return false
		}
		for i := range len(elem) {
			if !isNameChar(elem[i], false) {
				return false
			}
		}
	}
	return true
}
