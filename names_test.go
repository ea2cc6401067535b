package dbusmeta

import (
	"strings"
	"testing"
)

func TestNames(t *testing.T) {
	long := "a." + strings.Repeat("b", 254)

	tests := []struct {
		name  string
		valid func(string) bool
		in    string
		want  bool
	}{
		{"member", IsValidMemberName, "Introspect", true},
		{"member", IsValidMemberName, "get_all2", true},
		{"member", IsValidMemberName, "", false},
		{"member", IsValidMemberName, "2fast", false},
		{"member", IsValidMemberName, "Get.All", false},
		{"member", IsValidMemberName, "with-dash", false},
		{"member", IsValidMemberName, strings.Repeat("m", 256), false},

		{"interface", IsValidInterfaceName, "org.freedesktop.DBus", true},
		{"interface", IsValidInterfaceName, "a.b", true},
		{"interface", IsValidInterfaceName, "_private.x9", true},
		{"interface", IsValidInterfaceName, "org", false},
		{"interface", IsValidInterfaceName, "org..DBus", false},
		{"interface", IsValidInterfaceName, ".org.DBus", false},
		{"interface", IsValidInterfaceName, "org.DBus.", false},
		{"interface", IsValidInterfaceName, "org.9DBus", false},
		{"interface", IsValidInterfaceName, "org.free-desktop", false},
		{"interface", IsValidInterfaceName, long, false},

		{"error", IsValidErrorName, "org.freedesktop.DBus.Error.Failed", true},
		{"error", IsValidErrorName, "Failed", false},

		{"unique", IsValidUniqueConnectionName, ":1.42", true},
		{"unique", IsValidUniqueConnectionName, ":1.4-2", true},
		{"unique", IsValidUniqueConnectionName, "1.42", false},
		{"unique", IsValidUniqueConnectionName, ":1", false},
		{"unique", IsValidUniqueConnectionName, ":1..2", false},

		{"bus", IsValidBusName, "org.freedesktop.DBus", true},
		{"bus", IsValidBusName, "org.free-desktop.DBus", true},
		{"bus", IsValidBusName, ":1.42", true},
		{"bus", IsValidBusName, "org.7zip", false},
		{"bus", IsValidBusName, "org", false},
		{"bus", IsValidBusName, "", false},

		{"path", IsValidObjectPath, "/", true},
		{"path", IsValidObjectPath, "/org/freedesktop/DBus", true},
		{"path", IsValidObjectPath, "/a_1/B2", true},
		{"path", IsValidObjectPath, "", false},
		{"path", IsValidObjectPath, "org/freedesktop", false},
		{"path", IsValidObjectPath, "/org/", false},
		{"path", IsValidObjectPath, "/org//DBus", false},
		{"path", IsValidObjectPath, "/org/free-desktop", false},
	}

	for _, tc := range tests {
		if got := tc.valid(tc.in); got != tc.want {
			t.Errorf("%s name %q valid = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}
