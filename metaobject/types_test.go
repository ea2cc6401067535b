package metaobject_test

import (
	"testing"

	"github.com/danderson/dbusmeta/metaobject"
	"github.com/google/go-cmp/cmp"
)

func TestRegistryBuiltins(t *testing.T) {
	r := metaobject.NewRegistry()

	tests := []struct {
		sig  string
		want metaobject.Type
	}{
		{"y", metaobject.Type{ID: metaobject.UChar, Name: "uchar", Signature: "y"}},
		{"b", metaobject.Type{ID: metaobject.Bool, Name: "bool", Signature: "b"}},
		{"n", metaobject.Type{ID: metaobject.Short, Name: "short", Signature: "n"}},
		{"q", metaobject.Type{ID: metaobject.UShort, Name: "ushort", Signature: "q"}},
		{"i", metaobject.Type{ID: metaobject.Int, Name: "int", Signature: "i"}},
		{"u", metaobject.Type{ID: metaobject.UInt, Name: "uint", Signature: "u"}},
		{"x", metaobject.Type{ID: metaobject.LongLong, Name: "qlonglong", Signature: "x"}},
		{"t", metaobject.Type{ID: metaobject.ULongLong, Name: "qulonglong", Signature: "t"}},
		{"d", metaobject.Type{ID: metaobject.Double, Name: "double", Signature: "d"}},
		{"s", metaobject.Type{ID: metaobject.String, Name: "QString", Signature: "s"}},
		{"as", metaobject.Type{ID: metaobject.StringList, Name: "QStringList", Signature: "as"}},
		{"ay", metaobject.Type{ID: metaobject.ByteArray, Name: "QByteArray", Signature: "ay"}},
		{"av", metaobject.Type{ID: metaobject.VariantList, Name: "QVariantList", Signature: "av"}},
		{"o", metaobject.Type{ID: metaobject.FirstUserType, Name: "QDBusObjectPath", Signature: "o"}},
		{"g", metaobject.Type{ID: metaobject.FirstUserType + 1, Name: "QDBusSignature", Signature: "g"}},
		{"h", metaobject.Type{ID: metaobject.FirstUserType + 2, Name: "QDBusUnixFileDescriptor", Signature: "h"}},
		{"v", metaobject.Type{ID: metaobject.FirstUserType + 3, Name: "QDBusVariant", Signature: "v"}},
		{"ao", metaobject.Type{ID: metaobject.FirstUserType + 4, Name: "QList<QDBusObjectPath>", Signature: "ao"}},
		{"ag", metaobject.Type{ID: metaobject.FirstUserType + 5, Name: "QList<QDBusSignature>", Signature: "ag"}},
	}
	for _, tc := range tests {
		got, ok := r.ForSignature(tc.sig)
		if !ok {
			t.Errorf("ForSignature(%q) found nothing", tc.sig)
			continue
		}
		if diff := cmp.Diff(got, tc.want); diff != "" {
			t.Errorf("ForSignature(%q) wrong result (-got+want):\n%s", tc.sig, diff)
		}
		if byID, ok := r.ByID(got.ID); !ok || byID != got {
			t.Errorf("ByID(%d) = %v, %v; want %v", got.ID, byID, ok, got)
		}
		if byName, ok := r.ByName(got.Name); !ok || byName != got {
			t.Errorf("ByName(%q) = %v, %v; want %v", got.Name, byName, ok, got)
		}
	}

	for _, sig := range []string{"a{sv}", "a{ss}", "aay", "(ii)", "", "a{"} {
		if got, ok := r.ForSignature(sig); ok {
			t.Errorf("ForSignature(%q) = %v, want nothing", sig, got)
		}
	}
	if got, ok := r.ByName("QVariantMap"); !ok || got.Signature != "a{sv}" {
		t.Errorf("ByName(QVariantMap) = %v, %v; want type with signature a{sv}", got, ok)
	}
	if got := r.Name(metaobject.Void); got != "void" {
		t.Errorf("Name(Void) = %q, want void", got)
	}
	if got := r.Name(12345); got != "" {
		t.Errorf("Name(12345) = %q, want empty", got)
	}
}

func TestRegistryRegister(t *testing.T) {
	r := metaobject.NewRegistry()
	before := r.Len()

	pt, err := r.Register("MyPoint", "(ii)")
	if err != nil {
		t.Fatalf("Register(MyPoint) got err: %v", err)
	}
	if pt.ID < metaobject.FirstUserType || pt.Synthetic {
		t.Errorf("Register(MyPoint) = %v, want non-synthetic user type", pt)
	}
	if got, ok := r.ForSignature("(ii)"); !ok || got != pt {
		t.Errorf("ForSignature((ii)) = %v, %v; want %v", got, ok, pt)
	}
	again, err := r.Register("MyPoint", "(ii)")
	if err != nil || again != pt {
		t.Errorf("re-Register(MyPoint) = %v, %v; want %v", again, err, pt)
	}
	if got, want := r.Len(), before+1; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}

	// A second type for the same signature doesn't replace the first.
	if _, err := r.Register("OtherPoint", "(ii)"); err != nil {
		t.Fatalf("Register(OtherPoint) got err: %v", err)
	}
	if got, _ := r.ForSignature("(ii)"); got != pt {
		t.Errorf("ForSignature((ii)) = %v after second registration, want %v", got, pt)
	}

	errTests := []struct {
		name, sig string
	}{
		{"MyPoint", "(dd)"},
		{"int", "u"},
		{"", "i"},
		{"Broken", "a{"},
		{"Two", "ii"},
	}
	for _, tc := range errTests {
		if got, err := r.Register(tc.name, tc.sig); err == nil {
			t.Errorf("Register(%q, %q) = %v, want error", tc.name, tc.sig, got)
		} else if testing.Verbose() {
			t.Logf("Register(%q, %q) got expected error: %v", tc.name, tc.sig, err)
		}
	}
}

func TestWithTypes(t *testing.T) {
	rt := mustRuntime(t, metaobject.WithTypes(metaobject.TypeSpec{Name: "QPoint", Signature: "(ii)"}))
	mo := mustMetaObject(t, rt, "org.example.Foo", iface("org.example.Foo", `
		<method name="Move"><arg name="to" type="(ii)"/></method>`))
	if got, want := mo.Method(0).Prototype(), "Move(QPoint)"; got != want {
		t.Errorf("Prototype() = %q, want %q", got, want)
	}
	if pt := mustType(t, rt, "QPoint"); pt.Synthetic {
		t.Errorf("registered type %v is marked synthetic", pt)
	}

	if _, err := metaobject.NewRuntime(metaobject.WithTypes(metaobject.TypeSpec{Name: "Bad", Signature: "(i"})); err == nil {
		t.Error("NewRuntime() with invalid type succeeded")
	}
}
