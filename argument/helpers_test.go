package argument_test

import (
	"testing"

	"github.com/danderson/dbusmeta/argument"
	"github.com/danderson/dbusmeta/fragments"
)

// mustMarshal encodes vals with a free Marshaller and returns the
// bytes and signature.
func mustMarshal(t *testing.T, order fragments.ByteOrder, vals ...any) ([]byte, string) {
	t.Helper()
	m := argument.NewMarshaller(order)
	for _, v := range vals {
		if err := m.AppendValue(v); err != nil {
			t.Fatalf("AppendValue(%#v) got err: %v", v, err)
		}
	}
	bs, sig, err := m.Finish()
	if err != nil {
		t.Fatalf("Finish() got err: %v", err)
	}
	return bs, sig
}

func mustDemarshaller(t *testing.T, order fragments.ByteOrder, sig string, bs []byte) *argument.Demarshaller {
	t.Helper()
	d, err := argument.NewDemarshaller(order, sig, bs)
	if err != nil {
		t.Fatalf("NewDemarshaller(%q) got err: %v", sig, err)
	}
	return d
}
