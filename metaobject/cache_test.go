package metaobject_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/danderson/dbusmeta/introspect"
	"github.com/danderson/dbusmeta/metaobject"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const twoIfaces = `<node>
  <interface name="org.example.Foo">
    <method name="Ping"/>
    <property name="Level" type="u" access="read"/>
  </interface>
  <interface name="org.example.Bar">
    <method name="Echo">
      <arg name="in" type="s" direction="in"/>
      <arg name="out" type="s" direction="out"/>
    </method>
    <signal name="Tick"/>
  </interface>
  <interface name="local.Scratch">
    <method name="Poke"/>
  </interface>
</node>`

func TestCacheLookup(t *testing.T) {
	rt := mustRuntime(t)
	c := rt.Cache()

	foo := mustMetaObject(t, rt, "org.example.Foo", twoIfaces)
	if !foo.Cached() {
		t.Error("org.example.Foo is not cached")
	}
	if foo2 := mustMetaObject(t, rt, "org.example.Foo", twoIfaces); foo2 != foo {
		t.Error("second lookup of org.example.Foo returned a different MetaObject")
	}
	if got, ok := c.Lookup("org.example.Foo"); !ok || got != foo {
		t.Errorf("Lookup(org.example.Foo) = %v, %v; want the synthesized MetaObject", got, ok)
	}

	// Every interface in the document is cached eagerly, except local
	// ones.
	bar, ok := c.Lookup("org.example.Bar")
	if !ok {
		t.Fatal("org.example.Bar was not cached")
	}
	if got := mustMetaObject(t, rt, "org.example.Bar", twoIfaces); got != bar {
		t.Error("lookup of org.example.Bar returned a different MetaObject")
	}
	if _, ok := c.Lookup("local.Scratch"); ok {
		t.Error("local.Scratch was cached")
	}
	if got, want := c.Len(), 2; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestCacheLocal(t *testing.T) {
	rt := mustRuntime(t)
	c := rt.Cache()

	a := mustMetaObject(t, rt, "local.Scratch", twoIfaces)
	b := mustMetaObject(t, rt, "local.Scratch", twoIfaces)
	if a == b {
		t.Error("local interface lookups returned the same MetaObject")
	}
	if a.Cached() {
		t.Error("local interface is marked cached")
	}
	if got, want := a.MethodCount(), 1; got != want {
		t.Errorf("local.Scratch MethodCount() = %d, want %d", got, want)
	}
	// Requesting a local interface doesn't synthesize the others.
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d after local lookups, want 0", got)
	}
}

func TestCacheNotFound(t *testing.T) {
	rt := mustRuntime(t)
	c := rt.Cache()

	mo, err := c.MetaObjectForXML("org.example.Nope", twoIfaces)
	if mo != nil {
		t.Errorf("got MetaObject %s for missing interface", mo)
	}
	var nf *metaobject.InterfaceNotFoundError
	if !errors.As(err, &nf) || !nf.Introspected || nf.Interface != "org.example.Nope" {
		t.Errorf("got err %v, want InterfaceNotFoundError for introspected object", err)
	}
	if !errors.Is(err, metaobject.ErrInterfaceNotFound) {
		t.Errorf("error %v does not match ErrInterfaceNotFound", err)
	}
}

func TestCacheNoIntrospection(t *testing.T) {
	rt := mustRuntime(t)
	c := rt.Cache()

	mo, err := c.MetaObjectForXML("org.example.Foo", "")
	if mo == nil {
		t.Fatal("got nil MetaObject for object without introspection data")
	}
	var nf *metaobject.InterfaceNotFoundError
	if !errors.As(err, &nf) || nf.Introspected {
		t.Errorf("got err %v, want InterfaceNotFoundError without introspection", err)
	}
	if !errors.Is(err, metaobject.ErrInterfaceNotFound) {
		t.Errorf("error %v does not match ErrInterfaceNotFound", err)
	}
	if mo.MethodCount() != 0 || mo.PropertyCount() != 0 {
		t.Errorf("MetaObject has members: %s", mo)
	}
	if mo.Cached() {
		t.Error("MetaObject is marked cached")
	}
	if got, want := mo.Interface(), "org.example.Foo"; got != want {
		t.Errorf("Interface() = %q, want %q", got, want)
	}
	if _, ok := c.Lookup("org.example.Foo"); ok {
		t.Error("empty MetaObject was cached")
	}
	mo2, _ := c.MetaObjectForXML("org.example.Foo", "")
	if mo2 == mo {
		t.Error("second lookup returned the same uncached MetaObject")
	}
}

func TestCacheMerged(t *testing.T) {
	rt := mustRuntime(t)
	c := rt.Cache()

	mo, err := c.MetaObjectForXML("", twoIfaces)
	if err != nil {
		t.Fatalf("MetaObjectForXML(\"\") got err: %v", err)
	}
	if got, want := mo.Interface(), introspect.MergedInterfaceName; got != want {
		t.Errorf("Interface() = %q, want %q", got, want)
	}
	if mo.Cached() {
		t.Error("merged MetaObject is marked cached")
	}
	for _, proto := range []string{"Ping()", "Echo(QString)", "Tick()", "Poke()"} {
		if mo.IndexOfMethod(proto) < 0 {
			t.Errorf("merged MetaObject is missing %s", proto)
		}
	}
	if got, want := mo.SignalCount(), 1; got != want {
		t.Errorf("SignalCount() = %d, want %d", got, want)
	}
	if mo.IndexOfProperty("Level") < 0 {
		t.Error("merged MetaObject is missing property Level")
	}
	if _, ok := c.Lookup(introspect.MergedInterfaceName); ok {
		t.Error("merged MetaObject was cached")
	}
	// The individual interfaces were still cached along the way.
	if got, want := c.Len(), 2; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestCacheConcurrent(t *testing.T) {
	rt := mustRuntime(t)
	c := rt.Cache()

	const workers = 32
	doc := func(i int) string {
		return iface(fmt.Sprintf("org.example.Iface%d", i%4), `
			<method name="Move">
				<arg name="to" type="(ii)">
					<annotation name="org.qtproject.QtDBus.QtTypeName" value="QPoint"/>
				</arg>
			</method>`)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = map[string]map[*metaobject.MetaObject]bool{}
		ids = map[metaobject.TypeID]bool{}
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("org.example.Iface%d", i%4)
			mo, err := c.MetaObjectForXML(name, doc(i))
			if err != nil {
				t.Errorf("MetaObjectForXML(%s) got err: %v", name, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if got[name] == nil {
				got[name] = map[*metaobject.MetaObject]bool{}
			}
			got[name][mo] = true
			ids[mo.InputTypes(0)[0]] = true
		}()
	}
	wg.Wait()

	for name, mos := range got {
		if len(mos) != 1 {
			t.Errorf("%s: got %d distinct MetaObjects, want 1", name, len(mos))
		}
	}
	if len(ids) != 1 {
		t.Errorf("QPoint resolved to %d distinct type ids, want 1", len(ids))
	}
	if got, want := c.Len(), 4; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := mustRuntime(t, metaobject.WithLogger(zap.New(core)))
	mustMetaObject(t, rt, "org.example.Foo", iface("org.example.Foo", `
		<method name="Good"/>
		<method name="Bad"><arg name="pt" type="(ii)"/></method>`))

	dropped := logs.FilterMessage("dropped interface member").All()
	if len(dropped) != 1 {
		t.Fatalf("got %d dropped member logs, want 1", len(dropped))
	}
	fields := dropped[0].ContextMap()
	if fields["member"] != "Bad" || fields["signature"] != "(ii)" || fields["kind"] != "method" {
		t.Errorf("dropped member log has wrong fields: %v", fields)
	}
	if n := logs.FilterMessage("synthesized meta-object").Len(); n != 1 {
		t.Errorf("got %d synthesis logs, want 1", n)
	}
	if n := logs.FilterMessage("cached meta-object").FilterField(zap.String("interface", "org.example.Foo")).Len(); n != 1 {
		t.Errorf("got %d cache insert logs, want 1", n)
	}
	if testing.Verbose() {
		for _, l := range logs.All() {
			t.Logf("%s %v", l.Message, l.ContextMap())
		}
	}
}
