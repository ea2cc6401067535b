package metaobject

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danderson/dbusmeta/introspect"
	"github.com/golang/groupcache/singleflight"
	"go.uber.org/zap"
)

// ErrInterfaceNotFound is the error matched by
// [InterfaceNotFoundError].
var ErrInterfaceNotFound = errors.New("interface not found")

// InterfaceNotFoundError is the error returned by [Cache.MetaObjectFor]
// when the requested interface is not among those an object provides.
type InterfaceNotFoundError struct {
	Interface string
	// Introspected is false if the object provided no introspection
	// data at all, in which case an empty MetaObject is returned
	// alongside the error.
	Introspected bool
}

func (e *InterfaceNotFoundError) Error() string {
	if !e.Introspected {
		return fmt.Sprintf("interface %q not found: no introspection data", e.Interface)
	}
	return fmt.Sprintf("interface %q not found", e.Interface)
}

func (e *InterfaceNotFoundError) Is(target error) bool {
	return target == ErrInterfaceNotFound
}

// A Cache holds the MetaObjects of a [Runtime] by interface name.
//
// Entries are never evicted: an interface's shape is assumed not to
// change for the life of the process. Interfaces whose names begin
// with "local." are never cached.
type Cache struct {
	rt       *Runtime
	inflight singleflight.Group

	mu      sync.RWMutex
	entries map[string]*MetaObject
}

func newCache(rt *Runtime) *Cache {
	return &Cache{
		rt:      rt,
		entries: map[string]*MetaObject{},
	}
}

// Lookup returns the cached MetaObject for the named interface.
func (c *Cache) Lookup(name string) (*MetaObject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret, ok := c.entries[name]
	return ret, ok
}

// Len returns the number of cached MetaObjects.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// MetaObjectForXML parses the introspection document doc, and
// returns the MetaObject for the named interface as
// [Cache.MetaObjectFor] does.
func (c *Cache) MetaObjectForXML(name, doc string) (*MetaObject, error) {
	node, err := introspect.ParseXML(doc)
	if err != nil {
		return nil, err
	}
	return c.MetaObjectFor(name, node.Interfaces)
}

// MetaObjectFor returns the MetaObject for the named interface, given
// the interfaces that an object provides.
//
// Every interface in ifaces that is not yet cached is synthesized and
// cached, not just the one requested. Interfaces whose names begin
// with "local." are synthesized only when requested, and never
// cached.
//
// If name is empty, MetaObjectFor returns an uncached MetaObject for
// all of ifaces merged together, named
// [introspect.MergedInterfaceName].
//
// If ifaces is empty, MetaObjectFor returns an uncached MetaObject with
// no members, and an [InterfaceNotFoundError] that reports that the
// object had no introspection data. Otherwise, if the interface is
// not in ifaces, it returns an InterfaceNotFoundError and no
// MetaObject.
func (c *Cache) MetaObjectFor(name string, ifaces []*introspect.Interface) (*MetaObject, error) {
	var ret *MetaObject
	for _, iface := range ifaces {
		us := iface.Name == name
		if !us && strings.HasPrefix(name, "local.") {
			continue
		}
		mo, ok := c.Lookup(iface.Name)
		if !ok {
			switch {
			case !iface.IsLocal():
				mo = c.getOrSynthesize(iface)
			case us:
				mo = c.rt.synthesize(iface.Name, iface)
			}
		}
		if us {
			ret = mo
		}
	}
	if ret != nil {
		return ret, nil
	}

	switch {
	case len(ifaces) == 0:
		return c.rt.synthesize(name, nil), &InterfaceNotFoundError{Interface: name}
	case name == "":
		return c.rt.synthesize(introspect.MergedInterfaceName, introspect.Merge(ifaces...)), nil
	default:
		return nil, &InterfaceNotFoundError{Interface: name, Introspected: true}
	}
}

// getOrSynthesize returns the cached MetaObject for iface, creating
// it if needed. Concurrent callers for the same interface share a
// single synthesis.
func (c *Cache) getOrSynthesize(iface *introspect.Interface) *MetaObject {
	v, _ := c.inflight.Do(iface.Name, func() (interface{}, error) {
		if mo, ok := c.Lookup(iface.Name); ok {
			return mo, nil
		}
		mo := c.rt.synthesize(iface.Name, iface)
		mo.cached = true
		c.mu.Lock()
		c.entries[iface.Name] = mo
		c.mu.Unlock()
		c.rt.log.Debug("cached meta-object", zap.String("interface", iface.Name))
		return mo, nil
	})
	return v.(*MetaObject)
}
