package metaobject

import (
	"fmt"

	"github.com/danderson/dbusmeta/introspect"
	"go.uber.org/zap"
)

// A Runtime holds the state shared by everything that synthesizes
// MetaObjects: the type registry, and the cache of MetaObjects by
// interface name.
//
// Applications typically create one Runtime and use it for all their
// DBus interfaces. A Runtime is safe for concurrent use.
type Runtime struct {
	log   *zap.Logger
	types *Registry
	chain []resolver
	cache *Cache
}

type config struct {
	log            *zap.Logger
	useAnnotations bool
	types          []TypeSpec
}

// An Option configures a Runtime.
type Option func(*config)

// WithLogger sets the logger that the Runtime reports synthesis
// activity to. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithoutAnnotations disables type name annotations when resolving
// types. Instead, common container signatures resolve to generic
// container types, and any other signature resolves to a placeholder
// type that describes it. No member is dropped unless its signature
// is invalid.
//
// This mode is intended for introspection tools, which display
// interfaces rather than call them.
func WithoutAnnotations() Option {
	return func(c *config) {
		c.useAnnotations = false
	}
}

// WithTypes registers application types with the Runtime's type
// registry.
func WithTypes(types ...TypeSpec) Option {
	return func(c *config) {
		c.types = append(c.types, types...)
	}
}

// NewRuntime returns a new Runtime.
func NewRuntime(opts ...Option) (*Runtime, error) {
	cfg := config{
		log:            zap.NewNop(),
		useAnnotations: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = zap.NewNop()
	}

	reg := NewRegistry()
	for _, t := range cfg.types {
		if _, err := reg.Register(t.Name, t.Signature); err != nil {
			return nil, fmt.Errorf("registering application types: %w", err)
		}
	}

	ret := &Runtime{
		log:   cfg.log,
		types: reg,
		chain: resolverChain(reg, cfg.useAnnotations),
	}
	ret.cache = newCache(ret)
	return ret, nil
}

// Types returns the Runtime's type registry.
func (rt *Runtime) Types() *Registry { return rt.types }

// Cache returns the Runtime's MetaObject cache.
func (rt *Runtime) Cache() *Cache { return rt.cache }

// Synthesize returns a new, uncached MetaObject for iface.
func (rt *Runtime) Synthesize(iface *introspect.Interface) *MetaObject {
	return rt.synthesize(iface.Name, iface)
}

func (rt *Runtime) synthesize(name string, iface *introspect.Interface) *MetaObject {
	ret := synthesize(rt.types, rt.chain, name, iface)
	for _, d := range ret.dropped {
		rt.log.Debug("dropped interface member",
			zap.String("interface", name),
			zap.String("kind", d.Kind),
			zap.String("member", d.Name),
			zap.String("signature", d.Signature),
			zap.String("reason", d.Reason))
	}
	rt.log.Debug("synthesized meta-object",
		zap.String("interface", name),
		zap.Int("signals", ret.SignalCount()),
		zap.Int("methods", ret.MethodCount()-ret.SignalCount()),
		zap.Int("properties", ret.PropertyCount()),
		zap.Int("dropped", len(ret.dropped)))
	return ret
}
