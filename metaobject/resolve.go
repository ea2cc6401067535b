package metaobject

import (
	"strconv"

	"github.com/danderson/dbusmeta"
	"github.com/danderson/dbusmeta/introspect"
)

// Annotations that name the runtime type to use for an argument or
// property whose signature has no native mapping.
//
// On a method or signal, the key is suffixed with the direction and
// position of the argument, e.g. "org.qtproject.QtDBus.QtTypeName.In0"
// or ".Out1". On an argument or property, the bare key applies.
const (
	AnnotationTypeName       = "org.qtproject.QtDBus.QtTypeName"
	LegacyAnnotationTypeName = "com.trolltech.QtDBus.QtTypeName"
)

// typeRequest is a signature in need of a runtime type, along with
// the annotations that might name one.
type typeRequest struct {
	Sig string
	// Member holds the annotations of the containing method, signal
	// or property.
	Member introspect.Annotations
	// Arg holds the annotations of the argument itself. Nil for
	// properties.
	Arg introspect.Annotations
	// Dir is "In" or "Out".
	Dir string
	// Pos is the argument's position among arguments of the same
	// direction, or -1 for a property.
	Pos int
}

// A resolver maps a typeRequest to a runtime type, or reports false
// to defer to the next resolver in the chain.
type resolver interface {
	resolve(req typeRequest) (Type, bool)
}

// nativeResolver maps signatures that have a native or registered
// application type.
type nativeResolver struct {
	reg *Registry
}

func (r nativeResolver) resolve(req typeRequest) (Type, bool) {
	return r.reg.ForSignature(req.Sig)
}

// annotationResolver uses explicit type name annotations. Types named
// by annotations that the registry doesn't know are synthesized under
// that name. When the named type exists but marshals as a different
// signature, an opaque raw type for the signature is used instead.
type annotationResolver struct {
	reg *Registry
	key string
}

func (r annotationResolver) typeName(req typeRequest) string {
	if req.Pos < 0 {
		return req.Member[r.key]
	}
	if n := req.Member[r.key+"."+req.Dir+strconv.Itoa(req.Pos)]; n != "" {
		return n
	}
	return req.Arg[r.key]
}

func (r annotationResolver) resolve(req typeRequest) (Type, bool) {
	name := r.typeName(req)
	if name == "" {
		return Type{}, false
	}
	if t, ok := r.reg.ByName(name); ok {
		if t.Signature == req.Sig {
			return t, true
		}
		return r.reg.synthesize(rawTypeName(req.Sig), req.Sig)
	}
	if t, ok := r.reg.synthesize(name, req.Sig); ok {
		return t, true
	}
	return r.reg.synthesize(rawTypeName(req.Sig), req.Sig)
}

// toolingTypes are container types that introspection tools can
// display without any application type registered.
var toolingTypes = map[string]string{
	"av":    "QVariantList",
	"a{sv}": "QVariantMap",
	"a{ss}": "QMap<QString,QString>",
	"aay":   "QByteArrayList",
}

// toolingResolver is the last resolver when annotations are
// disabled. It never fails: signatures outside the toolingTypes table
// get a placeholder type whose name describes the signature.
type toolingResolver struct {
	reg *Registry
}

func (r toolingResolver) resolve(req typeRequest) (Type, bool) {
	if name, ok := toolingTypes[req.Sig]; ok {
		if t, ok := r.reg.ByName(name); ok {
			return t, true
		}
	}
	return r.reg.synthesize(toolingTypeName(req.Sig), req.Sig)
}

// resolverChain returns the resolvers to try, in order.
func resolverChain(reg *Registry, useAnnotations bool) []resolver {
	if !useAnnotations {
		return []resolver{nativeResolver{reg}, toolingResolver{reg}}
	}
	return []resolver{
		nativeResolver{reg},
		annotationResolver{reg, AnnotationTypeName},
		annotationResolver{reg, LegacyAnnotationTypeName},
	}
}

// Reasons a type request can fail to resolve.
const (
	reasonInvalidSignature = "invalid signature"
	reasonNoMapping        = "no native type and no type name annotation"
)

// resolveType runs req through chain. On failure, it returns the
// reason the request could not be resolved.
func resolveType(chain []resolver, req typeRequest) (t Type, reason string) {
	if !dbusmeta.IsValidSingleSignature(req.Sig) {
		return Type{}, reasonInvalidSignature
	}
	for _, r := range chain {
		if t, ok := r.resolve(req); ok {
			return t, ""
		}
	}
	return Type{}, reasonNoMapping
}
