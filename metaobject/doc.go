// Package metaobject compiles DBus interface descriptions into
// MetaObjects: compact, index-addressed tables of an interface's
// methods, signals and properties, with every argument resolved to a
// runtime type.
//
// A [Runtime] owns the [Registry] of runtime types and the [Cache] of
// MetaObjects by interface name. Argument signatures that have no
// native type are resolved through type name annotations, and
// synthetic placeholder types are registered for them as needed.
// Members with an argument that cannot be resolved at all are left
// out of the MetaObject, and reported by [MetaObject.Dropped].
package metaobject
