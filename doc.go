// Package dbusmeta provides the DBus type signature grammar and the
// lexical validators for DBus names.
//
// A type signature is a string of type codes describing the shape of
// one or more values:
//
//	y b n q i u x t d s o g h   basic types
//	v                           variant
//	aT                          array of T
//	a{KV}                       dict (array of key/value entries), K basic
//	(T...)                      struct of one or more types
//
// The grammar functions are pure and safe for concurrent use. The
// wire codec lives in the argument package, the interface model in
// introspect, and the meta-object synthesizer in metaobject.
package dbusmeta
