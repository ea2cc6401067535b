// Package argument implements the DBus argument codec: a
// [Marshaller] that encodes values into the wire format and a
// [Demarshaller] that decodes them, both driven by type signatures.
//
// Values can be written and read one primitive at a time, with
// explicit container Begin/End calls, or in bulk through a small
// generic value model ([Struct], [Array], [Map], [Variant] and
// friends) with [Marshaller.AppendValue] and
// [Demarshaller.ReadValue].
package argument
