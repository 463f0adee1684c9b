// Package model defines the value types shared by every gridsync component.
//
// # Identities
//
// A row is identified either by a temporary id (negative, issued locally by
// TempIDAllocator before the remote store has seen the row) or by a persisted
// id (positive, issued by the remote store). Identity is a tagged union: a
// single value that is exactly one of the two, never both.
//
// # Values
//
// Field values are restricted to a small sealed set (Null, Text, Int, Bool,
// Decimal). Floats are not representable; prices and areas use Decimal so
// that a value survives the round trip to the remote store unchanged.
//
// # Canonical JSON
//
// MarshalCanonical produces the byte-stable encoding used on the wire and for
// content hashing: sorted keys, NFC-normalized strings, no HTML escaping.
package model
