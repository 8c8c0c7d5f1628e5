// Package value provides the value model shared by every moon package.
//
// A Value is one of:
//   - String: every scalar, including numbers and booleans in their
//     canonical string form ("5", "0.5", "true")
//   - Object: a mapping from string keys to Values
//   - Null: the "no result" value (an empty for loop)
//
// There is no array type. Ordered sequences are Objects keyed by the
// decimal strings "0", "1", "2", ... (see Seq and Object.Items). This is the
// only generic collection encoding used on the wire.
//
// value imports nothing internal so every other package can depend on it.
package value
