// Package engine implements the moon dispatcher.
//
// The dispatcher evaluates one binary step at a time: Match(left, right)
// decodes left as a call expression and either binds right as the next
// argument of a registered atom or, when no atom has that name, looks
// right up as a record id in the collection named by left.
//
// DISPATCH:
//
//	left = "add"            right = "2"  ->  "add<:>[\"2\"]"   (partial)
//	left = "add<:>[\"2\"]"  right = "3"  ->  "5"               (complete)
//	left = "users"          right = "1"  ->  record users/1
//
// Each step binds exactly one argument. A call reaches its atom only when
// the bound argument count equals the atom's arity; until then the caller
// receives the re-encoded partial call and is expected to feed it back.
//
// STORAGE FALLBACK:
//
// An unknown name is a collection. The record with the requested id is
// returned if present, else the collection's default record ("?"), else
// the empty string. A collection that does not exist at all is an
// UNKNOWN_CALL error.
//
// CONCURRENCY:
//
// An Engine holds no mutable state. The registry is immutable and all
// writes go to the injected Storage, so concurrent Match calls are safe
// and ordering of writes is whatever the storage provides. Each step
// issues at most one storage or cipher call and waits for it.
package engine
