// Package session provides the server-side session record and the keyed stores that
// persist it between requests.
//
// # Record encoding
//
// A [Record] is stored as a versioned JSON envelope. The record is an explicit struct:
// unknown keys found in storage are dropped on decode and never written back. Decoded
// records must satisfy [Record.Validate]; anything else is reported as corrupt or invalid.
//
// # Stores
//
// [Store] maps an opaque session id plus a key to a value. [RedisStore] keeps one Redis
// hash per session with a sliding TTL; [MemoryStore] is an in-process equivalent for
// development and tests. Typed helpers ([LoadRecord], [SaveRecord], [ClearRecord],
// [SaveRedirectPath], [TakeRedirectPath], [SaveLoginState], [TakeLoginState]) own the
// key names.
//
// # Architecture boundaries
//
// This package owns persistence and the record model. It does NOT decide whether a
// record is still usable for a request or call the token endpoint; those decisions
// belong to the Gate.
//
// # What this package must NOT do
//
//   - Import goGate, refresh, or middleware (no upward imports).
//   - Log or expose token values.
//   - Pass through unknown record fields.
package session
