// Package control implements ago's control server (SPEC_FULL.md §4.6): a
// single well-known Unix socket, one accepted connection per request, a
// closed static dispatch table keyed on Request.Op, and one Response per
// request — or, for chat/logs/queues --follow, a sequence of Event frames
// terminated by a final Response. There is no RPC framework here: the wire
// format is pkg/codec's length-prefixed binary frames, chosen in place of
// the teacher's gRPC transport because spec.md §4.1 forbids both RPC
// framing and newline/JSON-delimited framing for exactly the payload sizes
// (large tool outputs, long conversation logs) this daemon moves.
//
// Every operation SPEC_FULL.md names in §4.6 has a handler registered in
// the dispatch table in dispatch.go; none are added dynamically, matching
// §9's "prefer a closed tagged-union of request types with a static
// dispatch table over open-polymorphism" note.
package control
