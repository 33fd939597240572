// Package codec implements the daemon's wire framing: a big-endian 32-bit
// length prefix followed by that many bytes of a tagged record body. It
// deliberately does not use newline- or JSON-boundary delimiting — an
// earlier design read newline-delimited JSON off the socket and failed
// with "incomplete input" on payloads that straddled a read buffer. A
// length prefix has no such failure mode.
package codec
