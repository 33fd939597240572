// Package client provides a Go client library for ago's control socket.
//
// It wraps pkg/codec's length-prefixed framing with one method per
// control operation (pkg/control's dispatch table), so cmd/ago and any
// other Go caller never construct a Request by hand. Connection
// management mirrors the control server's own contract: one Unix socket
// dial per call, one Request written, one Response (or Event stream then
// a terminal Response, for Chat/Logs/Queues) read back, then close —
// there is no persistent connection or connection pool, since local Unix
// socket dials are cheap and the daemon itself never multiplexes more
// than one request per connection.
package client
