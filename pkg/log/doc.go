// Package log provides structured logging for ago using zerolog.
//
// Init sets the global level and output format once at process start.
// WithComponent, WithInstance, and WithTemplate derive child loggers that
// tag every line with the field named, so daemon.log and an instance's own
// log file can be grepped by instance_id without parsing message text.
package log
