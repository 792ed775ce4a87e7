// Package audit implements async event dispatching for authentication decisions.
//
// # Components
//
//   - [Event]: structured record with timestamp, type, subject, IP and metadata.
//   - [Sink]: event consumer (channel, JSON writer, zap logger, no-op, [SinkFunc]).
//   - [Dispatcher]: buffered relay that fans each event out to every sink, with
//     drop-if-full or block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. The Engine decides which
// events to emit. Events never carry tokens, secrets or credential hashes; the
// dispatcher masks metadata values whose keys look like credentials.
package audit
