// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Transport is the byte-oriented I/O abstraction consumed by the
// WebSocket framing core (spec.md section 6). It mirrors POSIX
// read/write/writev semantics: a non-positive return paired with
// ErrWouldBlock or ErrInterrupted means "try again later", a zero byte
// count with a nil error means orderly EOF, and any other error is
// fatal to the stream.
//
// Concrete I/O transports (TCP, TLS, UNIX-domain sockets) are out of
// scope for this package; callers inject whatever Transport they have.

package api

// Transport is the minimal read/write/writev contract the framing core
// needs from the underlying connection.
type Transport interface {
	// Read reads up to len(p) bytes into p.
	Read(p []byte) (n int, err error)

	// Write writes up to len(p) bytes of p and returns how many were
	// written; a short count is allowed.
	Write(p []byte) (n int, err error)

	// Writev writes the concatenation of iovs, avoiding the extra copy
	// that Write(bytes.Join(iovs)) would require.
	Writev(iovs [][]byte) (n int, err error)
}

// RawFDTransport is optionally implemented by transports backed by an
// OS file descriptor, so a Channel can answer FirstSocket (spec.md
// section 4.6) without depending on any concrete transport package.
type RawFDTransport interface {
	Transport
	RawFD() uintptr
}
