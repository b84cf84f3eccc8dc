// Package wsproto
// Author: momentics <momentics@gmail.com>
//
// Implements the server-side WebSocket (RFC 6455) framing core: the HTTP
// Upgrade handshake, frame encoding/decoding, and a stateful Stream that
// shuttles opaque binary payloads between an injected api.Transport and
// the caller.
//
// Designed for a remote-desktop-style workload: only binary final frames
// are produced outbound, non-final continuation frames are forwarded as
// if they were binary (no message reassembly), and permessage-deflate,
// client-role framing, and PING/PONG generation are out of scope.
package wsproto
