// File: wsproto/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server-side HTTP Upgrade handshake. The caller passes in whatever
// prefix of the request it has already read plus a read callback; the
// handshake fills a fixed 4 KiB buffer with a single additional read and
// then validates it. A request that has not fully arrived in that one
// extra read fails the handshake — a documented limitation, not a retry
// loop (spec.md section 4.2 and section 9).

package wsproto

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/momentics/deskstream-ws/api"
)

const (
	webSocketGUID  = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	handshakeBufSize = 4096
)

// ReadFunc pulls more handshake bytes from the transport. It follows the
// same non-positive-return conventions as api.Transport.Read.
type ReadFunc func(p []byte) (int, error)

// HandshakeResult carries the bytes of the 101 response to write back to
// the client on acceptance.
type HandshakeResult struct {
	Response []byte
	Accept   string
}

// DoHandshake validates prefix (optionally topped up by a single call to
// read) against the acceptance rules in spec.md section 4.2 and, on
// success, computes the exact 101 Switching Protocols response.
func DoHandshake(prefix []byte, read ReadFunc) (*HandshakeResult, error) {
	buf := make([]byte, handshakeBufSize)
	n := copy(buf, prefix)

	if n < len(buf) && read != nil {
		m, err := read(buf[n:])
		n += m
		if err != nil && !api.IsRetryable(err) && m == 0 {
			return nil, api.ErrHandshakeInvalid
		}
	}

	req := buf[:n]

	if !bytes.HasPrefix(req, []byte("GET ")) {
		return nil, api.ErrHandshakeInvalid
	}
	if !bytes.HasSuffix(req, []byte("\r\n\r\n")) {
		// Either malformed, or the GET arrived fragmented across more
		// than one read — see spec.md section 9's documented limitation.
		return nil, api.ErrHandshakeInvalid
	}

	key, ok := headerValue(req, "Sec-WebSocket-Key")
	if !ok || key == "" {
		return nil, api.ErrHandshakeInvalid
	}

	proto, ok := headerValue(req, "Sec-WebSocket-Protocol")
	if !ok || !firstTokenIs(proto, "binary") {
		return nil, api.ErrHandshakeInvalid
	}

	accept := computeAccept(key)
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n" +
		"Sec-WebSocket-Protocol: binary\r\n\r\n"

	return &HandshakeResult{Response: []byte(resp), Accept: accept}, nil
}

// computeAccept implements RFC 6455 section 4.2.2:
// base64(SHA1(trim(key) + GUID)).
func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(strings.TrimSpace(key) + webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// headerValue scans req line-by-line (skipping the request line) for a
// header named name, case-insensitively, and returns its trimmed value.
func headerValue(req []byte, name string) (string, bool) {
	lines := strings.Split(string(req), "\r\n")
	for _, line := range lines[1:] {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		k := strings.TrimSpace(line[:idx])
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(line[idx+1:]), true
		}
	}
	return "", false
}

// firstTokenIs reports whether the first comma-separated, whitespace
// trimmed token of value equals want.
func firstTokenIs(value, want string) bool {
	first := value
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		first = value[:idx]
	}
	return strings.TrimSpace(first) == want
}
