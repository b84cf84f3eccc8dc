package wsproto

import "testing"

func TestComputeAcceptRFC6455Example(t *testing.T) {
	got := computeAccept("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDoHandshakeAccepts(t *testing.T) {
	req := "GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Protocol: binary\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"

	res, err := DoHandshake([]byte(req), nil)
	if err != nil {
		t.Fatalf("DoHandshake: %v", err)
	}
	if res.Accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("unexpected accept value: %s", res.Accept)
	}
	if !contains(string(res.Response), "101 Switching Protocols") {
		t.Fatalf("unexpected response: %s", res.Response)
	}
}

func TestDoHandshakeRejectsMissingProtocol(t *testing.T) {
	req := "GET / HTTP/1.1\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	if _, err := DoHandshake([]byte(req), nil); err == nil {
		t.Fatal("expected rejection when Sec-WebSocket-Protocol is missing")
	}
}

func TestDoHandshakeRejectsFragmentedRequest(t *testing.T) {
	req := "GET / HTTP/1.1\r\nSec-WebSocket-Key: x\r\n"
	if _, err := DoHandshake([]byte(req), nil); err == nil {
		t.Fatal("expected rejection of a request with no terminating blank line")
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
