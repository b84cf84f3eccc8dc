// File: tests/interop_test.go
// Author: momentics <momentics@gmail.com>
//
// Black-box wire-compatibility check: a real gorilla/websocket client
// performs the RFC 6455 handshake and reads a frame produced by this
// module's server-side handshake and Stream implementation. Isolated in
// its own module, mirroring the teacher's own nested tests/go.mod.

package tests

import (
	"bytes"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/momentics/deskstream-ws/wsproto"
)

type netTransport struct {
	conn net.Conn
}

func (t *netTransport) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (t *netTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *netTransport) Writev(iovs [][]byte) (int, error) {
	total := 0
	for _, iov := range iovs {
		n, err := t.conn.Write(iov)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestInteropWithGorillaClient(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	payload := []byte("hello from deskstream-ws")
	serverDone := make(chan error, 1)

	go func() {
		transport := &netTransport{conn: serverConn}
		result, err := wsproto.DoHandshake(nil, transport.Read)
		if err != nil {
			serverDone <- err
			return
		}
		if _, err := transport.Write(result.Response); err != nil {
			serverDone <- err
			return
		}
		stream := wsproto.NewStream(transport)
		if _, err := stream.Write(payload); err != nil {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	u := url.URL{Scheme: "ws", Host: "test", Path: "/"}
	header := make(map[string][]string)
	header["Sec-WebSocket-Protocol"] = []string{"binary"}

	conn, _, err := websocket.NewClient(clientConn, &u, header, 4096, 4096)
	if err != nil {
		t.Fatalf("client handshake failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("expected binary message, got %d", msgType)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("payload mismatch: got %q want %q", data, payload)
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server side failed: %v", err)
	}
}
