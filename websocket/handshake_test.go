package websocket

import (
	"bufio"
	"errors"
	"strings"
	"testing"
)

func TestComputeAcceptKey_RFC6455Vector(t *testing.T) {
	// The worked example from RFC 6455 Section 1.3.
	got := computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("computeAcceptKey = %q, want %q", got, want)
	}
}

func TestNewClientKey_Unique(t *testing.T) {
	k1, err := newClientKey()
	if err != nil {
		t.Fatalf("newClientKey: %v", err)
	}
	k2, err := newClientKey()
	if err != nil {
		t.Fatalf("newClientKey: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("two calls returned the same key: %q", k1)
	}
	if len(k1) == 0 {
		t.Fatalf("empty client key")
	}
}

func TestComposeHandshakeRequest_MandatoryHeaders(t *testing.T) {
	u := parsedURL{host: "example.com", port: "80", path: "/chat"}
	var headers headerTable
	headers.put("X-Custom", "value")

	req := string(composeHandshakeRequest(u, "dGhlIHNhbXBsZSBub25jZQ==", "chat.v1", &headers))

	mustContain := []string{
		"GET /chat HTTP/1.1\r\n",
		"Host: example.com:80\r\n",
		"Connection: Upgrade\r\n",
		"Upgrade: websocket\r\n",
		"Sec-WebSocket-Version: 13\r\n",
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n",
		"Sec-WebSocket-Protocol: chat.v1\r\n",
		"X-Custom: value\r\n",
	}
	for _, want := range mustContain {
		if !strings.Contains(req, want) {
			t.Fatalf("request missing %q; full request:\n%s", want, req)
		}
	}
	if !strings.HasSuffix(req, "\r\n\r\n") {
		t.Fatalf("request does not end with blank line: %q", req)
	}
}

func TestComposeHandshakeRequest_OmitsSubprotocolWhenEmpty(t *testing.T) {
	u := parsedURL{host: "h", port: "80", path: "/"}
	req := string(composeHandshakeRequest(u, "key", "", nil))
	if strings.Contains(req, "Sec-WebSocket-Protocol") {
		t.Fatalf("unexpected subprotocol header in request:\n%s", req)
	}
}

func buildHandshakeResponse(key string, extra ...string) string {
	accept := computeAcceptKey(key)
	lines := []string{
		"HTTP/1.1 101 Switching Protocols\r\n",
		"Upgrade: websocket\r\n",
		"Connection: Upgrade\r\n",
		"Sec-WebSocket-Accept: " + accept + "\r\n",
	}
	lines = append(lines, extra...)
	lines = append(lines, "\r\n")
	return strings.Join(lines, "")
}

func TestReadHandshakeResponse_Success(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	raw := buildHandshakeResponse(key, "Sec-WebSocket-Protocol: chat.v1\r\n")

	res, err := readHandshakeResponse(bufio.NewReader(strings.NewReader(raw)), key)
	if err != nil {
		t.Fatalf("readHandshakeResponse: %v", err)
	}
	if res.subprotocol != "chat.v1" {
		t.Fatalf("subprotocol = %q, want %q", res.subprotocol, "chat.v1")
	}
}

func TestReadHandshakeResponse_WrongStatusLine(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n\r\n"
	_, err := readHandshakeResponse(bufio.NewReader(strings.NewReader(raw)), "key")
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("got %v, want ErrConnectFailed", err)
	}
}

func TestReadHandshakeResponse_BadAccept(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: not-the-right-value\r\n\r\n"

	_, err := readHandshakeResponse(bufio.NewReader(strings.NewReader(raw)), key)
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("got %v, want ErrConnectFailed", err)
	}
}

func TestReadHandshakeResponse_MissingUpgradeHeader(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	accept := computeAcceptKey(key)
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"

	_, err := readHandshakeResponse(bufio.NewReader(strings.NewReader(raw)), key)
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("got %v, want ErrConnectFailed", err)
	}
}

func TestReadHandshakeResponse_StopsAtBlankLine(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	raw := buildHandshakeResponse(key) + "this is already a websocket frame, not a header"

	r := bufio.NewReader(strings.NewReader(raw))
	if _, err := readHandshakeResponse(r, key); err != nil {
		t.Fatalf("readHandshakeResponse: %v", err)
	}

	rest := make([]byte, len("this is already a websocket frame, not a header"))
	if _, err := r.Read(rest); err != nil {
		t.Fatalf("reading past header block: %v", err)
	}
	if string(rest) != "this is already a websocket frame, not a header" {
		t.Fatalf("handshake reader consumed bytes past the blank line: %q", rest)
	}
}

func TestHeaderContainsToken(t *testing.T) {
	tests := []struct {
		header, token string
		want          bool
	}{
		{"websocket", "websocket", true},
		{"Websocket", "websocket", false},
		{"keep-alive, Upgrade", "upgrade", false},
		{"keep-alive, upgrade", "upgrade", true},
		{"upgrade", "websocket", false},
		{"", "websocket", false},
	}
	for _, tt := range tests {
		if got := headerContainsToken(tt.header, tt.token); got != tt.want {
			t.Fatalf("headerContainsToken(%q, %q) = %v, want %v", tt.header, tt.token, got, tt.want)
		}
	}
}
