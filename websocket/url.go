package websocket

import "strings"

// defaultPortWS and defaultPortWSS are the implicit ports used when a
// ws:// or wss:// URL omits one, per RFC 6455 Section 3.
const (
	defaultPortWS  = "80"
	defaultPortWSS = "443"
)

// parsedURL is the result of splitting a ws:// or wss:// URL into the parts
// the transport and handshake engine need to dial and compose a request.
type parsedURL struct {
	host string
	port string
	path string
	tls  bool
}

// parseURL splits a WebSocket URL into host, port, path and a TLS flag.
//
// Only the ws:// and wss:// schemes are accepted (RFC 6455 Section 3);
// IPv6 literals, userinfo, query strings and fragments are not supported.
//
// The authority is the text before the first '/' (or the whole remainder
// if there is none). host is the authority up to its first ':' if present,
// else the whole authority; a ':' after the first '/' belongs to the path.
// port defaults to 80 (ws) or 443 (wss) when absent. path defaults to "/".
func parseURL(raw string) (parsedURL, error) {
	var rest string
	var u parsedURL

	switch {
	case strings.HasPrefix(raw, "wss://"):
		u.tls = true
		u.port = defaultPortWSS
		rest = raw[len("wss://"):]
	case strings.HasPrefix(raw, "ws://"):
		u.tls = false
		u.port = defaultPortWS
		rest = raw[len("ws://"):]
	default:
		return parsedURL{}, ErrInvalidURL
	}

	if rest == "" {
		return parsedURL{}, ErrInvalidURL
	}

	slash := strings.IndexByte(rest, '/')
	var authority string
	if slash == -1 {
		authority = rest
		u.path = "/"
	} else {
		authority = rest[:slash]
		u.path = rest[slash:]
	}

	if authority == "" {
		return parsedURL{}, ErrInvalidURL
	}

	if colon := strings.IndexByte(authority, ':'); colon != -1 {
		u.host = authority[:colon]
		u.port = authority[colon+1:]
		if u.host == "" || u.port == "" {
			return parsedURL{}, ErrInvalidURL
		}
	} else {
		u.host = authority
	}

	return u, nil
}
