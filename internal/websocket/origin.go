package websocket

import (
	"fmt"
	"net/url"
)

// HostOriginValidator accepts http(s) origins whose host is the dev server
// itself, a loopback alias of it, or one of the extra allowed hosts.
type HostOriginValidator struct {
	allowed map[string]struct{}
}

// NewHostOriginValidator builds a validator for a server bound to host:port.
func NewHostOriginValidator(host string, port int, extra ...string) *HostOriginValidator {
	v := &HostOriginValidator{allowed: make(map[string]struct{})}
	for _, h := range []string{host, "localhost", "127.0.0.1"} {
		v.allowed[fmt.Sprintf("%s:%d", h, port)] = struct{}{}
	}
	for _, h := range extra {
		v.allowed[h] = struct{}{}
	}
	return v
}

// IsAllowedOrigin implements OriginValidator.
func (v *HostOriginValidator) IsAllowedOrigin(origin string) bool {
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}
	_, ok := v.allowed[originURL.Host]
	return ok
}
