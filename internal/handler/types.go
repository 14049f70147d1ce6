package handler

import (
	"strings"

	"github.com/zynqcloud/assetvault/internal/assets"
)

// Request is the HTTP Responder's request shape, per spec.md §4.3/§6: a
// method-agnostic URL (path?query), request headers, and the method, which
// Respond does not consult. The request body is not carried.
type Request struct {
	URL     string
	Headers []assets.Header
	Method  string
}

// Response is the HTTP Responder's response shape, per spec.md §4.3/§6.
// StreamToken is set only when the body was truncated to MaxResponseBytes
// and a continuation covers the remainder.
type Response struct {
	StatusCode  int
	Headers     []assets.Header
	Body        []byte
	StreamToken *ContinuationToken
}

// ContinuationToken is the opaque (to clients) state carried between a
// truncated response and the streaming callback, per spec.md §3/§4.3:
// 0 ≤ NextOffset ≤ FinalOffset ≤ file size.
type ContinuationToken struct {
	Path        string `json:"path"`
	NextOffset  uint64 `json:"next_offset"`
	FinalOffset uint64 `json:"final_offset"`
}

func headerGet(headers []assets.Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
