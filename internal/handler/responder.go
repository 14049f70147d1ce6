// Package handler implements the HTTP Responder (spec.md §4.3): given a
// parsed request, resolves the path against the Asset Store, sets response
// headers, selects a byte window bounded by MaxResponseBytes, and emits a
// continuation token when the file exceeds that budget. It also wires the
// net/http route table (routes.go) that drives Respond/StreamNext from real
// requests.
package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/zynqcloud/assetvault/internal/assets"
)

// IndexRenderer is the external collaborator spec.md §4.3 step 2 names:
// given the current request headers and the store, it supplies the body for
// GET /. spec.md's Non-goals exclude designing this renderer ambitiously;
// Responder ships a minimal built-in one (below) and accepts a richer one
// through this seam.
type IndexRenderer interface {
	Render(headers []assets.Header, store *assets.Store) []byte
}

// plainIndexRenderer is the built-in IndexRenderer: a flat text listing of
// every stored path. It exists so Respond has a usable default without
// forcing every caller to supply one.
type plainIndexRenderer struct{}

func (plainIndexRenderer) Render(_ []assets.Header, store *assets.Store) []byte {
	files := store.List()
	var b strings.Builder
	b.WriteString("asset vault\n\n")
	for _, f := range files {
		fmt.Fprintf(&b, "%s\t%d bytes\t%s\n", f.Path, f.Size, f.HexDigest)
	}
	return []byte(b.String())
}

// Options configures a Responder. MaxResponseBytes and
// StoredHeadersOverrideControl come straight from internal/config.
type Options struct {
	MaxResponseBytes             uint64
	StoredHeadersOverrideControl bool
	Index                        IndexRenderer
}

// Responder implements spec.md §4.3. It is stateless across requests — all
// state lives in the Store — so the per-response ContinuationToken is the
// only state carried by the client between calls.
type Responder struct {
	store *assets.Store
	opts  Options
}

// NewResponder returns a Responder reading from store.
func NewResponder(store *assets.Store, opts Options) *Responder {
	if opts.Index == nil {
		opts.Index = plainIndexRenderer{}
	}
	return &Responder{store: store, opts: opts}
}

// Respond implements spec.md §4.3's respond(request) algorithm.
func (r *Responder) Respond(req Request) Response {
	rawPath, rawQuery, _ := strings.Cut(req.URL, "?")
	decodedPath := percentDecode(rawPath)
	decodedQuery := percentDecode(rawQuery)

	if decodedPath == "/" {
		return Response{
			StatusCode: http.StatusOK,
			Headers:    []assets.Header{{Name: "Content-Type", Value: "text/html; charset=utf-8"}},
			Body:       r.opts.Index.Render(req.Headers, r.store),
		}
	}

	file, payload, ok := r.store.Peek(decodedPath)
	if !ok {
		return notFound()
	}

	return r.serve(decodedPath, decodedQuery, req.Headers, file, payload)
}

// StreamNext implements spec.md §4.3's streamNext(token) continuation
// callback.
func (r *Responder) StreamNext(token ContinuationToken) (body []byte, next *ContinuationToken) {
	if token.NextOffset == token.FinalOffset {
		return nil, nil
	}

	_, payload, ok := r.store.Peek(token.Path)
	if !ok {
		// File deleted between requests — silent termination, per spec.md §4.3/§7.
		return nil, nil
	}

	served := min64(r.opts.MaxResponseBytes, token.FinalOffset-token.NextOffset)
	end := token.NextOffset + served
	body = payload[token.NextOffset:end]

	if end < token.FinalOffset {
		next = &ContinuationToken{Path: token.Path, NextOffset: end, FinalOffset: token.FinalOffset}
	}
	return body, next
}

// serve implements spec.md §4.3 step 4's setHeaders plus the body slice of
// step 5, for a path that resolved to a hit.
func (r *Responder) serve(decodedPath, decodedQuery string, reqHeaders []assets.Header, file assets.AssetFile, payload []byte) Response {
	headers := []assets.Header{
		{Name: "Accept-Ranges", Value: "bytes"},
	}

	if name, ok := attachmentName(decodedQuery); ok {
		if name == "" {
			name = path.Base(decodedPath)
		}
		headers = append(headers, assets.Header{
			Name:  "Content-Disposition",
			Value: fmt.Sprintf(`attachment; filename="%s"`, name),
		})
	}

	headers = append(headers, assets.Header{Name: "ETag", Value: fileETag(file)})

	if _, hasType := headerGet(file.Headers, "Content-Type"); !hasType {
		// Supplemental feature (SPEC_FULL.md §4.3): sniff a default
		// Content-Type from the payload when the uploader didn't set one,
		// the same net/http.DetectContentType technique teacher's
		// internal/store/dedup.go uses to classify uploads for dedup
		// eligibility — repurposed here to pick a response header instead.
		sniffLen := len(payload)
		if sniffLen > 512 {
			sniffLen = 512
		}
		headers = append(headers, assets.Header{
			Name:  "Content-Type",
			Value: http.DetectContentType(payload[:sniffLen]),
		})
	}

	controlHeaders := headers
	if r.opts.StoredHeadersOverrideControl {
		headers = append(append([]assets.Header{}, file.Headers...), controlHeaders...)
	} else {
		headers = append(append([]assets.Header{}, controlHeaders...), file.Headers...)
	}

	windowStart, windowEnd, rangeRequested := parseRange(reqHeaders, file.Size)

	status := http.StatusOK
	var streamToken *ContinuationToken

	served := windowEnd - windowStart
	if served > r.opts.MaxResponseBytes {
		served = r.opts.MaxResponseBytes
		streamToken = &ContinuationToken{
			Path:        decodedPath,
			NextOffset:  windowStart + served,
			FinalOffset: windowEnd,
		}
	}

	if rangeRequested {
		if windowStart+served < file.Size {
			status = http.StatusPartialContent
		}
		headers = append(headers, assets.Header{
			Name:  "Content-Range",
			Value: fmt.Sprintf("bytes %d-%d/%d", windowStart, windowEnd-1, file.Size),
		})
	}

	return Response{
		StatusCode:  status,
		Headers:     headers,
		Body:        payload[windowStart : windowStart+served],
		StreamToken: streamToken,
	}
}

func notFound() Response {
	return Response{
		StatusCode: http.StatusNotFound,
		Headers:    []assets.Header{{Name: "Content-Type", Value: "text/plain"}},
		Body:       []byte("Not found"),
	}
}

// percentDecode implements spec.md §4.3 step 1: percent-decode without ever
// failing the request. A string with a malformed escape is returned
// undecoded; decoded bytes that are not valid UTF-8 are kept as they are,
// with no replacement character substituted.
func percentDecode(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// attachmentName implements spec.md §4.3's "attachment=<name>(&…)" query
// match: returns (name, true) if the query string has an attachment
// parameter at all (name may be empty, meaning "use the path's last
// segment").
func attachmentName(query string) (string, bool) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", false
	}
	if _, ok := values["attachment"]; !ok {
		return "", false
	}
	return values.Get("attachment"), true
}

// fileETag renders file's digest as the lower-case hex ETag spec.md §4.3
// calls for.
func fileETag(file assets.AssetFile) string {
	return file.Digest.Encoded()
}

// parseRange implements spec.md §4.3's Range parsing: "bytes=<start>-<end>",
// first comma-separated range only, clamped into [0, size).
func parseRange(headers []assets.Header, size uint64) (windowStart, windowEnd uint64, requested bool) {
	value, ok := headerGet(headers, "range")
	if !ok {
		return 0, size, false
	}
	value = strings.TrimSpace(value)
	value, ok = strings.CutPrefix(value, "bytes=")
	if !ok {
		return 0, size, false
	}
	first, _, _ := strings.Cut(value, ",")

	startStr, endStr, hasDash := strings.Cut(first, "-")
	if !hasDash {
		return 0, size, false
	}

	start := uint64(0)
	if startStr != "" {
		if n, err := strconv.ParseUint(startStr, 10, 64); err == nil {
			start = n
		}
	}
	if size == 0 {
		start = 0
	} else if start >= size {
		start = size - 1
	}

	end := size - 1
	if endStr != "" {
		if n, err := strconv.ParseUint(endStr, 10, 64); err == nil {
			end = n
		}
	}
	if end < start {
		end = start
	}
	if end >= size {
		end = size - 1
	}

	return start, end + 1, true
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
