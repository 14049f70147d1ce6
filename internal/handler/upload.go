package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zynqcloud/assetvault/internal/assets"
	"github.com/zynqcloud/assetvault/internal/upload"
)

// List handles GET /v1/files — spec.md §6's list() operation.
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

// Upload handles POST /v1/uploads: one UploadingArg chunk per array element,
// applied in order (spec.md §5's ordering guarantee, §6's wire shape).
// A single object body is accepted as a one-element array.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var args []upload.Arg
	raw := json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &args); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		var one upload.Arg
		if err := json.Unmarshal(raw, &one); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		args = []upload.Arg{one}
	}

	for _, arg := range args {
		h.metrics.UploadsTotal.Add(1)
		d, hasDeclared := arg.Digest.Unpack()
		dedupHit := hasDeclared && h.assembler.TrustDeclaredHash && h.store.Exists(d)
		if dedupHit {
			h.metrics.DedupHits.Add(1)
		} else {
			h.metrics.DedupMisses.Add(1)
		}
		if err := h.assembler.Put(h.store, arg); err != nil {
			h.metrics.UploadsFailed.Add(1)
			if errors.Is(err, upload.ErrBadRequest) {
				writeError(w, http.StatusBadRequest, "bad upload chunk")
				return
			}
			h.logger.Error("upload: unexpected error", "path", arg.Path, "err", err)
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		h.logger.Info("upload: chunk applied",
			"path", arg.Path,
			"index", arg.Index,
			"size", arg.Size,
			"chunk_bytes", len(arg.Chunk),
			"digest", string(d),
			"dedup_hit", dedupHit,
		)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// Delete handles DELETE /v1/files?path=a&path=b — spec.md §6's
// delete([path]) operation: removes both the finished asset (if any) and any
// in-progress upload for each name, silently for names that are absent.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	paths := r.URL.Query()["path"]
	for _, p := range paths {
		h.store.Delete(p)
		h.assembler.CleanUploading(p)
		h.metrics.Deletes.Add(1)
		h.logger.Info("delete: path removed", "path", p)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /v1/files/{path...} by routing through the HTTP
// Responder, the same entry point POST /v1/http uses.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	decodedPath := "/" + r.PathValue("path")
	url := decodedPath
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}
	resp := h.responder.Respond(Request{
		URL:     url,
		Headers: headersFromHTTP(r.Header),
		Method:  r.Method,
	})
	writeResponse(w, resp)
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent {
		h.metrics.BytesServed.Add(int64(len(resp.Body)))
	}
}

// Index handles GET / by routing through the HTTP Responder.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	resp := h.responder.Respond(Request{URL: "/", Headers: headersFromHTTP(r.Header), Method: r.Method})
	writeResponse(w, resp)
}

// httpRequestWire is the JSON wire shape of spec.md §4.3/§6's HttpRequest,
// for POST /v1/http.
type httpRequestWire struct {
	URL     string          `json:"url"`
	Headers []assets.Header `json:"headers"`
	Method  string          `json:"method"`
}

type httpResponseWire struct {
	StatusCode  int                `json:"status_code"`
	Headers     []assets.Header    `json:"headers"`
	Body        []byte             `json:"body"`
	StreamToken *ContinuationToken `json:"stream_token,omitempty"`
}

// HTTPRequest handles POST /v1/http — the generic httpRequest(request) entry
// point from spec.md §4.3/§6, exposed verbatim for callers that prefer the
// specified HttpRequest/HttpResponse wire shapes over plain GET.
func (h *Handler) HTTPRequest(w http.ResponseWriter, r *http.Request) {
	var wire httpRequestWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp := h.responder.Respond(Request{URL: wire.URL, Headers: wire.Headers, Method: wire.Method})
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent {
		h.metrics.BytesServed.Add(int64(len(resp.Body)))
	}
	writeJSON(w, http.StatusOK, httpResponseWire{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Headers,
		Body:        resp.Body,
		StreamToken: resp.StreamToken,
	})
}

// Stream handles POST /v1/stream — spec.md §4.3/§6's
// httpStreamingCallback(token).
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	var token ContinuationToken
	if err := json.NewDecoder(r.Body).Decode(&token); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.metrics.StreamingContinuations.Add(1)
	body, next := h.responder.StreamNext(token)
	h.metrics.BytesServed.Add(int64(len(body)))
	writeJSON(w, http.StatusOK, map[string]any{
		"body":         body,
		"stream_token": next,
	})
}

func headersFromHTTP(h http.Header) []assets.Header {
	out := make([]assets.Header, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, assets.Header{Name: name, Value: v})
		}
	}
	return out
}

func writeResponse(w http.ResponseWriter, resp Response) {
	for _, h := range resp.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body) //nolint:errcheck
}
