package http

import (
	"errors"
	"io"
	"net/http"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
)

// MaxBodyBytes caps request bodies; ALB rejects Lambda payloads above 1 MB anyway.
const MaxBodyBytes = 1 << 20

// CacheHandler serves the cache routes over net/http using the same router
// as the Lambda runtime.
type CacheHandler struct {
	dispatcher domain.Dispatcher
	logger     domain.Logger
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(dispatcher domain.Dispatcher, logger domain.Logger) *CacheHandler {
	return &CacheHandler{dispatcher: dispatcher, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *CacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn(r.Context(), "Request body too large", "limit", tooLarge.Limit)
			writeResponse(w, domain.NewErrorResponse(http.StatusRequestEntityTooLarge, domain.MsgInvalidBody), h.logger, r)
			return
		}
		h.logger.Warn(r.Context(), "Failed to read request body", "error", err)
		writeResponse(w, domain.NewErrorResponse(http.StatusBadRequest, domain.MsgInvalidBody), h.logger, r)
		return
	}
	resp := h.dispatcher.Dispatch(r.Context(), ToDomainRequest(r, string(body)))
	writeResponse(w, resp, h.logger, r)
}

// ToDomainRequest keeps the first value of every query parameter and header.
func ToDomainRequest(r *http.Request, body string) domain.Request {
	query := make(map[string]string)
	for k, values := range r.URL.Query() {
		if len(values) > 0 {
			query[k] = values[0]
		}
	}
	headers := make(map[string]string, len(r.Header))
	for k, values := range r.Header {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}
	return domain.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   query,
		Headers: headers,
		Body:    body,
	}
}

func writeResponse(w http.ResponseWriter, resp domain.Response, logger domain.Logger, r *http.Request) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		logger.Error(r.Context(), "Failed to write response body", "error", err)
	}
}
