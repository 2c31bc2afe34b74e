package domain

import (
	"context"
	"encoding/json"
	"net/http"
)

// Request is the transport-neutral form of an inbound HTTP-shaped event.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    string
}

// QueryParam returns a query parameter, or "" when absent.
func (r Request) QueryParam(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query[name]
}

// Response is the transport-neutral result of handling a Request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// ErrorBody is the only shape of error payload returned to clients.
type ErrorBody struct {
	Error string `json:"error"`
}

// NewJSONResponse encodes payload as the body of a JSON response.
func NewJSONResponse(statusCode int, payload any) Response {
	body, err := json.Marshal(payload)
	if err != nil {
		// payloads are plain structs and maps; fall back to the generic error
		statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"` + MsgInternalServerError + `"}`)
	}
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// NewErrorResponse builds a {"error": message} response.
func NewErrorResponse(statusCode int, message string) Response {
	return NewJSONResponse(statusCode, ErrorBody{Error: message})
}

// Dispatcher handles a transport-neutral request. Runtime adapters (Lambda,
// net/http) translate their native requests and delegate to it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) Response
}
