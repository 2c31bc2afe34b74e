package contextkeys

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for storing and retrieving a request ID.
	RequestIDKey contextKey = "request_id"

	// LambdaRequestIDKey holds the AWS request ID of the current Lambda invocation.
	LambdaRequestIDKey contextKey = "aws_request_id"

	// TraceIDKey holds the load balancer / API Gateway trace header, when present.
	TraceIDKey contextKey = "trace_id"
)

// String makes contextKey satisfy fmt.Stringer to help with debugging/logging of keys themselves.
func (c contextKey) String() string {
	return string(c)
}
