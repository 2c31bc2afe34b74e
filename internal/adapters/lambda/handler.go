package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
	"gitlab.com/timkado/api/prebid-cache-service/pkg/contextkeys"
)

const traceHeader = "x-amzn-trace-id"

// Handler adapts Lambda events from an ALB target group or an API Gateway
// proxy integration to the router.
type Handler struct {
	dispatcher domain.Dispatcher
	logger     domain.Logger
}

// NewHandler creates a new Handler.
func NewHandler(dispatcher domain.Dispatcher, logger domain.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// eventProbe is decoded first to tell the event sources apart.
type eventProbe struct {
	RequestContext struct {
		ELB *struct {
			TargetGroupArn string `json:"targetGroupArn"`
		} `json:"elb"`
	} `json:"requestContext"`
}

// Invoke is the Lambda entrypoint. It answers ALB events with an ALB response
// and anything else as an API Gateway proxy event.
func (h *Handler) Invoke(ctx context.Context, payload json.RawMessage) (any, error) {
	var probe eventProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		h.logger.Error(ctx, "Failed to decode invocation payload", "error", err)
		return nil, fmt.Errorf("failed to decode invocation payload: %w", err)
	}

	if probe.RequestContext.ELB != nil {
		var event events.ALBTargetGroupRequest
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to decode ALB event: %w", err)
		}
		return h.HandleALB(ctx, event), nil
	}

	var event events.APIGatewayProxyRequest
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode API Gateway event: %w", err)
	}
	return h.HandleAPIGateway(ctx, event), nil
}

// HandleALB serves an ALB target group event.
func (h *Handler) HandleALB(ctx context.Context, event events.ALBTargetGroupRequest) events.ALBTargetGroupResponse {
	multiValue := event.MultiValueHeaders != nil || event.MultiValueQueryStringParameters != nil

	headers := event.Headers
	if multiValue {
		headers = firstValues(event.MultiValueHeaders)
	}
	// ALB forwards query strings exactly as received, still percent-encoded.
	query := event.QueryStringParameters
	if multiValue {
		query = firstValues(event.MultiValueQueryStringParameters)
	}

	body, err := decodeBody(event.Body, event.IsBase64Encoded)
	if err != nil {
		h.logger.Warn(ctx, "Failed to decode base64 request body", "error", err)
	}

	ctx = h.withRequestContext(ctx, headers)
	resp := h.dispatcher.Dispatch(ctx, domain.Request{
		Method:  event.HTTPMethod,
		Path:    event.Path,
		Query:   unescapeAll(query),
		Headers: headers,
		Body:    body,
	})

	out := events.ALBTargetGroupResponse{
		StatusCode:        resp.StatusCode,
		StatusDescription: fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Body:              resp.Body,
	}
	if multiValue {
		out.MultiValueHeaders = toMultiValue(resp.Headers)
	} else {
		out.Headers = resp.Headers
	}
	return out
}

// HandleAPIGateway serves an API Gateway REST proxy event.
func (h *Handler) HandleAPIGateway(ctx context.Context, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := decodeBody(event.Body, event.IsBase64Encoded)
	if err != nil {
		h.logger.Warn(ctx, "Failed to decode base64 request body", "error", err)
	}

	query := event.QueryStringParameters
	if query == nil && event.MultiValueQueryStringParameters != nil {
		query = firstValues(event.MultiValueQueryStringParameters)
	}

	ctx = h.withRequestContext(ctx, event.Headers)
	resp := h.dispatcher.Dispatch(ctx, domain.Request{
		Method:  event.HTTPMethod,
		Path:    event.Path,
		Query:   query,
		Headers: event.Headers,
		Body:    body,
	})

	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

func (h *Handler) withRequestContext(ctx context.Context, headers map[string]string) context.Context {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		ctx = context.WithValue(ctx, contextkeys.LambdaRequestIDKey, lc.AwsRequestID)
	}
	for name, value := range headers {
		if strings.EqualFold(name, traceHeader) && value != "" {
			ctx = context.WithValue(ctx, contextkeys.TraceIDKey, value)
			break
		}
	}
	return ctx
}

// decodeBody returns the raw body even when base64 decoding fails, so the
// handlers can reject it as an invalid body.
func decodeBody(body string, isBase64 bool) (string, error) {
	if !isBase64 || body == "" {
		return body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return body, err
	}
	return string(decoded), nil
}

func firstValues(m map[string][]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, values := range m {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}
	return out
}

func toMultiValue(m map[string]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = []string{v}
	}
	return out
}

func unescapeAll(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		out[key] = val
	}
	return out
}
