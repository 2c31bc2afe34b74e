package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gitlab.com/timkado/api/prebid-cache-service/internal/application"
	"gitlab.com/timkado/api/prebid-cache-service/internal/domain"
	"gitlab.com/timkado/api/prebid-cache-service/pkg/safego"
)

const (
	CachePath  = "/cache"
	HealthPath = "/cache/health"

	uuidParam = "uuid"
)

// CacheOperations is what the router needs from the cache service.
type CacheOperations interface {
	Health(ctx context.Context) (application.HealthStatus, error)
	GetItem(ctx context.Context, key string) (application.RetrievedItem, error)
	ParsePutRequest(ctx context.Context, body string) (domain.PutBatch, error)
	PutItems(ctx context.Context, batch domain.PutBatch) ([]application.PutResult, error)
}

// Router dispatches transport-neutral requests to the cache handlers and is
// the last place any failure is turned into a response.
type Router struct {
	service CacheOperations
	logger  domain.Logger
}

// NewRouter creates a new Router.
func NewRouter(service CacheOperations, logger domain.Logger) *Router {
	return &Router{service: service, logger: logger}
}

// Dispatch handles one request. It never returns an error: unhandled
// failures, including panics, become a generic 500.
func (r *Router) Dispatch(ctx context.Context, req domain.Request) domain.Response {
	var (
		resp domain.Response
		err  error
	)
	if rec := safego.Call(ctx, r.logger, "RouterDispatch", func() {
		resp, err = r.route(ctx, req)
	}); rec != nil {
		return domain.NewErrorResponse(http.StatusInternalServerError, domain.MsgInternalServerError)
	}
	if err != nil {
		r.logger.Error(ctx, "Unexpected error", "path", req.Path, "method", req.Method, "error", err)
		return domain.NewErrorResponse(http.StatusInternalServerError, domain.MsgInternalServerError)
	}
	return resp
}

func (r *Router) route(ctx context.Context, req domain.Request) (domain.Response, error) {
	if req.Path == HealthPath {
		return r.handleHealth(ctx)
	}
	if req.Path != CachePath {
		return domain.NewErrorResponse(http.StatusNotFound, domain.MsgNotFound), nil
	}

	switch req.Method {
	case http.MethodGet:
		return r.handleGet(ctx, req)
	case http.MethodPost:
		return r.handlePost(ctx, req)
	default:
		return domain.NewErrorResponse(http.StatusMethodNotAllowed, domain.MsgMethodNotAllowed), nil
	}
}

func (r *Router) handleHealth(ctx context.Context) (domain.Response, error) {
	status, err := r.service.Health(ctx)
	if err != nil {
		return domain.Response{}, fmt.Errorf("health check failed: %w", err)
	}
	return domain.NewJSONResponse(http.StatusOK, status), nil
}

func (r *Router) handleGet(ctx context.Context, req domain.Request) (domain.Response, error) {
	key := req.QueryParam(uuidParam)
	if key == "" {
		return domain.NewErrorResponse(http.StatusBadRequest, domain.MsgMissingUUID), nil
	}

	item, err := r.service.GetItem(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrItemNotFound):
		return domain.NewErrorResponse(http.StatusNotFound, domain.MsgUUIDNotFound), nil
	case errors.Is(err, domain.ErrInvalidEncoding):
		return domain.NewErrorResponse(http.StatusInternalServerError, domain.MsgInvalidEncoding), nil
	case errors.Is(err, domain.ErrCorruptedEntry):
		return domain.NewErrorResponse(http.StatusInternalServerError, domain.MsgInvalidStructure), nil
	case errors.Is(err, domain.ErrCacheUnavailable):
		return domain.NewErrorResponse(http.StatusInternalServerError, domain.MsgCacheError), nil
	default:
		return domain.Response{}, err
	}

	return domain.Response{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Cache-Control": fmt.Sprintf("max-age=%d", item.MaxAge),
			"Content-Type":  item.Type.MIMEType(),
		},
		Body: string(item.Value),
	}, nil
}

type putResponse struct {
	Responses []application.PutResult `json:"responses"`
}

func (r *Router) handlePost(ctx context.Context, req domain.Request) (domain.Response, error) {
	batch, err := r.service.ParsePutRequest(ctx, req.Body)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMissingRequestBody):
		return domain.NewErrorResponse(http.StatusBadRequest, domain.MsgMissingBody), nil
	case errors.Is(err, domain.ErrInvalidRequestBody):
		return domain.NewErrorResponse(http.StatusBadRequest, domain.MsgInvalidBody), nil
	default:
		return domain.Response{}, err
	}

	results, err := r.service.PutItems(ctx, batch)
	if errors.Is(err, domain.ErrCacheUnavailable) {
		return domain.NewErrorResponse(http.StatusInternalServerError, domain.MsgCacheError), nil
	}
	if err != nil {
		return domain.Response{}, err
	}
	return domain.NewJSONResponse(http.StatusOK, putResponse{Responses: results}), nil
}
