package queryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jacksonlee411/grc-console/pkg/constants"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

var (
	ErrInvalidRequest = serrors.NewError("QUERY_INVALID_REQUEST", "invalid query request", "Errors.Query.InvalidRequest")
	ErrTransport      = serrors.NewError("QUERY_TRANSPORT", "query transport failed", "Errors.Query.Transport")
	ErrStatus         = serrors.NewError("QUERY_STATUS", "query endpoint returned an error", "Errors.Query.Status")
	ErrDecode         = serrors.NewError("QUERY_DECODE", "malformed query response", "Errors.Query.Decode")
)

var tracer = otel.Tracer("grc-console-queryapi")

const maxErrorBody = 512

type HTTPClientOptions struct {
	BaseURL    string
	QueryPath  string
	Timeout    time.Duration
	AuthToken  string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

type HTTPClient struct {
	endpoint  string
	authToken string
	http      *http.Client
	log       *logrus.Entry
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	path := opts.QueryPath
	if path == "" {
		path = "/query"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPClient{
		endpoint:  strings.TrimRight(opts.BaseURL, "/") + path,
		authToken: opts.AuthToken,
		http:      hc,
		log:       logger.WithField("component", "queryapi"),
	}
}

func (c *HTTPClient) MakeRequest(ctx context.Context, req Request) (Response, error) {
	if err := constants.Validate.Struct(req); err != nil {
		return nil, serrors.Wrap(ErrInvalidRequest, err)
	}

	ctx, span := tracer.Start(ctx, "queryapi.MakeRequest")
	defer span.End()
	types := make([]string, 0, len(req.Data))
	for _, q := range req.Data {
		types = append(types, q.Type)
	}
	span.SetAttributes(attribute.StringSlice("query.types", types))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, serrors.Wrap(ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, serrors.Wrap(ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Requested-By", "GGRC")
	if token := authTokenFrom(ctx, c.authToken); token != "" {
		httpReq.Header.Set("Authorization", token)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, serrors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()

	log := c.log.WithFields(logrus.Fields{
		"types":    types,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WithField("body", string(snippet)).Warn("query request failed")
		span.SetStatus(codes.Error, resp.Status)
		return nil, serrors.Wrap(ErrStatus, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		span.RecordError(err)
		return nil, serrors.Wrap(ErrDecode, errors.Wrap(err, "decode response"))
	}
	if len(out) != len(req.Data) {
		return nil, serrors.Wrap(ErrDecode, fmt.Errorf("expected %d results, got %d", len(req.Data), len(out)))
	}
	log.Debug("query request completed")
	return out, nil
}

type authTokenKey struct{}

// WithAuthToken makes MakeRequest forward token instead of the static one;
// the HTTP layer uses it to pass the caller's credentials upstream.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey{}, token)
}

func authTokenFrom(ctx context.Context, fallback string) string {
	if token, ok := ctx.Value(authTokenKey{}).(string); ok && token != "" {
		return token
	}
	return fallback
}

// AuthTokenFromContext returns the token set by WithAuthToken, if any.
func AuthTokenFromContext(ctx context.Context) string {
	return authTokenFrom(ctx, "")
}
