package objects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

var (
	ErrNotFound      = serrors.NewError("OBJECT_NOT_FOUND", "object not found", "Errors.Object.NotFound")
	ErrConflict      = serrors.NewError("OBJECT_CONFLICT", "object was modified by someone else", "Errors.Object.Conflict")
	ErrTransport     = serrors.NewError("OBJECT_TRANSPORT", "object request failed", "Errors.Object.Transport")
	ErrUnexpected    = serrors.NewError("OBJECT_UNEXPECTED_STATUS", "object endpoint returned an error", "Errors.Object.Status")
	ErrMalformedBody = serrors.NewError("OBJECT_MALFORMED", "malformed object payload", "Errors.Object.Malformed")
)

var tracer = otel.Tracer("grc-console-objects")

// Version identifies the server revision of an object; the server requires it
// on destructive requests.
type Version struct {
	ETag         string
	LastModified string
}

type ClientOptions struct {
	BaseURL    string
	APIPrefix  string
	Timeout    time.Duration
	AuthToken  string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client talks to the GGRC REST object API.
type Client struct {
	base      string
	authToken string
	http      *http.Client
	log       *logrus.Entry
}

func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		base:      strings.TrimRight(opts.BaseURL, "/") + "/" + strings.Trim(prefix, "/"),
		authToken: opts.AuthToken,
		http:      hc,
		log:       logger.WithField("component", "objects"),
	}
}

func (c *Client) objectURL(typ string, id int64) string {
	return fmt.Sprintf("%s/%s/%d", c.base, instance.RootCollection(typ), id)
}

func (c *Client) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, serrors.Wrap(ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-By", "GGRC")
	token := queryapi.AuthTokenFromContext(ctx)
	if token == "" {
		token = c.authToken
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return serrors.Wrap(ErrNotFound, cause)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return serrors.Wrap(ErrConflict, cause)
	default:
		return serrors.Wrap(ErrUnexpected, cause)
	}
}

// Get loads one object. The payload may be the bare object or wrapped in a
// single-key envelope such as {"relationship": {...}}.
func (c *Client) Get(ctx context.Context, typ string, id int64) (*instance.Instance, Version, error) {
	ctx, span := tracer.Start(ctx, "objects.Get")
	defer span.End()
	span.SetAttributes(attribute.String("object.type", typ), attribute.Int64("object.id", id))

	req, err := c.newRequest(ctx, http.MethodGet, c.objectURL(typ, id))
	if err != nil {
		return nil, Version{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, "transport")
		return nil, Version{}, serrors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return nil, Version{}, statusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Version{}, serrors.Wrap(ErrTransport, err)
	}
	inst, err := decodeObject(raw)
	if err != nil {
		return nil, Version{}, err
	}
	if inst.Type == "" {
		inst.Type = typ
	}
	return inst, Version{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

func decodeObject(raw []byte) (*instance.Instance, error) {
	var inst instance.Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, serrors.Wrap(ErrMalformedBody, errors.Wrap(err, "decode object"))
	}
	if inst.ID != 0 {
		return &inst, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope) != 1 {
		return nil, serrors.Wrap(ErrMalformedBody, fmt.Errorf("object payload without id"))
	}
	for _, body := range envelope {
		var wrapped instance.Instance
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, serrors.Wrap(ErrMalformedBody, errors.Wrap(err, "decode wrapped object"))
		}
		if wrapped.ID == 0 {
			return nil, serrors.Wrap(ErrMalformedBody, fmt.Errorf("object payload without id"))
		}
		return &wrapped, nil
	}
	return nil, serrors.Wrap(ErrMalformedBody, fmt.Errorf("empty object payload"))
}

// Delete removes one object. cascade asks the server to also remove the
// automappings created through it.
func (c *Client) Delete(ctx context.Context, typ string, id int64, version Version, cascade bool) error {
	ctx, span := tracer.Start(ctx, "objects.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("object.type", typ),
		attribute.Int64("object.id", id),
		attribute.Bool("object.cascade", cascade),
	)

	target := c.objectURL(typ, id)
	if cascade {
		target += "?" + url.Values{"cascade": []string{"true"}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodDelete, target)
	if err != nil {
		return err
	}
	if version.ETag != "" {
		req.Header.Set("If-Match", version.ETag)
	}
	if version.LastModified != "" {
		req.Header.Set("If-Unmodified-Since", version.LastModified)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, "transport")
		return serrors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return statusError(resp)
	}
	c.log.WithFields(logrus.Fields{"type": typ, "id": id, "cascade": cascade}).Info("object deleted")
	return nil
}

// Ping checks that the object API answers. Any status below 500 counts as up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.base)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return serrors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}
