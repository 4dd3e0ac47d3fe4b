package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jacksonlee411/grc-console/pkg/constants"
	"github.com/jacksonlee411/grc-console/pkg/httpapi"
	"github.com/jacksonlee411/grc-console/pkg/routing"
)

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	// MaxBodyLength caps how many body bytes reach the log.
	MaxBodyLength int

	RequestIDHeader string
	// RealIPHeader falls back to request.RemoteAddr when absent.
	RealIPHeader string

	Entrypoint    string
	AllowlistPath string
	Repanic       bool
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLength:   512,
		RequestIDHeader: httpapi.RequestIDHeader,
		RealIPHeader:    "X-Real-IP",
	}
}

func (o LoggerOptions) realIP(r *http.Request) string {
	if ip, ok := clientAddr(r, o.RealIPHeader); ok {
		return ip
	}
	return r.RemoteAddr
}

func (o LoggerOptions) requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(o.RequestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

// UseLogger returns the request logger, or a standard logger entry outside a request.
func UseLogger(ctx context.Context) *logrus.Entry {
	if l, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok {
		return l
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// UseRequestID returns the id WithLogger assigned to the request.
func UseRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(constants.RequestIDKey).(string)
	return id, ok && id != ""
}

func isTextBody(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "json") ||
		strings.Contains(contentType, "x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "text/")
}

// peekBody reads up to limit bytes for logging and restores r.Body intact.
func peekBody(r *http.Request, limit int) (string, error) {
	if r.Body == nil || r.Body == http.NoBody || limit <= 0 {
		return "", nil
	}
	head := make([]byte, limit+1)
	n, err := io.ReadFull(r.Body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	head = head[:n]
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return truncate(string(head), limit), nil
}

// WithLogger assigns a request id, opens the request span, logs start and
// completion, and turns handler panics into a 500 shaped for the route class.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	rules, err := routing.LoadAllowlist(opts.AllowlistPath, opts.Entrypoint)
	if err != nil {
		logger.WithError(err).Debug("routing allowlist unavailable, classifying by path pattern")
	}
	classifier := routing.NewClassifier(rules)
	if opts.RequestIDHeader == "" {
		opts.RequestIDHeader = httpapi.RequestIDHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := opts.requestID(r)
			class := classifier.ClassifyPath(r.URL.Path)
			ip := opts.realIP(r)

			entry := logger.WithFields(logrus.Fields{
				"request-id":  requestID,
				"method":      r.Method,
				"path":        r.URL.Path,
				"route-class": class,
			})
			startFields := logrus.Fields{"ip": ip, "user-agent": r.UserAgent()}
			if r.URL.RawQuery != "" {
				startFields["query"] = r.URL.RawQuery
			}
			if opts.LogRequestBody && r.Method != http.MethodGet && isTextBody(r.Header.Get("Content-Type")) {
				if body, err := peekBody(r, opts.MaxBodyLength); err != nil {
					entry.WithError(err).Warn("request body unreadable")
				} else if body != "" {
					startFields["request-body"] = body
				}
			}
			entry.WithFields(startFields).Info("request started")

			ctx, span := startRequestSpan(r, w,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("http.request_id", requestID),
				attribute.String("http.route_class", string(class)),
				attribute.String("net.peer.ip", ip),
			)
			defer span.End()
			if sc := span.SpanContext(); sc.HasTraceID() {
				entry = entry.WithField("trace-id", sc.TraceID().String())
			}

			ctx = context.WithValue(ctx, constants.LoggerKey, entry)
			ctx = context.WithValue(ctx, constants.RequestStart, start)
			ctx = context.WithValue(ctx, constants.RequestIDKey, requestID)
			w.Header().Set(opts.RequestIDHeader, requestID)

			limit := 0
			if opts.LogResponseBody {
				limit = opts.MaxBodyLength
			}
			rec := newStatusRecorder(w, limit)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				span.SetStatus(codes.Error, "panic")
				entry.WithFields(logrus.Fields{
					"panic":    recovered,
					"stack":    string(debug.Stack()),
					"duration": time.Since(start),
				}).Error("panic recovered in request handler")
				if !rec.wroteHeader() {
					writePanicResponse(rec, r, class, requestID)
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.Status()
			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int("http.status_code", status),
				attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			done := logrus.Fields{"status-code": status, "duration": duration}
			if rec.body.Len() > 0 && isTextBody(rec.Header().Get("Content-Type")) {
				done["response-body"] = truncate(rec.body.String(), opts.MaxBodyLength)
			}
			level := logrus.InfoLevel
			if status >= http.StatusInternalServerError {
				level = logrus.ErrorLevel
			}
			entry.WithFields(done).Log(level, "request completed")
		})
	}
}

func writePanicResponse(w http.ResponseWriter, r *http.Request, class routing.RouteClass, requestID string) {
	if class == routing.RouteClassInternalAPI || class == routing.RouteClassOps {
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", map[string]string{
			"request_id": requestID,
			"path":       r.URL.Path,
		})
		return
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
