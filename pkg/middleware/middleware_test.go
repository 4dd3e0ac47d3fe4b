package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/jacksonlee411/grc-console/pkg/intl"
)

type testApp struct {
	bundle *i18n.Bundle
}

func (a testApp) Bundle() *i18n.Bundle            { return a.bundle }
func (a testApp) GetSupportedLanguages() []string { return []string{"en", "zh"} }

func TestProvideLocalizer(t *testing.T) {
	var got language.Tag
	var hasLocalizer bool
	h := ProvideLocalizer(testApp{bundle: intl.LoadBundle()})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = intl.UseLocale(r.Context())
		_, hasLocalizer = intl.UseLocalizer(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/issues/api/1", nil)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, hasLocalizer)
	require.Equal(t, language.Chinese, got)

	req = httptest.NewRequest(http.MethodGet, "/issues/api/1?lang=en", nil)
	req.Header.Set("Accept-Language", "zh")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, language.English, got)
	require.Equal(t, "en", rec.Header().Get("Content-Language"))

	req = httptest.NewRequest(http.MethodGet, "/issues/api/1?lang=12345", nil)
	req.Header.Set("Accept-Language", "zh")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, language.Chinese, got, "an unparsable lang falls back to Accept-Language")
}

type zhOnlyApp struct{ testApp }

func (zhOnlyApp) GetSupportedLanguages() []string { return []string{"zh"} }

func TestProvideLocalizer_FallsBackToFirstEnabledLanguage(t *testing.T) {
	var got language.Tag
	h := ProvideLocalizer(zhOnlyApp{testApp{bundle: intl.LoadBundle()}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = intl.UseLocale(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tree/api/1", nil))
	require.Equal(t, language.Chinese, got)
	require.Equal(t, "zh", rec.Header().Get("Content-Language"))
	require.Equal(t, "Accept-Language", rec.Header().Get("Vary"))
}

func TestWithLogger_RequestIDAndPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetLevel(logrus.DebugLevel)

	opts := DefaultLoggerOptions()
	opts.AllowlistPath = "does-not-exist.yaml"

	var seen string
	ok := WithLogger(logger, opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UseRequestID(r.Context())
		UseLogger(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/issues/api/1", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, req)
	require.Equal(t, "req-1", seen)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	require.Contains(t, buf.String(), "request completed")

	boom := WithLogger(logger, opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec = httptest.NewRecorder()
	boom.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/api/1/unmap", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])

	rec = httptest.NewRecorder()
	boom.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/controls/1", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestWithLogger_RequestBodyStaysReadable(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)

	opts := DefaultLoggerOptions()
	opts.MaxBodyLength = 8
	opts.AllowlistPath = "does-not-exist.yaml"

	var got string
	h := WithLogger(logger, opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(raw)
	}))
	req := httptest.NewRequest(http.MethodPost, "/person/api/validate", strings.NewReader(`{"person_id":"12345"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, `{"person_id":"12345"}`, got)
	require.Contains(t, buf.String(), "route-class=internal_api")
	require.Contains(t, buf.String(), `{\"person...`)
}
