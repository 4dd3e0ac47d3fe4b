package middleware

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"net/http"
)

// statusRecorder remembers the status and keeps at most limit bytes of the
// response body for the completion log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
	limit  int
	body   bytes.Buffer
}

func newStatusRecorder(w http.ResponseWriter, limit int) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, limit: limit}
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if room := w.limit - w.body.Len(); room > 0 {
		w.body.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) wroteHeader() bool {
	return w.status != 0
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("response writer does not support hijacking")
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
