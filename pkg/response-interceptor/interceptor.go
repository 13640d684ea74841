// Package interceptor provides an http.ResponseWriter that lets a middleware
// observe a response before anything reaches the client, and decide whether to
// let it through, buffer it, or replace it.
package interceptor

import (
	"bytes"
	"net/http"
)

// Action is what the interceptor does with a response once its header is known.
type Action int

const (
	// PassThrough writes status, headers and body straight to the client.
	PassThrough Action = iota
	// Capture buffers the body. Nothing is sent; the caller completes the response.
	Capture
	// Discard drops the body. Nothing is sent; the caller writes a replacement.
	Discard
)

func (a Action) String() string {
	switch a {
	case PassThrough:
		return "pass-through"
	case Capture:
		return "capture"
	case Discard:
		return "discard"
	}
	return "unknown"
}

// Decider is called exactly once, when the wrapped handler commits its status code.
// It may modify the header before it is sent.
type Decider func(statusCode int, header http.Header) Action

// ResponseInterceptor is a wrapper around http.ResponseWriter that holds back
// the response until a Decider has classified it.
type ResponseInterceptor struct {
	rw          http.ResponseWriter
	decide      Decider
	header      http.Header
	b           *bytes.Buffer
	status      int
	action      Action
	wroteHeader bool
}

// New returns a new ResponseInterceptor writing to w.
func New(w http.ResponseWriter, decide Decider) *ResponseInterceptor {
	return &ResponseInterceptor{
		rw:     w,
		decide: decide,
		header: http.Header{},
		b:      &bytes.Buffer{},
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseInterceptor) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseInterceptor) WriteHeader(statusCode int) {
	if t.wroteHeader {
		return
	}
	// informational responses are not final, let them through untouched
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		copyHeader(t.rw.Header(), t.header)
		t.rw.WriteHeader(statusCode)
		return
	}
	t.wroteHeader = true
	t.status = statusCode
	t.action = t.decide(statusCode, t.header)
	if t.action == PassThrough {
		copyHeader(t.rw.Header(), t.header)
		t.rw.WriteHeader(statusCode)
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseInterceptor) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	switch t.action {
	case PassThrough:
		return t.rw.Write(b)
	case Capture:
		return t.b.Write(b)
	}
	return len(b), nil
}

// Flush implements http.Flusher. Held back responses are not flushed.
func (t *ResponseInterceptor) Flush() {
	if t.wroteHeader && t.action == PassThrough {
		if f, ok := t.rw.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// Unwrap returns the underlying writer, for use with http.ResponseController.
func (t *ResponseInterceptor) Unwrap() http.ResponseWriter {
	return t.rw
}

// Finish commits an implicit 200 if the wrapped handler wrote nothing at all,
// and returns the action taken.
func (t *ResponseInterceptor) Finish() Action {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	return t.action
}

// StatusCode returns the status code written by the wrapped handler.
func (t *ResponseInterceptor) StatusCode() int {
	return t.status
}

// Body returns the captured body.
func (t *ResponseInterceptor) Body() []byte {
	return t.b.Bytes()
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
}
