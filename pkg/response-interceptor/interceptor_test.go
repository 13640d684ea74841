package interceptor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(handler http.HandlerFunc, decide Decider) (*httptest.ResponseRecorder, *ResponseInterceptor) {
	rec := httptest.NewRecorder()
	ic := New(rec, decide)
	handler(ic, httptest.NewRequest("GET", "/", nil))
	ic.Finish()
	return rec, ic
}

func TestPassThrough(t *testing.T) {
	rec, ic := serve(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "Hello world")
	}, func(int, http.Header) Action { return PassThrough })

	if rec.Code != http.StatusAccepted || rec.Body.String() != "Hello world" {
		t.Fatalf("Response is %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type is %s", ct)
	}
	if len(ic.Body()) != 0 {
		t.Fatalf("Passed through body was captured: %s", ic.Body())
	}
}

func TestCaptureHoldsBackResponse(t *testing.T) {
	var seenStatus int
	rec, ic := serve(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "11")
		io.WriteString(w, "Hello ")
		io.WriteString(w, "world")
	}, func(status int, h http.Header) Action {
		seenStatus = status
		h.Del("Content-Length")
		return Capture
	})

	if seenStatus != http.StatusOK {
		t.Fatalf("Decider saw status %d", seenStatus)
	}
	if rec.Body.Len() != 0 || len(rec.Header()) != 0 {
		t.Fatalf("Captured response leaked to client: %v %s", rec.Header(), rec.Body.String())
	}
	if body := string(ic.Body()); body != "Hello world" {
		t.Fatalf("Captured body is %s", body)
	}
	if ic.Header().Get("Content-Length") != "" {
		t.Fatal("Decider header change lost")
	}
	if action := ic.Finish(); action != Capture || ic.StatusCode() != http.StatusOK {
		t.Fatalf("Action %s, status %d", action, ic.StatusCode())
	}
}

func TestDiscard(t *testing.T) {
	rec, ic := serve(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
		io.WriteString(w, "ignored")
	}, func(int, http.Header) Action { return Discard })

	if rec.Body.Len() != 0 || len(ic.Body()) != 0 {
		t.Fatal("Discarded body was kept")
	}
	if ic.StatusCode() != http.StatusNotModified {
		t.Fatalf("Status is %d", ic.StatusCode())
	}
}

func TestDecidesOnceForEmptyResponse(t *testing.T) {
	calls := 0
	_, ic := serve(func(w http.ResponseWriter, r *http.Request) {}, func(int, http.Header) Action {
		calls++
		return Capture
	})
	ic.Finish()
	if calls != 1 {
		t.Fatalf("Decider called %d times", calls)
	}
	if ic.StatusCode() != http.StatusOK {
		t.Fatalf("Status is %d", ic.StatusCode())
	}
}

func TestInformationalNotDecided(t *testing.T) {
	var statuses []int
	_, ic := serve(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusEarlyHints)
		w.WriteHeader(http.StatusOK)
	}, func(status int, _ http.Header) Action {
		statuses = append(statuses, status)
		return Capture
	})
	if len(statuses) != 1 || statuses[0] != http.StatusOK || ic.StatusCode() != http.StatusOK {
		t.Fatalf("Decided on %v", statuses)
	}
}

func TestFlushOnlyPassedThrough(t *testing.T) {
	for _, action := range []Action{PassThrough, Capture} {
		rec := httptest.NewRecorder()
		ic := New(rec, func(int, http.Header) Action { return action })
		io.WriteString(ic, "partial")
		if err := http.NewResponseController(ic).Flush(); err != nil {
			t.Fatal(err)
		}
		if rec.Flushed != (action == PassThrough) {
			t.Errorf("%s: flushed is %v", action, rec.Flushed)
		}
		if ic.Unwrap() != rec {
			t.Errorf("%s: unwrapped writer differs", action)
		}
	}
}
