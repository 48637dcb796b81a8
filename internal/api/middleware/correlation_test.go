package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func runCorrelation(t *testing.T, mutate func(*http.Request)) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var captured string
	handler := Correlation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestCorrelationPrefersCorrelationHeader(t *testing.T) {
	rec, id := runCorrelation(t, func(r *http.Request) {
		r.Header.Set(HeaderCorrelationID, "corr-1")
		r.Header.Set(HeaderRequestID, "req-1")
	})

	if id != "corr-1" {
		t.Errorf("context correlation id = %q, want corr-1", id)
	}
	if got := rec.Header().Get(HeaderCorrelationID); got != "corr-1" {
		t.Errorf("%s = %q, want corr-1", HeaderCorrelationID, got)
	}
	if got := rec.Header().Get(HeaderRequestID); got != "corr-1" {
		t.Errorf("%s = %q, want corr-1", HeaderRequestID, got)
	}
}

func TestCorrelationFallsBackToRequestID(t *testing.T) {
	_, id := runCorrelation(t, func(r *http.Request) {
		r.Header.Set(HeaderRequestID, "req-7")
	})
	if id != "req-7" {
		t.Errorf("context correlation id = %q, want req-7", id)
	}
}

func TestCorrelationGeneratesWhenAbsent(t *testing.T) {
	rec, id := runCorrelation(t, nil)
	if id == "" {
		t.Fatal("expected a generated correlation id")
	}
	if got := rec.Header().Get(HeaderCorrelationID); got != id {
		t.Errorf("response header %q does not match context id %q", got, id)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:52113"
	if got := ClientIP(req); got != "192.0.2.7" {
		t.Errorf("ClientIP = %q, want 192.0.2.7", got)
	}

	req.RemoteAddr = "no-port-here"
	if got := ClientIP(req); got != "no-port-here" {
		t.Errorf("ClientIP = %q, want the raw remote addr", got)
	}
}
