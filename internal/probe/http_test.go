package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitHTTP_ImmediateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := WaitHTTP(context.Background(), srv.URL, 5*time.Second, 50*time.Millisecond); err != nil {
		t.Fatalf("WaitHTTP() error = %v", err)
	}
}

func TestWaitHTTP_RecoversFromServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := WaitHTTP(context.Background(), srv.URL, 5*time.Second, 20*time.Millisecond); err != nil {
		t.Fatalf("WaitHTTP() error = %v", err)
	}
	if hits.Load() < 3 {
		t.Fatalf("hits = %d, want at least 3", hits.Load())
	}
}

func TestWaitHTTP_BudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := WaitHTTP(context.Background(), srv.URL, 150*time.Millisecond, 30*time.Millisecond)
	if err == nil {
		t.Fatal("WaitHTTP() error = nil, want budget exhaustion")
	}
}

func TestWaitHTTP_ConnectionRefused(t *testing.T) {
	// Reserve a port, then close it so nothing answers.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := WaitHTTP(context.Background(), url, 150*time.Millisecond, 30*time.Millisecond)
	if err == nil {
		t.Fatal("WaitHTTP() error = nil, want connection failure")
	}
}

func TestWaitHTTP_ClientErrorNotSuccess(t *testing.T) {
	// A 404 or 401 is an answering socket but not a working endpoint.
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		err := WaitHTTP(context.Background(), srv.URL, 150*time.Millisecond, 30*time.Millisecond)
		srv.Close()
		if err == nil {
			t.Fatalf("WaitHTTP() error = nil for status %d, want failure", status)
		}
	}
}

func TestWaitHTTP_NonOKSuccessAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := WaitHTTP(context.Background(), srv.URL, 2*time.Second, 30*time.Millisecond); err != nil {
		t.Fatalf("WaitHTTP() error = %v", err)
	}
}
