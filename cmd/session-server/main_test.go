package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"playroom/internal/config"
	httptransport "playroom/internal/transport/http"
)

type flusherRecorder struct {
	*httptest.ResponseRecorder
	flushed bool
}

func (f *flusherRecorder) Flush() {
	f.flushed = true
}

func TestBodyCaptureMiddlewarePreservesFlusher(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "no flusher", http.StatusInternalServerError)
			return
		}
		flusher.Flush()
		w.WriteHeader(http.StatusOK)
	})

	mw := httptransport.BodyCaptureMiddleware(4096)
	rec := &flusherRecorder{ResponseRecorder: httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/debug/vars", nil)
	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !rec.flushed {
		t.Fatal("expected flusher to be called")
	}
}

func TestBodyCaptureMiddlewareSkipsUpgrade(t *testing.T) {
	var sawOriginal bool
	rec := httptest.NewRecorder()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sawOriginal = w == http.ResponseWriter(rec)
		w.WriteHeader(http.StatusOK)
	})

	mw := httptransport.BodyCaptureMiddleware(4096)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/r1/live", nil)
	req.Header.Set("Upgrade", "websocket")
	mw(handler).ServeHTTP(rec, req)

	if !sawOriginal {
		t.Fatal("expected upgrade request to reach the handler with the original writer")
	}
}

func TestOpenBackendMemory(t *testing.T) {
	st, closeFn, err := openBackend(context.Background(), config.ServerConfig{StoreBackend: "memory"})
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer closeFn()
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenBackendRejectsUnknown(t *testing.T) {
	if _, _, err := openBackend(context.Background(), config.ServerConfig{StoreBackend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
