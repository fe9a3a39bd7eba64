package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveToolCall(t *testing.T) {
	rec := New()

	rec.ObserveToolCall("gdocs_read", "success", 120*time.Millisecond)
	rec.ObserveToolCall("gdocs_read", "success", 80*time.Millisecond)
	rec.ObserveToolCall("gdocs_read", "error", time.Second)
	rec.ObserveToolCall("gdocs_search", "success", 10*time.Millisecond)

	tests := []struct {
		tool, status string
		want         float64
	}{
		{"gdocs_read", "success", 2},
		{"gdocs_read", "error", 1},
		{"gdocs_search", "success", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(rec.calls.WithLabelValues(tt.tool, tt.status)); got != tt.want {
			t.Errorf("calls{%s,%s} = %v, want %v", tt.tool, tt.status, got, tt.want)
		}
	}
	if got := testutil.CollectAndCount(rec.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestObserveToolCall_NilRecorder(t *testing.T) {
	var rec *Recorder
	rec.ObserveToolCall("gdocs_list", "success", time.Millisecond)
}

func TestHandler(t *testing.T) {
	rec := New()
	rec.ObserveToolCall("gdocs_list", "success", time.Millisecond)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{
		`gdocs_mcp_tool_calls_total{status="success",tool="gdocs_list"} 1`,
		"gdocs_mcp_tool_call_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServerRoutes(t *testing.T) {
	s := NewServer("127.0.0.1:0", New(), nil)
	if s.Addr() != "127.0.0.1:0" {
		t.Errorf("Addr() = %q", s.Addr())
	}

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/other", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q missing %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestServerStartShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", New(), nil)

	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	// Give ListenAndServe a moment; Shutdown works whether or not it has
	// started listening.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
