package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clerkops/formbench/internal/home"
)

func testHome(t *testing.T) *home.Dir {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}
	return h
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := New(Config{Home: testHome(t)})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if s.Addr() != "127.0.0.1:8080" {
			t.Errorf("addr = %q, want 127.0.0.1:8080", s.Addr())
		}
		if s.IsRunning() {
			t.Error("new server reports running")
		}
	})

	t.Run("custom host and port", func(t *testing.T) {
		s, err := New(Config{Host: "0.0.0.0", Port: "3000", Home: testHome(t)})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if s.Addr() != "0.0.0.0:3000" {
			t.Errorf("addr = %q", s.Addr())
		}
	})

	t.Run("missing home", func(t *testing.T) {
		if _, err := New(Config{}); err == nil {
			t.Error("expected error without home directory")
		}
	})
}

func TestRequireInitBeforeStart(t *testing.T) {
	s, err := New(Config{Home: testHome(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Store and runner are only created in Start, so guarded routes
	// must refuse requests before then.
	handler := s.requireInit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/api/forms", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
