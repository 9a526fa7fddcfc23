package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientDecodesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/thing":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"name":"ab-100"}`))
		case "/api/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"batch not found"}`))
		case "/api/broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("plain text failure"))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("success decodes into result", func(t *testing.T) {
		var resp struct {
			Name string `json:"name"`
		}
		if err := client.Get(ctx, "/api/thing", &resp); err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Name != "ab-100" {
			t.Errorf("name = %q, want %q", resp.Name, "ab-100")
		}
	})

	t.Run("error body surfaces server message", func(t *testing.T) {
		err := client.Get(ctx, "/api/missing", nil)
		if err == nil {
			t.Fatal("expected error for 404 response")
		}
		if !strings.Contains(err.Error(), "batch not found") {
			t.Errorf("error = %q, want it to contain the server message", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("error = %q, want it to contain the status code", err)
		}
	})

	t.Run("non-JSON error body passed through", func(t *testing.T) {
		err := client.Get(ctx, "/api/broken", nil)
		if err == nil {
			t.Fatal("expected error for 500 response")
		}
		if !strings.Contains(err.Error(), "plain text failure") {
			t.Errorf("error = %q, want raw body", err)
		}
	})

	t.Run("delete tolerates empty body", func(t *testing.T) {
		if err := client.Delete(ctx, "/api/other"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})
}

func TestClientSetsJSONContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.Post(context.Background(), "/api/thing", map[string]string{"k": "v"}, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
}
