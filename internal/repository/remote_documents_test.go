package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func newDocumentServer(t *testing.T, token string) (*httptest.Server, map[string]string) {
	t.Helper()
	var mu sync.Mutex
	stored := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			body, ok := stored[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = io.WriteString(w, body)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			stored[name] = string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, stored
}

func TestRemoteDocumentsRoundTrip(t *testing.T) {
	srv, stored := newDocumentServer(t, "secret")
	docs := NewRemoteDocuments(srv.URL+"/", "secret", srv.Client())
	ctx := context.Background()

	data, err := docs.Load(ctx, "questions")
	if err != nil || data != nil {
		t.Fatalf("expected missing document, got %q, %v", data, err)
	}
	if err := docs.Save(ctx, "questions", []byte(`{"version":"1.0"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if stored["questions"] != `{"version":"1.0"}` {
		t.Fatalf("server did not receive body: %v", stored)
	}
	data, err = docs.Load(ctx, "questions")
	if err != nil || string(data) != `{"version":"1.0"}` {
		t.Fatalf("Load: %q, %v", data, err)
	}
}

func TestRemoteDocumentsSurfacesErrors(t *testing.T) {
	srv, _ := newDocumentServer(t, "secret")
	docs := NewRemoteDocuments(srv.URL, "wrong", srv.Client())

	if _, err := docs.Load(context.Background(), "tasks"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if err := docs.Save(context.Background(), "tasks", []byte("{}")); err == nil {
		t.Fatalf("expected save error")
	}
}
