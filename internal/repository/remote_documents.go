package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteDocuments talks to a document API:
//
//	GET /v1/documents/{name} -> 200 body | 404
//	PUT /v1/documents/{name} <- body
//
// It never retries; callers own the retry policy.
type RemoteDocuments struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewRemoteDocuments(baseURL, token string, httpClient *http.Client) *RemoteDocuments {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &RemoteDocuments{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

func (r *RemoteDocuments) documentURL(name string) string {
	return r.baseURL + "/v1/documents/" + url.PathEscape(name)
}

func (r *RemoteDocuments) Load(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.documentURL(name), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	r.authorize(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load %s: status %d: %s", name, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func (r *RemoteDocuments) Save(ctx context.Context, name string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.documentURL(name), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	r.authorize(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("save %s: status %d: %s", name, resp.StatusCode, snippet(body))
	}
	return nil
}

func (r *RemoteDocuments) Close() error { return nil }

func (r *RemoteDocuments) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
