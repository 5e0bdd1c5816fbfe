package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockGraphQL is an httptest server that records GraphQL requests and
// answers through respond.
type mockGraphQL struct {
	*httptest.Server

	mu       sync.Mutex
	requests []graphQLRequest
	headers  []http.Header

	respond func(req graphQLRequest) (int, string)
}

func newMockGraphQL(t *testing.T, respond func(req graphQLRequest) (int, string)) *mockGraphQL {
	t.Helper()
	m := &mockGraphQL{respond: respond}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("invalid request body: %v", err)
		}

		m.mu.Lock()
		m.requests = append(m.requests, req)
		m.headers = append(m.headers, r.Header.Clone())
		m.mu.Unlock()

		status, payload := m.respond(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockGraphQL) calls() []graphQLRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]graphQLRequest(nil), m.requests...)
}

func (m *mockGraphQL) requestHeaders() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]http.Header(nil), m.headers...)
}

func operationName(query string) string {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return ""
	}
	name := fields[1]
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return name
}

func TestNewClientFromEnv(t *testing.T) {
	t.Run("token env", func(t *testing.T) {
		t.Setenv(TokenEnv, "primary")
		t.Setenv(LegacyTokenEnv, "legacy")
		c, err := NewClientFromEnv()
		if err != nil {
			t.Fatalf("NewClientFromEnv() error = %v", err)
		}
		if c.token != "primary" {
			t.Errorf("token = %q, want %q", c.token, "primary")
		}
	})

	t.Run("legacy token env", func(t *testing.T) {
		t.Setenv(TokenEnv, "")
		t.Setenv(LegacyTokenEnv, "legacy")
		c, err := NewClientFromEnv()
		if err != nil {
			t.Fatalf("NewClientFromEnv() error = %v", err)
		}
		if c.token != "legacy" {
			t.Errorf("token = %q, want %q", c.token, "legacy")
		}
	})

	t.Run("missing token", func(t *testing.T) {
		t.Setenv(TokenEnv, "")
		t.Setenv(LegacyTokenEnv, "")
		if _, err := NewClientFromEnv(); err == nil {
			t.Fatal("NewClientFromEnv() should fail without a token")
		}
	})
}

func TestClientDo_SendsHeaders(t *testing.T) {
	server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data": {"ok": true}}`
	})

	client := NewClient("test-token", WithBaseURL(server.URL))

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.Do(context.Background(), "query Ping { ok }", nil, &out); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !out.OK {
		t.Error("expected data to be decoded")
	}

	header := server.requestHeaders()[0]
	if got := header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
	}
	if header.Get(requestIDHeader) == "" {
		t.Errorf("%s header should be set", requestIDHeader)
	}
	if got := header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestClientDo_GraphQLError(t *testing.T) {
	server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
		return http.StatusOK, `{"data": null, "errors": [{"message": "app not found", "extensions": {"errorCode": "ENTITY_NOT_FOUND"}}]}`
	})

	client := NewClient("test-token", WithBaseURL(server.URL))
	err := client.Do(context.Background(), "query X { x }", nil, nil)

	var gqlErr *GraphQLError
	if !errors.As(err, &gqlErr) {
		t.Fatalf("expected GraphQLError, got %T: %v", err, err)
	}
	if !strings.Contains(gqlErr.Error(), "app not found") {
		t.Errorf("Error() = %q", gqlErr.Error())
	}
	if gqlErr.RequestID == "" {
		t.Error("RequestID should be set")
	}
	if !IsNotFoundError(err) {
		t.Error("IsNotFoundError() should be true for ENTITY_NOT_FOUND")
	}
}

func TestClientDo_HTTPError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantAuth   bool
		wantNotFnd bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message": "bad token"}`, wantAuth: true},
		{name: "forbidden", status: http.StatusForbidden, body: `forbidden`, wantAuth: true},
		{name: "not found", status: http.StatusNotFound, body: `{}`, wantNotFnd: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"errors": [{"message": "syntax error"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
				return tt.status, tt.body
			})
			client := NewClient("test-token", WithBaseURL(server.URL))

			err := client.Do(context.Background(), "query X { x }", nil, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if IsAuthenticationError(err) != tt.wantAuth {
				t.Errorf("IsAuthenticationError() = %v, want %v", IsAuthenticationError(err), tt.wantAuth)
			}
			if IsNotFoundError(err) != tt.wantNotFnd {
				t.Errorf("IsNotFoundError() = %v, want %v", IsNotFoundError(err), tt.wantNotFnd)
			}
		})
	}
}

func TestClientDo_RetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return http.StatusBadGateway, `bad gateway`
		}
		return http.StatusOK, `{"data": {}}`
	})

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(&RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	)
	if err := client.Do(context.Background(), "query X { x }", nil, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got := len(server.calls()); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	// the request id is stable across retries
	ids := map[string]bool{}
	for _, h := range server.requestHeaders() {
		ids[h.Get(requestIDHeader)] = true
	}
	if len(ids) != 1 {
		t.Errorf("expected one request id across retries, got %d", len(ids))
	}
}

func TestClientDo_NoRetryOnClientError(t *testing.T) {
	server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
		return http.StatusBadRequest, `{"message": "nope"}`
	})

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(&RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	)
	if err := client.Do(context.Background(), "query X { x }", nil, nil); err == nil {
		t.Fatal("Do() should fail")
	}
	if got := len(server.calls()); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestClientDo_NoRetryOption(t *testing.T) {
	server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
		return http.StatusServiceUnavailable, `unavailable`
	})

	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(&RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	)
	err := client.Do(context.Background(), "mutation X { x }", nil, nil, NoRetry())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Do() error = %v, want 503 APIError", err)
	}
	if got := len(server.calls()); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestClient_MutationsAreSentOnce(t *testing.T) {
	server := newMockGraphQL(t, func(req graphQLRequest) (int, string) {
		return http.StatusServiceUnavailable, `unavailable`
	})
	client := NewClient("test-token",
		WithBaseURL(server.URL),
		WithRetryConfig(&RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	)
	ctx := context.Background()

	if _, err := client.CreateBranch(ctx, "app-1", "main"); err == nil {
		t.Error("CreateBranch() should fail")
	}
	if _, err := client.CreateChannel(ctx, "app-1", "production", "branch-1"); err == nil {
		t.Error("CreateChannel() should fail")
	}
	if _, err := client.PublishUpdateGroups(ctx, []PublishUpdateGroupInput{{BranchID: "branch-1"}}); err == nil {
		t.Error("PublishUpdateGroups() should fail")
	}

	var got []string
	for _, call := range server.calls() {
		got = append(got, operationName(call.Query))
	}
	want := []string{"CreateBranch", "CreateChannel", "PublishUpdateGroups"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("operations = %v, want %v", got, want)
	}
}

func TestRetryConfig_GetDelay(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := cfg.GetDelay(tt.attempt); got != tt.want {
			t.Errorf("GetDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()
	for status, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
	} {
		if got := cfg.ShouldRetry(status); got != want {
			t.Errorf("ShouldRetry(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryableError(context.Canceled) {
		t.Error("context.Canceled should not be retryable")
	}
	if IsRetryableError(errors.New("boom")) {
		t.Error("plain errors should not be retryable")
	}
}
