package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "openai/gpt-oss-120b",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  {\"reply\": \"hi\"}  "}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "openai/gpt-oss-120b", 0, 5*time.Second)
	content, model, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != `{"reply": "hi"}` {
		t.Fatalf("content = %q", content)
	}
	if model != "openai/gpt-oss-120b" {
		t.Fatalf("model = %q", model)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["model"] != "openai/gpt-oss-120b" {
		t.Fatalf("request model = %v", gotBody["model"])
	}
}

func TestClientCompleteWithoutKey(t *testing.T) {
	client := NewClient("http://unused.invalid", "", "m", 0, time.Second)
	_, _, err := client.Complete(context.Background(), nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestClientCompleteUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"non-2xx with error body",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
			},
		},
		{
			"invalid json body",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			"missing choices",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"model": "m", "choices": []}`))
			},
		},
		{
			"choice without content",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices": [{"message": {}}]}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, "key", "m", 0, 5*time.Second)
			_, _, err := client.Complete(context.Background(), nil)
			if !errors.Is(err, ErrBadUpstream) {
				t.Fatalf("err = %v, want ErrBadUpstream", err)
			}
		})
	}
}

func TestClientCompleteConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "key", "m", 0, time.Second)
	_, _, err := client.Complete(context.Background(), nil)
	if !errors.Is(err, ErrBadUpstream) {
		t.Fatalf("err = %v, want ErrBadUpstream", err)
	}
}
