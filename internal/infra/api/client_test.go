package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"campuschat/internal/domain/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		BaseURL:    server.URL + "/",
		Credential: CookieCredential{Token: "tok-1"},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(Config{BaseURL: "http://localhost:8080/"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.BaseURL() != "http://localhost:8080" {
			t.Errorf("BaseURL() = %q", client.BaseURL())
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := NewClient(Config{}); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("relative URL", func(t *testing.T) {
		if _, err := NewClient(Config{BaseURL: "/chat"}); err == nil {
			t.Fatal("expected error for relative URL")
		}
	})
}

func TestRequestAttachesCredentialAndHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("access_token")
		if err != nil || cookie.Value != "tok-1" {
			t.Errorf("missing session cookie: %v", err)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["post_id"] != float64(42) {
			t.Errorf("post_id = %v", body["post_id"])
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": 5, "post_id": 42}`)
	})

	conversation, err := client.CreateConversation(context.Background(), "42")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conversation.ID != "5" {
		t.Errorf("conversation id = %q, want 5", conversation.ID)
	}
}

func TestRequestOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		check       func(t *testing.T, payload json.RawMessage, err error)
	}{
		{
			name:        "unauthorized ignores body",
			status:      http.StatusUnauthorized,
			contentType: "application/json",
			body:        `{"error":"whatever"}`,
			check: func(t *testing.T, payload json.RawMessage, err error) {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("err = %v, want ErrUnauthorized", err)
				}
			},
		},
		{
			name:        "failure carries body text",
			status:      http.StatusBadRequest,
			contentType: "text/plain",
			body:        "cannot start chat with yourself",
			check: func(t *testing.T, payload json.RawMessage, err error) {
				failure, ok := AsFailure(err)
				if !ok {
					t.Fatalf("err = %v, want *Failure", err)
				}
				if failure.StatusCode != http.StatusBadRequest || failure.Message != "cannot start chat with yourself" {
					t.Errorf("failure = %+v", failure)
				}
			},
		},
		{
			name:   "failure without body uses generic message",
			status: http.StatusBadGateway,
			check: func(t *testing.T, payload json.RawMessage, err error) {
				failure, ok := AsFailure(err)
				if !ok {
					t.Fatalf("err = %v, want *Failure", err)
				}
				if failure.Message != "Request failed: 502" {
					t.Errorf("Message = %q", failure.Message)
				}
			},
		},
		{
			name:        "non JSON success is empty ok",
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        "ok",
			check: func(t *testing.T, payload json.RawMessage, err error) {
				if err != nil || payload != nil {
					t.Fatalf("got (%s, %v), want (nil, nil)", payload, err)
				}
			},
		},
		{
			name:        "empty JSON success is empty ok",
			status:      http.StatusNoContent,
			contentType: "application/json",
			check: func(t *testing.T, payload json.RawMessage, err error) {
				if err != nil || payload != nil {
					t.Fatalf("got (%s, %v), want (nil, nil)", payload, err)
				}
			},
		},
		{
			name:        "JSON success returns payload",
			status:      http.StatusOK,
			contentType: "application/json; charset=utf-8",
			body:        `[1,2]`,
			check: func(t *testing.T, payload json.RawMessage, err error) {
				if err != nil || string(payload) != `[1,2]` {
					t.Fatalf("got (%s, %v)", payload, err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			payload, err := client.Request(context.Background(), http.MethodGet, "/chat/conversations", nil)
			tt.check(t, payload, err)
		})
	}
}

func TestNetworkErrorIsFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client, err := NewClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	_, err = client.ListConversations(context.Background())
	failure, ok := AsFailure(err)
	if !ok {
		t.Fatalf("err = %v, want *Failure", err)
	}
	if failure.StatusCode != 0 || failure.Err == nil {
		t.Errorf("failure = %+v", failure)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

type truncatedBody struct {
	data []byte
	err  error
}

func (b *truncatedBody) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, b.err
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *truncatedBody) Close() error { return nil }

func TestTruncatedErrorBodyFallsBackToStatus(t *testing.T) {
	cut := errors.New("connection reset")
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Header:     http.Header{"Content-Type": []string{"text/plain"}},
			Body:       &truncatedBody{data: []byte("Upstream ti"), err: cut},
			Request:    req,
		}, nil
	})
	client, err := NewClient(Config{
		BaseURL:    "http://chat.test",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	_, err = client.Request(context.Background(), http.MethodGet, "/chat/conversations", nil)
	failure, ok := AsFailure(err)
	if !ok {
		t.Fatalf("err = %v, want *Failure", err)
	}
	if failure.StatusCode != http.StatusBadGateway || failure.Message != "Request failed: 502" {
		t.Errorf("failure = %+v", failure)
	}
	if !errors.Is(err, cut) {
		t.Errorf("failure should wrap the read error, got %v", failure.Err)
	}
}

func TestDoLeavesOutUntouchedOnEmptySuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	out := chat.Conversation{ID: "keep"}
	if err := client.Do(context.Background(), http.MethodPost, "/chat/conversations/1/read", nil, &out); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if out.ID != "keep" {
		t.Errorf("out mutated: %+v", out)
	}
}

func TestListMessagesPathAndLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/conversations/9/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("limit = %s", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":1,"conversation_id":9,"sender_id":3,"body":"hi","created_at":"2026-03-01T12:00:00Z"}]`)
	})
	messages, err := client.ListMessages(context.Background(), "9", 50)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].SenderID != "3" || messages[0].Body != "hi" {
		t.Errorf("messages = %+v", messages)
	}
}

func TestBearerCredential(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Credentials{BearerCredential{Token: "abc"}, CookieCredential{Name: "sid", Token: "xyz"}}.Apply(req)
	if req.Header.Get("Authorization") != "Bearer abc" {
		t.Errorf("Authorization = %q", req.Header.Get("Authorization"))
	}
	if cookie, err := req.Cookie("sid"); err != nil || cookie.Value != "xyz" {
		t.Errorf("cookie sid = %v, %v", cookie, err)
	}
}
