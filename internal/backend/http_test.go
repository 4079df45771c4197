package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scrapforge/internal/config"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}

func newClient(url string, timeoutSeconds int) *HTTPClient {
	c := &HTTPClient{
		Backends: map[string]config.Backend{
			Contractor: {URL: url, Model: "test-model", APIKeyEnv: "TEST_KEY", TimeoutSeconds: timeoutSeconds},
			Foreman:    {URL: url, Model: "test-model", TimeoutSeconds: timeoutSeconds},
		},
		HTTP:   &http.Client{},
		Getenv: func(key string) string { return "secret-token" },
	}
	c.Limits.MaxImageBytes = 1 << 20
	c.Limits.MaxPromptChars = 4000
	return c
}

func chatReply(text string, tokens int) string {
	return `{"choices":[{"message":{"content":` + mustJSON(text) + `}}],"usage":{"total_tokens":` + mustJSON(tokens) + `}}`
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestInvokeBuildsMultimodalRequest(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, chatReply("analysis", 42))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5)
	resp, err := c.Invoke(context.Background(), Request{
		Backend: Contractor,
		Role:    "appraiser",
		Prompt:  "analyze this",
		Image:   pngBytes,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp.Text != "analysis" || resp.Tokens != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	var wire struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gotBody, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	if wire.Model != "test-model" || len(wire.Messages) != 2 {
		t.Fatalf("unexpected wire shape: %s", string(gotBody))
	}
	if !strings.Contains(string(wire.Messages[1].Content), "data:image/png;base64,") {
		t.Fatalf("expected data URL image part: %s", string(wire.Messages[1].Content))
	}
}

func TestValidationBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, chatReply("ok", 1))
	}))
	defer srv.Close()
	c := newClient(srv.URL, 5)

	cases := []Request{
		{Backend: "unknown", Role: "r", Prompt: "p"},
		{Backend: Contractor, Role: "r", Prompt: ""},
		{Backend: Contractor, Role: "r", Prompt: strings.Repeat("x", 5000)},
		{Backend: Contractor, Role: "r", Prompt: "p", Image: []byte{}},
		{Backend: Contractor, Role: "r", Prompt: "p", Image: make([]byte, 2<<20)},
		{Backend: Contractor, Role: "r", Prompt: "p", Image: []byte("not an image")},
	}
	for i, req := range cases {
		_, err := c.Invoke(context.Background(), req)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("validation failures reached the network: %d calls", calls.Load())
	}
}

func TestInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		io.WriteString(w, chatReply("late", 1))
	}))
	defer srv.Close()

	c := newClient(srv.URL, 1)
	_, err := c.Invoke(context.Background(), Request{Backend: Foreman, Role: "r", Prompt: "p"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestInvokeUnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newClient(url, 5)
	_, err := c.Invoke(context.Background(), Request{Backend: Foreman, Role: "r", Prompt: "p"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected retryable class for a dead connection, got %v", err)
	}
	if errors.Is(err, ErrRejected) {
		t.Fatalf("connection failure must not be terminal: %v", err)
	}
}

func TestInvokeNon2xxIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"rate limited"}`)
	}))
	defer srv.Close()

	c := newClient(srv.URL, 5)
	_, err := c.Invoke(context.Background(), Request{Backend: Foreman, Role: "r", Prompt: "p"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status in message: %v", err)
	}
}

func TestInvokeMalformedResponses(t *testing.T) {
	bodies := []string{
		`not json at all`,
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":""}}]}`,
	}
	for i, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		c := newClient(srv.URL, 5)
		_, err := c.Invoke(context.Background(), Request{Backend: Foreman, Role: "r", Prompt: "p"})
		srv.Close()
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("case %d: expected malformed, got %v", i, err)
		}
	}
}

func TestSniffImage(t *testing.T) {
	cases := []struct {
		data []byte
		mime string
	}{
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{pngBytes, "image/png"},
		{[]byte("GIF89a"), "image/gif"},
		{append([]byte("RIFF\x00\x00\x00\x00"), []byte("WEBP")...), "image/webp"},
	}
	for _, c := range cases {
		mime, err := SniffImage(c.data)
		if err != nil || mime != c.mime {
			t.Fatalf("sniff %q: got %s, %v", c.mime, mime, err)
		}
	}
	if _, err := SniffImage([]byte("plain text")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown bytes, got %v", err)
	}
}
