package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"scrapforge/internal/config"
)

// HTTPClient talks to OpenAI-style chat-completions endpoints, one per
// configured backend identity.
type HTTPClient struct {
	Backends map[string]config.Backend
	Limits   struct {
		MaxImageBytes  int
		MaxPromptChars int
	}
	// HTTP is shared across backends; per-call deadlines come from
	// config, not from the client's Timeout field.
	HTTP *http.Client
	// Getenv resolves API keys; defaults to os.Getenv.
	Getenv func(string) string
}

// NewHTTPClient builds a client from loaded config.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	c := &HTTPClient{
		Backends: cfg.Backends,
		HTTP:     &http.Client{},
		Getenv:   os.Getenv,
	}
	c.Limits.MaxImageBytes = cfg.Limits.MaxImageBytes
	c.Limits.MaxPromptChars = cfg.Limits.MaxPromptChars
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Invoke performs exactly one chat-completions call. Input validation
// happens before any network traffic.
func (c *HTTPClient) Invoke(ctx context.Context, req Request) (Response, error) {
	mime, err := req.validate(c.Limits.MaxImageBytes, c.Limits.MaxPromptChars)
	if err != nil {
		return Response{}, err
	}
	be, ok := c.Backends[req.Backend]
	if !ok {
		return Response{}, fmt.Errorf("%w: backend %q not configured", ErrValidation, req.Backend)
	}

	var userContent any = req.Prompt
	if req.Image != nil {
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image))
		parts := []contentPart{{Type: "text", Text: req.Prompt}}
		img := contentPart{Type: "image_url"}
		img.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: dataURL}
		userContent = append(parts, img)
	}
	body, err := json.Marshal(chatRequest{
		Model: be.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.Role},
			{Role: "user", Content: userContent},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	timeout := time.Duration(be.TimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, be.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if be.APIKeyEnv != "" {
		if key := getenv(be.APIKeyEnv); key != "" {
			httpReq.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return Response{}, fmt.Errorf("%w: %s after %s", ErrTimeout, req.Backend, timeout)
		}
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		// connection-level failures are retried like timeouts
		return Response{}, fmt.Errorf("%w: %s unreachable: %v", ErrTimeout, req.Backend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read %s response: %v", ErrMalformed, req.Backend, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("%w: %s returned %d: %s", ErrRejected, req.Backend, resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrMalformed, req.Backend, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return Response{}, fmt.Errorf("%w: %s returned no content", ErrMalformed, req.Backend)
	}
	return Response{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.TotalTokens,
	}, nil
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
