package scrapforgesdk

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"
)

// Client is a minimal Scrapforge HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Scan is the API scan model (partial).
type Scan struct {
	ID        string         `json:"id"`
	ImageSHA  string         `json:"image_sha"`
	Teardown  map[string]any `json:"teardown"`
	Tokens    int            `json:"tokens"`
	CreatedAt string         `json:"created_at"`
}

// Blueprint is the API blueprint model (partial).
type Blueprint struct {
	ID          string           `json:"id"`
	Problem     string           `json:"problem"`
	ProjectType string           `json:"project_type"`
	ScanID      *string          `json:"scan_id,omitempty"`
	Novice      string           `json:"novice"`
	Journeyman  string           `json:"journeyman"`
	Master      string           `json:"master"`
	Manifest    []map[string]any `json:"manifest"`
	Safety      []string         `json:"safety"`
	Difficulty  int              `json:"difficulty"`
	EstHours    float64          `json:"est_hours"`
	EstCost     float64          `json:"est_cost"`
	CreatedAt   string           `json:"created_at"`
}

// Project is the API project model.
type Project struct {
	ID          string  `json:"id"`
	BlueprintID *string `json:"blueprint_id,omitempty"`
	Title       string  `json:"title"`
	ProjectType string  `json:"project_type"`
	Phase       string  `json:"phase"`
	Status      string  `json:"status"`
	Difficulty  int     `json:"difficulty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Task is the API task model.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Phase     string `json:"phase"`
	Title     string `json:"title"`
	Complete  bool   `json:"complete"`
	Safety    bool   `json:"safety"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateScan uploads raw image bytes for teardown extraction.
func (c *Client) CreateScan(ctx context.Context, image []byte) (Scan, error) {
	body := map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	}
	var resp Scan
	err := c.do(ctx, http.MethodPost, "v1/scans", body, &resp)
	return resp, err
}

// ForgeBlueprint runs the round table. scanID may be empty.
func (c *Client) ForgeBlueprint(ctx context.Context, problem, projectType, scanID, detailLevel string) (Blueprint, error) {
	body := map[string]any{
		"problem":      problem,
		"project_type": projectType,
	}
	if scanID != "" {
		body["scan_id"] = scanID
	}
	if detailLevel != "" {
		body["detail_level"] = detailLevel
	}
	var resp Blueprint
	err := c.do(ctx, http.MethodPost, "v1/blueprints", body, &resp)
	return resp, err
}

// CreateProject creates a project from a blueprint.
func (c *Client) CreateProject(ctx context.Context, blueprintID string) (Project, error) {
	body := map[string]any{"blueprint_id": blueprintID}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v1/projects", body, &resp)
	return resp, err
}

// AdvancePhase moves a project one phase forward.
func (c *Client) AdvancePhase(ctx context.Context, projectID string, confirmedGates []string) (Project, error) {
	body := map[string]any{"confirmed_gates": confirmedGates}
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s/advance", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ArchiveProject archives a project. Archiving twice is a no-op.
func (c *Client) ArchiveProject(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	endpoint := fmt.Sprintf("v1/projects/%s", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

// ListTasks returns a project's tasks, optionally filtered by phase.
func (c *Client) ListTasks(ctx context.Context, projectID, phase string) ([]Task, error) {
	endpoint := fmt.Sprintf("v1/projects/%s/tasks", url.PathEscape(projectID))
	if phase != "" {
		endpoint += "?phase=" + url.QueryEscape(phase)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ToggleTask flips a task's completion state.
func (c *Client) ToggleTask(ctx context.Context, projectID, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v1/projects/%s/tasks/%s/toggle", url.PathEscape(projectID), url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
