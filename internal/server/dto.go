package server

import (
	"scrapforge/internal/domain"
	"scrapforge/internal/engine"
)

// Request payloads

type CreateScanRequest struct {
	// Base64-encoded raster image (JPEG, PNG, WebP or GIF).
	Image string `json:"image"`
}

type ForgeBlueprintRequest struct {
	Problem     string `json:"problem"`
	ProjectType string `json:"project_type"`
	ScanID      string `json:"scan_id,omitempty"`
	DetailLevel string `json:"detail_level,omitempty" enum:"full,novice,master"`
}

type CreateProjectRequest struct {
	BlueprintID string `json:"blueprint_id,omitempty"`
	Title       string `json:"title,omitempty"`
	ProjectType string `json:"project_type,omitempty"`
	Description string `json:"description,omitempty"`
}

type AdvancePhaseRequest struct {
	ConfirmedGates []string `json:"confirmed_gates,omitempty"`
}

type CreateTaskRequest struct {
	Phase       string `json:"phase,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Safety      bool   `json:"safety,omitempty"`
}

type CreatePartRequest struct {
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Source   string  `json:"source,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Status   string  `json:"status,omitempty" enum:"needed,sourced,installed"`
	EstValue float64 `json:"est_value,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

type SetPartStatusRequest struct {
	Status string `json:"status" enum:"needed,sourced,installed"`
}

type CreateNoteRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty" enum:"general,observation,safety_warning,tools"`
}

// Response payloads

type ScanResponse struct {
	ID        string          `json:"id"`
	ImageSHA  string          `json:"image_sha"`
	Teardown  domain.Teardown `json:"teardown"`
	Tokens    int             `json:"tokens"`
	CreatedAt string          `json:"created_at" format:"date-time"`
}

func scanResponse(s domain.Scan) ScanResponse {
	return ScanResponse{
		ID:        s.ID,
		ImageSHA:  s.ImageSHA,
		Teardown:  s.Teardown,
		Tokens:    s.Tokens,
		CreatedAt: s.CreatedAt,
	}
}

type BlueprintResponse struct {
	ID          string                `json:"id"`
	Problem     string                `json:"problem"`
	ProjectType string                `json:"project_type"`
	ScanID      *string               `json:"scan_id,omitempty"`
	DetailLevel string                `json:"detail_level" enum:"full,novice,master"`
	Novice      string                `json:"novice"`
	Journeyman  string                `json:"journeyman"`
	Master      string                `json:"master"`
	Manifest    []domain.ManifestItem `json:"manifest"`
	Safety      []string              `json:"safety"`
	Provenance  []domain.StageNotes   `json:"provenance"`
	Difficulty  int                   `json:"difficulty"`
	EstHours    float64               `json:"est_hours"`
	EstCost     float64               `json:"est_cost"`
	TotalTokens int                   `json:"total_tokens"`
	CreatedAt   string                `json:"created_at" format:"date-time"`
}

func blueprintResponse(b domain.Blueprint) BlueprintResponse {
	return BlueprintResponse{
		ID:          b.ID,
		Problem:     b.Problem,
		ProjectType: b.ProjectType,
		ScanID:      b.ScanID,
		DetailLevel: b.DetailLevel,
		Novice:      b.Novice,
		Journeyman:  b.Journeyman,
		Master:      b.Master,
		Manifest:    b.Manifest,
		Safety:      b.Safety,
		Provenance:  b.Provenance,
		Difficulty:  b.Difficulty,
		EstHours:    b.EstHours,
		EstCost:     b.EstCost,
		TotalTokens: b.TotalTokens,
		CreatedAt:   b.CreatedAt,
	}
}

func mapBlueprints(in []domain.Blueprint) []BlueprintResponse {
	out := make([]BlueprintResponse, 0, len(in))
	for _, b := range in {
		out = append(out, blueprintResponse(b))
	}
	return out
}

type ProjectResponse struct {
	ID          string  `json:"id"`
	BlueprintID *string `json:"blueprint_id,omitempty"`
	Title       string  `json:"title"`
	ProjectType string  `json:"project_type"`
	Description string  `json:"description,omitempty"`
	Phase       string  `json:"phase"`
	Difficulty  int     `json:"difficulty"`
	EstHours    float64 `json:"est_hours"`
	EstCost     float64 `json:"est_cost"`
	Status      string  `json:"status" enum:"active,archived"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		BlueprintID: p.BlueprintID,
		Title:       p.Title,
		ProjectType: p.ProjectType,
		Description: p.Description,
		Phase:       p.Phase,
		Difficulty:  p.Difficulty,
		EstHours:    p.EstHours,
		EstCost:     p.EstCost,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProjects(in []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(in))
	for _, p := range in {
		out = append(out, projectResponse(p))
	}
	return out
}

type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Phase       string  `json:"phase"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Complete    bool    `json:"complete"`
	Safety      bool    `json:"safety"`
	SortOrder   int     `json:"sort_order"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Phase:       t.Phase,
		Title:       t.Title,
		Description: t.Description,
		Complete:    t.Complete,
		Safety:      t.Safety,
		SortOrder:   t.SortOrder,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
	}
}

func mapTasks(in []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(in))
	for _, t := range in {
		out = append(out, taskResponse(t))
	}
	return out
}

type PartResponse struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Source    string  `json:"source,omitempty"`
	Quantity  int     `json:"quantity"`
	Status    string  `json:"status" enum:"needed,sourced,installed"`
	EstValue  float64 `json:"est_value"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

func partResponse(p domain.Part) PartResponse {
	return PartResponse{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		Name:      p.Name,
		Category:  p.Category,
		Source:    p.Source,
		Quantity:  p.Quantity,
		Status:    p.Status,
		EstValue:  p.EstValue,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
	}
}

func mapParts(in []domain.Part) []PartResponse {
	out := make([]PartResponse, 0, len(in))
	for _, p := range in {
		out = append(out, partResponse(p))
	}
	return out
}

type NoteResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Phase     string `json:"phase"`
	Content   string `json:"content"`
	Type      string `json:"type" enum:"general,observation,safety_warning,tools,phase_change"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func noteResponse(n domain.Note) NoteResponse {
	return NoteResponse{
		ID:        n.ID,
		ProjectID: n.ProjectID,
		Phase:     n.Phase,
		Content:   n.Content,
		Type:      n.Type,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotes(in []domain.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(in))
	for _, n := range in {
		out = append(out, noteResponse(n))
	}
	return out
}

type ProjectDetailResponse struct {
	Project      ProjectResponse     `json:"project"`
	Tasks        []TaskResponse      `json:"tasks"`
	Parts        []PartResponse      `json:"parts"`
	Notes        []NoteResponse      `json:"notes"`
	PartsSummary domain.PartsSummary `json:"parts_summary"`
	Progress     float64             `json:"progress"`
}

func projectDetailResponse(d engine.ProjectDetail) ProjectDetailResponse {
	return ProjectDetailResponse{
		Project:      projectResponse(d.Project),
		Tasks:        mapTasks(d.Tasks),
		Parts:        mapParts(d.Parts),
		Notes:        mapNotes(d.Notes),
		PartsSummary: d.Summary,
		Progress:     d.Progress,
	}
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func mapEvents(in []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, e := range in {
		out = append(out, EventResponse(e))
	}
	return out
}
