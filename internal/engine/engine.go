package engine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrapforge/internal/backend"
	"scrapforge/internal/config"
	"scrapforge/internal/domain"
	"scrapforge/internal/events"
	"scrapforge/internal/repo"
	"scrapforge/internal/roundtable"
	"scrapforge/internal/vision"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Backend backend.Client
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, client backend.Client) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Backend: client,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// SafetyGateError blocks a phase advance. It names exactly what is
// still outstanding so the caller can render it.
type SafetyGateError struct {
	Phase           string
	MissingGates    []string
	IncompleteTasks []string
}

func (e *SafetyGateError) Error() string {
	var parts []string
	if len(e.IncompleteTasks) > 0 {
		parts = append(parts, fmt.Sprintf("incomplete safety tasks: %s", strings.Join(e.IncompleteTasks, ", ")))
	}
	if len(e.MissingGates) > 0 {
		parts = append(parts, fmt.Sprintf("unconfirmed gates: %s", strings.Join(e.MissingGates, ", ")))
	}
	return fmt.Sprintf("cannot leave phase %s: %s", e.Phase, strings.Join(parts, "; "))
}

// Scan runs vision extraction on an image and persists the result.
func (e Engine) Scan(ctx context.Context, image []byte, actorID string) (domain.Scan, error) {
	extractor := vision.Extractor{Client: e.Backend}
	td, tokens, err := extractor.Extract(ctx, image)
	if err != nil {
		return domain.Scan{}, err
	}
	sum := sha256.Sum256(image)
	s := domain.Scan{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		ImageSHA:  hex.EncodeToString(sum[:]),
		Teardown:  td,
		Tokens:    tokens,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Scan{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertScan(ctx, tx, s); err != nil {
		return domain.Scan{}, fmt.Errorf("insert scan: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "scan.completed", "", "scan", s.ID, actorID, events.EventPayload{
		"equipment": td.Equipment,
		"tokens":    tokens,
	}); err != nil {
		return domain.Scan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Scan{}, err
	}
	return s, nil
}

// ForgeOptions are parameters for a round-table blueprint run.
type ForgeOptions struct {
	Problem     string
	ProjectType string
	ScanID      string
	DetailLevel string
	ActorID     string
}

// ForgeBlueprint runs the round table and persists the blueprint with
// full stage provenance.
func (e Engine) ForgeBlueprint(ctx context.Context, opts ForgeOptions) (domain.Blueprint, error) {
	req := roundtable.Request{
		Problem:     opts.Problem,
		ProjectType: opts.ProjectType,
		DetailLevel: opts.DetailLevel,
	}
	var scanID *string
	if opts.ScanID != "" {
		s, err := e.Repo.GetScan(ctx, opts.ScanID)
		if err != nil {
			return domain.Blueprint{}, fmt.Errorf("scan %s: %w", opts.ScanID, err)
		}
		req.Teardown = &s.Teardown
		scanID = &s.ID
	}
	pipeline := roundtable.Pipeline{Client: e.Backend}
	res, err := pipeline.Run(ctx, req)
	if err != nil {
		return domain.Blueprint{}, err
	}
	detail := opts.DetailLevel
	if detail == "" {
		detail = roundtable.DetailFull
	}
	b := domain.Blueprint{
		ID:          uuid.New().String(),
		ActorID:     opts.ActorID,
		Problem:     opts.Problem,
		ProjectType: opts.ProjectType,
		ScanID:      scanID,
		DetailLevel: detail,
		Novice:      res.Novice,
		Journeyman:  res.Journeyman,
		Master:      res.Master,
		Manifest:    res.Manifest,
		Safety:      res.Safety,
		Provenance:  res.Provenance,
		Difficulty:  res.Difficulty,
		EstHours:    res.EstHours,
		EstCost:     res.EstCost,
		TotalTokens: res.TotalTokens,
		RequestSHA:  requestSHA(opts.Problem, opts.ProjectType, opts.ScanID, detail),
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Blueprint{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertBlueprint(ctx, tx, b); err != nil {
		return domain.Blueprint{}, fmt.Errorf("insert blueprint: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "blueprint.forged", "", "blueprint", b.ID, opts.ActorID, events.EventPayload{
		"project_type": b.ProjectType,
		"tokens":       b.TotalTokens,
	}); err != nil {
		return domain.Blueprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Blueprint{}, err
	}
	return b, nil
}

// requestSHA is the deterministic identity of one forge request, kept
// on the row for dedup and audit.
func requestSHA(problem, projectType, scanID, detail string) string {
	sum := sha256.Sum256([]byte(problem + "|" + projectType + "|" + scanID + "|" + detail))
	return hex.EncodeToString(sum[:])
}

// ProjectCreateOptions are parameters for creating a project. Either
// BlueprintID or Title is required.
type ProjectCreateOptions struct {
	BlueprintID string
	Title       string
	ProjectType string
	Description string
	ActorID     string
}

// CreateProject creates a project in the first phase and seeds its
// tasks, parts and notes in one transaction.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if e.Config == nil {
		return domain.Project{}, errors.New("config not loaded")
	}
	var bp *domain.Blueprint
	if opts.BlueprintID != "" {
		b, err := e.Repo.GetBlueprint(ctx, opts.BlueprintID)
		if err != nil {
			return domain.Project{}, fmt.Errorf("blueprint %s: %w", opts.BlueprintID, err)
		}
		bp = &b
	}
	if opts.Title == "" {
		if bp == nil {
			return domain.Project{}, errors.New("title or blueprint required")
		}
		opts.Title = bp.Problem
	}
	if opts.ProjectType == "" && bp != nil {
		opts.ProjectType = bp.ProjectType
	}
	if opts.ProjectType == "" {
		opts.ProjectType = "general"
	}

	now := e.now().UTC().Format(time.RFC3339)
	first := e.Config.FirstPhase()
	p := domain.Project{
		ID:          uuid.New().String(),
		ActorID:     opts.ActorID,
		Title:       opts.Title,
		ProjectType: opts.ProjectType,
		Description: opts.Description,
		Phase:       first.Key,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if bp != nil {
		p.BlueprintID = &bp.ID
		p.Difficulty = bp.Difficulty
		p.EstHours = bp.EstHours
		p.EstCost = bp.EstCost
		if p.Description == "" {
			p.Description = bp.Journeyman
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.seedTasks(ctx, tx, p, now); err != nil {
		return domain.Project{}, err
	}
	if bp != nil {
		if err := e.seedFromBlueprint(ctx, tx, p, *bp, now); err != nil {
			return domain.Project{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, opts.ActorID, events.EventPayload{
		"title": p.Title,
		"phase": p.Phase,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// seedTasks lays down the phase scaffold: one work task per phase and
// one safety task per declared gate.
func (e Engine) seedTasks(ctx context.Context, tx *sql.Tx, p domain.Project, now string) error {
	terminal := e.Config.TerminalPhase().Key
	for _, phase := range e.Config.Phases {
		if phase.Key == terminal {
			continue
		}
		order := 0
		t := domain.Task{
			ID:          uuid.New().String(),
			ProjectID:   p.ID,
			Phase:       phase.Key,
			Title:       phase.Name + " work",
			Description: phase.Description,
			SortOrder:   order,
			CreatedAt:   now,
		}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return fmt.Errorf("seed task: %w", err)
		}
		for _, g := range phase.Gates {
			order++
			st := domain.Task{
				ID:        uuid.New().String(),
				ProjectID: p.ID,
				Phase:     phase.Key,
				Title:     g.Description,
				Safety:    true,
				SortOrder: order,
				CreatedAt: now,
			}
			if err := e.Repo.InsertTask(ctx, tx, st); err != nil {
				return fmt.Errorf("seed safety task: %w", err)
			}
		}
	}
	return nil
}

// seedFromBlueprint adds manifest parts and safety notes.
func (e Engine) seedFromBlueprint(ctx context.Context, tx *sql.Tx, p domain.Project, bp domain.Blueprint, now string) error {
	for _, item := range bp.Manifest {
		part := domain.Part{
			ID:        uuid.New().String(),
			ProjectID: p.ID,
			Name:      item.Name,
			Source:    item.Source,
			Quantity:  item.Quantity,
			Status:    "needed",
			CreatedAt: now,
		}
		if part.Quantity < 1 {
			part.Quantity = 1
		}
		if err := e.Repo.InsertPart(ctx, tx, part); err != nil {
			return fmt.Errorf("seed part: %w", err)
		}
	}
	for _, warning := range bp.Safety {
		n := domain.Note{
			ID:        uuid.New().String(),
			ProjectID: p.ID,
			Phase:     p.Phase,
			Content:   warning,
			Type:      "safety_warning",
			CreatedAt: now,
		}
		if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
			return fmt.Errorf("seed safety note: %w", err)
		}
	}
	if bp.ScanID != nil {
		scan, err := e.Repo.GetScan(ctx, *bp.ScanID)
		if err == nil && len(scan.Teardown.ToolsRequired) > 0 {
			n := domain.Note{
				ID:        uuid.New().String(),
				ProjectID: p.ID,
				Phase:     p.Phase,
				Content:   "Tools required: " + strings.Join(scan.Teardown.ToolsRequired, ", "),
				Type:      "tools",
				CreatedAt: now,
			}
			if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
				return fmt.Errorf("seed tools note: %w", err)
			}
		}
	}
	return nil
}

// AdvancePhase moves a project exactly one phase forward. The whole
// check-and-move runs in a single transaction; on a gate failure
// nothing is written.
func (e Engine) AdvancePhase(ctx context.Context, projectID string, confirmedGates []string, actorID string) (domain.Project, error) {
	if e.Config == nil {
		return domain.Project{}, errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return p, err
	}
	if p.Status == "archived" {
		return p, fmt.Errorf("project %s is archived", projectID)
	}
	current, ok := e.Config.PhaseByKey(p.Phase)
	if !ok {
		return p, fmt.Errorf("project %s has unknown phase %s", projectID, p.Phase)
	}
	next, ok := e.Config.NextPhase(p.Phase)
	if !ok {
		return p, fmt.Errorf("phase %s is terminal", p.Phase)
	}

	gateErr := &SafetyGateError{Phase: current.Key}
	safety := true
	incomplete := false
	tasks, err := e.Repo.ListTasksTx(ctx, tx, repo.TaskFilters{
		ProjectID: projectID, Phase: current.Key, Safety: &safety, Complete: &incomplete,
	})
	if err != nil {
		return p, err
	}
	for _, t := range tasks {
		gateErr.IncompleteTasks = append(gateErr.IncompleteTasks, t.Title)
	}
	confirmed := map[string]bool{}
	for _, g := range confirmedGates {
		confirmed[g] = true
	}
	for _, g := range current.Gates {
		if !confirmed[g.ID] {
			gateErr.MissingGates = append(gateErr.MissingGates, g.ID)
		}
	}
	if len(gateErr.IncompleteTasks) > 0 || len(gateErr.MissingGates) > 0 {
		return p, gateErr
	}

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateProjectPhase(ctx, tx, projectID, next.Key, now); err != nil {
		return p, err
	}
	note := domain.Note{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Phase:     next.Key,
		Content:   fmt.Sprintf("Phase advanced: %s -> %s", current.Name, next.Name),
		Type:      "phase_change",
		CreatedAt: now,
	}
	if err := e.Repo.InsertNote(ctx, tx, note); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "project.phase.advanced", projectID, "project", projectID, actorID, events.EventPayload{
		"from": current.Key,
		"to":   next.Key,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Phase = next.Key
	p.UpdatedAt = now
	return p, nil
}

// ArchiveProject soft-deletes a project. Archiving twice is a no-op.
func (e Engine) ArchiveProject(ctx context.Context, projectID, actorID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return p, err
	}
	if p.Status == "archived" {
		return p, nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateProjectStatus(ctx, tx, projectID, "archived", now); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "project.archived", projectID, "project", projectID, actorID, events.EventPayload{}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = "archived"
	p.UpdatedAt = now
	return p, nil
}

// TaskAddOptions are parameters for adding a task to a project phase.
type TaskAddOptions struct {
	ProjectID   string
	Phase       string
	Title       string
	Description string
	Safety      bool
	ActorID     string
}

func (e Engine) AddTask(ctx context.Context, opts TaskAddOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	phase := opts.Phase
	if phase == "" {
		phase = p.Phase
	}
	if _, ok := e.Config.PhaseByKey(phase); !ok {
		return domain.Task{}, fmt.Errorf("unknown phase %s", phase)
	}
	t := domain.Task{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		Phase:       phase,
		Title:       opts.Title,
		Description: opts.Description,
		Safety:      opts.Safety,
		SortOrder:   1000,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{
		"title": t.Title,
		"phase": t.Phase,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// ToggleTask flips completion. Task state never triggers a phase move.
func (e Engine) ToggleTask(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return t, err
	}
	t.Complete = !t.Complete
	if t.Complete {
		now := e.now().UTC().Format(time.RFC3339)
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	if err := e.Repo.UpdateTaskComplete(ctx, tx, t.ID, t.Complete, t.CompletedAt); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.toggled", t.ProjectID, "task", t.ID, actorID, events.EventPayload{
		"complete": t.Complete,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// PartAddOptions are parameters for adding an inventory part.
type PartAddOptions struct {
	ProjectID string
	Name      string
	Category  string
	Source    string
	Quantity  int
	Status    string
	EstValue  float64
	Notes     string
	ActorID   string
}

func (e Engine) AddPart(ctx context.Context, opts PartAddOptions) (domain.Part, error) {
	if opts.Name == "" {
		return domain.Part{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Part{}, err
	}
	status := opts.Status
	if status == "" {
		status = "needed"
	}
	if err := ensurePartStatus(status); err != nil {
		return domain.Part{}, err
	}
	quantity := opts.Quantity
	if quantity < 1 {
		quantity = 1
	}
	p := domain.Part{
		ID:        uuid.New().String(),
		ProjectID: opts.ProjectID,
		Name:      opts.Name,
		Category:  opts.Category,
		Source:    opts.Source,
		Quantity:  quantity,
		Status:    status,
		EstValue:  opts.EstValue,
		Notes:     opts.Notes,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPart(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "part.added", p.ProjectID, "part", p.ID, opts.ActorID, events.EventPayload{
		"name":   p.Name,
		"status": p.Status,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

func ensurePartStatus(status string) error {
	switch status {
	case "needed", "sourced", "installed":
		return nil
	}
	return fmt.Errorf("invalid part status %s", status)
}

// SetPartStatus overwrites a part's sourcing status. Any legal status
// may replace any other.
func (e Engine) SetPartStatus(ctx context.Context, partID, status, actorID string) (domain.Part, error) {
	if err := ensurePartStatus(status); err != nil {
		return domain.Part{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Part{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetPartTx(ctx, tx, partID)
	if err != nil {
		return p, err
	}
	if err := e.Repo.UpdatePartStatus(ctx, tx, partID, status); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "part.status.set", p.ProjectID, "part", p.ID, actorID, events.EventPayload{
		"from": p.Status,
		"to":   status,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = status
	return p, nil
}

// NoteAddOptions are parameters for appending a shop log note.
type NoteAddOptions struct {
	ProjectID string
	Content   string
	Type      string
	ActorID   string
}

func (e Engine) AddNote(ctx context.Context, opts NoteAddOptions) (domain.Note, error) {
	if opts.Content == "" {
		return domain.Note{}, errors.New("content is required")
	}
	noteType := opts.Type
	if noteType == "" {
		noteType = "general"
	}
	switch noteType {
	case "general", "observation", "safety_warning", "tools":
	default:
		return domain.Note{}, fmt.Errorf("invalid note type %s", noteType)
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Note{}, err
	}
	n := domain.Note{
		ID:        uuid.New().String(),
		ProjectID: opts.ProjectID,
		Phase:     p.Phase,
		Content:   opts.Content,
		Type:      noteType,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return n, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
		return n, err
	}
	if err := e.Events.Append(ctx, tx, "note.added", n.ProjectID, "note", n.ID, opts.ActorID, events.EventPayload{
		"type": n.Type,
	}); err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

// ProjectDetail is everything the detail view needs in one read.
type ProjectDetail struct {
	Project  domain.Project      `json:"project"`
	Tasks    []domain.Task       `json:"tasks"`
	Parts    []domain.Part       `json:"parts"`
	Notes    []domain.Note       `json:"notes"`
	Summary  domain.PartsSummary `json:"parts_summary"`
	Progress float64             `json:"progress"`
}

func (e Engine) GetProjectDetail(ctx context.Context, projectID string) (ProjectDetail, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: projectID})
	if err != nil {
		return ProjectDetail{}, err
	}
	parts, err := e.Repo.ListParts(ctx, projectID, "")
	if err != nil {
		return ProjectDetail{}, err
	}
	notes, err := e.Repo.ListNotes(ctx, projectID, "", "")
	if err != nil {
		return ProjectDetail{}, err
	}
	summary, err := e.Repo.PartsSummary(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	d := ProjectDetail{
		Project: p,
		Tasks:   tasks,
		Parts:   parts,
		Notes:   notes,
		Summary: summary,
	}
	if len(tasks) > 0 {
		done := 0
		for _, t := range tasks {
			if t.Complete {
				done++
			}
		}
		d.Progress = float64(done) / float64(len(tasks))
	}
	return d, nil
}

// WorkshopStats rolls up the whole shop floor.
func (e Engine) WorkshopStats(ctx context.Context) (domain.WorkshopStats, error) {
	active, archived, byPhase, err := e.Repo.CountProjects(ctx)
	if err != nil {
		return domain.WorkshopStats{}, err
	}
	total, complete, err := e.Repo.CountTasks(ctx)
	if err != nil {
		return domain.WorkshopStats{}, err
	}
	parts, err := e.Repo.WorkshopParts(ctx)
	if err != nil {
		return domain.WorkshopStats{}, err
	}
	cost, err := e.Repo.SumProjectCosts(ctx)
	if err != nil {
		return domain.WorkshopStats{}, err
	}
	return domain.WorkshopStats{
		ActiveProjects:   active,
		ArchivedProjects: archived,
		ByPhase:          byPhase,
		TasksTotal:       total,
		TasksComplete:    complete,
		Parts:            parts,
		EstCostTotal:     cost,
	}, nil
}
