package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"scrapforge/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertScan(ctx context.Context, tx *sql.Tx, s domain.Scan) error {
	teardown, err := json.Marshal(s.Teardown)
	if err != nil {
		return fmt.Errorf("marshal teardown: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO scans(id,actor_id,image_sha,teardown_json,tokens,created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.ActorID, s.ImageSHA, string(teardown), s.Tokens, s.CreatedAt)
	return err
}

func (r Repo) GetScan(ctx context.Context, id string) (domain.Scan, error) {
	var s domain.Scan
	var teardown string
	err := r.DB.QueryRowContext(ctx, `SELECT id,actor_id,image_sha,teardown_json,tokens,created_at FROM scans WHERE id=?`, id).
		Scan(&s.ID, &s.ActorID, &s.ImageSHA, &teardown, &s.Tokens, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal([]byte(teardown), &s.Teardown); err != nil {
		return s, fmt.Errorf("unmarshal teardown: %w", err)
	}
	return s, nil
}

func (r Repo) ListScans(ctx context.Context, limit int) ([]domain.Scan, error) {
	query := `SELECT id,actor_id,image_sha,teardown_json,tokens,created_at FROM scans ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Scan
	for rows.Next() {
		var s domain.Scan
		var teardown string
		if err := rows.Scan(&s.ID, &s.ActorID, &s.ImageSHA, &teardown, &s.Tokens, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(teardown), &s.Teardown); err != nil {
			return nil, fmt.Errorf("unmarshal teardown: %w", err)
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) InsertBlueprint(ctx context.Context, tx *sql.Tx, b domain.Blueprint) error {
	manifest, err := json.Marshal(b.Manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	safety, err := json.Marshal(b.Safety)
	if err != nil {
		return fmt.Errorf("marshal safety: %w", err)
	}
	provenance, err := json.Marshal(b.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO blueprints(id,actor_id,problem,project_type,scan_id,detail_level,novice,journeyman,master,manifest_json,safety_json,provenance_json,difficulty,est_hours,est_cost,total_tokens,request_sha,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.ActorID, b.Problem, b.ProjectType, nullableStringPtr(b.ScanID), b.DetailLevel,
		b.Novice, b.Journeyman, b.Master, string(manifest), string(safety), string(provenance),
		b.Difficulty, b.EstHours, b.EstCost, b.TotalTokens, b.RequestSHA, b.CreatedAt)
	return err
}

func scanBlueprintRow(scan func(...any) error) (domain.Blueprint, error) {
	var b domain.Blueprint
	var scanID sql.NullString
	var manifest, safety, provenance string
	err := scan(&b.ID, &b.ActorID, &b.Problem, &b.ProjectType, &scanID, &b.DetailLevel,
		&b.Novice, &b.Journeyman, &b.Master, &manifest, &safety, &provenance,
		&b.Difficulty, &b.EstHours, &b.EstCost, &b.TotalTokens, &b.RequestSHA, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if scanID.Valid {
		b.ScanID = &scanID.String
	}
	if err := json.Unmarshal([]byte(manifest), &b.Manifest); err != nil {
		return b, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if err := json.Unmarshal([]byte(safety), &b.Safety); err != nil {
		return b, fmt.Errorf("unmarshal safety: %w", err)
	}
	if err := json.Unmarshal([]byte(provenance), &b.Provenance); err != nil {
		return b, fmt.Errorf("unmarshal provenance: %w", err)
	}
	return b, nil
}

const blueprintCols = `id,actor_id,problem,project_type,scan_id,detail_level,novice,journeyman,master,manifest_json,safety_json,provenance_json,difficulty,est_hours,est_cost,total_tokens,request_sha,created_at`

func (r Repo) GetBlueprint(ctx context.Context, id string) (domain.Blueprint, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+blueprintCols+` FROM blueprints WHERE id=?`, id)
	return scanBlueprintRow(row.Scan)
}

func (r Repo) ListBlueprints(ctx context.Context, limit int) ([]domain.Blueprint, error) {
	query := `SELECT ` + blueprintCols + ` FROM blueprints ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Blueprint
	for rows.Next() {
		b, err := scanBlueprintRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,actor_id,blueprint_id,title,project_type,description,phase,difficulty,est_hours,est_cost,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ActorID, nullableStringPtr(p.BlueprintID), p.Title, p.ProjectType, p.Description,
		p.Phase, p.Difficulty, p.EstHours, p.EstCost, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProjectRow(scan func(...any) error) (domain.Project, error) {
	var p domain.Project
	var blueprintID, desc sql.NullString
	err := scan(&p.ID, &p.ActorID, &blueprintID, &p.Title, &p.ProjectType, &desc,
		&p.Phase, &p.Difficulty, &p.EstHours, &p.EstCost, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if blueprintID.Valid {
		p.BlueprintID = &blueprintID.String
	}
	if desc.Valid {
		p.Description = desc.String
	}
	return p, nil
}

const projectCols = `id,actor_id,blueprint_id,title,project_type,description,phase,difficulty,est_hours,est_cost,status,created_at,updated_at`

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProjectRow(row.Scan)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProjectRow(row.Scan)
}

type ProjectFilters struct {
	Status string
	Phase  string
	Limit  int
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Phase != "" {
		clauses = append(clauses, "phase=?")
		args = append(args, f.Phase)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + projectCols + ` FROM projects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) UpdateProjectPhase(ctx context.Context, tx *sql.Tx, id, phase, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET phase=?, updated_at=? WHERE id=?`, phase, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateProjectStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,phase,title,description,complete,safety,sort_order,completed_at,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Phase, t.Title, t.Description, boolInt(t.Complete), boolInt(t.Safety),
		t.SortOrder, nullableStringPtr(t.CompletedAt), t.CreatedAt)
	return err
}

func scanTaskRow(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, completedAt sql.NullString
	var complete, safety int
	err := scan(&t.ID, &t.ProjectID, &t.Phase, &t.Title, &desc, &complete, &safety, &t.SortOrder, &completedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Complete = complete != 0
	t.Safety = safety != 0
	if desc.Valid {
		t.Description = desc.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

const taskCols = `id,project_id,phase,title,description,complete,safety,sort_order,completed_at,created_at`

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	return scanTaskRow(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	return scanTaskRow(row.Scan)
}

type TaskFilters struct {
	ProjectID string
	Phase     string
	Safety    *bool
	Complete  *bool
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	return listTasks(ctx, r.DB.QueryContext, f)
}

func (r Repo) ListTasksTx(ctx context.Context, tx *sql.Tx, f TaskFilters) ([]domain.Task, error) {
	return listTasks(ctx, tx.QueryContext, f)
}

func listTasks(ctx context.Context, query func(context.Context, string, ...any) (*sql.Rows, error), f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Phase != "" {
		clauses = append(clauses, "phase=?")
		args = append(args, f.Phase)
	}
	if f.Safety != nil {
		clauses = append(clauses, "safety=?")
		args = append(args, boolInt(*f.Safety))
	}
	if f.Complete != nil {
		clauses = append(clauses, "complete=?")
		args = append(args, boolInt(*f.Complete))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	q := `SELECT ` + taskCols + ` FROM tasks ` + where + ` ORDER BY sort_order ASC, created_at ASC, id ASC`
	rows, err := query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) UpdateTaskComplete(ctx context.Context, tx *sql.Tx, id string, complete bool, completedAt *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET complete=?, completed_at=? WHERE id=?`,
		boolInt(complete), nullableStringPtr(completedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertPart(ctx context.Context, tx *sql.Tx, p domain.Part) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO parts(id,project_id,name,category,source,quantity,status,est_value,notes,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Name, p.Category, p.Source, p.Quantity, p.Status, p.EstValue, p.Notes, p.CreatedAt)
	return err
}

func scanPartRow(scan func(...any) error) (domain.Part, error) {
	var p domain.Part
	var category, source, notes sql.NullString
	err := scan(&p.ID, &p.ProjectID, &p.Name, &category, &source, &p.Quantity, &p.Status, &p.EstValue, &notes, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if category.Valid {
		p.Category = category.String
	}
	if source.Valid {
		p.Source = source.String
	}
	if notes.Valid {
		p.Notes = notes.String
	}
	return p, nil
}

const partCols = `id,project_id,name,category,source,quantity,status,est_value,notes,created_at`

func (r Repo) GetPart(ctx context.Context, id string) (domain.Part, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+partCols+` FROM parts WHERE id=?`, id)
	return scanPartRow(row.Scan)
}

func (r Repo) GetPartTx(ctx context.Context, tx *sql.Tx, id string) (domain.Part, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+partCols+` FROM parts WHERE id=?`, id)
	return scanPartRow(row.Scan)
}

func (r Repo) ListParts(ctx context.Context, projectID, status string) ([]domain.Part, error) {
	clauses := []string{"project_id=?"}
	args := []any{projectID}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	query := `SELECT ` + partCols + ` FROM parts WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Part
	for rows.Next() {
		p, err := scanPartRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) UpdatePartStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE parts SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) PartsSummary(ctx context.Context, projectID string) (domain.PartsSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*), COALESCE(SUM(est_value),0) FROM parts WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return domain.PartsSummary{}, err
	}
	defer rows.Close()
	var s domain.PartsSummary
	for rows.Next() {
		var status string
		var count int
		var value float64
		if err := rows.Scan(&status, &count, &value); err != nil {
			return s, err
		}
		switch status {
		case "needed":
			s.Needed = count
		case "sourced":
			s.Sourced = count
		case "installed":
			s.Installed = count
		}
		s.TotalValue += value
	}
	return s, nil
}

func (r Repo) InsertNote(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notes(id,project_id,phase,content,note_type,created_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.ProjectID, n.Phase, n.Content, n.Type, n.CreatedAt)
	return err
}

func (r Repo) ListNotes(ctx context.Context, projectID, phase, noteType string) ([]domain.Note, error) {
	clauses := []string{"project_id=?"}
	args := []any{projectID}
	if phase != "" {
		clauses = append(clauses, "phase=?")
		args = append(args, phase)
	}
	if noteType != "" {
		clauses = append(clauses, "note_type=?")
		args = append(args, noteType)
	}
	query := `SELECT id,project_id,phase,content,note_type,created_at FROM notes WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.ProjectID, &n.Phase, &n.Content, &n.Type, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

func (r Repo) CountProjects(ctx context.Context) (active, archived int, byPhase map[string]int, err error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, phase, count(*) FROM projects GROUP BY status, phase`)
	if err != nil {
		return 0, 0, nil, err
	}
	defer rows.Close()
	byPhase = map[string]int{}
	for rows.Next() {
		var status, phase string
		var count int
		if err := rows.Scan(&status, &phase, &count); err != nil {
			return 0, 0, nil, err
		}
		switch status {
		case "active":
			active += count
			byPhase[phase] += count
		case "archived":
			archived += count
		}
	}
	return active, archived, byPhase, nil
}

func (r Repo) CountTasks(ctx context.Context) (total, complete int, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT count(*), COALESCE(SUM(complete),0) FROM tasks t
JOIN projects p ON p.id=t.project_id WHERE p.status='active'`).Scan(&total, &complete)
	return total, complete, err
}

func (r Repo) WorkshopParts(ctx context.Context) (domain.PartsSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT pt.status, count(*), COALESCE(SUM(pt.est_value),0) FROM parts pt
JOIN projects p ON p.id=pt.project_id WHERE p.status='active' GROUP BY pt.status`)
	if err != nil {
		return domain.PartsSummary{}, err
	}
	defer rows.Close()
	var s domain.PartsSummary
	for rows.Next() {
		var status string
		var count int
		var value float64
		if err := rows.Scan(&status, &count, &value); err != nil {
			return s, err
		}
		switch status {
		case "needed":
			s.Needed = count
		case "sourced":
			s.Sourced = count
		case "installed":
			s.Installed = count
		}
		s.TotalValue += value
	}
	return s, nil
}

func (r Repo) SumProjectCosts(ctx context.Context) (float64, error) {
	var total float64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(est_cost),0) FROM projects WHERE status='active'`).Scan(&total)
	return total, err
}

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, projectID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var projectID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &projectID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if projectID.Valid {
			e.ProjectID = projectID.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
