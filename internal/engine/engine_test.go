package engine_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"scrapforge/internal/backend"
	"scrapforge/internal/config"
	"scrapforge/internal/db"
	"scrapforge/internal/engine"
	"scrapforge/internal/migrate"
	"scrapforge/internal/repo"
	"scrapforge/internal/roundtable"
)

type stubClient struct {
	invoke func(ctx context.Context, req backend.Request) (backend.Response, error)
}

func (s stubClient) Invoke(ctx context.Context, req backend.Request) (backend.Response, error) {
	return s.invoke(ctx, req)
}

const teardownJSON = `{"equipment":"treadmill","manufacturer":"NordicTrack","model":"","era":"2010s","category":"fitness","components":[{"name":"DC motor","location":"under deck","specs":{"hp":"2.5"},"condition":"good","salvage_value":80,"reuse_potential":"high"}],"hazards":{"level":"low","warnings":["capacitor charge"],"precautions":["discharge before handling"]},"total_value":120,"tools_required":["socket set"]}`

const blueprintJSON = `{"novice":"step by step","journeyman":"standard plan","master":"terse plan","parts":[{"name":"DC motor","quantity":1,"source":"salvage"},{"name":"speed controller","quantity":1,"source":"buy"}],"safety":["wear eye protection"],"difficulty":3,"est_hours":12,"est_cost":85}`

// roundTableClient answers like a well-behaved trio: prose from the
// advisory seats, JSON from the contractor.
func roundTableClient() stubClient {
	return stubClient{invoke: func(_ context.Context, req backend.Request) (backend.Response, error) {
		if len(req.Image) > 0 {
			return backend.Response{Text: teardownJSON, Tokens: 100}, nil
		}
		switch req.Backend {
		case backend.Foreman:
			return backend.Response{Text: "use the treadmill frame", Tokens: 50}, nil
		case backend.Engineer:
			return backend.Response{Text: "PWM controller on the DC motor", Tokens: 60}, nil
		default:
			return backend.Response{Text: blueprintJSON, Tokens: 200}, nil
		}
	}}
}

type testEnv struct {
	Engine engine.Engine
	DB     *sql.DB
	Ctx    context.Context
}

func newTestEnv(t *testing.T, client backend.Client) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("shop-1")
	eng := engine.New(conn, cfg, client)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, DB: conn, Ctx: context.Background()}
}

func TestScanPersistsNormalizedTeardown(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	s, err := env.Engine.Scan(env.Ctx, []byte("fake image bytes"), "tester")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if s.ImageSHA == "" {
		t.Fatalf("expected image sha")
	}
	// empty model must be normalized, not stored blank
	if s.Teardown.Model != "unknown" {
		t.Fatalf("expected normalized model, got %q", s.Teardown.Model)
	}
	got, err := env.Engine.Repo.GetScan(env.Ctx, s.ID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if got.Teardown.Equipment != "treadmill" || len(got.Teardown.Components) != 1 {
		t.Fatalf("teardown not persisted: %+v", got.Teardown)
	}
}

func TestScanWriteIsAtomic(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	// break the event log so the write after the scan insert fails
	if _, err := env.DB.Exec(`DROP TABLE events`); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Scan(env.Ctx, []byte("fake image bytes"), "tester"); err == nil {
		t.Fatalf("expected scan to fail without the event log")
	}
	var n int
	if err := env.DB.QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("scan row survived a failed transaction: %d rows", n)
	}
}

func TestForgeBlueprintWriteIsAtomic(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	if _, err := env.DB.Exec(`DROP TABLE events`); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.ForgeBlueprint(env.Ctx, engine.ForgeOptions{Problem: "build a belt grinder", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected forge to fail without the event log")
	}
	var n int
	if err := env.DB.QueryRow(`SELECT COUNT(*) FROM blueprints`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("blueprint row survived a failed transaction: %d rows", n)
	}
}

func TestForgeBlueprintWithScan(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	s, err := env.Engine.Scan(env.Ctx, []byte("fake image bytes"), "tester")
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Engine.ForgeBlueprint(env.Ctx, engine.ForgeOptions{
		Problem:     "build a belt grinder",
		ProjectType: "tool",
		ScanID:      s.ID,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	if b.ScanID == nil || *b.ScanID != s.ID {
		t.Fatalf("expected scan link")
	}
	if b.DetailLevel != "full" {
		t.Fatalf("expected default detail level, got %q", b.DetailLevel)
	}
	if len(b.Provenance) != 3 {
		t.Fatalf("expected three stage notes, got %d", len(b.Provenance))
	}
	if b.Journeyman != "standard plan" || len(b.Manifest) != 2 {
		t.Fatalf("unexpected blueprint: %+v", b)
	}
	if b.RequestSHA == "" {
		t.Fatalf("expected request sha")
	}
}

func TestForgeBlueprintDegradesAdvisoryFailure(t *testing.T) {
	client := stubClient{invoke: func(_ context.Context, req backend.Request) (backend.Response, error) {
		if req.Backend == backend.Foreman {
			return backend.Response{}, backend.ErrRejected
		}
		if req.Backend == backend.Engineer {
			return backend.Response{Text: "controls notes", Tokens: 40}, nil
		}
		return backend.Response{Text: blueprintJSON, Tokens: 200}, nil
	}}
	env := newTestEnv(t, client)
	b, err := env.Engine.ForgeBlueprint(env.Ctx, engine.ForgeOptions{Problem: "build a lamp", ActorID: "tester"})
	if err != nil {
		t.Fatalf("expected degraded blueprint, got error: %v", err)
	}
	mech := b.Provenance[0]
	if !mech.Degraded || !strings.Contains(mech.Notes, "unavailable") {
		t.Fatalf("expected degraded mechanical notes: %+v", mech)
	}
	if b.Journeyman == "" {
		t.Fatalf("expected synthesis output despite degraded stage")
	}
}

func TestForgeBlueprintSynthesisFailure(t *testing.T) {
	client := stubClient{invoke: func(_ context.Context, req backend.Request) (backend.Response, error) {
		if req.Backend == backend.Contractor {
			return backend.Response{}, backend.ErrRejected
		}
		return backend.Response{Text: "notes"}, nil
	}}
	env := newTestEnv(t, client)
	_, err := env.Engine.ForgeBlueprint(env.Ctx, engine.ForgeOptions{Problem: "build a lamp", ActorID: "tester"})
	if !errors.Is(err, roundtable.ErrOrchestrationFailed) {
		t.Fatalf("expected orchestration failure, got %v", err)
	}
}

func TestCreateProjectSeedsScaffold(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	b, err := env.Engine.ForgeBlueprint(env.Ctx, engine.ForgeOptions{Problem: "build a belt grinder", ProjectType: "tool", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{BlueprintID: b.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if p.Phase != "planning" || p.Status != "active" {
		t.Fatalf("unexpected project state: %+v", p)
	}
	if p.Title != "build a belt grinder" {
		t.Fatalf("expected title from blueprint, got %q", p.Title)
	}
	d, err := env.Engine.GetProjectDetail(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	// five non-terminal phases, five declared gates in the default config
	if len(d.Tasks) != 10 {
		t.Fatalf("expected 10 seeded tasks, got %d", len(d.Tasks))
	}
	safety := 0
	for _, task := range d.Tasks {
		if task.Safety {
			safety++
		}
	}
	if safety != 5 {
		t.Fatalf("expected 5 safety tasks, got %d", safety)
	}
	if len(d.Parts) != 2 {
		t.Fatalf("expected manifest parts seeded, got %d", len(d.Parts))
	}
	if len(d.Notes) != 1 || d.Notes[0].Type != "safety_warning" {
		t.Fatalf("expected safety warning note, got %+v", d.Notes)
	}
}

func TestCreateProjectSeedsToolsNote(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	s, err := env.Engine.Scan(env.Ctx, []byte("fake image"), "tester")
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Engine.ForgeBlueprint(env.Ctx, engine.ForgeOptions{Problem: "build a belt grinder", ScanID: s.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{BlueprintID: b.ID, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.GetProjectDetail(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	var tools *string
	for i := range d.Notes {
		if d.Notes[i].Type == "tools" {
			tools = &d.Notes[i].Content
		}
	}
	if tools == nil || !strings.Contains(*tools, "socket set") {
		t.Fatalf("expected tools note from the scan teardown, got %+v", d.Notes)
	}
}

func TestAdvancePhaseSafetyGate(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "bench", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	// planning has no gates and no safety tasks
	p, err = env.Engine.AdvancePhase(env.Ctx, p.ID, nil, "tester")
	if err != nil {
		t.Fatalf("advance from planning: %v", err)
	}
	if p.Phase != "fabrication" {
		t.Fatalf("expected fabrication, got %s", p.Phase)
	}
	// fabrication blocks on its safety task and gate
	_, err = env.Engine.AdvancePhase(env.Ctx, p.ID, nil, "tester")
	var gate *engine.SafetyGateError
	if !errors.As(err, &gate) {
		t.Fatalf("expected safety gate error, got %v", err)
	}
	if gate.Phase != "fabrication" || len(gate.IncompleteTasks) != 1 || len(gate.MissingGates) != 1 {
		t.Fatalf("unexpected gate error: %+v", gate)
	}
	// blocked advance must not move the project
	got, err := env.Engine.Repo.GetProject(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != "fabrication" {
		t.Fatalf("blocked advance mutated phase to %s", got.Phase)
	}
	// complete the safety task, confirm the gate, then advance
	d, err := env.Engine.GetProjectDetail(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range d.Tasks {
		if task.Phase == "fabrication" && task.Safety {
			if _, err := env.Engine.ToggleTask(env.Ctx, task.ID, "tester"); err != nil {
				t.Fatalf("toggle: %v", err)
			}
		}
	}
	p, err = env.Engine.AdvancePhase(env.Ctx, p.ID, []string{"welds_inspected"}, "tester")
	if err != nil {
		t.Fatalf("advance after gates: %v", err)
	}
	if p.Phase != "assembly" {
		t.Fatalf("expected assembly, got %s", p.Phase)
	}
	// phase change is logged to the shop notes
	notes, err := env.Engine.Repo.ListNotes(env.Ctx, p.ID, "", "phase_change")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 phase change notes, got %d", len(notes))
	}
}

func TestAdvanceTerminalPhase(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	cfg := &config.Config{}
	cfg.Workshop.ID = "shop-1"
	cfg.Phases = []config.Phase{
		{Key: "planning", Name: "Planning"},
		{Key: "complete", Name: "Complete"},
	}
	cfg.Limits.MaxImageBytes = 1 << 20
	cfg.Limits.MaxPromptChars = 8000
	env.Engine.Config = cfg

	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "quick", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	p, err = env.Engine.AdvancePhase(env.Ctx, p.ID, nil, "tester")
	if err != nil || p.Phase != "complete" {
		t.Fatalf("advance to complete: %v (%s)", err, p.Phase)
	}
	_, err = env.Engine.AdvancePhase(env.Ctx, p.ID, nil, "tester")
	if err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("expected terminal phase error, got %v", err)
	}
}

func TestArchiveIdempotent(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "old", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	p, err = env.Engine.ArchiveProject(env.Ctx, p.ID, "tester")
	if err != nil || p.Status != "archived" {
		t.Fatalf("archive: %v", err)
	}
	p, err = env.Engine.ArchiveProject(env.Ctx, p.ID, "tester")
	if err != nil || p.Status != "archived" {
		t.Fatalf("second archive should be a no-op: %v", err)
	}
	_, err = env.Engine.AdvancePhase(env.Ctx, p.ID, nil, "tester")
	if err == nil || !strings.Contains(err.Error(), "archived") {
		t.Fatalf("expected archived error, got %v", err)
	}
}

func TestToggleTaskTimestamps(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "bench", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.AddTask(env.Ctx, engine.TaskAddOptions{ProjectID: p.ID, Title: "cut stock", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if task.Phase != "planning" {
		t.Fatalf("expected current phase default, got %s", task.Phase)
	}
	task, err = env.Engine.ToggleTask(env.Ctx, task.ID, "tester")
	if err != nil || !task.Complete || task.CompletedAt == nil {
		t.Fatalf("toggle on: %v %+v", err, task)
	}
	task, err = env.Engine.ToggleTask(env.Ctx, task.ID, "tester")
	if err != nil || task.Complete || task.CompletedAt != nil {
		t.Fatalf("toggle off: %v %+v", err, task)
	}
	_, err = env.Engine.AddTask(env.Ctx, engine.TaskAddOptions{ProjectID: p.ID, Title: "bad", Phase: "nonexistent", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected unknown phase error")
	}
	if _, err := env.Engine.ToggleTask(env.Ctx, "no-such-task", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPartStatusFlow(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "bench", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	part, err := env.Engine.AddPart(env.Ctx, engine.PartAddOptions{ProjectID: p.ID, Name: "angle iron", EstValue: 15, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if part.Status != "needed" || part.Quantity != 1 {
		t.Fatalf("unexpected defaults: %+v", part)
	}
	part, err = env.Engine.SetPartStatus(env.Ctx, part.ID, "installed", "tester")
	if err != nil || part.Status != "installed" {
		t.Fatalf("set status: %v", err)
	}
	// any legal status may replace any other
	part, err = env.Engine.SetPartStatus(env.Ctx, part.ID, "needed", "tester")
	if err != nil || part.Status != "needed" {
		t.Fatalf("status rollback: %v", err)
	}
	_, err = env.Engine.SetPartStatus(env.Ctx, part.ID, "lost", "tester")
	if err == nil {
		t.Fatalf("expected invalid status error")
	}
}

func TestAddNoteStampsPhase(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "bench", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	n, err := env.Engine.AddNote(env.Ctx, engine.NoteAddOptions{ProjectID: p.ID, Content: "deck is warped", Type: "observation", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Phase != "planning" {
		t.Fatalf("expected note stamped with current phase, got %s", n.Phase)
	}
	// phase_change is reserved for the engine
	_, err = env.Engine.AddNote(env.Ctx, engine.NoteAddOptions{ProjectID: p.ID, Content: "x", Type: "phase_change", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected invalid note type error")
	}
}

func TestWorkshopStats(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p1, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "one", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "two", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ArchiveProject(env.Ctx, p2.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddPart(env.Ctx, engine.PartAddOptions{ProjectID: p1.ID, Name: "motor", EstValue: 80, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	stats, err := env.Engine.WorkshopStats(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ActiveProjects != 1 || stats.ArchivedProjects != 1 {
		t.Fatalf("unexpected project counts: %+v", stats)
	}
	if stats.ByPhase["planning"] != 1 {
		t.Fatalf("expected one active project in planning: %+v", stats.ByPhase)
	}
	if stats.Parts.Needed != 1 || stats.Parts.TotalValue != 80 {
		t.Fatalf("unexpected parts summary: %+v", stats.Parts)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t, roundTableClient())
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "bench", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AdvancePhase(env.Ctx, p.ID, nil, "tester"); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, p.ID, "", "", "")
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected creation and advance events, got %d", len(events))
	}
}
