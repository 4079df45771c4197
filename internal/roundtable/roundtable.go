// Package roundtable runs the three-seat blueprint deliberation:
// mechanical analysis, then control systems, then synthesis. Earlier
// seats inform later ones; a silent seat degrades the result rather
// than aborting the run.
package roundtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrapforge/internal/backend"
	"scrapforge/internal/domain"
)

// ErrOrchestrationFailed means synthesis could not produce a blueprint.
// Failures of the advisory stages never surface as this.
var ErrOrchestrationFailed = errors.New("round table failed to produce a blueprint")

// Stage names in run order.
const (
	StageMechanical = "mechanical"
	StageControls   = "controls"
	StageSynthesis  = "synthesis"
)

// Degrade markers stand in for a stage that produced nothing.
const (
	mechanicalOffline = "[mechanical notes unavailable]"
	controlsOffline   = "[controls notes unavailable]"
)

// Detail levels select which synthesis instruction is used.
const (
	DetailFull   = "full"
	DetailNovice = "novice"
	DetailMaster = "master"
)

// Request is one blueprint deliberation.
type Request struct {
	Problem     string
	ProjectType string
	Teardown    *domain.Teardown
	DetailLevel string
}

// Result is a finished deliberation ready to persist.
type Result struct {
	Novice      string
	Journeyman  string
	Master      string
	Manifest    []domain.ManifestItem
	Safety      []string
	Difficulty  int
	EstHours    float64
	EstCost     float64
	Provenance  []domain.StageNotes
	TotalTokens int
}

// Pipeline runs stages strictly in sequence. Sleep is injectable so
// tests skip real backoff waits.
type Pipeline struct {
	Client backend.Client
	Sleep  func(time.Duration)
}

func (p Pipeline) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// callStage invokes one backend with the stage retry policy: up to two
// extra attempts with exponential backoff on timeouts, one extra on a
// malformed response, none on a rejection.
func (p Pipeline) callStage(ctx context.Context, req backend.Request) (backend.Response, error) {
	var lastErr error
	timeoutRetries := 0
	malformedRetries := 0
	for {
		resp, err := p.Client.Invoke(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		switch {
		case errors.Is(err, backend.ErrTimeout) && timeoutRetries < 2:
			timeoutRetries++
			p.sleep(time.Duration(1<<timeoutRetries) * time.Second)
		case errors.Is(err, backend.ErrMalformed) && malformedRetries < 1:
			malformedRetries++
		default:
			return backend.Response{}, lastErr
		}
	}
}

// Run executes the full deliberation. The returned error is nil unless
// the request is invalid or synthesis is irrecoverable.
func (p Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Problem) == "" {
		return Result{}, fmt.Errorf("%w: empty problem statement", backend.ErrValidation)
	}
	detail := req.DetailLevel
	if detail == "" {
		detail = DetailFull
	}
	switch detail {
	case DetailFull, DetailNovice, DetailMaster:
	default:
		return Result{}, fmt.Errorf("%w: unknown detail level %q", backend.ErrValidation, req.DetailLevel)
	}

	var res Result
	salvage := describeTeardown(req.Teardown)

	mech := p.advisoryStage(ctx, StageMechanical, backend.Foreman,
		mechanicalRole, mechanicalPrompt(req, salvage), mechanicalOffline)
	res.Provenance = append(res.Provenance, mech)
	res.TotalTokens += mech.Tokens

	ctrl := p.advisoryStage(ctx, StageControls, backend.Engineer,
		controlsRole, controlsPrompt(req, salvage, mech.Notes), controlsOffline)
	res.Provenance = append(res.Provenance, ctrl)
	res.TotalTokens += ctrl.Tokens

	synth, bp, err := p.synthesisStage(ctx, req, detail, salvage, mech.Notes, ctrl.Notes)
	res.Provenance = append(res.Provenance, synth)
	res.TotalTokens += synth.Tokens
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOrchestrationFailed, err)
	}

	res.Novice = bp.Novice
	res.Journeyman = bp.Journeyman
	res.Master = bp.Master
	res.Manifest = bp.manifest()
	res.Safety = bp.Safety
	if res.Safety == nil {
		res.Safety = []string{}
	}
	res.Difficulty = bp.Difficulty
	res.EstHours = bp.EstHours
	res.EstCost = bp.EstCost
	return res, nil
}

func (p Pipeline) advisoryStage(ctx context.Context, stage, be, role, prompt, offline string) domain.StageNotes {
	notes := domain.StageNotes{Stage: stage, Backend: be}
	resp, err := p.callStage(ctx, backend.Request{Backend: be, Role: role, Prompt: prompt})
	if err != nil {
		notes.Degraded = true
		notes.Notes = offline
		notes.Error = err.Error()
		return notes
	}
	notes.Notes = resp.Text
	notes.Tokens = resp.Tokens
	return notes
}

// blueprintShape is the JSON contract synthesis must honor.
type blueprintShape struct {
	Novice     string   `json:"novice"`
	Journeyman string   `json:"journeyman"`
	Master     string   `json:"master"`
	Parts      []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
		Source   string `json:"source"`
	} `json:"parts"`
	Safety     []string `json:"safety"`
	Difficulty int      `json:"difficulty"`
	EstHours   float64  `json:"est_hours"`
	EstCost    float64  `json:"est_cost"`
}

func (b blueprintShape) manifest() []domain.ManifestItem {
	items := make([]domain.ManifestItem, 0, len(b.Parts))
	for _, p := range b.Parts {
		q := p.Quantity
		if q < 1 {
			q = 1
		}
		items = append(items, domain.ManifestItem{Name: p.Name, Quantity: q, Source: p.Source})
	}
	return items
}

func (p Pipeline) synthesisStage(ctx context.Context, req Request, detail, salvage, mechNotes, ctrlNotes string) (domain.StageNotes, blueprintShape, error) {
	notes := domain.StageNotes{Stage: StageSynthesis, Backend: backend.Contractor}
	prompt := synthesisPrompt(req, detail, salvage, mechNotes, ctrlNotes)

	resp, err := p.callStage(ctx, backend.Request{Backend: backend.Contractor, Role: synthesisRole, Prompt: prompt})
	if err != nil {
		notes.Degraded = true
		notes.Error = err.Error()
		return notes, blueprintShape{}, err
	}
	notes.Notes = resp.Text
	notes.Tokens = resp.Tokens

	var bp blueprintShape
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &bp); err != nil {
		// One reparse retry against a fresh completion.
		resp2, err2 := p.callStage(ctx, backend.Request{Backend: backend.Contractor, Role: synthesisRole, Prompt: prompt})
		if err2 != nil {
			notes.Degraded = true
			notes.Error = err2.Error()
			return notes, blueprintShape{}, err2
		}
		notes.Notes = resp2.Text
		notes.Tokens += resp2.Tokens
		if err := json.Unmarshal([]byte(stripFences(resp2.Text)), &bp); err != nil {
			notes.Degraded = true
			notes.Error = err.Error()
			return notes, blueprintShape{}, fmt.Errorf("decode blueprint: %w", err)
		}
	}
	if bp.Journeyman == "" && bp.Novice == "" && bp.Master == "" {
		notes.Degraded = true
		notes.Error = "empty blueprint tiers"
		return notes, blueprintShape{}, errors.New("synthesis returned empty blueprint tiers")
	}
	return notes, bp, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func describeTeardown(td *domain.Teardown) string {
	if td == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Salvage on hand: %s (%s %s, %s).\n", td.Equipment, td.Manufacturer, td.Model, td.Era)
	for _, c := range td.Components {
		fmt.Fprintf(&sb, "- %s at %s, condition %s, reuse %s\n", c.Name, c.Location, c.Condition, c.ReusePotential)
	}
	if len(td.Hazards.Warnings) > 0 {
		fmt.Fprintf(&sb, "Known hazards (%s): %s\n", td.Hazards.Level, strings.Join(td.Hazards.Warnings, "; "))
	}
	return sb.String()
}
