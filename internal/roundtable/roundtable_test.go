package roundtable_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"scrapforge/internal/backend"
	"scrapforge/internal/roundtable"
)

const goodBlueprint = `{"novice":"walkthrough","journeyman":"plan","master":"summary","parts":[{"name":"motor","quantity":0,"source":"salvage"}],"safety":["gloves"],"difficulty":2,"est_hours":4,"est_cost":20}`

type seatClient struct {
	calls  []backend.Request
	answer func(req backend.Request, call int) (backend.Response, error)
}

func (s *seatClient) Invoke(_ context.Context, req backend.Request) (backend.Response, error) {
	call := len(s.calls)
	s.calls = append(s.calls, req)
	return s.answer(req, call)
}

func happySeats() *seatClient {
	return &seatClient{answer: func(req backend.Request, _ int) (backend.Response, error) {
		switch req.Backend {
		case backend.Foreman:
			return backend.Response{Text: "mech notes", Tokens: 10}, nil
		case backend.Engineer:
			return backend.Response{Text: "ctrl notes", Tokens: 20}, nil
		default:
			return backend.Response{Text: goodBlueprint, Tokens: 30}, nil
		}
	}}
}

func noSleep(time.Duration) {}

func TestRunSequencesStages(t *testing.T) {
	client := happySeats()
	p := roundtable.Pipeline{Client: client, Sleep: noSleep}
	res, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch", ProjectType: "tool"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(client.calls) != 3 {
		t.Fatalf("expected 3 backend calls, got %d", len(client.calls))
	}
	order := []string{backend.Foreman, backend.Engineer, backend.Contractor}
	for i, want := range order {
		if client.calls[i].Backend != want {
			t.Fatalf("call %d went to %s, want %s", i, client.calls[i].Backend, want)
		}
	}
	// each seat sees what the previous ones said
	if !strings.Contains(client.calls[1].Prompt, "mech notes") {
		t.Fatalf("controls prompt missing mechanical notes")
	}
	if !strings.Contains(client.calls[2].Prompt, "mech notes") || !strings.Contains(client.calls[2].Prompt, "ctrl notes") {
		t.Fatalf("synthesis prompt missing advisory notes")
	}
	if res.Journeyman != "plan" || res.Difficulty != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Manifest) != 1 || res.Manifest[0].Quantity != 1 {
		t.Fatalf("expected quantity floor of 1: %+v", res.Manifest)
	}
	if res.TotalTokens != 60 {
		t.Fatalf("expected token total 60, got %d", res.TotalTokens)
	}
	if len(res.Provenance) != 3 {
		t.Fatalf("expected provenance for every stage, got %d", len(res.Provenance))
	}
}

func TestRunDegradesFailedAdvisoryStage(t *testing.T) {
	client := &seatClient{answer: func(req backend.Request, _ int) (backend.Response, error) {
		switch req.Backend {
		case backend.Foreman:
			return backend.Response{}, backend.ErrRejected
		case backend.Engineer:
			return backend.Response{Text: "ctrl notes", Tokens: 20}, nil
		default:
			return backend.Response{Text: goodBlueprint, Tokens: 30}, nil
		}
	}}
	p := roundtable.Pipeline{Client: client, Sleep: noSleep}
	res, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch"})
	if err != nil {
		t.Fatalf("advisory failure must not abort the run: %v", err)
	}
	mech := res.Provenance[0]
	if !mech.Degraded || mech.Notes != "[mechanical notes unavailable]" || mech.Error == "" {
		t.Fatalf("unexpected degraded notes: %+v", mech)
	}
	// downstream seats see the marker, not the failure
	if !strings.Contains(client.calls[1].Prompt, "[mechanical notes unavailable]") {
		t.Fatalf("controls prompt should carry the degrade marker")
	}
	if res.Journeyman != "plan" {
		t.Fatalf("expected synthesis output: %+v", res)
	}
}

func TestRunSynthesisFailure(t *testing.T) {
	client := &seatClient{answer: func(req backend.Request, _ int) (backend.Response, error) {
		if req.Backend == backend.Contractor {
			return backend.Response{}, backend.ErrRejected
		}
		return backend.Response{Text: "notes"}, nil
	}}
	p := roundtable.Pipeline{Client: client, Sleep: noSleep}
	_, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch"})
	if !errors.Is(err, roundtable.ErrOrchestrationFailed) {
		t.Fatalf("expected orchestration failure, got %v", err)
	}
}

func TestStageTimeoutRetriesWithBackoff(t *testing.T) {
	var slept []time.Duration
	client := &seatClient{answer: func(req backend.Request, call int) (backend.Response, error) {
		if req.Backend == backend.Foreman && call < 2 {
			return backend.Response{}, backend.ErrTimeout
		}
		switch req.Backend {
		case backend.Foreman:
			return backend.Response{Text: "mech notes", Tokens: 10}, nil
		case backend.Engineer:
			return backend.Response{Text: "ctrl notes", Tokens: 20}, nil
		default:
			return backend.Response{Text: goodBlueprint, Tokens: 30}, nil
		}
	}}
	p := roundtable.Pipeline{Client: client, Sleep: func(d time.Duration) { slept = append(slept, d) }}
	res, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Provenance[0].Degraded {
		t.Fatalf("stage should have recovered: %+v", res.Provenance[0])
	}
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 4*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", slept)
	}
}

func TestStageTimeoutExhaustsRetries(t *testing.T) {
	foremanCalls := 0
	client := &seatClient{answer: func(req backend.Request, _ int) (backend.Response, error) {
		switch req.Backend {
		case backend.Foreman:
			foremanCalls++
			return backend.Response{}, backend.ErrTimeout
		case backend.Engineer:
			return backend.Response{Text: "ctrl notes"}, nil
		default:
			return backend.Response{Text: goodBlueprint}, nil
		}
	}}
	p := roundtable.Pipeline{Client: client, Sleep: noSleep}
	res, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if foremanCalls != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", foremanCalls)
	}
	if !res.Provenance[0].Degraded {
		t.Fatalf("expected degraded mechanical stage")
	}
}

func TestRejectionNeverRetried(t *testing.T) {
	foremanCalls := 0
	client := &seatClient{answer: func(req backend.Request, _ int) (backend.Response, error) {
		switch req.Backend {
		case backend.Foreman:
			foremanCalls++
			return backend.Response{}, backend.ErrRejected
		case backend.Engineer:
			return backend.Response{Text: "ctrl notes"}, nil
		default:
			return backend.Response{Text: goodBlueprint}, nil
		}
	}}
	p := roundtable.Pipeline{Client: client, Sleep: noSleep}
	if _, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if foremanCalls != 1 {
		t.Fatalf("rejection must not retry, got %d calls", foremanCalls)
	}
}

func TestSynthesisReparseRetry(t *testing.T) {
	synthCalls := 0
	client := &seatClient{answer: func(req backend.Request, _ int) (backend.Response, error) {
		switch req.Backend {
		case backend.Contractor:
			synthCalls++
			if synthCalls == 1 {
				return backend.Response{Text: "I think you should build it like this...", Tokens: 15}, nil
			}
			return backend.Response{Text: "```json\n" + goodBlueprint + "\n```", Tokens: 25}, nil
		default:
			return backend.Response{Text: "notes"}, nil
		}
	}}
	p := roundtable.Pipeline{Client: client, Sleep: noSleep}
	res, err := p.Run(context.Background(), roundtable.Request{Problem: "build a winch"})
	if err != nil {
		t.Fatalf("expected reparse recovery: %v", err)
	}
	if synthCalls != 2 {
		t.Fatalf("expected one reparse retry, got %d calls", synthCalls)
	}
	if res.Journeyman != "plan" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunValidatesRequest(t *testing.T) {
	p := roundtable.Pipeline{Client: happySeats(), Sleep: noSleep}
	if _, err := p.Run(context.Background(), roundtable.Request{Problem: "   "}); !errors.Is(err, backend.ErrValidation) {
		t.Fatalf("expected validation error for empty problem, got %v", err)
	}
	if _, err := p.Run(context.Background(), roundtable.Request{Problem: "x", DetailLevel: "expert"}); !errors.Is(err, backend.ErrValidation) {
		t.Fatalf("expected validation error for bad detail level, got %v", err)
	}
}
