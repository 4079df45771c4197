package vision_test

import (
	"context"
	"errors"
	"testing"

	"scrapforge/internal/backend"
	"scrapforge/internal/vision"
)

type scriptedClient struct {
	calls     int
	responses []func() (backend.Response, error)
}

func (s *scriptedClient) Invoke(_ context.Context, _ backend.Request) (backend.Response, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i]()
}

func ok(text string, tokens int) func() (backend.Response, error) {
	return func() (backend.Response, error) {
		return backend.Response{Text: text, Tokens: tokens}, nil
	}
}

func fail(err error) func() (backend.Response, error) {
	return func() (backend.Response, error) { return backend.Response{}, err }
}

const minimalTeardown = `{"equipment":"drill press","components":[{"name":"chuck"}],"hazards":{"level":"weird"}}`

func TestExtractNormalizesShape(t *testing.T) {
	client := &scriptedClient{responses: []func() (backend.Response, error){ok(minimalTeardown, 80)}}
	td, tokens, err := vision.Extractor{Client: client}.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if tokens != 80 {
		t.Fatalf("expected token passthrough, got %d", tokens)
	}
	if td.Manufacturer != "unknown" || td.Model != "unknown" || td.Era != "unknown" || td.Category != "unknown" {
		t.Fatalf("expected unknown fills: %+v", td)
	}
	c := td.Components[0]
	if c.Location != "unknown" || c.Condition != "unknown" || c.ReusePotential != "low" || c.Specs == nil {
		t.Fatalf("component not normalized: %+v", c)
	}
	if td.Hazards.Level != "none" || td.Hazards.Warnings == nil || td.Hazards.Precautions == nil {
		t.Fatalf("hazards not normalized: %+v", td.Hazards)
	}
	if td.ToolsRequired == nil {
		t.Fatalf("expected empty tools slice")
	}
}

func TestExtractStripsFences(t *testing.T) {
	fenced := "```json\n" + minimalTeardown + "\n```"
	client := &scriptedClient{responses: []func() (backend.Response, error){ok(fenced, 10)}}
	td, _, err := vision.Extractor{Client: client}.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if td.Equipment != "drill press" {
		t.Fatalf("fenced JSON not parsed: %+v", td)
	}
}

func TestExtractRetriesMalformedOnce(t *testing.T) {
	client := &scriptedClient{responses: []func() (backend.Response, error){
		ok("this is not json", 30),
		ok(minimalTeardown, 40),
	}}
	td, tokens, err := vision.Extractor{Client: client}.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("expected retry recovery: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", client.calls)
	}
	if tokens != 70 {
		t.Fatalf("expected accumulated tokens, got %d", tokens)
	}
	if td.Equipment != "drill press" {
		t.Fatalf("unexpected teardown: %+v", td)
	}
}

func TestExtractFailsAfterSecondMalformed(t *testing.T) {
	client := &scriptedClient{responses: []func() (backend.Response, error){
		fail(backend.ErrMalformed),
		fail(backend.ErrMalformed),
	}}
	_, _, err := vision.Extractor{Client: client}.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, vision.ErrExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", client.calls)
	}
}

func TestExtractPassesThroughTransportErrors(t *testing.T) {
	for _, sentinel := range []error{backend.ErrValidation, backend.ErrTimeout, backend.ErrRejected} {
		client := &scriptedClient{responses: []func() (backend.Response, error){fail(sentinel)}}
		_, _, err := vision.Extractor{Client: client}.Extract(context.Background(), []byte("img"))
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected %v passthrough, got %v", sentinel, err)
		}
		if errors.Is(err, vision.ErrExtractionFailed) {
			t.Fatalf("%v must not be rewrapped as extraction failure", sentinel)
		}
		if client.calls != 1 {
			t.Fatalf("expected no retry for %v, got %d calls", sentinel, client.calls)
		}
	}
}
