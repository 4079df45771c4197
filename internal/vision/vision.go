// Package vision turns equipment photos into structured teardowns.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"scrapforge/internal/backend"
	"scrapforge/internal/domain"
)

// ErrExtractionFailed means the backend answered but never produced a
// usable teardown, even after the single malformed-response retry.
var ErrExtractionFailed = errors.New("teardown extraction failed")

const teardownRole = `You are a forensic equipment appraiser. Given a photo of discarded or surplus equipment, identify the machine and break it down into salvageable components. Respond with a single JSON object, no prose, matching:
{"equipment":"","manufacturer":"","model":"","era":"","category":"","components":[{"name":"","location":"","specs":{},"condition":"","salvage_value":0,"reuse_potential":"high|medium|low"}],"hazards":{"level":"none|low|moderate|high|critical","warnings":[],"precautions":[]},"total_value":0,"tools_required":[]}
Use "unknown" for anything you cannot determine.`

const teardownPrompt = "Analyze this equipment photo and produce the teardown JSON."

// Extractor runs the vision stage against the contractor backend.
type Extractor struct {
	Client backend.Client
}

// Extract produces a fully populated teardown for the image. Malformed
// backend output is retried once; validation and transport failures
// pass through untouched so the caller can map them.
func (e Extractor) Extract(ctx context.Context, image []byte) (domain.Teardown, int, error) {
	req := backend.Request{
		Backend: backend.Contractor,
		Role:    teardownRole,
		Prompt:  teardownPrompt,
		Image:   image,
	}
	var tokens int
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := e.Client.Invoke(ctx, req)
		tokens += resp.Tokens
		if err != nil {
			if errors.Is(err, backend.ErrMalformed) && attempt == 0 {
				continue
			}
			if errors.Is(err, backend.ErrMalformed) {
				return domain.Teardown{}, tokens, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
			}
			return domain.Teardown{}, tokens, err
		}
		td, err := decodeTeardown(resp.Text)
		if err != nil {
			if attempt == 0 {
				continue
			}
			return domain.Teardown{}, tokens, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		return td, tokens, nil
	}
	return domain.Teardown{}, tokens, ErrExtractionFailed
}

func decodeTeardown(text string) (domain.Teardown, error) {
	var td domain.Teardown
	cleaned := StripFences(text)
	if err := json.Unmarshal([]byte(cleaned), &td); err != nil {
		return td, fmt.Errorf("decode teardown: %w", err)
	}
	Normalize(&td)
	return td, nil
}

// StripFences removes a surrounding markdown code fence, if present.
// Models routinely wrap JSON answers in ```json blocks.
func StripFences(s string) string {
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

// Normalize enforces the full-shape guarantee: no empty strings where
// "unknown" is expected, no nil slices or maps, enums inside their
// legal sets.
func Normalize(td *domain.Teardown) {
	td.Equipment = orUnknown(td.Equipment)
	td.Manufacturer = orUnknown(td.Manufacturer)
	td.Model = orUnknown(td.Model)
	td.Era = orUnknown(td.Era)
	td.Category = orUnknown(td.Category)
	if td.Components == nil {
		td.Components = []domain.Component{}
	}
	for i := range td.Components {
		c := &td.Components[i]
		c.Name = orUnknown(c.Name)
		c.Location = orUnknown(c.Location)
		c.Condition = orUnknown(c.Condition)
		if c.Specs == nil {
			c.Specs = map[string]string{}
		}
		switch c.ReusePotential {
		case "high", "medium", "low":
		default:
			c.ReusePotential = "low"
		}
		if c.SalvageValue < 0 {
			c.SalvageValue = 0
		}
	}
	switch td.Hazards.Level {
	case "none", "low", "moderate", "high", "critical":
	default:
		td.Hazards.Level = "none"
	}
	if td.Hazards.Warnings == nil {
		td.Hazards.Warnings = []string{}
	}
	if td.Hazards.Precautions == nil {
		td.Hazards.Precautions = []string{}
	}
	if td.ToolsRequired == nil {
		td.ToolsRequired = []string{}
	}
	if td.TotalValue < 0 {
		td.TotalValue = 0
	}
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
