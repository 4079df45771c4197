// Package backend gives the rest of the system one uniform way to call
// the workshop's AI backends. Callers never see provider wire formats,
// only Request/Response and the sentinel failure classes.
package backend

import (
	"context"
	"errors"
)

// Backend identities. Each maps to a configured endpoint and persona.
const (
	Foreman    = "foreman"    // mechanical analysis
	Engineer   = "engineer"   // control systems
	Contractor = "contractor" // synthesis and vision
)

// Failure classes. Implementations wrap these with call context so
// callers can branch with errors.Is.
var (
	ErrValidation = errors.New("invalid backend request")
	ErrTimeout    = errors.New("backend timed out")
	ErrRejected   = errors.New("backend rejected request")
	ErrMalformed  = errors.New("malformed backend response")
)

// Request is one backend invocation. Image is optional raster bytes;
// when set it is attached as a multimodal content part.
type Request struct {
	Backend string
	Role    string
	Prompt  string
	Image   []byte
}

// Response is the text outcome of one invocation plus token usage.
type Response struct {
	Text   string
	Tokens int
}

// Client performs exactly one upstream call per Invoke. Retry policy
// belongs to the caller, not here.
type Client interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Known reports whether id names a configured backend identity.
func Known(id string) bool {
	switch id {
	case Foreman, Engineer, Contractor:
		return true
	}
	return false
}
