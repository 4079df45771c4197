package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"scrapforge/internal/backend"
	"scrapforge/internal/domain"
	"scrapforge/internal/engine"
	"scrapforge/internal/repo"
	"scrapforge/internal/roundtable"
	"scrapforge/internal/vision"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"safety_gate_blocked"`
	Message string         `json:"message" example:"cannot leave phase electrical"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Scrapforge API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the required envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Scrapforge API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerScans(group, cfg.Engine)
	registerBlueprints(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerParts(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerStats(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine and pipeline errors onto the API envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var gate *engine.SafetyGateError
	if errors.As(err, &gate) {
		return newAPIError(http.StatusUnprocessableEntity, "safety_gate_blocked", err.Error(), map[string]any{
			"phase":            gate.Phase,
			"missing_gates":    gate.MissingGates,
			"incomplete_tasks": gate.IncompleteTasks,
		})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, backend.ErrValidation):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, backend.ErrTimeout):
		return newAPIError(http.StatusGatewayTimeout, "backend_timeout", err.Error(), nil)
	case errors.Is(err, vision.ErrExtractionFailed):
		return newAPIError(http.StatusBadGateway, "extraction_failed", err.Error(), nil)
	case errors.Is(err, roundtable.ErrOrchestrationFailed):
		return newAPIError(http.StatusBadGateway, "orchestration_failed", err.Error(), nil)
	case errors.Is(err, backend.ErrRejected), errors.Is(err, backend.ErrMalformed):
		return newAPIError(http.StatusBadGateway, "backend_failed", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "archived"), strings.Contains(lowered, "terminal"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid"), strings.Contains(lowered, "unknown"), strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusBadGateway:
		return "backend_failed"
	case http.StatusGatewayTimeout:
		return "backend_timeout"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Scrapforge API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerScans(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-scan",
		Method:        http.MethodPost,
		Path:          "/scans",
		Summary:       "Scan an equipment photo",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusBadGateway,
			http.StatusGatewayTimeout,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateScanRequest `json:"body"`
	}) (*struct {
		Body ScanResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Image == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "image is required", nil)
		}
		image, err := base64.StdEncoding.DecodeString(input.Body.Image)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "image must be base64", nil)
		}
		s, err := e.Scan(ctx, image, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScanResponse `json:"body"`
		}{Body: scanResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-scan",
		Method:      http.MethodGet,
		Path:        "/scans/{id}",
		Summary:     "Get scan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ScanResponse `json:"body"`
	}, error) {
		s, err := e.Repo.GetScan(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScanResponse `json:"body"`
		}{Body: scanResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-scans",
		Method:      http.MethodGet,
		Path:        "/scans",
		Summary:     "List scans",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []ScanResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListScans(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ScanResponse, 0, len(items))
		for _, s := range items {
			out = append(out, scanResponse(s))
		}
		return &struct {
			Body []ScanResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerBlueprints(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "forge-blueprint",
		Method:        http.MethodPost,
		Path:          "/blueprints",
		Summary:       "Forge a blueprint from a problem statement",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusBadGateway,
			http.StatusGatewayTimeout,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ForgeBlueprintRequest `json:"body"`
	}) (*struct {
		Body BlueprintResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.ForgeBlueprint(ctx, engine.ForgeOptions{
			Problem:     input.Body.Problem,
			ProjectType: input.Body.ProjectType,
			ScanID:      input.Body.ScanID,
			DetailLevel: input.Body.DetailLevel,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlueprintResponse `json:"body"`
		}{Body: blueprintResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-blueprint",
		Method:      http.MethodGet,
		Path:        "/blueprints/{id}",
		Summary:     "Get blueprint",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body BlueprintResponse `json:"body"`
	}, error) {
		b, err := e.Repo.GetBlueprint(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlueprintResponse `json:"body"`
		}{Body: blueprintResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-blueprints",
		Method:      http.MethodGet,
		Path:        "/blueprints",
		Summary:     "List blueprints",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []BlueprintResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListBlueprints(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BlueprintResponse `json:"body"`
		}{Body: mapBlueprints(items)}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			BlueprintID: input.Body.BlueprintID,
			Title:       input.Body.Title,
			ProjectType: input.Body.ProjectType,
			Description: input.Body.Description,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,archived,"`
		Phase  string `query:"phase"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{
			Status: input.Status,
			Phase:  input.Phase,
			Limit:  normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProjectDetailResponse `json:"body"`
	}, error) {
		d, err := e.GetProjectDetail(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectDetailResponse `json:"body"`
		}{Body: projectDetailResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-phase",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/advance",
		Summary:     "Advance project to the next phase",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body AdvancePhaseRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AdvancePhase(ctx, input.ID, input.Body.ConfirmedGates, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Archive project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ArchiveProject(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Add task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AddTask(ctx, engine.TaskAddOptions{
			ProjectID:   input.ProjectID,
			Phase:       input.Body.Phase,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Safety:      input.Body.Safety,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Phase     string `query:"phase"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: input.ProjectID, Phase: input.Phase})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-task",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{id}/toggle",
		Summary:     "Toggle task completion",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		ID        string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if t.ProjectID != input.ProjectID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "task not found in project", nil)
		}
		t, err = e.ToggleTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}

func registerParts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-part",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/parts",
		Summary:       "Add part",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreatePartRequest `json:"body"`
	}) (*struct {
		Body PartResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AddPart(ctx, engine.PartAddOptions{
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			Category:  input.Body.Category,
			Source:    input.Body.Source,
			Quantity:  input.Body.Quantity,
			Status:    input.Body.Status,
			EstValue:  input.Body.EstValue,
			Notes:     input.Body.Notes,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PartResponse `json:"body"`
		}{Body: partResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-parts",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/parts",
		Summary:     "List parts",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status" enum:"needed,sourced,installed,"`
	}) (*struct {
		Body []PartResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		parts, err := e.Repo.ListParts(ctx, input.ProjectID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PartResponse `json:"body"`
		}{Body: mapParts(parts)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-part-status",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/parts/{id}",
		Summary:     "Set part status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		ID        string               `path:"id"`
		Body      SetPartStatusRequest `json:"body"`
	}) (*struct {
		Body PartResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetPart(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if p.ProjectID != input.ProjectID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "part not found in project", nil)
		}
		p, err = e.SetPartStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PartResponse `json:"body"`
		}{Body: partResponse(p)}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-note",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/notes",
		Summary:       "Add note",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateNoteRequest `json:"body"`
	}) (*struct {
		Body NoteResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.AddNote(ctx, engine.NoteAddOptions{
			ProjectID: input.ProjectID,
			Content:   input.Body.Content,
			Type:      input.Body.Type,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse `json:"body"`
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/notes",
		Summary:     "List notes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Phase     string `query:"phase"`
		Type      string `query:"type" enum:"general,observation,safety_warning,tools,phase_change,"`
	}) (*struct {
		Body []NoteResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		notes, err := e.Repo.ListNotes(ctx, input.ProjectID, input.Phase, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []NoteResponse `json:"body"`
		}{Body: mapNotes(notes)}, nil
	})
}

func registerStats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "workshop-stats",
		Method:      http.MethodGet,
		Path:        "/workshop/stats",
		Summary:     "Workshop stats",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.WorkshopStats `json:"body"`
	}, error) {
		stats, err := e.WorkshopStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkshopStats `json:"body"`
		}{Body: stats}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/log",
		Summary:     "Event log",
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.ProjectID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
