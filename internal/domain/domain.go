package domain

// Component is one salvageable part identified in a teardown.
type Component struct {
	Name           string            `json:"name"`
	Location       string            `json:"location"`
	Specs          map[string]string `json:"specs"`
	Condition      string            `json:"condition"`
	SalvageValue   float64           `json:"salvage_value"`
	ReusePotential string            `json:"reuse_potential" enum:"high,medium,low"`
}

// HazardReport is the safety block of a teardown.
type HazardReport struct {
	Level       string   `json:"level" enum:"none,low,moderate,high,critical"`
	Warnings    []string `json:"warnings"`
	Precautions []string `json:"precautions"`
}

// Teardown is the structured breakdown of one piece of scanned equipment.
// Immutable once produced. Every field is always populated: unknown strings
// are literally "unknown" and absent collections are empty, never nil.
type Teardown struct {
	Equipment     string       `json:"equipment"`
	Manufacturer  string       `json:"manufacturer"`
	Model         string       `json:"model"`
	Era           string       `json:"era"`
	Category      string       `json:"category"`
	Components    []Component  `json:"components"`
	Hazards       HazardReport `json:"hazards"`
	TotalValue    float64      `json:"total_value"`
	ToolsRequired []string     `json:"tools_required"`
}

// Scan is the persisted record of one vision extraction run.
type Scan struct {
	ID        string   `json:"id"`
	ActorID   string   `json:"actor_id"`
	ImageSHA  string   `json:"image_sha"`
	Teardown  Teardown `json:"teardown"`
	Tokens    int      `json:"tokens"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// ManifestItem is one line of a blueprint's parts manifest.
type ManifestItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Source   string `json:"source"`
}

// StageNotes records what one round-table stage produced.
type StageNotes struct {
	Stage    string `json:"stage" enum:"mechanical,controls,synthesis"`
	Backend  string `json:"backend"`
	Notes    string `json:"notes"`
	Tokens   int    `json:"tokens"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// Blueprint is a tiered build plan produced by a round-table run.
// Immutable; projects reference blueprints but do not own them.
type Blueprint struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actor_id"`
	Problem     string         `json:"problem"`
	ProjectType string         `json:"project_type"`
	ScanID      *string        `json:"scan_id,omitempty"`
	DetailLevel string         `json:"detail_level" enum:"full,novice,master"`
	Novice      string         `json:"novice"`
	Journeyman  string         `json:"journeyman"`
	Master      string         `json:"master"`
	Manifest    []ManifestItem `json:"manifest"`
	Safety      []string       `json:"safety"`
	Provenance  []StageNotes   `json:"provenance"`
	Difficulty  int            `json:"difficulty"`
	EstHours    float64        `json:"est_hours"`
	EstCost     float64        `json:"est_cost"`
	TotalTokens int            `json:"total_tokens"`
	RequestSHA  string         `json:"request_sha"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string  `json:"id"`
	ActorID     string  `json:"actor_id"`
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

// Task belongs to exactly one project and one phase and never moves
// between phases after creation.
type Task struct {
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

type Part struct {
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

// Note is an append-only shop log entry bound to a project and the phase
// the project was in when it was written.
type Note struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Phase     string `json:"phase"`
	Content   string `json:"content"`
	Type      string `json:"type" enum:"general,observation,safety_warning,tools,phase_change"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// PartsSummary is the per-project inventory rollup.
type PartsSummary struct {
	Needed     int     `json:"needed"`
	Sourced    int     `json:"sourced"`
	Installed  int     `json:"installed"`
	TotalValue float64 `json:"total_value"`
}

// WorkshopStats is the cross-project rollup for the stats endpoint.
type WorkshopStats struct {
	ActiveProjects   int            `json:"active_projects"`
	ArchivedProjects int            `json:"archived_projects"`
	ByPhase          map[string]int `json:"by_phase"`
	TasksTotal       int            `json:"tasks_total"`
	TasksComplete    int            `json:"tasks_complete"`
	Parts            PartsSummary   `json:"parts"`
	EstCostTotal     float64        `json:"est_cost_total"`
}
