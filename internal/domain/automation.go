package domain

import "time"

// Execution outcomes recorded in AutomationRun.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusSkipped = "skipped"
)

// AutomationConfig is the registry row for one automation identity. Rows are
// seeded at startup and mutated only through the admin toggle/edit surface;
// they are never deleted during normal operation. Params is a small JSON
// block of per-automation tuning (delays, thresholds, reminder schedules).
type AutomationConfig struct {
	ID        string    `json:"id"        gorm:"type:varchar(16);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(128);not null"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	Params    string    `json:"params"    gorm:"type:text;not null;default:'{}'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for AutomationConfig.
func (AutomationConfig) TableName() string { return "automation_configs" }

// AutomationFact is one row of the idempotency ledger: "this automation has
// already executed for this entity". Facts are immutable once written and
// never deleted; the unique index on the composite key is the single
// correctness-critical synchronization point of the engine. Absence of a
// fact is the only evidence needed to attempt work; presence is a permanent
// skip signal.
type AutomationFact struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	AutomationID string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_fact_automation_entity,priority:1"`
	EntityType   string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_fact_automation_entity,priority:2"`
	EntityID     string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_fact_automation_entity,priority:3"`
	CreatedAt    time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
}

// TableName returns the database table name for AutomationFact.
func (AutomationFact) TableName() string { return "automation_facts" }

// AutomationRun is one row of the append-only execution log: a single
// attempted execution with its outcome. The engine writes runs but never
// reads them; they exist for the admin audit surface.
type AutomationRun struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	AutomationID string    `json:"automation_id" gorm:"type:varchar(16);not null;index"`
	EntityType   string    `json:"entity_type"   gorm:"type:varchar(32);not null"`
	EntityID     string    `json:"entity_id"     gorm:"type:varchar(128);not null;index"`
	Status       string    `json:"status"        gorm:"type:varchar(16);not null;check:status IN ('success','failed','skipped')"`
	ErrorMessage string    `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index"`
}

// TableName returns the database table name for AutomationRun.
func (AutomationRun) TableName() string { return "automation_runs" }
