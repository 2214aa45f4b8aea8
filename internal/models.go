package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Armour007/grc-backend/internal/grc"
)

// User represents the 'users' table
type User struct {
	ID           uuid.UUID  `db:"id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Role         grc.Role   `db:"role"`
	Department   string     `db:"department"`
	Status       string     `db:"status"`
	LastLogin    *time.Time `db:"last_login"`
	Permissions  Strings    `db:"permissions"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Asset represents the 'assets' table
type Asset struct {
	ID             uuid.UUID  `db:"id"`
	Name           string     `db:"name"`
	Type           string     `db:"type"`
	Description    string     `db:"description"`
	OwnerID        uuid.UUID  `db:"owner_id"`
	Classification string     `db:"classification"`
	Location       string     `db:"location"`
	Status         string     `db:"status"`
	Tags           Strings    `db:"tags"`
	LastReviewDate *time.Time `db:"last_review_date"`
	CMDBID         *string    `db:"cmdb_id"` // NULL when absent so the unique index ignores it
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Risk represents the 'risks' table
type Risk struct {
	ID              uuid.UUID  `db:"id"`
	Name            string     `db:"name"`
	Description     string     `db:"description"`
	Category        string     `db:"category"`
	Impact          int        `db:"impact"`
	Likelihood      int        `db:"likelihood"`
	InherentScore   int        `db:"inherent_score"`
	ResidualScore   int        `db:"residual_score"`
	OwnerID         uuid.UUID  `db:"owner_id"`
	Status          string     `db:"status"`
	TreatmentPlan   string     `db:"treatment_plan"`
	MitigationTasks Tasks      `db:"mitigation_tasks"`
	AssetsLinked    IDs        `db:"assets_linked"`
	ControlsLinked  IDs        `db:"controls_linked"`
	LastReviewDate  *time.Time `db:"last_review_date"`
	NextReviewDate  *time.Time `db:"next_review_date"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Control represents the 'controls' table
type Control struct {
	ID                     uuid.UUID  `db:"id"`
	Name                   string     `db:"name"`
	Description            string     `db:"description"`
	OwnerID                uuid.UUID  `db:"owner_id"`
	Status                 string     `db:"status"`
	EffectivenessScore     int        `db:"effectiveness_score"`
	LastTestedDate         *time.Time `db:"last_tested_date"`
	NextTestDate           *time.Time `db:"next_test_date"`
	FrameworksMapped       IDs        `db:"frameworks_mapped"`
	RisksMitigated         IDs        `db:"risks_mitigated"`
	AuditSteps             AuditSteps `db:"audit_steps"`
	ImplementationEvidence Tasks      `db:"implementation_evidence"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

// Framework represents the 'frameworks' table
type Framework struct {
	ID                     uuid.UUID `db:"id"`
	Name                   string    `db:"name"`
	Version                string    `db:"version"`
	Type                   string    `db:"type"`
	Description            string    `db:"description"`
	Source                 string    `db:"source"`
	ComplianceRequirements string    `db:"compliance_requirements"`
	ControlsMapped         IDs       `db:"controls_mapped"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}

// Policy represents the 'policies' table
type Policy struct {
	ID                       uuid.UUID    `db:"id"`
	Title                    string       `db:"title"`
	Version                  string       `db:"version"`
	ContentURL               string       `db:"content_url"`
	OwnerID                  uuid.UUID    `db:"owner_id"`
	Status                   string       `db:"status"`
	LastReviewDate           *time.Time   `db:"last_review_date"`
	NextReviewDate           time.Time    `db:"next_review_date"`
	ApprovalDate             *time.Time   `db:"approval_date"`
	ApprovedBy               *uuid.UUID   `db:"approved_by"`
	AudienceGroups           Strings      `db:"audience_groups"`
	ControlsLinked           IDs          `db:"controls_linked"`
	Attestations             Attestations `db:"attestations"`
	AttestationFrequencyDays int          `db:"attestation_frequency_days"`
	CreatedAt                time.Time    `db:"created_at"`
	UpdatedAt                time.Time    `db:"updated_at"`
}

// Evidence represents the 'evidence' table
type Evidence struct {
	ID             uuid.UUID  `db:"id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	FileName       string     `db:"file_name"`
	FilePath       string     `db:"file_path"`
	FileMimeType   string     `db:"file_mime_type"`
	UploadedBy     uuid.UUID  `db:"uploaded_by"`
	UploadDate     time.Time  `db:"upload_date"`
	Status         string     `db:"status"`
	ReviewedBy     *uuid.UUID `db:"reviewed_by"`
	ReviewDate     *time.Time `db:"review_date"`
	ReviewComments string     `db:"review_comments"`
	Version        int        `db:"version"`
	Tags           Strings    `db:"tags"`
	LinkedControls IDs        `db:"linked_controls"`
	LinkedAudits   IDs        `db:"linked_audits"`
	LinkedRisks    IDs        `db:"linked_risks"`
	ExpirationDate *time.Time `db:"expiration_date"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Audit represents the 'audits' table
type Audit struct {
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	Type             string     `db:"type"`
	Description      string     `db:"description"`
	Scope            string     `db:"scope"`
	LeadAuditor      uuid.UUID  `db:"lead_auditor"`
	AuditTeam        IDs        `db:"audit_team"`
	Status           string     `db:"status"`
	PlannedStartDate time.Time  `db:"planned_start_date"`
	PlannedEndDate   time.Time  `db:"planned_end_date"`
	ActualStartDate  *time.Time `db:"actual_start_date"`
	ActualEndDate    *time.Time `db:"actual_end_date"`
	Findings         Findings   `db:"findings"`
	ReportURL        string     `db:"report_url"`
	RSMUpdated       bool       `db:"rsm_updated"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// BCMPlan represents the 'bcm_plans' table
type BCMPlan struct {
	ID               uuid.UUID   `db:"id"`
	PlanName         string      `db:"plan_name"`
	Description      string      `db:"description"`
	OwnerID          uuid.UUID   `db:"owner_id"`
	Status           string      `db:"status"`
	LastReviewDate   *time.Time  `db:"last_review_date"`
	NextReviewDate   *time.Time  `db:"next_review_date"`
	Version          string      `db:"version"`
	CriticalityScore *int        `db:"criticality_score"`
	RTO              string      `db:"rto"`
	RPO              string      `db:"rpo"`
	Dependencies     Strings     `db:"dependencies"`
	TestResults      TestResults `db:"test_results"`
	RelatedAssets    IDs         `db:"related_assets"`
	RelatedRisks     IDs         `db:"related_risks"`
	DocumentURL      string      `db:"document_url"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

// Child records live inside their parent row as JSONB arrays.

// Task is a mitigation task on a risk or an implementation task on a control.
type Task struct {
	Task          string     `json:"task"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Status        string     `json:"status"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
}

type AuditStep struct {
	Step             string `json:"step"`
	Description      string `json:"description,omitempty"`
	ExpectedEvidence string `json:"expected_evidence,omitempty"`
}

type Attestation struct {
	User       uuid.UUID `json:"user"`
	AttestedAt time.Time `json:"attested_at"`
	IsAttested bool      `json:"is_attested"`
}

type Finding struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Severity       string      `json:"severity"`
	Recommendation string      `json:"recommendation,omitempty"`
	Status         string      `json:"status"`
	AssignedTo     *uuid.UUID  `json:"assigned_to,omitempty"`
	DueDate        *time.Time  `json:"due_date,omitempty"`
	ClosedDate     *time.Time  `json:"closed_date,omitempty"`
	LinkedControls []uuid.UUID `json:"linked_controls,omitempty"`
	LinkedRisks    []uuid.UUID `json:"linked_risks,omitempty"`
	EvidenceLinked []uuid.UUID `json:"evidence_linked,omitempty"`
}

type TestResult struct {
	TestDate time.Time  `json:"test_date"`
	TestType string     `json:"test_type"`
	Outcome  string     `json:"outcome"`
	Comments string     `json:"comments,omitempty"`
	TestedBy *uuid.UUID `json:"tested_by,omitempty"`
}

type (
	IDs          []uuid.UUID
	Strings      []string
	Tasks        []Task
	AuditSteps   []AuditStep
	Attestations []Attestation
	Findings     []Finding
	TestResults  []TestResult
)

func (v IDs) Value() (driver.Value, error)          { return jsonValue(v) }
func (v *IDs) Scan(src any) error                   { return jsonScan(src, v) }
func (v Strings) Value() (driver.Value, error)      { return jsonValue(v) }
func (v *Strings) Scan(src any) error               { return jsonScan(src, v) }
func (v Tasks) Value() (driver.Value, error)        { return jsonValue(v) }
func (v *Tasks) Scan(src any) error                 { return jsonScan(src, v) }
func (v AuditSteps) Value() (driver.Value, error)   { return jsonValue(v) }
func (v *AuditSteps) Scan(src any) error            { return jsonScan(src, v) }
func (v Attestations) Value() (driver.Value, error) { return jsonValue(v) }
func (v *Attestations) Scan(src any) error          { return jsonScan(src, v) }
func (v Findings) Value() (driver.Value, error)     { return jsonValue(v) }
func (v *Findings) Scan(src any) error              { return jsonScan(src, v) }
func (v TestResults) Value() (driver.Value, error)  { return jsonValue(v) }
func (v *TestResults) Scan(src any) error           { return jsonScan(src, v) }

// jsonValue encodes a slice column; nil slices are stored as an empty array, never NULL.
func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func jsonScan(src any, dest any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, dest)
	case string:
		return json.Unmarshal([]byte(s), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
