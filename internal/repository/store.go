package repository

import database "github.com/Armour007/grc-backend/internal"

var (
	usersTable = define("users", "created_at DESC",
		"id", "username", "email", "password_hash", "role", "department", "status",
		"last_login", "permissions", "created_at", "updated_at")

	assetsTable = define("assets", "created_at DESC",
		"id", "name", "type", "description", "owner_id", "classification", "location", "status",
		"tags", "last_review_date", "cmdb_id", "created_at", "updated_at")

	risksTable = define("risks", "created_at DESC",
		"id", "name", "description", "category", "impact", "likelihood", "inherent_score",
		"residual_score", "owner_id", "status", "treatment_plan", "mitigation_tasks",
		"assets_linked", "controls_linked", "last_review_date", "next_review_date",
		"created_at", "updated_at")

	controlsTable = define("controls", "created_at DESC",
		"id", "name", "description", "owner_id", "status", "effectiveness_score",
		"last_tested_date", "next_test_date", "frameworks_mapped", "risks_mitigated",
		"audit_steps", "implementation_evidence", "created_at", "updated_at")

	frameworksTable = define("frameworks", "name ASC",
		"id", "name", "version", "type", "description", "source", "compliance_requirements",
		"controls_mapped", "created_at", "updated_at")

	policiesTable = define("policies", "created_at DESC",
		"id", "title", "version", "content_url", "owner_id", "status", "last_review_date",
		"next_review_date", "approval_date", "approved_by", "audience_groups", "controls_linked",
		"attestations", "attestation_frequency_days", "created_at", "updated_at")

	evidenceTable = define("evidence", "upload_date DESC",
		"id", "title", "description", "file_name", "file_path", "file_mime_type", "uploaded_by",
		"upload_date", "status", "reviewed_by", "review_date", "review_comments", "version",
		"tags", "linked_controls", "linked_audits", "linked_risks", "expiration_date",
		"created_at", "updated_at")

	auditsTable = define("audits", "planned_start_date DESC",
		"id", "name", "type", "description", "scope", "lead_auditor", "audit_team", "status",
		"planned_start_date", "planned_end_date", "actual_start_date", "actual_end_date",
		"findings", "report_url", "rsm_updated", "created_at", "updated_at")

	bcmTable = define("bcm_plans", "updated_at DESC",
		"id", "plan_name", "description", "owner_id", "status", "last_review_date",
		"next_review_date", "version", "criticality_score", "rto", "rpo", "dependencies",
		"test_results", "related_assets", "related_risks", "document_url", "created_at", "updated_at")
)

// Store groups the repositories over one connection.
type Store struct {
	db database.Conn
}

// New returns a Store over db.
func New(db database.Conn) *Store { return &Store{db: db} }

func (s *Store) Assets() Table[database.Asset]         { return Table[database.Asset]{s.db, assetsTable} }
func (s *Store) Risks() Table[database.Risk]           { return Table[database.Risk]{s.db, risksTable} }
func (s *Store) Controls() Table[database.Control]     { return Table[database.Control]{s.db, controlsTable} }
func (s *Store) Frameworks() Table[database.Framework] { return Table[database.Framework]{s.db, frameworksTable} }
func (s *Store) Policies() Table[database.Policy]      { return Table[database.Policy]{s.db, policiesTable} }
func (s *Store) Evidence() Table[database.Evidence]    { return Table[database.Evidence]{s.db, evidenceTable} }
func (s *Store) Audits() Table[database.Audit]         { return Table[database.Audit]{s.db, auditsTable} }
func (s *Store) BCMPlans() Table[database.BCMPlan]     { return Table[database.BCMPlan]{s.db, bcmTable} }
