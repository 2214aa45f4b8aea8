package api

import (
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

type auditInput struct {
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	Description      string         `json:"description"`
	Scope            string         `json:"scope"`
	LeadAuditor      *uuid.UUID     `json:"lead_auditor"`
	AuditTeam        database.IDs   `json:"audit_team"`
	PlannedStartDate *grc.Date      `json:"planned_start_date"`
	PlannedEndDate   *grc.Date      `json:"planned_end_date"`
	Findings         []findingInput `json:"findings"`
}

type auditPatch struct {
	Name             *string         `json:"name"`
	Type             *string         `json:"type"`
	Description      *string         `json:"description"`
	Scope            *string         `json:"scope"`
	LeadAuditor      *uuid.UUID      `json:"lead_auditor"`
	AuditTeam        *database.IDs   `json:"audit_team"`
	Status           *string         `json:"status"`
	PlannedStartDate *grc.Date       `json:"planned_start_date"`
	PlannedEndDate   *grc.Date       `json:"planned_end_date"`
	ActualStartDate  *grc.Date       `json:"actual_start_date"`
	ActualEndDate    *grc.Date       `json:"actual_end_date"`
	Findings         *[]findingInput `json:"findings"`
	ReportURL        *string         `json:"report_url"`
	RSMUpdated       *bool           `json:"rsm_updated"`
}

type auditView struct {
	ID               uuid.UUID            `json:"_id"`
	Name             string               `json:"name"`
	Type             string               `json:"type"`
	Description      string               `json:"description"`
	Scope            string               `json:"scope"`
	LeadAuditor      *repository.UserRef  `json:"lead_auditor"`
	AuditTeam        []repository.UserRef `json:"audit_team"`
	Status           string               `json:"status"`
	PlannedStartDate time.Time            `json:"planned_start_date"`
	PlannedEndDate   time.Time            `json:"planned_end_date"`
	ActualStartDate  *time.Time           `json:"actual_start_date,omitempty"`
	ActualEndDate    *time.Time           `json:"actual_end_date,omitempty"`
	Findings         []findingView        `json:"findings"`
	ReportURL        string               `json:"report_url"`
	RSMUpdated       bool                 `json:"rsm_updated"`
	timestamps
}

func validateAudit(a *database.Audit) error {
	if a.Name == "" || a.Scope == "" {
		return grc.Validation("Audit name and scope cannot be empty")
	}
	if a.PlannedEndDate.Before(a.PlannedStartDate) {
		return grc.Validation("planned_end_date cannot be before planned_start_date")
	}
	return grc.First(
		grc.AuditType.Check(a.Type),
		grc.MaxLen("description", a.Description, 2000),
		grc.AuditStatus.Check(a.Status),
	)
}

func auditResource() *resource[database.Audit, auditInput, auditPatch] {
	return &resource[database.Audit, auditInput, auditPatch]{
		kind:  grc.Audits,
		label: "Audit",
		table: (*repository.Store).Audits,
		id:    func(a *database.Audit) uuid.UUID { return a.ID },

		create: func(rc *reqCtx, in *auditInput) (*database.Audit, []repository.RefCheck, error) {
			if in.Name == "" || in.Scope == "" || in.LeadAuditor == nil || in.PlannedStartDate == nil || in.PlannedEndDate == nil {
				return nil, nil, grc.Validation("Please include all required fields: name, scope, lead_auditor, planned_start_date, planned_end_date")
			}
			findings, err := buildFindings(in.Findings)
			if err != nil {
				return nil, nil, err
			}
			a := &database.Audit{
				ID:               uuid.New(),
				Name:             in.Name,
				Type:             in.Type,
				Description:      in.Description,
				Scope:            in.Scope,
				LeadAuditor:      *in.LeadAuditor,
				AuditTeam:        in.AuditTeam,
				Status:           grc.AuditPlanned,
				PlannedStartDate: in.PlannedStartDate.Time,
				PlannedEndDate:   in.PlannedEndDate.Time,
				Findings:         findings,
				CreatedAt:        rc.now,
				UpdatedAt:        rc.now,
			}
			if a.Type == "" {
				a.Type = "Internal"
			}
			if err := validateAudit(a); err != nil {
				return nil, nil, err
			}
			checks := []repository.RefCheck{
				repository.One(repository.Users, in.LeadAuditor, "Provided lead auditor user ID does not exist"),
				{Collection: repository.Users, IDs: in.AuditTeam, Message: "One or more audit team member user IDs not found"},
			}
			return a, append(checks, findingChecks(findings)...), nil
		},

		update: func(rc *reqCtx, a *database.Audit, p *auditPatch) ([]repository.RefCheck, error) {
			set(&a.Name, p.Name)
			set(&a.Type, p.Type)
			set(&a.Description, p.Description)
			set(&a.Scope, p.Scope)
			set(&a.LeadAuditor, p.LeadAuditor)
			set(&a.AuditTeam, p.AuditTeam)
			set(&a.Status, p.Status)
			if p.PlannedStartDate != nil {
				a.PlannedStartDate = p.PlannedStartDate.Time
			}
			if p.PlannedEndDate != nil {
				a.PlannedEndDate = p.PlannedEndDate.Time
			}
			setDate(&a.ActualStartDate, p.ActualStartDate)
			setDate(&a.ActualEndDate, p.ActualEndDate)
			var findings database.Findings
			if p.Findings != nil {
				fs, err := buildFindings(*p.Findings)
				if err != nil {
					return nil, err
				}
				a.Findings, findings = fs, fs
			}
			set(&a.ReportURL, p.ReportURL)
			set(&a.RSMUpdated, p.RSMUpdated)
			if err := validateAudit(a); err != nil {
				return nil, err
			}
			a.UpdatedAt = rc.now
			checks := []repository.RefCheck{
				repository.One(repository.Users, p.LeadAuditor, "Provided new lead auditor user ID does not exist"),
				{Collection: repository.Users, IDs: ids(p.AuditTeam), Message: "One or more audit team member user IDs not found"},
			}
			return append(checks, findingChecks(findings)...), nil
		},

		refs: func(a *database.Audit, set repository.RefSet) {
			set.Add(repository.Users, a.LeadAuditor)
			set.Add(repository.Users, a.AuditTeam...)
			addFindingRefs(a.Findings, set)
		},

		view: func(a *database.Audit, l *repository.Lookup) any {
			return auditView{
				ID:               a.ID,
				Name:             a.Name,
				Type:             a.Type,
				Description:      a.Description,
				Scope:            a.Scope,
				LeadAuditor:      l.User(&a.LeadAuditor),
				AuditTeam:        l.UserList(a.AuditTeam),
				Status:           a.Status,
				PlannedStartDate: a.PlannedStartDate,
				PlannedEndDate:   a.PlannedEndDate,
				ActualStartDate:  a.ActualStartDate,
				ActualEndDate:    a.ActualEndDate,
				Findings:         viewFindings(a.Findings, l),
				ReportURL:        a.ReportURL,
				RSMUpdated:       a.RSMUpdated,
				timestamps:       timestamps{a.CreatedAt, a.UpdatedAt},
			}
		},
	}
}
