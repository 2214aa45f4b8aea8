package api

import (
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

type controlInput struct {
	Name                   string              `json:"name"`
	Description            string              `json:"description"`
	Owner                  *uuid.UUID          `json:"owner"`
	Status                 string              `json:"status"`
	EffectivenessScore     int                 `json:"effectiveness_score"`
	LastTestedDate         *grc.Date           `json:"last_tested_date"`
	NextTestDate           *grc.Date           `json:"next_test_date"`
	FrameworksMapped       database.IDs        `json:"frameworks_mapped"`
	RisksMitigated         database.IDs        `json:"risks_mitigated"`
	AuditSteps             database.AuditSteps `json:"audit_steps"`
	ImplementationEvidence []taskInput         `json:"implementation_evidence"`
}

type controlPatch struct {
	Name                   *string              `json:"name"`
	Description            *string              `json:"description"`
	Owner                  *uuid.UUID           `json:"owner"`
	Status                 *string              `json:"status"`
	EffectivenessScore     *int                 `json:"effectiveness_score"`
	LastTestedDate         *grc.Date            `json:"last_tested_date"`
	NextTestDate           *grc.Date            `json:"next_test_date"`
	FrameworksMapped       *database.IDs        `json:"frameworks_mapped"`
	RisksMitigated         *database.IDs        `json:"risks_mitigated"`
	AuditSteps             *database.AuditSteps `json:"audit_steps"`
	ImplementationEvidence *[]taskInput         `json:"implementation_evidence"`
}

type controlView struct {
	ID                     uuid.UUID                 `json:"_id"`
	Name                   string                    `json:"name"`
	Description            string                    `json:"description"`
	Owner                  *repository.UserRef       `json:"owner"`
	Status                 string                    `json:"status"`
	EffectivenessScore     int                       `json:"effectiveness_score"`
	LastTestedDate         *time.Time                `json:"last_tested_date,omitempty"`
	NextTestDate           *time.Time                `json:"next_test_date,omitempty"`
	FrameworksMapped       []repository.FrameworkRef `json:"frameworks_mapped"`
	RisksMitigated         []repository.RiskRef      `json:"risks_mitigated"`
	AuditSteps             database.AuditSteps       `json:"audit_steps"`
	ImplementationEvidence []taskView                `json:"implementation_evidence"`
	timestamps
}

func validateControl(c *database.Control) error {
	return grc.First(
		grc.MaxLen("name", c.Name, 500),
		grc.MaxLen("description", c.Description, 2000),
		grc.ControlStatus.Check(c.Status),
		grc.Range("effectiveness_score", c.EffectivenessScore, 0, 100),
		checkAuditSteps(c.AuditSteps),
	)
}

func controlResource() *resource[database.Control, controlInput, controlPatch] {
	return &resource[database.Control, controlInput, controlPatch]{
		kind:  grc.Controls,
		label: "Control",
		table: (*repository.Store).Controls,
		id:    func(c *database.Control) uuid.UUID { return c.ID },

		create: func(rc *reqCtx, in *controlInput) (*database.Control, []repository.RefCheck, error) {
			if in.Name == "" || in.Description == "" || in.Owner == nil {
				return nil, nil, grc.Validation("Please include all required fields: name, description, owner")
			}
			tasks, assignees, err := buildTasks("implementation evidence", in.ImplementationEvidence)
			if err != nil {
				return nil, nil, err
			}
			c := &database.Control{
				ID:                     uuid.New(),
				Name:                   in.Name,
				Description:            in.Description,
				OwnerID:                *in.Owner,
				Status:                 in.Status,
				EffectivenessScore:     in.EffectivenessScore,
				LastTestedDate:         in.LastTestedDate.Ptr(),
				NextTestDate:           in.NextTestDate.Ptr(),
				FrameworksMapped:       in.FrameworksMapped,
				RisksMitigated:         in.RisksMitigated,
				AuditSteps:             in.AuditSteps,
				ImplementationEvidence: tasks,
				CreatedAt:              rc.now,
				UpdatedAt:              rc.now,
			}
			if c.Status == "" {
				c.Status = "Not Implemented"
			}
			if err := validateControl(c); err != nil {
				return nil, nil, err
			}
			return c, []repository.RefCheck{
				repository.One(repository.Users, in.Owner, "Provided owner user ID does not exist"),
				repository.Linked(repository.Frameworks, in.FrameworksMapped, "frameworks"),
				repository.Linked(repository.Risks, in.RisksMitigated, "risks"),
				{Collection: repository.Users, IDs: assignees, Message: "One or more implementation evidence assignees not found"},
			}, nil
		},

		update: func(rc *reqCtx, c *database.Control, p *controlPatch) ([]repository.RefCheck, error) {
			set(&c.Name, p.Name)
			set(&c.Description, p.Description)
			set(&c.OwnerID, p.Owner)
			set(&c.Status, p.Status)
			set(&c.EffectivenessScore, p.EffectivenessScore)
			setDate(&c.LastTestedDate, p.LastTestedDate)
			setDate(&c.NextTestDate, p.NextTestDate)
			set(&c.FrameworksMapped, p.FrameworksMapped)
			set(&c.RisksMitigated, p.RisksMitigated)
			set(&c.AuditSteps, p.AuditSteps)
			var assignees []uuid.UUID
			if p.ImplementationEvidence != nil {
				tasks, users, err := buildTasks("implementation evidence", *p.ImplementationEvidence)
				if err != nil {
					return nil, err
				}
				c.ImplementationEvidence, assignees = tasks, users
			}
			if c.Name == "" || c.Description == "" {
				return nil, grc.Validation("Control name and description cannot be empty")
			}
			if err := validateControl(c); err != nil {
				return nil, err
			}
			c.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.One(repository.Users, p.Owner, "Provided new owner user ID does not exist"),
				repository.Linked(repository.Frameworks, ids(p.FrameworksMapped), "frameworks"),
				repository.Linked(repository.Risks, ids(p.RisksMitigated), "risks"),
				{Collection: repository.Users, IDs: assignees, Message: "One or more implementation evidence assignees not found"},
			}, nil
		},

		refs: func(c *database.Control, set repository.RefSet) {
			set.Add(repository.Users, c.OwnerID)
			set.Add(repository.Users, taskUsers(c.ImplementationEvidence)...)
			set.Add(repository.Frameworks, c.FrameworksMapped...)
			set.Add(repository.Risks, c.RisksMitigated...)
		},

		view: func(c *database.Control, l *repository.Lookup) any {
			return controlView{
				ID:                     c.ID,
				Name:                   c.Name,
				Description:            c.Description,
				Owner:                  l.User(&c.OwnerID),
				Status:                 c.Status,
				EffectivenessScore:     c.EffectivenessScore,
				LastTestedDate:         c.LastTestedDate,
				NextTestDate:           c.NextTestDate,
				FrameworksMapped:       l.FrameworkList(c.FrameworksMapped),
				RisksMitigated:         l.RiskList(c.RisksMitigated),
				AuditSteps:             nonNil(c.AuditSteps),
				ImplementationEvidence: viewTasks(c.ImplementationEvidence, l),
				timestamps:             timestamps{c.CreatedAt, c.UpdatedAt},
			}
		},
	}
}
