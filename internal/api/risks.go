package api

import (
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
	"github.com/Armour007/grc-backend/internal/risk"
)

type riskInput struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Impact          int          `json:"impact"`
	Likelihood      int          `json:"likelihood"`
	ResidualScore   int          `json:"residual_score"`
	Owner           *uuid.UUID   `json:"owner"`
	Status          string       `json:"status"`
	TreatmentPlan   string       `json:"treatment_plan"`
	MitigationTasks []taskInput  `json:"mitigation_tasks"`
	AssetsLinked    database.IDs `json:"assets_linked"`
	ControlsLinked  database.IDs `json:"controls_linked"`
	NextReviewDate  *grc.Date    `json:"next_review_date"`
}

type riskPatch struct {
	Name            *string       `json:"name"`
	Description     *string       `json:"description"`
	Category        *string       `json:"category"`
	Impact          *int          `json:"impact"`
	Likelihood      *int          `json:"likelihood"`
	ResidualScore   *int          `json:"residual_score"`
	Owner           *uuid.UUID    `json:"owner"`
	Status          *string       `json:"status"`
	TreatmentPlan   *string       `json:"treatment_plan"`
	MitigationTasks *[]taskInput  `json:"mitigation_tasks"`
	AssetsLinked    *database.IDs `json:"assets_linked"`
	ControlsLinked  *database.IDs `json:"controls_linked"`
	LastReviewDate  *grc.Date     `json:"last_review_date"`
	NextReviewDate  *grc.Date     `json:"next_review_date"`
}

type riskView struct {
	ID              uuid.UUID               `json:"_id"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description"`
	Category        string                  `json:"category"`
	Impact          int                     `json:"impact"`
	Likelihood      int                     `json:"likelihood"`
	InherentScore   int                     `json:"inherent_score"`
	ResidualScore   int                     `json:"residual_score"`
	Owner           *repository.UserRef     `json:"owner"`
	Status          string                  `json:"status"`
	TreatmentPlan   string                  `json:"treatment_plan"`
	MitigationTasks []taskView              `json:"mitigation_tasks"`
	AssetsLinked    []repository.AssetRef   `json:"assets_linked"`
	ControlsLinked  []repository.ControlRef `json:"controls_linked"`
	LastReviewDate  *time.Time              `json:"last_review_date,omitempty"`
	NextReviewDate  *time.Time              `json:"next_review_date,omitempty"`
	timestamps
}

func validateRisk(r *database.Risk) error {
	return grc.First(
		grc.MaxLen("name", r.Name, 500),
		grc.MaxLen("description", r.Description, 2000),
		grc.RiskCategory.Check(r.Category),
		grc.Range("impact", r.Impact, 1, 5),
		grc.Range("likelihood", r.Likelihood, 1, 5),
		grc.RiskStatus.Check(r.Status),
		grc.MaxLen("treatment_plan", r.TreatmentPlan, 2000),
	)
}

func riskResource() *resource[database.Risk, riskInput, riskPatch] {
	return &resource[database.Risk, riskInput, riskPatch]{
		kind:  grc.Risks,
		label: "Risk",
		table: (*repository.Store).Risks,
		id:    func(r *database.Risk) uuid.UUID { return r.ID },

		create: func(rc *reqCtx, in *riskInput) (*database.Risk, []repository.RefCheck, error) {
			if in.Name == "" || in.Impact == 0 || in.Likelihood == 0 || in.Owner == nil {
				return nil, nil, grc.Validation("Please include all required fields: name, impact, likelihood, owner")
			}
			tasks, assignees, err := buildTasks("mitigation task", in.MitigationTasks)
			if err != nil {
				return nil, nil, err
			}
			scores := risk.OnCreate(in.Impact, in.Likelihood, in.ResidualScore)
			next := in.NextReviewDate.Ptr()
			if next == nil {
				t := rc.now.AddDate(1, 0, 0)
				next = &t
			}
			r := &database.Risk{
				ID:              uuid.New(),
				Name:            in.Name,
				Description:     in.Description,
				Category:        in.Category,
				Impact:          in.Impact,
				Likelihood:      in.Likelihood,
				InherentScore:   scores.Inherent,
				ResidualScore:   scores.Residual,
				OwnerID:         *in.Owner,
				Status:          in.Status,
				TreatmentPlan:   in.TreatmentPlan,
				MitigationTasks: tasks,
				AssetsLinked:    in.AssetsLinked,
				ControlsLinked:  in.ControlsLinked,
				LastReviewDate:  &rc.now,
				NextReviewDate:  next,
				CreatedAt:       rc.now,
				UpdatedAt:       rc.now,
			}
			if r.Category == "" {
				r.Category = "Operational"
			}
			if r.Status == "" {
				r.Status = "Open"
			}
			if err := validateRisk(r); err != nil {
				return nil, nil, err
			}
			return r, []repository.RefCheck{
				repository.One(repository.Users, in.Owner, "Provided owner user ID does not exist"),
				repository.Linked(repository.Assets, in.AssetsLinked, "assets"),
				repository.Linked(repository.Controls, in.ControlsLinked, "controls"),
				{Collection: repository.Users, IDs: assignees, Message: "One or more mitigation task assignees not found"},
			}, nil
		},

		update: func(rc *reqCtx, r *database.Risk, p *riskPatch) ([]repository.RefCheck, error) {
			prev := risk.Scores{Inherent: r.InherentScore, Residual: r.ResidualScore}
			set(&r.Name, p.Name)
			set(&r.Description, p.Description)
			set(&r.Category, p.Category)
			set(&r.Impact, p.Impact)
			set(&r.Likelihood, p.Likelihood)
			set(&r.OwnerID, p.Owner)
			set(&r.Status, p.Status)
			set(&r.TreatmentPlan, p.TreatmentPlan)
			set(&r.AssetsLinked, p.AssetsLinked)
			set(&r.ControlsLinked, p.ControlsLinked)
			setDate(&r.LastReviewDate, p.LastReviewDate)
			setDate(&r.NextReviewDate, p.NextReviewDate)
			var assignees []uuid.UUID
			if p.MitigationTasks != nil {
				tasks, users, err := buildTasks("mitigation task", *p.MitigationTasks)
				if err != nil {
					return nil, err
				}
				r.MitigationTasks, assignees = tasks, users
			}
			if r.Name == "" {
				return nil, grc.Validation("Risk name cannot be empty")
			}
			if err := validateRisk(r); err != nil {
				return nil, err
			}
			scores := risk.OnUpdate(prev, r.Impact, r.Likelihood, risk.Change{
				Impact:     p.Impact,
				Likelihood: p.Likelihood,
				Residual:   p.ResidualScore,
			})
			r.InherentScore, r.ResidualScore = scores.Inherent, scores.Residual
			r.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.One(repository.Users, p.Owner, "Provided new owner user ID does not exist"),
				repository.Linked(repository.Assets, ids(p.AssetsLinked), "assets"),
				repository.Linked(repository.Controls, ids(p.ControlsLinked), "controls"),
				{Collection: repository.Users, IDs: assignees, Message: "One or more mitigation task assignees not found"},
			}, nil
		},

		refs: func(r *database.Risk, set repository.RefSet) {
			set.Add(repository.Users, r.OwnerID)
			set.Add(repository.Users, taskUsers(r.MitigationTasks)...)
			set.Add(repository.Assets, r.AssetsLinked...)
			set.Add(repository.Controls, r.ControlsLinked...)
		},

		view: func(r *database.Risk, l *repository.Lookup) any {
			return riskView{
				ID:              r.ID,
				Name:            r.Name,
				Description:     r.Description,
				Category:        r.Category,
				Impact:          r.Impact,
				Likelihood:      r.Likelihood,
				InherentScore:   r.InherentScore,
				ResidualScore:   r.ResidualScore,
				Owner:           l.User(&r.OwnerID),
				Status:          r.Status,
				TreatmentPlan:   r.TreatmentPlan,
				MitigationTasks: viewTasks(r.MitigationTasks, l),
				AssetsLinked:    l.AssetList(r.AssetsLinked),
				ControlsLinked:  l.ControlList(r.ControlsLinked),
				LastReviewDate:  r.LastReviewDate,
				NextReviewDate:  r.NextReviewDate,
				timestamps:      timestamps{r.CreatedAt, r.UpdatedAt},
			}
		},
	}
}
