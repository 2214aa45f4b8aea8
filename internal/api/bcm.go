package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

type bcmInput struct {
	PlanName         string            `json:"plan_name"`
	Description      string            `json:"description"`
	Owner            *uuid.UUID        `json:"owner"`
	Status           string            `json:"status"`
	LastReviewDate   *grc.Date         `json:"last_review_date"`
	NextReviewDate   *grc.Date         `json:"next_review_date"`
	Version          string            `json:"version"`
	CriticalityScore *int              `json:"criticality_score"`
	RTO              string            `json:"rto"`
	RPO              string            `json:"rpo"`
	Dependencies     []string          `json:"dependencies"`
	TestResults      []testResultInput `json:"test_results"`
	RelatedAssets    database.IDs      `json:"related_assets"`
	RelatedRisks     database.IDs      `json:"related_risks"`
	DocumentURL      string            `json:"document_url"`
}

type bcmPatch struct {
	PlanName         *string            `json:"plan_name"`
	Description      *string            `json:"description"`
	Owner            *uuid.UUID         `json:"owner"`
	Status           *string            `json:"status"`
	LastReviewDate   *grc.Date          `json:"last_review_date"`
	NextReviewDate   *grc.Date          `json:"next_review_date"`
	Version          *string            `json:"version"`
	CriticalityScore *int               `json:"criticality_score"`
	RTO              *string            `json:"rto"`
	RPO              *string            `json:"rpo"`
	Dependencies     *[]string          `json:"dependencies"`
	TestResults      *[]testResultInput `json:"test_results"`
	RelatedAssets    *database.IDs      `json:"related_assets"`
	RelatedRisks     *database.IDs      `json:"related_risks"`
	DocumentURL      *string            `json:"document_url"`
}

type bcmView struct {
	ID               uuid.UUID             `json:"_id"`
	PlanName         string                `json:"plan_name"`
	Description      string                `json:"description"`
	Owner            *repository.UserRef   `json:"owner"`
	Status           string                `json:"status"`
	LastReviewDate   *time.Time            `json:"last_review_date,omitempty"`
	NextReviewDate   *time.Time            `json:"next_review_date,omitempty"`
	Version          string                `json:"version"`
	CriticalityScore *int                  `json:"criticality_score,omitempty"`
	RTO              string                `json:"rto"`
	RPO              string                `json:"rpo"`
	Dependencies     []string              `json:"dependencies"`
	TestResults      []testResultView      `json:"test_results"`
	RelatedAssets    []repository.AssetRef `json:"related_assets"`
	RelatedRisks     []repository.RiskRef  `json:"related_risks"`
	DocumentURL      string                `json:"document_url"`
	timestamps
}

func validateBCM(b *database.BCMPlan) error {
	if b.PlanName == "" {
		return grc.Validation("BCM plan name cannot be empty")
	}
	err := grc.First(
		grc.BCMStatus.Check(b.Status),
		grc.MaxLen("version", b.Version, 50),
		grc.MaxLen("rto", b.RTO, 100),
		grc.MaxLen("rpo", b.RPO, 100),
	)
	if err != nil || b.CriticalityScore == nil {
		return err
	}
	return grc.Range("criticality_score", *b.CriticalityScore, 1, 5)
}

func testers(rs database.TestResults) []uuid.UUID {
	var out []uuid.UUID
	for _, r := range rs {
		if r.TestedBy != nil {
			out = append(out, *r.TestedBy)
		}
	}
	return out
}

func bcmResource() *resource[database.BCMPlan, bcmInput, bcmPatch] {
	return &resource[database.BCMPlan, bcmInput, bcmPatch]{
		kind:  grc.BCM,
		label: "BCM Plan",
		table: (*repository.Store).BCMPlans,
		id:    func(b *database.BCMPlan) uuid.UUID { return b.ID },

		create: func(rc *reqCtx, in *bcmInput) (*database.BCMPlan, []repository.RefCheck, error) {
			if in.PlanName == "" || in.Owner == nil {
				return nil, nil, grc.Validation("Please include all required fields: plan_name, owner")
			}
			results, tested, err := buildTestResults(in.TestResults)
			if err != nil {
				return nil, nil, err
			}
			b := &database.BCMPlan{
				ID:               uuid.New(),
				PlanName:         in.PlanName,
				Description:      in.Description,
				OwnerID:          *in.Owner,
				Status:           in.Status,
				LastReviewDate:   in.LastReviewDate.Ptr(),
				NextReviewDate:   in.NextReviewDate.Ptr(),
				Version:          in.Version,
				CriticalityScore: in.CriticalityScore,
				RTO:              in.RTO,
				RPO:              in.RPO,
				Dependencies:     in.Dependencies,
				TestResults:      results,
				RelatedAssets:    in.RelatedAssets,
				RelatedRisks:     in.RelatedRisks,
				DocumentURL:      in.DocumentURL,
				CreatedAt:        rc.now,
				UpdatedAt:        rc.now,
			}
			if b.Status == "" {
				b.Status = grc.BCMDraft
			}
			if b.Version == "" {
				b.Version = "1.0"
			}
			if err := validateBCM(b); err != nil {
				return nil, nil, err
			}
			return b, []repository.RefCheck{
				repository.One(repository.Users, in.Owner, "Provided owner user ID does not exist"),
				repository.Linked(repository.Assets, in.RelatedAssets, "assets"),
				repository.Linked(repository.Risks, in.RelatedRisks, "risks"),
				{Collection: repository.Users, IDs: tested, Message: "One or more test result tester user IDs not found"},
			}, nil
		},

		update: func(rc *reqCtx, b *database.BCMPlan, p *bcmPatch) ([]repository.RefCheck, error) {
			set(&b.PlanName, p.PlanName)
			set(&b.Description, p.Description)
			set(&b.OwnerID, p.Owner)
			set(&b.Status, p.Status)
			setDate(&b.LastReviewDate, p.LastReviewDate)
			setDate(&b.NextReviewDate, p.NextReviewDate)
			set(&b.Version, p.Version)
			if p.CriticalityScore != nil {
				b.CriticalityScore = p.CriticalityScore
			}
			set(&b.RTO, p.RTO)
			set(&b.RPO, p.RPO)
			if p.Dependencies != nil {
				b.Dependencies = *p.Dependencies
			}
			var tested []uuid.UUID
			if p.TestResults != nil {
				results, users, err := buildTestResults(*p.TestResults)
				if err != nil {
					return nil, err
				}
				b.TestResults, tested = results, users
			}
			set(&b.RelatedAssets, p.RelatedAssets)
			set(&b.RelatedRisks, p.RelatedRisks)
			set(&b.DocumentURL, p.DocumentURL)
			if err := validateBCM(b); err != nil {
				return nil, err
			}
			b.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.One(repository.Users, p.Owner, "Provided new owner user ID does not exist"),
				repository.Linked(repository.Assets, ids(p.RelatedAssets), "assets"),
				repository.Linked(repository.Risks, ids(p.RelatedRisks), "risks"),
				{Collection: repository.Users, IDs: tested, Message: "One or more test result tester user IDs not found"},
			}, nil
		},

		refs: func(b *database.BCMPlan, set repository.RefSet) {
			set.Add(repository.Users, b.OwnerID)
			set.Add(repository.Users, testers(b.TestResults)...)
			set.Add(repository.Assets, b.RelatedAssets...)
			set.Add(repository.Risks, b.RelatedRisks...)
		},

		view: func(b *database.BCMPlan, l *repository.Lookup) any {
			return bcmView{
				ID:               b.ID,
				PlanName:         b.PlanName,
				Description:      b.Description,
				Owner:            l.User(&b.OwnerID),
				Status:           b.Status,
				LastReviewDate:   b.LastReviewDate,
				NextReviewDate:   b.NextReviewDate,
				Version:          b.Version,
				CriticalityScore: b.CriticalityScore,
				RTO:              b.RTO,
				RPO:              b.RPO,
				Dependencies:     nonNil(b.Dependencies),
				TestResults:      viewTestResults(b.TestResults, l),
				RelatedAssets:    l.AssetList(b.RelatedAssets),
				RelatedRisks:     l.RiskList(b.RelatedRisks),
				DocumentURL:      b.DocumentURL,
				timestamps:       timestamps{b.CreatedAt, b.UpdatedAt},
			}
		},

		duplicate: func(b *database.BCMPlan, _ *repository.DuplicateError) string {
			return fmt.Sprintf("BCM Plan with name '%s' already exists", b.PlanName)
		},
	}
}
