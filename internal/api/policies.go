package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/mesh"
	"github.com/Armour007/grc-backend/internal/policy"
	"github.com/Armour007/grc-backend/internal/repository"
)

type policyInput struct {
	Title                    string       `json:"title"`
	Version                  string       `json:"version"`
	ContentURL               string       `json:"content_url"`
	Owner                    *uuid.UUID   `json:"owner"`
	NextReviewDate           *grc.Date    `json:"next_review_date"`
	AudienceGroups           []string     `json:"audience_groups"`
	ControlsLinked           database.IDs `json:"controls_linked"`
	AttestationFrequencyDays *int         `json:"attestation_frequency_days"`
}

type policyPatch struct {
	Title                    *string       `json:"title"`
	Version                  *string       `json:"version"`
	ContentURL               *string       `json:"content_url"`
	Owner                    *uuid.UUID    `json:"owner"`
	Status                   *string       `json:"status"`
	LastReviewDate           *grc.Date     `json:"last_review_date"`
	NextReviewDate           *grc.Date     `json:"next_review_date"`
	ApprovalDate             *grc.Date     `json:"approval_date"`
	ApprovedBy               *uuid.UUID    `json:"approved_by"`
	AudienceGroups           *[]string     `json:"audience_groups"`
	ControlsLinked           *database.IDs `json:"controls_linked"`
	AttestationFrequencyDays *int          `json:"attestation_frequency_days"`
}

type attestationView struct {
	User       *repository.UserRef `json:"user"`
	AttestedAt time.Time           `json:"attested_at"`
	IsAttested bool                `json:"is_attested"`
}

type policyView struct {
	ID                       uuid.UUID               `json:"_id"`
	Title                    string                  `json:"title"`
	Version                  string                  `json:"version"`
	ContentURL               string                  `json:"content_url"`
	Owner                    *repository.UserRef     `json:"owner"`
	Status                   string                  `json:"status"`
	LastReviewDate           *time.Time              `json:"last_review_date,omitempty"`
	NextReviewDate           time.Time               `json:"next_review_date"`
	ApprovalDate             *time.Time              `json:"approval_date,omitempty"`
	ApprovedBy               *repository.UserRef     `json:"approved_by"`
	AudienceGroups           []string                `json:"audience_groups"`
	ControlsLinked           []repository.ControlRef `json:"controls_linked"`
	Attestations             []attestationView       `json:"attestations"`
	AttestationFrequencyDays int                     `json:"attestation_frequency_days"`
	timestamps
}

func validatePolicy(p *database.Policy) error {
	if p.Title == "" || p.Version == "" || p.ContentURL == "" {
		return grc.Validation("Policy title, version and content_url cannot be empty")
	}
	if p.AttestationFrequencyDays < 0 {
		return grc.Validation("attestation_frequency_days cannot be negative")
	}
	return grc.PolicyStatus.Check(p.Status)
}

func policyResource() *resource[database.Policy, policyInput, policyPatch] {
	return &resource[database.Policy, policyInput, policyPatch]{
		kind:  grc.Policies,
		label: "Policy",
		table: (*repository.Store).Policies,
		id:    func(p *database.Policy) uuid.UUID { return p.ID },

		create: func(rc *reqCtx, in *policyInput) (*database.Policy, []repository.RefCheck, error) {
			if in.Title == "" || in.Version == "" || in.ContentURL == "" || in.Owner == nil || in.NextReviewDate == nil {
				return nil, nil, grc.Validation("Please include all required fields: title, version, content_url, owner, next_review_date")
			}
			freq := policy.DefaultFrequencyDays
			if in.AttestationFrequencyDays != nil {
				freq = *in.AttestationFrequencyDays
			}
			p := &database.Policy{
				ID:                       uuid.New(),
				Title:                    in.Title,
				Version:                  in.Version,
				ContentURL:               in.ContentURL,
				OwnerID:                  *in.Owner,
				Status:                   grc.PolicyDraft,
				LastReviewDate:           &rc.now,
				NextReviewDate:           in.NextReviewDate.Time,
				AudienceGroups:           in.AudienceGroups,
				ControlsLinked:           in.ControlsLinked,
				Attestations:             database.Attestations{},
				AttestationFrequencyDays: freq,
				CreatedAt:                rc.now,
				UpdatedAt:                rc.now,
			}
			if err := validatePolicy(p); err != nil {
				return nil, nil, err
			}
			return p, []repository.RefCheck{
				repository.One(repository.Users, in.Owner, "Provided owner user ID does not exist"),
				repository.Linked(repository.Controls, in.ControlsLinked, "controls"),
			}, nil
		},

		update: func(rc *reqCtx, pol *database.Policy, p *policyPatch) ([]repository.RefCheck, error) {
			set(&pol.Title, p.Title)
			set(&pol.Version, p.Version)
			set(&pol.ContentURL, p.ContentURL)
			set(&pol.OwnerID, p.Owner)
			set(&pol.Status, p.Status)
			setDate(&pol.LastReviewDate, p.LastReviewDate)
			if p.NextReviewDate != nil {
				pol.NextReviewDate = p.NextReviewDate.Time
			}
			setDate(&pol.ApprovalDate, p.ApprovalDate)
			if p.ApprovedBy != nil {
				pol.ApprovedBy = p.ApprovedBy
			}
			if p.AudienceGroups != nil {
				pol.AudienceGroups = *p.AudienceGroups
			}
			set(&pol.ControlsLinked, p.ControlsLinked)
			set(&pol.AttestationFrequencyDays, p.AttestationFrequencyDays)
			if err := validatePolicy(pol); err != nil {
				return nil, err
			}
			pol.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.One(repository.Users, p.Owner, "Provided new owner user ID does not exist"),
				repository.One(repository.Users, p.ApprovedBy, "Provided approved_by user ID does not exist"),
				repository.Linked(repository.Controls, ids(p.ControlsLinked), "controls"),
			}, nil
		},

		refs: addPolicyRefs,
		view: func(p *database.Policy, l *repository.Lookup) any { return viewPolicy(p, l) },
	}
}

func addPolicyRefs(p *database.Policy, set repository.RefSet) {
	set.Add(repository.Users, p.OwnerID)
	set.AddPtr(repository.Users, p.ApprovedBy)
	set.Add(repository.Controls, p.ControlsLinked...)
	for _, a := range p.Attestations {
		set.Add(repository.Users, a.User)
	}
}

func viewPolicy(p *database.Policy, l *repository.Lookup) policyView {
	atts := make([]attestationView, len(p.Attestations))
	for i, a := range p.Attestations {
		atts[i] = attestationView{User: l.User(&a.User), AttestedAt: a.AttestedAt, IsAttested: a.IsAttested}
	}
	return policyView{
		ID:                       p.ID,
		Title:                    p.Title,
		Version:                  p.Version,
		ContentURL:               p.ContentURL,
		Owner:                    l.User(&p.OwnerID),
		Status:                   p.Status,
		LastReviewDate:           p.LastReviewDate,
		NextReviewDate:           p.NextReviewDate,
		ApprovalDate:             p.ApprovalDate,
		ApprovedBy:               l.User(p.ApprovedBy),
		AudienceGroups:           nonNil(p.AudienceGroups),
		ControlsLinked:           l.ControlList(p.ControlsLinked),
		Attestations:             atts,
		AttestationFrequencyDays: p.AttestationFrequencyDays,
		timestamps:               timestamps{p.CreatedAt, p.UpdatedAt},
	}
}

// AttestPolicy records the caller's acknowledgement of a policy.
func (s *Server) AttestPolicy(c *gin.Context) {
	notFound := grc.NotFound("Policy")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondError(c, notFound)
		return
	}
	st, err := s.store()
	if err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	pol, err := st.Policies().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		s.respondError(c, notFound)
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	user := currentUser(c)
	now := s.now().UTC()
	var renewed bool
	pol.Attestations, renewed = policy.Attest(pol.Attestations, user.ID, now, pol.AttestationFrequencyDays)
	pol.UpdatedAt = now
	if err := st.Policies().Update(ctx, pol); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = notFound
		}
		s.respondError(c, err)
		return
	}
	s.publishChange(ctx, string(grc.Policies), pol.ID, mesh.OpAttest, user.ID)

	refs := repository.RefSet{}
	addPolicyRefs(pol, refs)
	l, err := st.Resolve(ctx, refs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	msg := "Policy attested successfully"
	if renewed {
		msg = "Policy re-attested successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "policy": viewPolicy(pol, l)})
}
