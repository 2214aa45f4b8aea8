package api

import (
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

type evidenceInput struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	FileName       string       `json:"file_name"`
	FilePath       string       `json:"file_path"`
	FileMimeType   string       `json:"file_mime_type"`
	Tags           []string     `json:"tags"`
	LinkedControls database.IDs `json:"linked_controls"`
	LinkedAudits   database.IDs `json:"linked_audits"`
	LinkedRisks    database.IDs `json:"linked_risks"`
	ExpirationDate *grc.Date    `json:"expiration_date"`
}

// evidencePatch has no file fields: a new file is a new evidence record.
type evidencePatch struct {
	Title          *string       `json:"title"`
	Description    *string       `json:"description"`
	Status         *string       `json:"status"`
	ReviewedBy     *uuid.UUID    `json:"reviewed_by"`
	ReviewComments *string       `json:"review_comments"`
	Version        *int          `json:"version"`
	Tags           *[]string     `json:"tags"`
	LinkedControls *database.IDs `json:"linked_controls"`
	LinkedAudits   *database.IDs `json:"linked_audits"`
	LinkedRisks    *database.IDs `json:"linked_risks"`
	ExpirationDate *grc.Date     `json:"expiration_date"`
}

type evidenceView struct {
	ID             uuid.UUID               `json:"_id"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	FileName       string                  `json:"file_name"`
	FilePath       string                  `json:"file_path"`
	FileMimeType   string                  `json:"file_mime_type"`
	UploadedBy     *repository.UserRef     `json:"uploaded_by"`
	UploadDate     time.Time               `json:"upload_date"`
	Status         string                  `json:"status"`
	ReviewedBy     *repository.UserRef     `json:"reviewed_by"`
	ReviewDate     *time.Time              `json:"review_date,omitempty"`
	ReviewComments string                  `json:"review_comments"`
	Version        int                     `json:"version"`
	Tags           []string                `json:"tags"`
	LinkedControls []repository.ControlRef `json:"linked_controls"`
	LinkedAudits   []repository.AuditRef   `json:"linked_audits"`
	LinkedRisks    []repository.RiskRef    `json:"linked_risks"`
	ExpirationDate *time.Time              `json:"expiration_date,omitempty"`
	timestamps
}

// markReviewed stamps review_date the first time evidence is approved, rejected or given a
// reviewer. An existing review_date is never replaced.
func markReviewed(e *database.Evidence, status *string, reviewer *uuid.UUID, now time.Time) {
	if e.ReviewDate != nil {
		return
	}
	decided := status != nil && (*status == grc.EvidenceApproved || *status == grc.EvidenceRejected)
	if decided || reviewer != nil {
		t := now
		e.ReviewDate = &t
	}
}

func evidenceResource() *resource[database.Evidence, evidenceInput, evidencePatch] {
	return &resource[database.Evidence, evidenceInput, evidencePatch]{
		kind:  grc.Evidence,
		label: "Evidence",
		table: (*repository.Store).Evidence,
		id:    func(e *database.Evidence) uuid.UUID { return e.ID },

		create: func(rc *reqCtx, in *evidenceInput) (*database.Evidence, []repository.RefCheck, error) {
			if in.Title == "" || in.FileName == "" || in.FilePath == "" {
				return nil, nil, grc.Validation("Please include all required fields: title, file_name, file_path")
			}
			e := &database.Evidence{
				ID:             uuid.New(),
				Title:          in.Title,
				Description:    in.Description,
				FileName:       in.FileName,
				FilePath:       in.FilePath,
				FileMimeType:   in.FileMimeType,
				UploadedBy:     rc.actor.ID,
				UploadDate:     rc.now,
				Status:         grc.EvidencePendingReview,
				Version:        1,
				Tags:           in.Tags,
				LinkedControls: in.LinkedControls,
				LinkedAudits:   in.LinkedAudits,
				LinkedRisks:    in.LinkedRisks,
				ExpirationDate: in.ExpirationDate.Ptr(),
				CreatedAt:      rc.now,
				UpdatedAt:      rc.now,
			}
			return e, []repository.RefCheck{
				repository.Linked(repository.Controls, in.LinkedControls, "controls"),
				repository.Linked(repository.Audits, in.LinkedAudits, "audits"),
				repository.Linked(repository.Risks, in.LinkedRisks, "risks"),
			}, nil
		},

		update: func(rc *reqCtx, e *database.Evidence, p *evidencePatch) ([]repository.RefCheck, error) {
			if p.Status != nil {
				if err := grc.EvidenceStatus.Check(*p.Status); err != nil {
					return nil, err
				}
			}
			if p.Version != nil && *p.Version < 1 {
				return nil, grc.Validation("version must be at least 1")
			}
			markReviewed(e, p.Status, p.ReviewedBy, rc.now)
			set(&e.Title, p.Title)
			set(&e.Description, p.Description)
			set(&e.Status, p.Status)
			if p.ReviewedBy != nil {
				e.ReviewedBy = p.ReviewedBy
			}
			set(&e.ReviewComments, p.ReviewComments)
			set(&e.Version, p.Version)
			if p.Tags != nil {
				e.Tags = *p.Tags
			}
			set(&e.LinkedControls, p.LinkedControls)
			set(&e.LinkedAudits, p.LinkedAudits)
			set(&e.LinkedRisks, p.LinkedRisks)
			setDate(&e.ExpirationDate, p.ExpirationDate)
			if e.Title == "" {
				return nil, grc.Validation("Evidence title cannot be empty")
			}
			e.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.One(repository.Users, p.ReviewedBy, "Provided reviewer user ID does not exist"),
				repository.Linked(repository.Controls, ids(p.LinkedControls), "controls"),
				repository.Linked(repository.Audits, ids(p.LinkedAudits), "audits"),
				repository.Linked(repository.Risks, ids(p.LinkedRisks), "risks"),
			}, nil
		},

		refs: func(e *database.Evidence, set repository.RefSet) {
			set.Add(repository.Users, e.UploadedBy)
			set.AddPtr(repository.Users, e.ReviewedBy)
			set.Add(repository.Controls, e.LinkedControls...)
			set.Add(repository.Audits, e.LinkedAudits...)
			set.Add(repository.Risks, e.LinkedRisks...)
		},

		view: func(e *database.Evidence, l *repository.Lookup) any {
			return evidenceView{
				ID:             e.ID,
				Title:          e.Title,
				Description:    e.Description,
				FileName:       e.FileName,
				FilePath:       e.FilePath,
				FileMimeType:   e.FileMimeType,
				UploadedBy:     l.User(&e.UploadedBy),
				UploadDate:     e.UploadDate,
				Status:         e.Status,
				ReviewedBy:     l.User(e.ReviewedBy),
				ReviewDate:     e.ReviewDate,
				ReviewComments: e.ReviewComments,
				Version:        e.Version,
				Tags:           nonNil(e.Tags),
				LinkedControls: l.ControlList(e.LinkedControls),
				LinkedAudits:   l.AuditList(e.LinkedAudits),
				LinkedRisks:    l.RiskList(e.LinkedRisks),
				ExpirationDate: e.ExpirationDate,
				timestamps:     timestamps{e.CreatedAt, e.UpdatedAt},
			}
		},
	}
}
