package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

type assetInput struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	Owner          *uuid.UUID `json:"owner"`
	Classification string     `json:"classification"`
	Location       string     `json:"location"`
	Status         string     `json:"status"`
	Tags           []string   `json:"tags"`
	CMDBID         string     `json:"cmdb_id"`
}

type assetPatch struct {
	Name           *string    `json:"name"`
	Type           *string    `json:"type"`
	Description    *string    `json:"description"`
	Owner          *uuid.UUID `json:"owner"`
	Classification *string    `json:"classification"`
	Location       *string    `json:"location"`
	Status         *string    `json:"status"`
	Tags           *[]string  `json:"tags"`
	LastReviewDate *grc.Date  `json:"last_review_date"`
	CMDBID         *string    `json:"cmdb_id"`
}

type assetView struct {
	ID             uuid.UUID           `json:"_id"`
	Name           string              `json:"name"`
	Type           string              `json:"type"`
	Description    string              `json:"description"`
	Owner          *repository.UserRef `json:"owner"`
	Classification string              `json:"classification"`
	Location       string              `json:"location"`
	Status         string              `json:"status"`
	Tags           []string            `json:"tags"`
	LastReviewDate *time.Time          `json:"last_review_date,omitempty"`
	CMDBID         *string             `json:"cmdb_id,omitempty"`
	timestamps
}

func validateAsset(a *database.Asset) error {
	return grc.First(
		grc.MaxLen("name", a.Name, 200),
		grc.AssetType.Check(a.Type),
		grc.MaxLen("description", a.Description, 1000),
		grc.AssetClassification.Check(a.Classification),
		grc.MaxLen("location", a.Location, 200),
		grc.AssetStatus.Check(a.Status),
	)
}

// optionalString maps a blank external identifier to NULL so the unique index ignores it.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func assetResource() *resource[database.Asset, assetInput, assetPatch] {
	return &resource[database.Asset, assetInput, assetPatch]{
		kind:  grc.Assets,
		label: "Asset",
		table: (*repository.Store).Assets,
		id:    func(a *database.Asset) uuid.UUID { return a.ID },

		create: func(rc *reqCtx, in *assetInput) (*database.Asset, []repository.RefCheck, error) {
			if in.Name == "" || in.Type == "" || in.Owner == nil || in.Classification == "" {
				return nil, nil, grc.Validation("Please include all required fields: name, type, owner, classification")
			}
			a := &database.Asset{
				ID:             uuid.New(),
				Name:           in.Name,
				Type:           in.Type,
				Description:    in.Description,
				OwnerID:        *in.Owner,
				Classification: in.Classification,
				Location:       in.Location,
				Status:         in.Status,
				Tags:           in.Tags,
				LastReviewDate: &rc.now,
				CMDBID:         optionalString(in.CMDBID),
				CreatedAt:      rc.now,
				UpdatedAt:      rc.now,
			}
			if a.Status == "" {
				a.Status = "Active"
			}
			if err := validateAsset(a); err != nil {
				return nil, nil, err
			}
			return a, []repository.RefCheck{
				repository.One(repository.Users, in.Owner, "Provided owner user ID does not exist"),
			}, nil
		},

		update: func(rc *reqCtx, a *database.Asset, p *assetPatch) ([]repository.RefCheck, error) {
			set(&a.Name, p.Name)
			set(&a.Type, p.Type)
			set(&a.Description, p.Description)
			set(&a.OwnerID, p.Owner)
			set(&a.Classification, p.Classification)
			set(&a.Location, p.Location)
			set(&a.Status, p.Status)
			if p.Tags != nil {
				a.Tags = *p.Tags
			}
			setDate(&a.LastReviewDate, p.LastReviewDate)
			if p.CMDBID != nil {
				a.CMDBID = optionalString(*p.CMDBID)
			}
			if a.Name == "" {
				return nil, grc.Validation("Asset name cannot be empty")
			}
			if err := validateAsset(a); err != nil {
				return nil, err
			}
			a.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.One(repository.Users, p.Owner, "Provided new owner user ID does not exist"),
			}, nil
		},

		refs: func(a *database.Asset, set repository.RefSet) { set.Add(repository.Users, a.OwnerID) },

		view: func(a *database.Asset, l *repository.Lookup) any {
			return assetView{
				ID:             a.ID,
				Name:           a.Name,
				Type:           a.Type,
				Description:    a.Description,
				Owner:          l.User(&a.OwnerID),
				Classification: a.Classification,
				Location:       a.Location,
				Status:         a.Status,
				Tags:           nonNil(a.Tags),
				LastReviewDate: a.LastReviewDate,
				CMDBID:         a.CMDBID,
				timestamps:     timestamps{a.CreatedAt, a.UpdatedAt},
			}
		},

		duplicate: func(a *database.Asset, e *repository.DuplicateError) string {
			if strings.Contains(e.Constraint, "cmdb") {
				return fmt.Sprintf("Asset with CMDB ID '%s' already exists", deref(a.CMDBID))
			}
			return fmt.Sprintf("Asset with name '%s' already exists", a.Name)
		},
	}
}

// nonNil keeps empty lists as [] in responses.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
