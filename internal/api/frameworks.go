package api

import (
	"fmt"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/internal/repository"
)

type frameworkInput struct {
	Name                   string       `json:"name"`
	Version                string       `json:"version"`
	Type                   string       `json:"type"`
	Description            string       `json:"description"`
	Source                 string       `json:"source"`
	ComplianceRequirements string       `json:"compliance_requirements"`
	ControlsMapped         database.IDs `json:"controls_mapped"`
}

type frameworkPatch struct {
	Name                   *string       `json:"name"`
	Version                *string       `json:"version"`
	Type                   *string       `json:"type"`
	Description            *string       `json:"description"`
	Source                 *string       `json:"source"`
	ComplianceRequirements *string       `json:"compliance_requirements"`
	ControlsMapped         *database.IDs `json:"controls_mapped"`
}

type frameworkView struct {
	ID                     uuid.UUID               `json:"_id"`
	Name                   string                  `json:"name"`
	Version                string                  `json:"version"`
	Type                   string                  `json:"type"`
	Description            string                  `json:"description"`
	Source                 string                  `json:"source"`
	ComplianceRequirements string                  `json:"compliance_requirements"`
	ControlsMapped         []repository.ControlRef `json:"controls_mapped"`
	timestamps
}

func validateFramework(f *database.Framework) error {
	if f.Name == "" || f.Version == "" {
		return grc.Validation("Framework name and version cannot be empty")
	}
	return grc.First(
		grc.MaxLen("name", f.Name, 200),
		grc.MaxLen("version", f.Version, 50),
		grc.FrameworkType.Check(f.Type),
		grc.MaxLen("description", f.Description, 2000),
		grc.MaxLen("source", f.Source, 100),
		grc.MaxLen("compliance_requirements", f.ComplianceRequirements, 2000),
	)
}

func frameworkResource() *resource[database.Framework, frameworkInput, frameworkPatch] {
	return &resource[database.Framework, frameworkInput, frameworkPatch]{
		kind:  grc.Frameworks,
		label: "Framework",
		table: (*repository.Store).Frameworks,
		id:    func(f *database.Framework) uuid.UUID { return f.ID },

		create: func(rc *reqCtx, in *frameworkInput) (*database.Framework, []repository.RefCheck, error) {
			if in.Name == "" || in.Version == "" || in.Type == "" {
				return nil, nil, grc.Validation("Please include all required fields: name, version, type")
			}
			f := &database.Framework{
				ID:                     uuid.New(),
				Name:                   in.Name,
				Version:                in.Version,
				Type:                   in.Type,
				Description:            in.Description,
				Source:                 in.Source,
				ComplianceRequirements: in.ComplianceRequirements,
				ControlsMapped:         in.ControlsMapped,
				CreatedAt:              rc.now,
				UpdatedAt:              rc.now,
			}
			if err := validateFramework(f); err != nil {
				return nil, nil, err
			}
			return f, []repository.RefCheck{
				repository.Linked(repository.Controls, in.ControlsMapped, "controls"),
			}, nil
		},

		update: func(rc *reqCtx, f *database.Framework, p *frameworkPatch) ([]repository.RefCheck, error) {
			set(&f.Name, p.Name)
			set(&f.Version, p.Version)
			set(&f.Type, p.Type)
			set(&f.Description, p.Description)
			set(&f.Source, p.Source)
			set(&f.ComplianceRequirements, p.ComplianceRequirements)
			set(&f.ControlsMapped, p.ControlsMapped)
			if err := validateFramework(f); err != nil {
				return nil, err
			}
			f.UpdatedAt = rc.now
			return []repository.RefCheck{
				repository.Linked(repository.Controls, ids(p.ControlsMapped), "controls"),
			}, nil
		},

		refs: func(f *database.Framework, set repository.RefSet) {
			set.Add(repository.Controls, f.ControlsMapped...)
		},

		view: func(f *database.Framework, l *repository.Lookup) any {
			return frameworkView{
				ID:                     f.ID,
				Name:                   f.Name,
				Version:                f.Version,
				Type:                   f.Type,
				Description:            f.Description,
				Source:                 f.Source,
				ComplianceRequirements: f.ComplianceRequirements,
				ControlsMapped:         l.ControlList(f.ControlsMapped),
				timestamps:             timestamps{f.CreatedAt, f.UpdatedAt},
			}
		},

		duplicate: func(f *database.Framework, _ *repository.DuplicateError) string {
			return fmt.Sprintf("Framework with name '%s' and version '%s' already exists", f.Name, f.Version)
		},
	}
}
