package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
)

// Collection is a table that other records may point at.
type Collection string

const (
	Users      Collection = "users"
	Assets     Collection = "assets"
	Controls   Collection = "controls"
	Frameworks Collection = "frameworks"
	Risks      Collection = "risks"
	Audits     Collection = "audits"
	Evidence   Collection = "evidence"
)

// RefCheck asks that every id resolve in Collection; Message is the client-facing error otherwise.
type RefCheck struct {
	Collection Collection
	IDs        []uuid.UUID
	Message    string
}

// One builds a check for a single optional reference.
func One(c Collection, id *uuid.UUID, msg string) RefCheck {
	if id == nil {
		return RefCheck{Collection: c, Message: msg}
	}
	return RefCheck{Collection: c, IDs: []uuid.UUID{*id}, Message: msg}
}

// Linked builds the usual "One or more linked <what> not found" check.
func Linked(c Collection, ids []uuid.UUID, what string) RefCheck {
	return RefCheck{Collection: c, IDs: ids, Message: "One or more linked " + what + " not found"}
}

// ValidateRefs runs the checks in order and stops at the first one with an unknown id.
// The count query and the caller's later write are separate statements: a record deleted in
// between is not detected.
func (s *Store) ValidateRefs(ctx context.Context, checks ...RefCheck) error {
	for _, c := range checks {
		ids := distinct(c.IDs)
		if len(ids) == 0 {
			continue
		}
		var n int
		q := "SELECT COUNT(*) FROM " + string(c.Collection) + " WHERE id = ANY($1::uuid[])"
		if err := s.db.GetContext(ctx, &n, q, uuidArray(ids)); err != nil {
			return fmt.Errorf("validate %s references: %w", c.Collection, err)
		}
		if n != len(ids) {
			return grc.Validation("%s", c.Message)
		}
	}
	return nil
}

// Projections returned in place of raw ids.

type UserRef struct {
	ID         uuid.UUID `db:"id" json:"_id"`
	Username   string    `db:"username" json:"username"`
	Email      string    `db:"email" json:"email"`
	Role       grc.Role  `db:"role" json:"role"`
	Department string    `db:"department" json:"department,omitempty"`
}

type AssetRef struct {
	ID             uuid.UUID `db:"id" json:"_id"`
	Name           string    `db:"name" json:"name"`
	Type           string    `db:"type" json:"type"`
	Classification string    `db:"classification" json:"classification"`
}

type ControlRef struct {
	ID          uuid.UUID `db:"id" json:"_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
}

type FrameworkRef struct {
	ID      uuid.UUID `db:"id" json:"_id"`
	Name    string    `db:"name" json:"name"`
	Version string    `db:"version" json:"version"`
}

type RiskRef struct {
	ID            uuid.UUID `db:"id" json:"_id"`
	Name          string    `db:"name" json:"name"`
	InherentScore int       `db:"inherent_score" json:"inherent_score"`
	ResidualScore int       `db:"residual_score" json:"residual_score"`
}

type AuditRef struct {
	ID   uuid.UUID `db:"id" json:"_id"`
	Name string    `db:"name" json:"name"`
	Type string    `db:"type" json:"type"`
}

type EvidenceRef struct {
	ID       uuid.UUID `db:"id" json:"_id"`
	Title    string    `db:"title" json:"title"`
	FileName string    `db:"file_name" json:"file_name"`
}

// RefSet collects the ids a batch of records points at, per collection.
type RefSet map[Collection]map[uuid.UUID]struct{}

// Add records ids for c.
func (r RefSet) Add(c Collection, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	m := r[c]
	if m == nil {
		m = make(map[uuid.UUID]struct{}, len(ids))
		r[c] = m
	}
	for _, id := range ids {
		m[id] = struct{}{}
	}
}

// AddPtr records an optional id.
func (r RefSet) AddPtr(c Collection, id *uuid.UUID) {
	if id != nil {
		r.Add(c, *id)
	}
}

// Lookup holds resolved projections keyed by id.
type Lookup struct {
	Users      map[uuid.UUID]UserRef
	Assets     map[uuid.UUID]AssetRef
	Controls   map[uuid.UUID]ControlRef
	Frameworks map[uuid.UUID]FrameworkRef
	Risks      map[uuid.UUID]RiskRef
	Audits     map[uuid.UUID]AuditRef
	Evidence   map[uuid.UUID]EvidenceRef
}

// Resolve loads the projections for every id in refs, one query per collection that has ids.
// Ids that no longer resolve are simply absent from the result.
func (s *Store) Resolve(ctx context.Context, refs RefSet) (*Lookup, error) {
	l := &Lookup{}
	var err error
	if l.Users, err = fetch(ctx, s.db, refs[Users], `SELECT id, username, email, role, department FROM users`, func(v UserRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	if l.Assets, err = fetch(ctx, s.db, refs[Assets], `SELECT id, name, type, classification FROM assets`, func(v AssetRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	if l.Controls, err = fetch(ctx, s.db, refs[Controls], `SELECT id, name, description, status FROM controls`, func(v ControlRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	if l.Frameworks, err = fetch(ctx, s.db, refs[Frameworks], `SELECT id, name, version FROM frameworks`, func(v FrameworkRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	if l.Risks, err = fetch(ctx, s.db, refs[Risks], `SELECT id, name, inherent_score, residual_score FROM risks`, func(v RiskRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	if l.Audits, err = fetch(ctx, s.db, refs[Audits], `SELECT id, name, type FROM audits`, func(v AuditRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	if l.Evidence, err = fetch(ctx, s.db, refs[Evidence], `SELECT id, title, file_name FROM evidence`, func(v EvidenceRef) uuid.UUID { return v.ID }); err != nil {
		return nil, err
	}
	return l, nil
}

func fetch[T any](ctx context.Context, db database.Conn, ids map[uuid.UUID]struct{}, base string, key func(T) uuid.UUID) (map[uuid.UUID]T, error) {
	out := make(map[uuid.UUID]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].String() < list[j].String() })
	var rows []T
	if err := db.SelectContext(ctx, &rows, base+" WHERE id = ANY($1::uuid[])", uuidArray(list)); err != nil {
		return nil, fmt.Errorf("resolve references: %w", err)
	}
	for _, r := range rows {
		out[key(r)] = r
	}
	return out, nil
}

// User returns the projection for an optional id, nil when absent or dangling.
func (l *Lookup) User(id *uuid.UUID) *UserRef { return pick(l.Users, id) }

func (l *Lookup) UserList(ids []uuid.UUID) []UserRef           { return pickAll(l.Users, ids) }
func (l *Lookup) AssetList(ids []uuid.UUID) []AssetRef         { return pickAll(l.Assets, ids) }
func (l *Lookup) ControlList(ids []uuid.UUID) []ControlRef     { return pickAll(l.Controls, ids) }
func (l *Lookup) FrameworkList(ids []uuid.UUID) []FrameworkRef { return pickAll(l.Frameworks, ids) }
func (l *Lookup) RiskList(ids []uuid.UUID) []RiskRef           { return pickAll(l.Risks, ids) }
func (l *Lookup) AuditList(ids []uuid.UUID) []AuditRef         { return pickAll(l.Audits, ids) }
func (l *Lookup) EvidenceList(ids []uuid.UUID) []EvidenceRef {
	return pickAll(l.Evidence, ids)
}

func pick[T any](m map[uuid.UUID]T, id *uuid.UUID) *T {
	if id == nil {
		return nil
	}
	v, ok := m[*id]
	if !ok {
		return nil
	}
	return &v
}

// pickAll keeps the caller's order and drops ids that did not resolve.
func pickAll[T any](m map[uuid.UUID]T, ids []uuid.UUID) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := m[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

func distinct(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// uuidArray renders ids as a Postgres array literal, cast to uuid[] in the query.
func uuidArray(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}
