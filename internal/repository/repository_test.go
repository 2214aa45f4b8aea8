package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/grc"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestDefine(t *testing.T) {
	d := define("things", "name ASC", "id", "name", "owner_id", "created_at", "updated_at")
	if d.list != "SELECT id, name, owner_id, created_at, updated_at FROM things ORDER BY name ASC" {
		t.Fatalf("list = %s", d.list)
	}
	if d.insert != "INSERT INTO things (id, name, owner_id, created_at, updated_at) VALUES (:id, :name, :owner_id, :created_at, :updated_at)" {
		t.Fatalf("insert = %s", d.insert)
	}
	if d.update != "UPDATE things SET name=:name, owner_id=:owner_id, updated_at=:updated_at WHERE id=:id" {
		t.Fatalf("update = %s", d.update)
	}
}

func TestValidateRefs_DeduplicatesAndPasses(t *testing.T) {
	s, mock := newMockStore(t)
	a := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assets WHERE id = ANY($1::uuid[])")).
		WithArgs("{" + a.String() + "}").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := s.ValidateRefs(context.Background(), Linked(Assets, []uuid.UUID{a, a}, "assets"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestValidateRefs_StopsAtFirstMissing(t *testing.T) {
	s, mock := newMockStore(t)
	owner := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM controls")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	// the risks check must never run

	err := s.ValidateRefs(context.Background(),
		One(Users, &owner, "Provided owner user ID does not exist"),
		Linked(Assets, nil, "assets"),
		Linked(Controls, []uuid.UUID{uuid.New(), uuid.New()}, "controls"),
		Linked(Risks, []uuid.UUID{uuid.New()}, "risks"),
	)
	if !grc.IsKind(err, grc.KindValidation) || err.Error() != "One or more linked controls not found" {
		t.Fatalf("got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTableGet_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM risks WHERE id=$1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Risks().Get(context.Background(), id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTableDelete(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audits WHERE id=$1")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audits WHERE id=$1")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Audits().Delete(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("first delete: expected ErrNotFound, got %v", err)
	}
	if err := s.Audits().Delete(context.Background(), id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestTableInsert_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assets")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "assets_name_key"})

	err := s.Assets().Insert(context.Background(), &assetFixture)
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Constraint != "assets_name_key" {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
}

func TestResolve_SkipsEmptyCollections(t *testing.T) {
	s, mock := newMockStore(t)
	owner, asset, gone := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, role, department FROM users WHERE id = ANY($1::uuid[])")).
		WithArgs("{" + owner.String() + "}").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role", "department"}).
			AddRow(owner, "dana", "dana@example.com", "RiskManager", "Security"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, type, classification FROM assets")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "classification"}).
			AddRow(asset, "CRM", "Application", "Internal"))

	refs := RefSet{}
	refs.Add(Users, owner)
	refs.Add(Assets, asset, gone)
	l, err := s.Resolve(context.Background(), refs)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u := l.User(&owner); u == nil || u.Username != "dana" {
		t.Fatalf("owner projection = %+v", u)
	}
	assets := l.AssetList([]uuid.UUID{asset, gone})
	if len(assets) != 1 || assets[0].Name != "CRM" {
		t.Fatalf("dangling asset must be dropped, got %+v", assets)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestUsersByEmail_Lowercases(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=$1")).
		WithArgs("dana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "department", "status", "last_login", "permissions", "created_at", "updated_at"}).
			AddRow(id, "dana", "dana@example.com", "hash", "Employee", "", "Active", nil, []byte("[]"), now, now))

	u, err := s.Users().ByEmail(context.Background(), "  Dana@Example.com ")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	if u.ID != id || u.Role != grc.Employee || u.LastLogin != nil {
		t.Fatalf("unexpected user %+v", u)
	}
}

var assetFixture = database.Asset{
	ID:             uuid.New(),
	Name:           "CRM",
	Type:           "Application",
	OwnerID:        uuid.New(),
	Classification: "Internal",
	Status:         "Active",
	CreatedAt:      time.Now(),
	UpdatedAt:      time.Now(),
}
