package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	database "github.com/Armour007/grc-backend/internal"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("repository: record not found")

// DuplicateError reports a unique-constraint violation.
type DuplicateError struct {
	Table      string
	Constraint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("repository: duplicate value in %s (%s)", e.Table, e.Constraint)
}

// tableDef holds the SQL for one table, built once from its column list.
type tableDef struct {
	name   string
	list   string
	get    string
	insert string
	update string
	del    string
}

// define builds the statements for a table. columns must start with "id" and include
// created_at and updated_at; orderBy is the list ordering.
func define(name, orderBy string, columns ...string) tableDef {
	cols := strings.Join(columns, ", ")
	named := make([]string, len(columns))
	sets := make([]string, 0, len(columns))
	for i, c := range columns {
		named[i] = ":" + c
		if c != "id" && c != "created_at" {
			sets = append(sets, c+"=:"+c)
		}
	}
	return tableDef{
		name:   name,
		list:   fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", cols, name, orderBy),
		get:    fmt.Sprintf("SELECT %s FROM %s WHERE id=$1", cols, name),
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, cols, strings.Join(named, ", ")),
		update: fmt.Sprintf("UPDATE %s SET %s WHERE id=:id", name, strings.Join(sets, ", ")),
		del:    fmt.Sprintf("DELETE FROM %s WHERE id=$1", name),
	}
}

// Table is the CRUD repository shared by every record type.
type Table[M any] struct {
	db  database.Conn
	def tableDef
}

// List returns every row in the table's list order. It never returns a nil slice.
func (t Table[M]) List(ctx context.Context) ([]M, error) {
	out := []M{}
	if err := t.db.SelectContext(ctx, &out, t.def.list); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.def.name, err)
	}
	return out, nil
}

// Get loads one row by id.
func (t Table[M]) Get(ctx context.Context, id uuid.UUID) (*M, error) {
	var m M
	if err := t.db.GetContext(ctx, &m, t.def.get, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", t.def.name, err)
	}
	return &m, nil
}

// Insert writes a new row. Ids and timestamps are the caller's responsibility.
func (t Table[M]) Insert(ctx context.Context, m *M) error {
	if _, err := t.db.NamedExecContext(ctx, t.def.insert, m); err != nil {
		return t.wrap("insert", err)
	}
	return nil
}

// Update rewrites every mutable column of an existing row.
func (t Table[M]) Update(ctx context.Context, m *M) error {
	res, err := t.db.NamedExecContext(ctx, t.def.update, m)
	if err != nil {
		return t.wrap("update", err)
	}
	return expectRow(res)
}

// Delete removes a row; it does not touch rows in other tables that still reference it.
func (t Table[M]) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := t.db.ExecContext(ctx, t.def.del, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.def.name, err)
	}
	return expectRow(res)
}

func (t Table[M]) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &DuplicateError{Table: t.def.name, Constraint: pgErr.ConstraintName}
	}
	return fmt.Errorf("%s %s: %w", op, t.def.name, err)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
