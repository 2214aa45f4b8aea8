package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	database "github.com/Armour007/grc-backend/internal"
)

// Users is the identity store.
func (s *Store) Users() UserTable {
	return UserTable{Table: Table[database.User]{s.db, usersTable}}
}

// UserTable adds lookups by credential to the generic table.
type UserTable struct {
	Table[database.User]
}

// ByEmail finds a user by email, case-insensitively.
func (t UserTable) ByEmail(ctx context.Context, email string) (*database.User, error) {
	var u database.User
	q := strings.Replace(t.def.get, "WHERE id=$1", "WHERE email=$1", 1)
	if err := t.db.GetContext(ctx, &u, q, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// EmailTaken reports whether another account already uses email.
func (t UserTable) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int
	err := t.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

// TouchLogin stamps the last successful login.
func (t UserTable) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := t.db.ExecContext(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at, id)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}
