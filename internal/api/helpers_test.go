package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	database "github.com/Armour007/grc-backend/internal"
	"github.com/Armour007/grc-backend/internal/config"
	"github.com/Armour007/grc-backend/internal/grc"
	"github.com/Armour007/grc-backend/pkg/logger"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

var userCols = []string{"id", "username", "email", "password_hash", "role", "department", "status",
	"last_login", "permissions", "created_at", "updated_at"}

type harness struct {
	t      *testing.T
	s      *Server
	mock   sqlmock.Sqlmock
	router *gin.Engine
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "grc-test"
	cfg.App.Environment = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = time.Hour
	cfg.CORS.Origins = []string{"http://localhost:3000"}
	cfg.RateLimit.AuthPerMinute = 100
	return cfg
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	database.Use(sqlx.NewDb(db, "sqlmock"))
	t.Cleanup(func() {
		database.Use(nil)
		db.Close()
	})
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	s := NewServer(testConfig(), logger.Nop(), opts...)
	return &harness{t: t, s: s, mock: mock, router: s.Router()}
}

func newUser(role grc.Role) *database.User {
	id := uuid.New()
	return &database.User{
		ID:         id,
		Username:   "user-" + id.String()[:8],
		Email:      id.String()[:8] + "@example.com",
		Role:       role,
		Department: "IT",
		Status:     grc.UserActive,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

func userRows(users ...*database.User) *sqlmock.Rows {
	rows := sqlmock.NewRows(userCols)
	for _, u := range users {
		rows.AddRow(u.ID.String(), u.Username, u.Email, u.PasswordHash, string(u.Role), u.Department,
			u.Status, nil, []byte("[]"), u.CreatedAt, u.UpdatedAt)
	}
	return rows
}

// userRefRows answers a projection lookup on users.
func userRefRows(users ...*database.User) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "username", "email", "role", "department"})
	for _, u := range users {
		rows.AddRow(u.ID.String(), u.Username, u.Email, string(u.Role), u.Department)
	}
	return rows
}

// expectAuth answers the user lookup AuthMiddleware makes for u.
func (h *harness) expectAuth(u *database.User) {
	h.mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=$1")).
		WithArgs(u.ID.String()).
		WillReturnRows(userRows(u))
}

func (h *harness) token(u *database.User) string {
	h.t.Helper()
	tok, err := h.s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		h.t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) verify() {
	h.t.Helper()
	if err := h.mock.ExpectationsWereMet(); err != nil {
		h.t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decode(t, w)["error"].(string)
	return msg
}

// duplicateKey is the error Postgres returns for a unique violation on constraint.
func duplicateKey(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}
