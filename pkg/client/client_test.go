package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestLoginKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["password"] != "secret1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid email or password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"_id":"u1","username":"jane","email":"jane@example.com","role":"RiskManager","token":"tok"}`))
		case "/api/risks":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Not authorized, no token"}`))
				return
			}
			_, _ = w.Write([]byte(`[{"_id":"r1","name":"Outage"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.Login(ctx, "jane@example.com", "wrong")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid email or password" {
		t.Fatalf("bad credentials: %v", err)
	}

	u, err := c.Login(ctx, "jane@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Role != "RiskManager" || c.Token != "tok" {
		t.Fatalf("unexpected login result %+v token=%q", u, c.Token)
	}

	var risks []map[string]any
	if err := c.List(ctx, "risks", &risks); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(risks) != 1 || risks[0]["name"] != "Outage" {
		t.Fatalf("unexpected risks %v", risks)
	}
}

func TestDeleteAndAttestMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/api/assets/a1":
			_, _ = w.Write([]byte(`{"message":"Asset removed successfully","id":"a1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/policies/p1/attest":
			_, _ = w.Write([]byte(`{"message":"Policy attested successfully"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Policy not found"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Token = "tok"
	ctx := context.Background()
	if msg, err := c.Delete(ctx, "assets", "a1"); err != nil || msg != "Asset removed successfully" {
		t.Fatalf("delete: %q %v", msg, err)
	}
	if msg, err := c.Attest(ctx, "p1"); err != nil || msg != "Policy attested successfully" {
		t.Fatalf("attest: %q %v", msg, err)
	}
	_, err := c.Attest(ctx, "missing")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Message != "Policy not found" {
		t.Fatalf("missing policy: %v", err)
	}
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if Expired(signed(t, now.Add(time.Hour)), now) {
		t.Fatal("live token reported expired")
	}
	if !Expired(signed(t, now.Add(-time.Second)), now) {
		t.Fatal("stale token reported live")
	}
	if !Expired("garbage", now) {
		t.Fatal("undecodable token reported live")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	if _, err := LoadSession(path, now); !errors.Is(err, ErrNoSession) {
		t.Fatalf("missing file: %v", err)
	}

	s := &Session{BaseURL: "http://grc", Token: signed(t, now.Add(time.Hour)), Email: "jane@example.com"}
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession(path, now)
	if err != nil || got.Email != "jane@example.com" {
		t.Fatalf("load: %+v %v", got, err)
	}

	if _, err := LoadSession(path, now.Add(2*time.Hour)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expired session: %v", err)
	}

	if err := RemoveSession(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveSession(path); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
