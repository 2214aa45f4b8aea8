package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned when no usable token is stored.
var ErrNoSession = errors.New("not logged in")

// Session is the token persisted between CLI invocations. Logging out only deletes it.
type Session struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// DefaultSessionPath is ~/.grc/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".grc", "session.json"), nil
}

// LoadSession reads the session at path. A missing file or an expired token yields ErrNoSession.
func LoadSession(path string, now time.Time) (*Session, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}
	if s.Token == "" || Expired(s.Token, now) {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes the session readable by the owner only.
func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// RemoveSession deletes the stored token; removing an absent session is not an error.
func RemoveSession(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Expired reports whether the token's exp claim is at or before now.
// The signature is not checked here; the server does that on every call.
// Tokens that cannot be decoded or carry no exp count as expired.
func Expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !now.Before(claims.ExpiresAt.Time)
}
