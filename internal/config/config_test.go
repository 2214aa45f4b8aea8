package config

import (
	"testing"
	"time"
)

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "6100")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("CORS_ORIGIN", "https://grc.example.com, http://localhost:3000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/grc?sslmode=require")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 6100 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.JWT.Secret != "s3cret" || cfg.JWT.TTL != 2*time.Hour {
		t.Fatalf("jwt = %+v", cfg.JWT)
	}
	want := []string{"http://localhost:3000", "https://grc.example.com"}
	if len(cfg.CORS.Origins) != len(want) {
		t.Fatalf("origins = %v", cfg.CORS.Origins)
	}
	for i := range want {
		if cfg.CORS.Origins[i] != want[i] {
			t.Fatalf("origins = %v", cfg.CORS.Origins)
		}
	}
	if got := cfg.Database.DSN(); got != "postgres://u:p@db:5432/grc?sslmode=require" {
		t.Fatalf("dsn = %s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
	if cfg.JWT.Secret == "" {
		t.Fatal("expected development secret fallback")
	}
	if got := cfg.Database.DSN(); got != "postgres://grc:@localhost:5432/grc?sslmode=disable" {
		t.Fatalf("dsn = %s", got)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without JWT secret in production")
	}
}
