package config

import (
	"testing"
	"time"
)

func TestEnsureDSNBuildsFromParts(t *testing.T) {
	cfg := DBConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "rentstack",
		Password: "secret",
		Name:     "rentstack",
		SSLMode:  "disable",
	}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("ensureDSN: %v", err)
	}
	want := "host=localhost port=5432 user=rentstack password=secret dbname=rentstack sslmode=disable"
	if cfg.DSN != want {
		t.Fatalf("DSN = %q, want %q", cfg.DSN, want)
	}
}

func TestEnsureDSNPrefersExplicitDSN(t *testing.T) {
	cfg := DBConfig{DSN: "host=db dbname=x"}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("ensureDSN: %v", err)
	}
	if cfg.DSN != "host=db dbname=x" {
		t.Fatalf("explicit DSN should not be rewritten, got %q", cfg.DSN)
	}
}

func TestEnsureDSNRequiresHostUserName(t *testing.T) {
	cfg := DBConfig{Host: "localhost"}
	if err := cfg.ensureDSN(); err == nil {
		t.Fatal("expected error when user/name missing")
	}
}

func TestAppEnvHelpers(t *testing.T) {
	if !(AppConfig{Env: "DEV"}).IsDev() {
		t.Fatal("IsDev should be case-insensitive")
	}
	if !(AppConfig{Env: "prod"}).IsProd() {
		t.Fatal("IsProd should match prod")
	}
}

func TestJWTAccessTokenTTL(t *testing.T) {
	if (JWTConfig{ExpirationMinutes: 90}).AccessTokenTTL() != 90*time.Minute {
		t.Fatal("unexpected TTL")
	}
	if (JWTConfig{}).AccessTokenTTL() != 0 {
		t.Fatal("zero minutes should yield zero TTL")
	}
}
