package config_test

import (
	"testing"
	"time"

	"inventory-agent/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	for _, kv := range [][2]string{
		{"DATABASE_URL", "postgres://localhost/test"},
		{"OPENAI_API_KEY", "sk-test"},
		{"BOOKS_CLIENT_ID", "client"},
		{"BOOKS_CLIENT_SECRET", "secret"},
		{"BOOKS_REFRESH_TOKEN", "refresh"},
		{"BOOKS_ORGANIZATION_ID", "org"},
	} {
		t.Setenv(kv[0], kv[1])
	}
}

func TestLoad_MissingRequiredKey(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := config.Load(nil); err == nil {
		t.Fatal("expected an error for missing OPENAI_API_KEY")
	}
}

func TestLoad_DryRunSkipsDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENABLE_DRY_RUN", "true")

	if _, err := config.Load(nil); err != nil {
		t.Fatalf("dry run must not require DATABASE_URL: %v", err)
	}
}

func TestGet_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.Get("OPENAI_MODEL"); got != "gpt-4o" {
		t.Errorf("default model = %q", got)
	}
	if got := cfg.GetFloat("CONFIDENCE_THRESHOLD"); got != 0.8 {
		t.Errorf("default threshold = %v", got)
	}
	if !cfg.GetBool("AUTO_RECEIVE") || cfg.GetBool("MARK_BILLS_PAID") {
		t.Error("boolean defaults wrong")
	}
	if got := cfg.GetInt("EMAIL_BATCH_SIZE"); got != 10 {
		t.Errorf("default batch size = %d", got)
	}
}

func TestGet_EnvironmentWins(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.Get("OPENAI_MODEL"); got != "gpt-4o-mini" {
		t.Errorf("environment must override the default, got %q", got)
	}
}

func TestGetDuration(t *testing.T) {
	setRequired(t)
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.GetDuration("POLL_INTERVAL"); got != 5*time.Minute {
		t.Errorf("default poll interval = %v", got)
	}

	t.Setenv("POLL_INTERVAL", "30")
	if got := cfg.GetDuration("POLL_INTERVAL"); got != 30*time.Second {
		t.Errorf("bare integer must mean seconds, got %v", got)
	}

	t.Setenv("POLL_INTERVAL", "2m")
	if got := cfg.GetDuration("POLL_INTERVAL"); got != 2*time.Minute {
		t.Errorf("duration string = %v", got)
	}

	t.Setenv("POLL_INTERVAL", "garbage")
	if got := cfg.GetDuration("POLL_INTERVAL"); got != 5*time.Minute {
		t.Errorf("unparseable value must fall back to the default, got %v", got)
	}
}
