package app

import (
	"context"
	"testing"

	"yuanfang/internal/config"
)

func TestNewWithMemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Memory.PersistPath = ""

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	sess := a.Controller.OpenSession()
	outcome, err := a.Controller.SubmitUtterance(context.Background(), sess.ID, `create a task "smoke test"`)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Reply == "" {
		t.Fatal("empty reply")
	}
}

func TestNewWithSQLiteStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = t.TempDir() + "/app.db"
	cfg.Memory.PersistPath = t.TempDir() + "/memory"

	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "postgres"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("unknown driver must be rejected")
	}
}
