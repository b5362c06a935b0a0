package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing-is-fine-when-empty"))
	if err == nil {
		t.Fatalf("expected error for explicit missing file")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.LLM.Model != DefaultLLMModel {
		t.Fatalf("expected default model %s, got %s", DefaultLLMModel, cfg.LLM.Model)
	}
	if cfg.Router.ConfidenceThreshold != DefaultConfidenceThreshold {
		t.Fatalf("unexpected confidence threshold %v", cfg.Router.ConfidenceThreshold)
	}
	if cfg.Analytics.TaskCompletion.High >= cfg.Analytics.TaskCompletion.Medium {
		t.Fatalf("default thresholds must order high < medium")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	doc := map[string]any{
		"llm": map[string]any{
			"model":   "deepseek-chat",
			"timeout": "5s",
		},
		"memory": map[string]any{
			"token_budget": 512,
		},
		"store": map[string]any{
			"driver": "memory",
		},
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Model != "deepseek-chat" {
		t.Fatalf("file override lost: %s", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.Memory.TokenBudget != 512 {
		t.Fatalf("expected 512 token budget, got %d", cfg.Memory.TokenBudget)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("expected memory driver, got %s", cfg.Store.Driver)
	}
	// Untouched defaults survive.
	if cfg.Dispatch.MaxConcurrent != DefaultToolMaxConcurrent {
		t.Fatalf("default max_concurrent lost: %d", cfg.Dispatch.MaxConcurrent)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("router:\n  confidence_threshold: 2.0\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for threshold > 1")
	}

	if err := os.WriteFile(path, []byte("store:\n  driver: oracle\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown driver")
	}
}
