package config_test

import (
	"os"
	"testing"

	"alertline/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default("alertline")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.KnownRole("admin") || !cfg.KnownRole("hr") {
		t.Fatal("default catalog incomplete")
	}
}

func TestCategoryFor(t *testing.T) {
	cfg := config.Default("alertline")
	if got := cfg.CategoryFor("order"); got != "sales" {
		t.Fatalf("order category %q", got)
	}
	if got := cfg.CategoryFor("vacation_request"); got != "hr" {
		t.Fatalf("vacation category %q", got)
	}
	if got := cfg.CategoryFor("something_else"); got != "general" {
		t.Fatalf("fallback category %q", got)
	}
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.LoadOptional(dir)
	if cfg != nil || err != nil {
		t.Fatalf("missing file: cfg=%v err=%v", cfg, err)
	}
	if _, err := config.Load(dir); err == nil {
		t.Fatal("Load accepted missing file")
	}

	if err := os.WriteFile(config.Path(dir), []byte(config.GenerateDefault("alertline")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.ID != "alertline" {
		t.Fatalf("service id %q", cfg.Service.ID)
	}
}

func TestFromYAMLRejectsMissingAdmin(t *testing.T) {
	_, err := config.FromYAML([]byte(`
service:
  id: x
roles:
  catalog:
    hr:
      description: hr
`))
	if err == nil {
		t.Fatal("catalog without admin accepted")
	}
}

func TestFromYAMLRejectsUnknownSeedRole(t *testing.T) {
	_, err := config.FromYAML([]byte(`
service:
  id: x
roles:
  catalog:
    admin:
      description: a
seed:
  users:
    - id: u1
      roles: [wizard]
`))
	if err == nil {
		t.Fatal("seed with unknown role accepted")
	}
}
