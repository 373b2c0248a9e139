package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.Makeup.BoxPadding != 8 || cfg.Makeup.KernelRate != 15 || cfg.Makeup.MaxFaces != 1 {
		t.Errorf("Unexpected defaults: %+v", cfg.Makeup)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "makeup.yaml")
	content := `
makeup:
  kernel_rate: 10
detector:
  backend: cascade
recipe:
  - feature: mouth
    brighten: 1.8
  - feature: left_eye
    resize:
      width: 70
      height: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Makeup.KernelRate != 10 {
		t.Errorf("Expected kernel_rate 10, got %d", cfg.Makeup.KernelRate)
	}
	if cfg.Makeup.BoxPadding != 8 {
		t.Errorf("Expected default box_padding 8 to survive, got %d", cfg.Makeup.BoxPadding)
	}
	if cfg.Detector.Backend != BackendCascade {
		t.Errorf("Expected cascade backend, got %q", cfg.Detector.Backend)
	}
	if len(cfg.Recipe) != 2 {
		t.Fatalf("Expected 2 recipe steps, got %d", len(cfg.Recipe))
	}
	if cfg.Recipe[0].Brighten == nil || *cfg.Recipe[0].Brighten != 1.8 {
		t.Errorf("Unexpected first step: %+v", cfg.Recipe[0])
	}
	if cfg.Recipe[1].Resize == nil || *cfg.Recipe[1].Resize != (Size{Width: 70, Height: 30}) {
		t.Errorf("Unexpected second step: %+v", cfg.Recipe[1])
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := `
makeup:
  kernel_rate: 0
recipe:
  - feature: mouth
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "kernel_rate") || !strings.Contains(err.Error(), "no operation") {
		t.Errorf("Expected both problems reported, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestStepValidate(t *testing.T) {
	rate := 1.5
	negative := -1.0
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"brighten", Step{Feature: "mouth", Brighten: &rate}, false},
		{"resize", Step{Feature: "nose", Resize: &Size{Width: 10, Height: 12}}, false},
		{"missing feature", Step{Brighten: &rate}, true},
		{"unknown feature", Step{Feature: "ear", Brighten: &rate}, true},
		{"no operation", Step{Feature: "mouth"}, true},
		{"both operations", Step{Feature: "mouth", Brighten: &rate, Resize: &Size{Width: 1, Height: 1}}, true},
		{"negative rate", Step{Feature: "mouth", Brighten: &negative}, true},
		{"zero size", Step{Feature: "mouth", Resize: &Size{Width: 0, Height: 4}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseStep(t *testing.T) {
	step, err := ParseStep("brighten", "mouth=1.8", 1.0)
	if err != nil {
		t.Fatalf("ParseStep brighten failed: %v", err)
	}
	if step.Feature != "mouth" || step.Brighten == nil || *step.Brighten != 1.8 {
		t.Errorf("Unexpected step: %+v", step)
	}

	step, err = ParseStep("brighten", "nose", 1.25)
	if err != nil {
		t.Fatalf("ParseStep bare brighten failed: %v", err)
	}
	if step.Brighten == nil || *step.Brighten != 1.25 {
		t.Errorf("Expected default rate 1.25, got %+v", step)
	}

	step, err = ParseStep("resize", "left_eye=70x30", 1.0)
	if err != nil {
		t.Fatalf("ParseStep resize failed: %v", err)
	}
	if step.Resize == nil || *step.Resize != (Size{Width: 70, Height: 30}) {
		t.Errorf("Unexpected step: %+v", step)
	}

	tests := []struct {
		name string
		kind string
		arg  string
	}{
		{"empty feature", "brighten", "=1"},
		{"empty value", "brighten", "mouth="},
		{"bad rate", "brighten", "mouth=abc"},
		{"unknown feature", "brighten", "ear=1"},
		{"resize without size", "resize", "mouth"},
		{"resize without height", "resize", "mouth=70"},
		{"unknown kind", "tint", "mouth=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStep(tt.kind, tt.arg, 1.0); err == nil {
				t.Errorf("Expected error for %s %q", tt.kind, tt.arg)
			}
		})
	}
}
