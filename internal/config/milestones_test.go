package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "milestones.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadMilestones_Default(t *testing.T) {
	c := &Config{PointsPerPound: 1}
	cfg, err := c.LoadMilestones()
	if err != nil {
		t.Fatalf("LoadMilestones: %v", err)
	}
	if len(cfg.Milestones) == 0 {
		t.Fatal("default milestone table is empty")
	}
	if cfg.Milestones[0].Points != 500 || cfg.Milestones[0].Value.StringFixed(2) != "5.00" {
		t.Errorf("first milestone: %+v", cfg.Milestones[0])
	}
}

func TestLoadMilestones_FileOverride(t *testing.T) {
	path := writeFile(t, `[
		{"points": 100, "value": "2.50"},
		{"points": 300, "value": 5}
	]`)
	c := &Config{PointsPerPound: 2, MilestonesFile: path}

	cfg, err := c.LoadMilestones()
	if err != nil {
		t.Fatalf("LoadMilestones: %v", err)
	}
	if len(cfg.Milestones) != 2 {
		t.Fatalf("milestones: got %d, want 2", len(cfg.Milestones))
	}
	if cfg.Milestones[0].Points != 100 || cfg.Milestones[0].Value.StringFixed(2) != "2.50" {
		t.Errorf("first milestone: %+v", cfg.Milestones[0])
	}
	if cfg.PointsPerPound != 2 {
		t.Errorf("points per pound: got %d, want 2", cfg.PointsPerPound)
	}
}

func TestLoadMilestones_RejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{{{`},
		{"empty array", `[]`},
		{"missing value", `[{"points": 100}]`},
		{"non-integer points", `[{"points": "a lot", "value": "5"}]`},
		{"unknown field", `[{"points": 100, "value": "5", "colour": "gold"}]`},
		{"duplicate thresholds", `[{"points": 100, "value": "5"}, {"points": 100, "value": "10"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{PointsPerPound: 1, MilestonesFile: writeFile(t, tt.content)}
			if _, err := c.LoadMilestones(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMilestones_MissingFile(t *testing.T) {
	c := &Config{PointsPerPound: 1, MilestonesFile: "/nonexistent/milestones.json"}
	if _, err := c.LoadMilestones(); err == nil {
		t.Error("expected an error for a missing file")
	}
}
