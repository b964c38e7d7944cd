package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/orchardlane/backend/internal/loyalty"
)

//go:embed milestones.schema.json
var milestoneSchema string

// LoadMilestones builds the loyalty configuration. With no file configured
// it returns the built-in table; otherwise the file is schema-validated and
// replaces it. The result is read-only for the life of the process.
func (c *Config) LoadMilestones() (loyalty.Config, error) {
	cfg := loyalty.DefaultConfig()
	cfg.PointsPerPound = c.PointsPerPound

	if c.MilestonesFile != "" {
		milestones, err := parseMilestonesFile(c.MilestonesFile)
		if err != nil {
			return loyalty.Config{}, err
		}
		cfg.Milestones = milestones
	}

	if err := cfg.Validate(); err != nil {
		return loyalty.Config{}, fmt.Errorf("milestone config: %w", err)
	}
	return cfg, nil
}

func parseMilestonesFile(path string) ([]loyalty.Milestone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read milestones file %q: %w", path, err)
	}

	schema, err := jsonschema.CompileString("milestones.schema.json", milestoneSchema)
	if err != nil {
		return nil, fmt.Errorf("compile milestone schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse milestones file %q: %w", path, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid milestones file %q: %w", path, err)
	}

	var milestones []loyalty.Milestone
	if err := json.Unmarshal(data, &milestones); err != nil {
		return nil, fmt.Errorf("decode milestones file %q: %w", path, err)
	}
	return milestones, nil
}
