package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/learnsmart/tutor/internal/model"
)

// Fixture is an on-disk bundle of catalog data and a learner scenario, used
// by the CLI and the learner simulation. JSON files parse as well, since
// JSON is a subset of YAML.
type Fixture struct {
	Domain      string                 `yaml:"domain"`
	Skills      []model.Skill          `yaml:"skills"`
	Entries     []model.ContentEntry   `yaml:"entries"`
	Items       []model.AssessmentItem `yaml:"items"`
	Goals       []model.Goal           `yaml:"goals"`
	Profile     model.Profile          `yaml:"profile"`
	Constraints model.Constraints      `yaml:"constraints"`
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixture bytes.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Catalog builds the validated catalog described by the fixture.
func (f *Fixture) Catalog() (*Catalog, error) {
	c, err := New(f.Entries, f.Skills)
	if err != nil {
		return nil, fmt.Errorf("fixture catalog: %w", err)
	}
	return c, nil
}
