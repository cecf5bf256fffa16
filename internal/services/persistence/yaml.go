package persistence

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// ruleFile is the on-disk layout of a YAML rule set.
type ruleFile struct {
	Rules    []entities.Rule         `yaml:"rules"`
	Ontology []entities.OntologyTerm `yaml:"ontology"`
}

// YAMLSource serves a rule set read once from a YAML file.
type YAMLSource struct {
	rules    []entities.Rule
	ontology []entities.OntologyTerm
}

// LoadYAMLFile reads path. Rules without an id get their 1-based position;
// rules without a priority get 1. Rules are kept sorted by priority.
func LoadYAMLFile(path string) (*YAMLSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: read rules file: %w", err)
	}
	return ParseYAML(raw)
}

// ParseYAML is LoadYAMLFile on an in-memory document.
func ParseYAML(raw []byte) (*YAMLSource, error) {
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("persistence: decode rules file: %w", err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.ID == 0 {
			r.ID = int64(i + 1)
		}
		if r.Priority <= 0 {
			r.Priority = 1
		}
		if r.Name == "" || r.Condition == "" || r.Action == "" {
			return nil, fmt.Errorf("persistence: rule %d: name, condition and action are required", r.ID)
		}
	}
	sort.SliceStable(f.Rules, func(i, j int) bool { return f.Rules[i].Priority < f.Rules[j].Priority })
	return &YAMLSource{rules: f.Rules, ontology: f.Ontology}, nil
}

func (y *YAMLSource) LoadRules(context.Context) ([]entities.Rule, error) {
	return append([]entities.Rule(nil), y.rules...), nil
}

func (y *YAMLSource) LoadOntology(context.Context) ([]entities.OntologyTerm, error) {
	return append([]entities.OntologyTerm(nil), y.ontology...), nil
}

// MarshalYAML renders rules and terms in the layout LoadYAMLFile reads.
func MarshalYAML(rules []entities.Rule, terms []entities.OntologyTerm) ([]byte, error) {
	return yaml.Marshal(ruleFile{Rules: rules, Ontology: terms})
}
