package triage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of a guideline ruleset:
//
//	rules:
//	  - name: chest-pain-escalation
//	    level: Emergency
//	    field: associated_symptoms
//	    any_of: ["chest pain", "pressure in chest"]
type rulesFile struct {
	Rules []GuidelineRule `yaml:"rules"`
}

// LoadGuidelineRules reads a guideline ruleset from a YAML file. In the
// minimal configuration no file is configured and the ruleset is empty, which
// makes Verify the identity function.
func LoadGuidelineRules(path string) ([]GuidelineRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guideline rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse guideline rules: %w", err)
	}
	return f.Rules, nil
}
