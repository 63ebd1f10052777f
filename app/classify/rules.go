package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRules reads the classification rule file. A missing file is not an
// error: classification is optional and an absent file means every material
// stays unclassified.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RuleSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	setDefaults(&rules)

	if err := validate(&rules); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	return &rules, nil
}

func setDefaults(rules *RuleSet) {
	for i := range rules.Categories {
		if len(rules.Categories[i].Fields) == 0 {
			rules.Categories[i].Fields = []string{"title", "body"}
		}
		if rules.Categories[i].Weight == 0 {
			rules.Categories[i].Weight = 1.0
		}
	}
}

func validate(rules *RuleSet) error {
	validFields := map[string]bool{
		"title": true,
		"body":  true,
	}

	seen := make(map[string]bool, len(rules.Categories))
	for i, rule := range rules.Categories {
		if rule.Name == "" {
			return fmt.Errorf("category at index %d has no name", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("duplicate category name: %s", rule.Name)
		}
		seen[rule.Name] = true

		if len(rule.Keywords) == 0 {
			return fmt.Errorf("category %s has no keywords", rule.Name)
		}
		if rule.Weight < 0 {
			return fmt.Errorf("category %s has a negative weight", rule.Name)
		}

		for _, field := range rule.Fields {
			if !validFields[field] {
				return fmt.Errorf("category %s references invalid field: %s", rule.Name, field)
			}
		}
	}

	return nil
}
