package classify

import (
	"fmt"
	"strings"
)

// Classifier assigns a category label to incoming materials by keyword
// matching over named fields. Scoring is deliberately simple: the share of a
// category's keywords found in the material, scaled by the rule weight and
// capped at 1.
type Classifier struct {
	rules *RuleSet
}

func NewClassifier(rules *RuleSet) *Classifier {
	if rules == nil {
		rules = &RuleSet{}
	}
	return &Classifier{rules: rules}
}

func (c *Classifier) Run(title, body string) Decision {
	var best Decision

	for _, rule := range c.rules.Categories {
		haystack := c.fieldText(rule.Fields, title, body)

		matched := 0
		for _, keyword := range rule.Keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		confidence := float64(matched) / float64(len(rule.Keywords)) * rule.Weight
		if confidence > 1 {
			confidence = 1
		}

		if confidence > best.Confidence {
			best = Decision{
				Category:   rule.Name,
				Confidence: confidence,
				Reason:     fmt.Sprintf("assigned '%s' (confidence %.2f): %d/%d keywords matched", rule.Name, confidence, matched, len(rule.Keywords)),
			}
		}
	}

	if best.Category == "" {
		best.Reason = "unclassified: no keyword matches"
	}

	return best
}

func (c *Classifier) fieldText(fields []string, title, body string) string {
	var parts []string
	for _, field := range fields {
		switch field {
		case "title":
			parts = append(parts, title)
		case "body":
			parts = append(parts, body)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
