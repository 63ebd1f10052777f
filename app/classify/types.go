package classify

// RuleSet is the classification configuration loaded from the rules file.
type RuleSet struct {
	Categories []Rule `yaml:"categories"`
}

type Rule struct {
	Name     string   `yaml:"name"`
	Fields   []string `yaml:"fields"`
	Keywords []string `yaml:"keywords"`
	Weight   float64  `yaml:"weight"`
}

// Decision is the outcome of classifying one material.
type Decision struct {
	Category   string
	Confidence float64
	Reason     string
}
