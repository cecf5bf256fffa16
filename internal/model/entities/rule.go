package entities

// Rule maps a condition over a Measurement to an action identifier.
// Priority 1 is the most urgent.
type Rule struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Condition string `json:"condition" yaml:"condition"`
	Action    string `json:"action" yaml:"action"`
	Priority  int    `json:"priority" yaml:"priority"`
}

// OntologyTerm is a named reference value of a concept, e.g. pollution_level "high" = 0.7.
type OntologyTerm struct {
	Concept     string  `json:"concept" yaml:"concept"`
	Property    string  `json:"property" yaml:"property"`
	Value       float64 `json:"value" yaml:"value"`
	Description string  `json:"description" yaml:"description"`
}
