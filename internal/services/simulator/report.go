package simulator

import (
	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// StepReport describes what happened in one step. Selected is nil when no
// rule was activated.
type StepReport struct {
	Step        int                  `json:"step"`
	Before      entities.Measurement `json:"before"`
	Fuzzy       map[string]float64   `json:"fuzzy_pollution"`
	Activated   []entities.Rule      `json:"activated"`
	Selected    *entities.Rule       `json:"selected,omitempty"`
	Action      entities.Action      `json:"action"`
	Warnings    []string             `json:"warnings,omitempty"`
	AfterAction entities.Measurement `json:"after_action"`
	AfterDrift  entities.Measurement `json:"after_drift"`
}

// Report is the outcome of a whole run.
type Report struct {
	RunID string               `json:"run_id"`
	Steps []StepReport         `json:"steps"`
	Final entities.Measurement `json:"final"`
}

// ActionCounts tallies the logged action types.
func (r *Report) ActionCounts() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Steps {
		out[s.Action.Type]++
	}
	return out
}
