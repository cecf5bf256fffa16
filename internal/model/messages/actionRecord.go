package messages

import (
	"time"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// ActionRecord logs the action taken in a step and the rule that chose it.
// RuleID is 0 and RuleName empty when no rule was activated.
type ActionRecord struct {
	RunID     string          `json:"run_id"`
	Step      int             `json:"step"`
	Action    entities.Action `json:"action"`
	RuleID    int64           `json:"rule_id,omitempty"`
	RuleName  string          `json:"rule_name,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
