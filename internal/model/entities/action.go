package entities

// ActionNone is logged for steps where no rule was activated.
const ActionNone = "no_action"

// Action is the treatment applied during one simulation step.
type Action struct {
	Type      string  `json:"action_type"`
	Intensity float64 `json:"intensity"` // [0..1]
	Duration  int     `json:"duration"`  // steps
}

// NoAction is the record logged when nothing is applied.
func NoAction() Action { return Action{Type: ActionNone} }
