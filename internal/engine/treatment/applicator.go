// Package treatment turns a selected action identifier into its effect on the plant state.
package treatment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// Action types with a defined effect.
const (
	ChemicalTreatment = "chemical_treatment"
	StandardTreatment = "standard_treatment"
	MinimalTreatment  = "minimal_treatment"
	AddAlkaline       = "add_alkaline"
	AddAcid           = "add_acid"
)

// activatePrefix is carried by rule actions that switch on a plant unit.
const activatePrefix = "activate_"

// ErrUnmappedAction is returned, as a warning, for identifiers without an effect.
var ErrUnmappedAction = errors.New("action has no effect")

// Effect is the deterministic consequence of one action.
type Effect struct {
	PollutionDelta float64
	PHDelta        float64
	Intensity      float64
	Duration       int
}

var defaultEffects = map[string]Effect{
	ChemicalTreatment:   {PollutionDelta: -0.30, Intensity: 0.8, Duration: 10},
	StandardTreatment:   {PollutionDelta: -0.15, Intensity: 0.5, Duration: 8},
	MinimalTreatment:    {PollutionDelta: -0.05, Intensity: 0.2, Duration: 5},
	AddAlkaline:         {PHDelta: +0.30, Intensity: 0.4, Duration: 3},
	AddAcid:             {PHDelta: -0.30, Intensity: 0.4, Duration: 3},
	entities.ActionNone: {},
}

// Normalize strips the activation prefix: "activate_chemical_treatment" → "chemical_treatment".
func Normalize(action string) string {
	return strings.TrimPrefix(strings.TrimSpace(action), activatePrefix)
}

// Applicator applies actions from a fixed effect table.
type Applicator struct {
	effects map[string]Effect
}

func NewApplicator() *Applicator {
	return &Applicator{effects: defaultEffects}
}

// Known reports whether action has an entry in the table.
func (a *Applicator) Known(action string) bool {
	_, ok := a.effects[Normalize(action)]
	return ok
}

// Apply returns the state after action and the Action to log.
// Pollution and pH are clamped afterwards. An identifier without an effect
// leaves the state as it was (still clamped) and returns ErrUnmappedAction
// together with a zero-intensity record, so callers can log it and carry on.
func (a *Applicator) Apply(m entities.Measurement, action string) (entities.Measurement, entities.Action, error) {
	typ := Normalize(action)
	eff, ok := a.effects[typ]
	if !ok {
		m.PollutionLevel = entities.PollutionRange.Clamp(m.PollutionLevel)
		m.PHLevel = entities.PHRange.Clamp(m.PHLevel)
		return m, entities.Action{Type: typ}, fmt.Errorf("%w: %q", ErrUnmappedAction, action)
	}

	m.PollutionLevel = entities.PollutionRange.Clamp(m.PollutionLevel + eff.PollutionDelta)
	m.PHLevel = entities.PHRange.Clamp(m.PHLevel + eff.PHDelta)
	return m, entities.Action{Type: typ, Intensity: eff.Intensity, Duration: eff.Duration}, nil
}
