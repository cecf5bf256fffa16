package treatment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

func state(p, ph float64) entities.Measurement {
	return entities.Measurement{PollutionLevel: p, WaterFlow: 100, PHLevel: ph, Temperature: 20, OxygenLevel: 5}
}

func TestApply_Table(t *testing.T) {
	tests := []struct {
		action        string
		in            entities.Measurement
		wantPollution float64
		wantPH        float64
		wantAction    entities.Action
	}{
		{"activate_chemical_treatment", state(0.8, 7), 0.5, 7, entities.Action{Type: ChemicalTreatment, Intensity: 0.8, Duration: 10}},
		{"chemical_treatment", state(0.8, 7), 0.5, 7, entities.Action{Type: ChemicalTreatment, Intensity: 0.8, Duration: 10}},
		{"activate_standard_treatment", state(0.5, 7), 0.35, 7, entities.Action{Type: StandardTreatment, Intensity: 0.5, Duration: 8}},
		{"activate_minimal_treatment", state(0.2, 7), 0.15, 7, entities.Action{Type: MinimalTreatment, Intensity: 0.2, Duration: 5}},
		{"add_alkaline", state(0.5, 6), 0.5, 6.3, entities.Action{Type: AddAlkaline, Intensity: 0.4, Duration: 3}},
		{"add_acid", state(0.5, 8), 0.5, 7.7, entities.Action{Type: AddAcid, Intensity: 0.4, Duration: 3}},
		{"no_action", state(0.5, 7), 0.5, 7, entities.Action{Type: entities.ActionNone}},
	}
	a := NewApplicator()
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, act, err := a.Apply(tt.in, tt.action)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPollution, got.PollutionLevel, 1e-9)
			assert.InDelta(t, tt.wantPH, got.PHLevel, 1e-9)
			assert.Equal(t, tt.in.Temperature, got.Temperature)
			assert.Equal(t, tt.in.OxygenLevel, got.OxygenLevel)
			assert.Equal(t, tt.in.WaterFlow, got.WaterFlow)
			assert.Equal(t, tt.wantAction, act)
		})
	}
}

func TestApply_Clamps(t *testing.T) {
	a := NewApplicator()

	got, _, err := a.Apply(state(0.1, 7), "activate_chemical_treatment")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.PollutionLevel)

	got, _, err = a.Apply(state(0.5, 8.9), "add_alkaline")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.PHLevel)

	got, _, err = a.Apply(state(0.5, 4.1), "add_acid")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.PHLevel)
}

func TestApply_UnmappedIsNoOp(t *testing.T) {
	a := NewApplicator()
	for _, id := range []string{"activate_heating", "activate_cooling", "activate_aeration", "open_floodgates"} {
		t.Run(id, func(t *testing.T) {
			in := state(0.5, 7)
			got, act, err := a.Apply(in, id)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnmappedAction)
			assert.Equal(t, in, got)
			assert.Equal(t, Normalize(id), act.Type)
			assert.Zero(t, act.Intensity)
			assert.Zero(t, act.Duration)
			assert.False(t, a.Known(id))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "heating", Normalize("activate_heating"))
	assert.Equal(t, "add_acid", Normalize(" add_acid "))
	assert.True(t, NewApplicator().Known("activate_minimal_treatment"))
}
