package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// mapSnapshot lets tests name fields the measurement type does not have.
type mapSnapshot map[string]float64

func (m mapSnapshot) Value(f string) (float64, bool) {
	v, ok := m[f]
	return v, ok
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		src  string
		want Expr
	}{
		{
			src:  "pollution_level > 0.7",
			want: Comparison{Field: "pollution_level", Op: OpGT, Threshold: 0.7},
		},
		{
			src:  "0.3 < pollution_level",
			want: Comparison{Field: "pollution_level", Op: OpGT, Threshold: 0.3},
		},
		{
			src:  "temperature>=-2.5",
			want: Comparison{Field: "temperature", Op: OpGE, Threshold: -2.5},
		},
		{
			src: "pollution_level > 0.3 and pollution_level <= 0.7",
			want: And{
				Left:  Comparison{Field: "pollution_level", Op: OpGT, Threshold: 0.3},
				Right: Comparison{Field: "pollution_level", Op: OpLE, Threshold: 0.7},
			},
		},
		{
			src: "ph_level < 6.5 or ph_level > 7.5 and oxygen_level < 3",
			want: Or{
				Left: Comparison{Field: "ph_level", Op: OpLT, Threshold: 6.5},
				Right: And{
					Left:  Comparison{Field: "ph_level", Op: OpGT, Threshold: 7.5},
					Right: Comparison{Field: "oxygen_level", Op: OpLT, Threshold: 3},
				},
			},
		},
		{
			src: "(ph_level < 6.5 or ph_level > 7.5) and oxygen_level == 3",
			want: And{
				Left: Or{
					Left:  Comparison{Field: "ph_level", Op: OpLT, Threshold: 6.5},
					Right: Comparison{Field: "ph_level", Op: OpGT, Threshold: 7.5},
				},
				Right: Comparison{Field: "oxygen_level", Op: OpEQ, Threshold: 3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"   ",
		"pollution_level >",
		"pollution_level = 0.3",
		"pollution_level > 0.3 and",
		"(pollution_level > 0.3",
		"pollution_level > 0.3)",
		"pollution_level > ph_level",
		"1 < 2",
		"pollution_level > 0.3 && ph_level < 7",
		"__import__('os')",
		"pollution_level > 1.2.3",
		"pollution_level ! 3",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestEval_Comparisons(t *testing.T) {
	m := entities.Measurement{PollutionLevel: 0.3, PHLevel: 7, Temperature: 20, OxygenLevel: 5, WaterFlow: 100}
	tests := []struct {
		src  string
		want bool
	}{
		{"pollution_level > 0.3", false},
		{"pollution_level >= 0.3", true},
		{"pollution_level <= 0.3", true},
		{"pollution_level < 0.3", false},
		{"pollution_level == 0.3", true},
		{"ph_level < 6.5 or ph_level > 7.5", false},
		{"temperature < 25 and oxygen_level > 3", true},
		{"water_flow > 50", true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := MustParse(tt.src).Eval(m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_NoPrefixCollision(t *testing.T) {
	// "ph" is a prefix of "ph_level"; textual substitution would corrupt the second name.
	snap := mapSnapshot{"ph": 1, "ph_level": 8}
	got, err := MustParse("ph_level > 7.5").Eval(snap)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = MustParse("ph < 7.5 and ph_level > 7.5").Eval(snap)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEval_UnknownField(t *testing.T) {
	_, err := MustParse("turbidity > 3").Eval(entities.DefaultMeasurement())
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCheckFields(t *testing.T) {
	e := MustParse("pollution_level > 0.9 or turbidity > 3")
	assert.Equal(t, []string{"pollution_level", "turbidity"}, Fields(e))
	assert.ErrorIs(t, CheckFields(e, entities.Fields()), ErrUnknownField)
	assert.NoError(t, CheckFields(MustParse("ph_level < 6.5"), entities.Fields()))
}

func TestExprString(t *testing.T) {
	e := MustParse("0.3 < pollution_level and pollution_level <= 0.7")
	assert.Equal(t, "(pollution_level > 0.3 and pollution_level <= 0.7)", e.String())
}
