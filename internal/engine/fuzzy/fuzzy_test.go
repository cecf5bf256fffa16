package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestMembership_Points(t *testing.T) {
	tests := []struct {
		name    string
		x       float64
		a, b, c float64
		want    float64
	}{
		{name: "low_shoulder_falling", x: 0.2, a: 0, b: 0, c: 0.3, want: 1.0 / 3},
		{name: "medium_rising", x: 0.2, a: 0.1, b: 0.4, c: 0.7, want: 1.0 / 3},
		{name: "high_below_start", x: 0.2, a: 0.5, b: 0.8, c: 1.0, want: 0},
		{name: "peak", x: 0.4, a: 0.1, b: 0.4, c: 0.7, want: 1},
		{name: "at_a", x: 0.1, a: 0.1, b: 0.4, c: 0.7, want: 0},
		{name: "at_c", x: 0.7, a: 0.1, b: 0.4, c: 0.7, want: 0},
		{name: "above_c", x: 0.9, a: 0.1, b: 0.4, c: 0.7, want: 0},
		{name: "below_a", x: -1, a: 0.1, b: 0.4, c: 0.7, want: 0},
		{name: "falling_mid", x: 0.55, a: 0.1, b: 0.4, c: 0.7, want: 0.5},
		{name: "degenerate_left_at_a", x: 0, a: 0, b: 0, c: 0.3, want: 0},
		{name: "degenerate_right_at_c", x: 1.0, a: 0.5, b: 1.0, c: 1.0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Membership(tt.x, tt.a, tt.b, tt.c), eps)
		})
	}
}

func TestMembership_Shape(t *testing.T) {
	a, b, c := 0.1, 0.4, 0.7
	prev := Membership(a, a, b, c)
	for x := a + 0.01; x <= b; x += 0.01 {
		d := Membership(x, a, b, c)
		assert.GreaterOrEqual(t, d, prev, "rising side must not decrease at %v", x)
		assert.LessOrEqual(t, d, 1.0)
		prev = d
	}
	for x := b + 0.01; x <= c; x += 0.01 {
		d := Membership(x, a, b, c)
		assert.LessOrEqual(t, d, prev, "falling side must not increase at %v", x)
		assert.GreaterOrEqual(t, d, 0.0)
		prev = d
	}
}

func TestFuzzifyPollution(t *testing.T) {
	got := FuzzifyPollution(0.2)
	assert.Len(t, got, 3)
	assert.InDelta(t, 1.0/3, got[SetLow], eps)
	assert.InDelta(t, 1.0/3, got[SetMedium], eps)
	assert.InDelta(t, 0, got[SetHigh], eps)

	got = FuzzifyPollution(0.8)
	assert.InDelta(t, 0, got[SetLow], eps)
	assert.InDelta(t, 0, got[SetMedium], eps)
	assert.InDelta(t, 1, got[SetHigh], eps)
}

func TestTrapezoid(t *testing.T) {
	assert.InDelta(t, 0, Trapezoid(0, 0, 1, 2, 3), eps)
	assert.InDelta(t, 0.5, Trapezoid(0.5, 0, 1, 2, 3), eps)
	assert.InDelta(t, 1, Trapezoid(1.5, 0, 1, 2, 3), eps)
	assert.InDelta(t, 0.5, Trapezoid(2.5, 0, 1, 2, 3), eps)
	assert.InDelta(t, 0, Trapezoid(3, 0, 1, 2, 3), eps)
}

func TestUnionAndDominant(t *testing.T) {
	assert.Equal(t, 0.0, Union())
	assert.Equal(t, 0.7, Union(0.2, 0.7, 0.5))

	name, deg, ok := Dominant(FuzzifyPollution(0.45))
	assert.True(t, ok)
	assert.Equal(t, SetMedium, name)
	assert.InDelta(t, 0.8333333333, deg, 1e-6)

	_, _, ok = Dominant(map[string]float64{SetLow: 0, SetHigh: 0})
	assert.False(t, ok)

	name, _, ok = Dominant(map[string]float64{SetMedium: 0.5, SetHigh: 0.5})
	assert.True(t, ok)
	assert.Equal(t, SetHigh, name)
}
