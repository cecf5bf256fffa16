// Package fuzzy computes membership degrees of scalar readings in named fuzzy sets.
package fuzzy

import "sort"

// Names of the pollution sets.
const (
	SetLow    = "low"
	SetMedium = "medium"
	SetHigh   = "high"
)

// Triangle holds the breakpoints of a triangular membership function.
type Triangle struct {
	A, B, C float64
}

// Degree returns the membership of x in t.
func (t Triangle) Degree(x float64) float64 { return Membership(x, t.A, t.B, t.C) }

// Pollution sets overlap, so degrees are not normalized.
var PollutionSets = map[string]Triangle{
	SetLow:    {A: 0, B: 0, C: 0.3},
	SetMedium: {A: 0.1, B: 0.4, C: 0.7},
	SetHigh:   {A: 0.5, B: 0.8, C: 1.0},
}

// Membership is the triangular membership function with breakpoints a <= b <= c.
// It is 0 at and below a, rises linearly to 1 at b, falls linearly to 0 at c and
// stays 0 above c. A degenerate side (a == b or b == c) has no slope, so the
// left shoulder of a set with a == b is 0 exactly at a.
func Membership(x, a, b, c float64) float64 {
	switch {
	case x <= a:
		return 0
	case x <= b:
		return (x - a) / (b - a)
	case x <= c:
		return (c - x) / (c - b)
	default:
		return 0
	}
}

// Trapezoid is the trapezoidal membership function: 0 outside (a, d), 1 on [b, c]
// and linear on the two sides.
func Trapezoid(x, a, b, c, d float64) float64 {
	switch {
	case x <= a || x >= d:
		return 0
	case x < b:
		return (x - a) / (b - a)
	case x <= c:
		return 1
	default:
		return (d - x) / (d - c)
	}
}

// Union is the standard fuzzy union (max). It returns 0 for no arguments.
func Union(degrees ...float64) float64 {
	out := 0.0
	for _, d := range degrees {
		if d > out {
			out = d
		}
	}
	return out
}

// FuzzifyPollution returns the degree of level in each pollution set.
func FuzzifyPollution(level float64) map[string]float64 {
	out := make(map[string]float64, len(PollutionSets))
	for name, t := range PollutionSets {
		out[name] = t.Degree(level)
	}
	return out
}

// Dominant returns the set with the highest non-zero degree; ties go to the
// lexically smaller name. ok is false when every degree is 0.
func Dominant(degrees map[string]float64) (name string, degree float64, ok bool) {
	names := make([]string, 0, len(degrees))
	for n := range degrees {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if d := degrees[n]; d > degree {
			name, degree, ok = n, d, true
		}
	}
	return name, degree, ok
}
