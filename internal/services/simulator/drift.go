package simulator

import (
	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// Source yields uniform samples in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Bounds of the per-step random walk.
var (
	PollutionDrift   = entities.Range{Min: -0.1, Max: 0.15}
	PHDrift          = entities.Range{Min: -0.2, Max: 0.2}
	TemperatureDrift = entities.Range{Min: -1, Max: 1}
	OxygenDrift      = entities.Range{Min: -0.5, Max: 0.5}
)

// Drift models environmental change between two control steps.
type Drift struct {
	src Source
}

func NewDrift(src Source) *Drift { return &Drift{src: src} }

func (d *Drift) uniform(r entities.Range) float64 {
	return r.Min + (r.Max-r.Min)*d.src.Float64()
}

// Perturb adds an independent uniform sample to pollution, pH, temperature and
// oxygen, in that order, then clamps the state. Water flow does not drift.
func (d *Drift) Perturb(m entities.Measurement) entities.Measurement {
	m.PollutionLevel += d.uniform(PollutionDrift)
	m.PHLevel += d.uniform(PHDrift)
	m.Temperature += d.uniform(TemperatureDrift)
	m.OxygenLevel += d.uniform(OxygenDrift)
	return m.Clamp()
}
