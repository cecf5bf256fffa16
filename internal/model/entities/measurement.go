package entities

// Names of the measurement fields as they appear in rule conditions,
// storage columns and event payloads.
const (
	FieldPollution   = "pollution_level"
	FieldWaterFlow   = "water_flow"
	FieldPH          = "ph_level"
	FieldTemperature = "temperature"
	FieldOxygen      = "oxygen_level"
)

// Range is a closed interval used to saturate a measurement field.
type Range struct {
	Min float64
	Max float64
}

// Clamp saturates x to [r.Min, r.Max].
func (r Range) Clamp(x float64) float64 {
	if x < r.Min {
		return r.Min
	}
	if x > r.Max {
		return r.Max
	}
	return x
}

// Contains reports whether x lies in [r.Min, r.Max].
func (r Range) Contains(x float64) bool { return x >= r.Min && x <= r.Max }

// Valid ranges of the bounded fields. water_flow is unbounded.
var (
	PollutionRange   = Range{Min: 0, Max: 1}
	PHRange          = Range{Min: 4, Max: 9}
	TemperatureRange = Range{Min: 5, Max: 35}
	OxygenRange      = Range{Min: 1, Max: 10}
)

// Measurement is a snapshot of the water quality of the plant.
type Measurement struct {
	PollutionLevel float64 `json:"pollution_level" yaml:"pollution_level" mapstructure:"pollution_level"`
	WaterFlow      float64 `json:"water_flow" yaml:"water_flow" mapstructure:"water_flow"`
	PHLevel        float64 `json:"ph_level" yaml:"ph_level" mapstructure:"ph_level"`
	Temperature    float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	OxygenLevel    float64 `json:"oxygen_level" yaml:"oxygen_level" mapstructure:"oxygen_level"`
}

// DefaultMeasurement is the state a simulation starts from when none is configured.
func DefaultMeasurement() Measurement {
	return Measurement{
		PollutionLevel: 0.5,
		WaterFlow:      100.0,
		PHLevel:        7.0,
		Temperature:    20.0,
		OxygenLevel:    5.0,
	}
}

// Fields lists the names a condition may reference, in storage order.
func Fields() []string {
	return []string{FieldPollution, FieldWaterFlow, FieldPH, FieldTemperature, FieldOxygen}
}

// Value returns the field called name. Unknown names report false.
func (m Measurement) Value(name string) (float64, bool) {
	switch name {
	case FieldPollution:
		return m.PollutionLevel, true
	case FieldWaterFlow:
		return m.WaterFlow, true
	case FieldPH:
		return m.PHLevel, true
	case FieldTemperature:
		return m.Temperature, true
	case FieldOxygen:
		return m.OxygenLevel, true
	}
	return 0, false
}

// Clamp returns a copy with every bounded field saturated to its range.
func (m Measurement) Clamp() Measurement {
	m.PollutionLevel = PollutionRange.Clamp(m.PollutionLevel)
	m.PHLevel = PHRange.Clamp(m.PHLevel)
	m.Temperature = TemperatureRange.Clamp(m.Temperature)
	m.OxygenLevel = OxygenRange.Clamp(m.OxygenLevel)
	return m
}

// InRange reports whether every bounded field lies inside its range.
func (m Measurement) InRange() bool {
	return PollutionRange.Contains(m.PollutionLevel) &&
		PHRange.Contains(m.PHLevel) &&
		TemperatureRange.Contains(m.Temperature) &&
		OxygenRange.Contains(m.OxygenLevel)
}
