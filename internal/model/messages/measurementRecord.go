package messages

import (
	"time"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
)

// MeasurementRecord is the point-in-time snapshot persisted at the start of every step.
type MeasurementRecord struct {
	RunID       string               `json:"run_id"`
	Step        int                  `json:"step"`
	Measurement entities.Measurement `json:"measurement"`
	Timestamp   time.Time            `json:"timestamp"`
}
