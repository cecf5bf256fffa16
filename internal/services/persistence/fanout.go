package persistence

import (
	"context"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

// Recorder persists simulation history.
type Recorder interface {
	StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error
	StoreAction(ctx context.Context, rec messages.ActionRecord) error
}

// Fanout writes every record to each recorder in order and stops at the first error.
type Fanout []Recorder

func (f Fanout) StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error {
	for _, r := range f {
		if err := r.StoreMeasurement(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) StoreAction(ctx context.Context, rec messages.ActionRecord) error {
	for _, r := range f {
		if err := r.StoreAction(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
