package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

type fakePointWriter struct {
	points []*write.Point
	err    error
	calls  int
}

func (f *fakePointWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, p...)
	return nil
}

func pointTags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func pointFields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestInfluxRecorder_Points(t *testing.T) {
	w := &fakePointWriter{}
	r := NewInfluxRecorder(w, InfluxConfig{ActionName: "plant actions"}, nil)
	ctx := context.Background()
	ts := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	require.NoError(t, r.StoreMeasurement(ctx, messages.MeasurementRecord{
		RunID: "run-1", Step: 2, Measurement: entities.DefaultMeasurement(), Timestamp: ts,
	}))
	require.NoError(t, r.StoreAction(ctx, messages.ActionRecord{
		RunID: "run-1", Step: 2, Timestamp: ts, RuleID: 1,
		Action: entities.Action{Type: "chemical_treatment", Intensity: 0.8, Duration: 30},
	}))
	require.Len(t, w.points, 2)

	mp := w.points[0]
	assert.Equal(t, "water_measurement", mp.Name())
	assert.Equal(t, map[string]string{"run_id": "run-1"}, pointTags(mp))
	mf := pointFields(mp)
	assert.Equal(t, int64(2), mf["step"])
	assert.Equal(t, 0.5, mf["pollution_level"])
	assert.Equal(t, 7.0, mf["ph_level"])
	assert.True(t, mp.Time().Equal(ts))

	ap := w.points[1]
	assert.Equal(t, "plant_actions", ap.Name())
	assert.Equal(t, "chemical_treatment", pointTags(ap)["action_type"])
	af := pointFields(ap)
	assert.Equal(t, 0.8, af["intensity"])
	assert.Equal(t, int64(30), af["duration"])
	assert.Equal(t, int64(1), af["rule_id"])
}

func TestInfluxRecorder_NoRuleIDForNoAction(t *testing.T) {
	r := NewInfluxRecorder(&fakePointWriter{}, InfluxConfig{}, nil)
	p := r.ActionPoint(messages.ActionRecord{RunID: "r", Action: entities.NoAction()})
	_, ok := pointFields(p)["rule_id"]
	assert.False(t, ok)
	assert.Equal(t, entities.ActionNone, pointTags(p)["action_type"])
}

func TestInfluxRecorder_BreakerOpens(t *testing.T) {
	boom := errors.New("connection refused")
	w := &fakePointWriter{err: boom}
	r := NewInfluxRecorder(w, InfluxConfig{BreakerFailures: 2, BreakerOpenFor: time.Minute}, nil)
	rec := messages.MeasurementRecord{RunID: "r", Measurement: entities.DefaultMeasurement()}
	ctx := context.Background()

	assert.ErrorIs(t, r.StoreMeasurement(ctx, rec), boom)
	assert.ErrorIs(t, r.StoreMeasurement(ctx, rec), boom)

	err := r.StoreMeasurement(ctx, rec)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, w.calls, "open breaker must not reach the writer")
}

func TestNewInfluxClient_RequiresTarget(t *testing.T) {
	_, _, err := NewInfluxClient(InfluxConfig{InfluxURL: "http://localhost:8086"})
	assert.Error(t, err)

	client, w, err := NewInfluxClient(InfluxConfig{InfluxURL: "http://localhost:8086", InfluxOrg: "plant", InfluxBucket: "water"})
	require.NoError(t, err)
	assert.NotNil(t, w)
	client.Close()
}
