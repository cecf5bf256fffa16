package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
)

// InfluxConfig selects the target bucket and the breaker around writes.
type InfluxConfig struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MeasurementName string // default "water_measurement"
	ActionName      string // default "water_action"

	BreakerFailures int           // consecutive failures that open the breaker, default 3
	BreakerOpenFor  time.Duration // default 30s
}

// PointWriter is the subset of api.WriteAPIBlocking the recorder needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxRecorder writes the simulation history as InfluxDB points. Once the
// breaker opens, writes fail fast with gobreaker.ErrOpenState until it half-opens.
type InfluxRecorder struct {
	writer          PointWriter
	cb              *gobreaker.CircuitBreaker
	measurementName string
	actionName      string
	log             *zap.Logger
}

// NewInfluxClient builds the client and blocking write API for cfg.
func NewInfluxClient(cfg InfluxConfig) (influxdb2.Client, PointWriter, error) {
	if cfg.InfluxURL == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, nil, errors.New("persistence: influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return client, client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket), nil
}

func NewInfluxRecorder(w PointWriter, cfg InfluxConfig, log *zap.Logger) *InfluxRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	fails := cfg.BreakerFailures
	if fails < 1 {
		fails = 3
	}
	openFor := cfg.BreakerOpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influx-writer",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("persistence: breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &InfluxRecorder{
		writer:          w,
		cb:              cb,
		measurementName: sanitizeMeasurement(firstNonEmpty(cfg.MeasurementName, "water_measurement")),
		actionName:      sanitizeMeasurement(firstNonEmpty(cfg.ActionName, "water_action")),
		log:             log,
	}
}

// MeasurementPoint converts a snapshot into a point tagged with its run.
func (r *InfluxRecorder) MeasurementPoint(rec messages.MeasurementRecord) *write.Point {
	m := rec.Measurement
	return influxdb2.NewPoint(r.measurementName,
		map[string]string{"run_id": rec.RunID},
		map[string]interface{}{
			"step":            rec.Step,
			"pollution_level": m.PollutionLevel,
			"water_flow":      m.WaterFlow,
			"ph_level":        m.PHLevel,
			"temperature":     m.Temperature,
			"oxygen_level":    m.OxygenLevel,
		},
		pointTime(rec.Timestamp))
}

// ActionPoint converts an action record into a point tagged with its run and type.
func (r *InfluxRecorder) ActionPoint(rec messages.ActionRecord) *write.Point {
	fields := map[string]interface{}{
		"step":      rec.Step,
		"intensity": rec.Action.Intensity,
		"duration":  rec.Action.Duration,
	}
	if rec.RuleID != 0 {
		fields["rule_id"] = rec.RuleID
	}
	return influxdb2.NewPoint(r.actionName,
		map[string]string{"run_id": rec.RunID, "action_type": rec.Action.Type},
		fields,
		pointTime(rec.Timestamp))
}

func (r *InfluxRecorder) StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error {
	return r.write(ctx, r.MeasurementPoint(rec))
}

func (r *InfluxRecorder) StoreAction(ctx context.Context, rec messages.ActionRecord) error {
	return r.write(ctx, r.ActionPoint(rec))
}

func (r *InfluxRecorder) write(ctx context.Context, p *write.Point) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.writer.WritePoint(ctx, p)
	})
	if err != nil {
		r.log.Warn("persistence: influx write error", zap.String("measurement", p.Name()), zap.Error(err))
		return fmt.Errorf("persistence: influx write %s: %w", p.Name(), err)
	}
	return nil
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
