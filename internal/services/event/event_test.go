package event

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/entities"
	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
	"github.com/LeonardoBeccarini/water-treatment/pkg/dedup"
)

type sentMessage struct {
	topic   string
	qos     byte
	payload []byte
}

type capturePublisher struct {
	sent []sentMessage
	err  error
}

func (c *capturePublisher) PublishTo(topic string, qos byte, payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{topic, qos, payload})
	return nil
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type memRecorder struct {
	measurements []messages.MeasurementRecord
	actions      []messages.ActionRecord
	err          error
}

func (m *memRecorder) StoreMeasurement(_ context.Context, rec messages.MeasurementRecord) error {
	if m.err != nil {
		return m.err
	}
	m.measurements = append(m.measurements, rec)
	return nil
}

func (m *memRecorder) StoreAction(_ context.Context, rec messages.ActionRecord) error {
	if m.err != nil {
		return m.err
	}
	m.actions = append(m.actions, rec)
	return nil
}

type conn bool

func (c conn) IsConnectionOpen() bool { return bool(c) }

var ts = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func TestTopics(t *testing.T) {
	assert.Equal(t, "water/measurement/run-1", MeasurementTopic("run-1"))
	assert.Equal(t, "water/action/a_b_c", ActionTopic("a/b+c"))
	assert.Equal(t, "water/action/unknown", ActionTopic(" "))
	assert.Equal(t, "run-1", runFromTopic("water/action/run-1", ActionPrefix))
	assert.Equal(t, "", runFromTopic("water/action/", ActionPrefix))
	assert.Equal(t, "", runFromTopic("other/run-1", ActionPrefix))

	subs := Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, "water/action/+", subs[1].Topic)
	assert.Equal(t, ActionQoS, subs[1].QoS)
}

func TestPublisherToHandler(t *testing.T) {
	pub := &capturePublisher{}
	p := NewPublisher(pub)
	ctx := context.Background()

	m := entities.DefaultMeasurement()
	require.NoError(t, p.StoreMeasurement(ctx, messages.MeasurementRecord{RunID: "run-1", Step: 3, Measurement: m, Timestamp: ts}))
	require.NoError(t, p.StoreAction(ctx, messages.ActionRecord{
		RunID: "run-1", Step: 3, RuleID: 1, RuleName: "High pollution - intensive treatment", Timestamp: ts,
		Action: entities.Action{Type: "chemical_treatment", Intensity: 0.8, Duration: 10},
	}))
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "water/measurement/run-1", pub.sent[0].topic)
	assert.Equal(t, MeasurementQoS, pub.sent[0].qos)
	assert.Equal(t, "water/action/run-1", pub.sent[1].topic)
	assert.Equal(t, ActionQoS, pub.sent[1].qos)

	rec := &memRecorder{}
	h := NewHandler(rec, dedup.New(time.Minute, 100), nil)
	for _, s := range pub.sent {
		require.NoError(t, h.Handle("", fakeMessage{topic: s.topic, payload: s.payload}))
	}

	require.Len(t, rec.measurements, 1)
	got := rec.measurements[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.Step)
	assert.Equal(t, m, got.Measurement)
	assert.True(t, got.Timestamp.Equal(ts))

	require.Len(t, rec.actions, 1)
	act := rec.actions[0]
	assert.Equal(t, entities.Action{Type: "chemical_treatment", Intensity: 0.8, Duration: 10}, act.Action)
	assert.Equal(t, int64(1), act.RuleID)
	assert.Equal(t, int64(1), h.Count(KindMeasurement))
	assert.Equal(t, int64(1), h.Count(KindAction))
}

func TestHandler_DropsDuplicateActions(t *testing.T) {
	rec := &memRecorder{}
	h := NewHandler(rec, dedup.New(time.Minute, 100), nil)
	msg := fakeMessage{topic: "water/action/r", payload: []byte(`{"step":1,"action":{"action_type":"no_action"}}`)}

	require.NoError(t, h.Handle("", msg))
	require.NoError(t, h.Handle("", msg))
	require.Len(t, rec.actions, 1)
	assert.Equal(t, "r", rec.actions[0].RunID, "run id falls back to the topic")

	m := fakeMessage{topic: "water/measurement/r", payload: []byte(`{"step":1}`)}
	require.NoError(t, h.Handle("", m))
	require.NoError(t, h.Handle("", m))
	assert.Len(t, rec.measurements, 2)
}

func TestHandler_Errors(t *testing.T) {
	rec := &memRecorder{}
	h := NewHandler(rec, nil, nil)

	assert.Error(t, h.Handle("", fakeMessage{topic: "water/measurement/r", payload: []byte("{not json")}))
	assert.Error(t, h.Handle("", fakeMessage{topic: "water/action/r", payload: []byte(`{"step":1}`)}))
	assert.ErrorIs(t, h.Handle("", fakeMessage{topic: "water/measurement/", payload: []byte(`{"step":1}`)}), ErrMissingRun)
	assert.NoError(t, h.Handle("", fakeMessage{topic: "sensor/other", payload: []byte("x")}))

	rec.err = errors.New("database is locked")
	err := h.Handle("", fakeMessage{topic: "water/measurement/r", payload: []byte(`{"step":1}`)})
	assert.ErrorIs(t, err, rec.err)
	assert.Less(t, h.LastErrorAge(), time.Minute)
	assert.Zero(t, h.Count(KindMeasurement))
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("not connected")
	p := NewPublisher(&capturePublisher{err: boom})
	assert.ErrorIs(t, p.StoreAction(context.Background(), messages.ActionRecord{RunID: "r"}), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.StoreMeasurement(ctx, messages.MeasurementRecord{}), context.Canceled)
}

func TestHealthHandlers(t *testing.T) {
	h := NewHandler(&memRecorder{}, nil, nil)

	rr := httptest.NewRecorder()
	NewHealthHandler(conn(true), h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = httptest.NewRecorder()
	NewHealthHandler(conn(false), h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"down"`)

	rr = httptest.NewRecorder()
	NewReadyHandler(conn(true), h, time.Second).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.JSONEq(t, `{"ready":true}`, rr.Body.String())

	h.markError()
	rr = httptest.NewRecorder()
	NewReadyHandler(conn(true), h, time.Second).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
