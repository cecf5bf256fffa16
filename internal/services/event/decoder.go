package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/water-treatment/internal/model/messages"
	"github.com/LeonardoBeccarini/water-treatment/pkg/dedup"
)

// Recorder receives the decoded records. Implemented by the persistence stores.
type Recorder interface {
	StoreMeasurement(ctx context.Context, rec messages.MeasurementRecord) error
	StoreAction(ctx context.Context, rec messages.ActionRecord) error
}

const (
	KindMeasurement = "measurement"
	KindAction      = "action"
)

// ErrMissingRun is returned for payloads without a run id on a topic without one.
var ErrMissingRun = errors.New("event: missing run id")

// Handler decodes MQTT events and forwards them to a Recorder. Action events
// arrive at QoS 1 and are deduplicated on their payload.
type Handler struct {
	rec     Recorder
	dedup   *dedup.Deduper
	timeout time.Duration
	log     *zap.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewHandler(rec Recorder, d *dedup.Deduper, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		rec:     rec,
		dedup:   d,
		timeout: 5 * time.Second,
		log:     log,
		counts:  make(map[string]int64),
	}
}

// Handle matches rabbitmq.Handler. Topics outside the water tree are ignored.
func (h *Handler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()
	payload := m.Payload()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var (
		kind string
		err  error
	)
	switch {
	case strings.HasPrefix(topic, MeasurementPrefix):
		kind = KindMeasurement
		var rec messages.MeasurementRecord
		if rec, err = decodeMeasurement(topic, payload); err == nil {
			err = h.rec.StoreMeasurement(ctx, rec)
		}
	case strings.HasPrefix(topic, ActionPrefix):
		kind = KindAction
		if h.dedup != nil && !h.dedup.ShouldProcess(dedup.Key([]byte(topic), payload)) {
			h.log.Debug("event: duplicate dropped", zap.String("topic", topic))
			return nil
		}
		var rec messages.ActionRecord
		if rec, err = decodeAction(topic, payload); err == nil {
			err = h.rec.StoreAction(ctx, rec)
		}
	default:
		return nil
	}
	if err != nil {
		h.markError()
		return fmt.Errorf("event: %s on %s: %w", kind, topic, err)
	}
	h.markIngest(kind)
	return nil
}

func decodeMeasurement(topic string, payload []byte) (messages.MeasurementRecord, error) {
	var rec messages.MeasurementRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, err
	}
	if rec.RunID == "" {
		rec.RunID = runFromTopic(topic, MeasurementPrefix)
	}
	if rec.RunID == "" {
		return rec, ErrMissingRun
	}
	return rec, nil
}

func decodeAction(topic string, payload []byte) (messages.ActionRecord, error) {
	var rec messages.ActionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, err
	}
	if rec.RunID == "" {
		rec.RunID = runFromTopic(topic, ActionPrefix)
	}
	if rec.RunID == "" {
		return rec, ErrMissingRun
	}
	if rec.Action.Type == "" {
		return rec, errors.New("event: action without type")
	}
	return rec, nil
}

func (h *Handler) markError() {
	h.mu.Lock()
	h.lastErr = time.Now()
	h.mu.Unlock()
}

func (h *Handler) markIngest(kind string) {
	h.mu.Lock()
	h.counts[kind]++
	h.mu.Unlock()
}

// Count is the number of events of kind forwarded so far.
func (h *Handler) Count(kind string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[kind]
}

// LastErrorAge is the time since the last failed event; very large when none failed.
func (h *Handler) LastErrorAge() time.Duration {
	h.mu.RLock()
	t := h.lastErr
	h.mu.RUnlock()
	if t.IsZero() {
		return 99999 * time.Hour
	}
	return time.Since(t)
}
