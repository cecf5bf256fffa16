package event

import (
	"encoding/json"
	"net/http"
	"time"
)

// Connection reports the broker link state. mqtt.Client satisfies it.
type Connection interface {
	IsConnectionOpen() bool
}

type healthHandler struct {
	conn    Connection
	handler *Handler
}

// NewHealthHandler reports ok, degraded or down from the broker link and the
// age of the last failed event.
func NewHealthHandler(conn Connection, h *Handler) http.Handler {
	return &healthHandler{conn: conn, handler: h}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		Measurements    int64   `json:"measurements"`
		Actions         int64   `json:"actions"`
		LastErrorAgeSec float64 `json:"last_error_age_sec"`
	}
	age := h.handler.LastErrorAge()
	st := status{
		MQTTConnected:   h.conn != nil && h.conn.IsConnectionOpen(),
		Measurements:    h.handler.Count(KindMeasurement),
		Actions:         h.handler.Count(KindAction),
		LastErrorAgeSec: age.Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case st.MQTTConnected && age > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	conn     Connection
	handler  *Handler
	minError time.Duration
}

// NewReadyHandler answers 200 only while connected and without an event
// failure in the last minOkErrorAge.
func NewReadyHandler(conn Connection, h *Handler, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{conn: conn, handler: h, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.conn != nil && h.conn.IsConnectionOpen() && h.handler.LastErrorAge() > h.minError
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
