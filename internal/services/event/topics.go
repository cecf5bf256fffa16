// Package event carries the simulation history over MQTT: Publisher emits
// measurement and action records, Handler decodes them on the other side.
package event

import (
	"strings"

	"github.com/LeonardoBeccarini/water-treatment/pkg/rabbitmq"
)

const (
	MeasurementPrefix = "water/measurement/"
	ActionPrefix      = "water/action/"

	// Measurements are superseded every step; actions are the audit trail.
	MeasurementQoS byte = 0
	ActionQoS      byte = 1
)

func MeasurementTopic(runID string) string { return MeasurementPrefix + topicLevel(runID) }

func ActionTopic(runID string) string { return ActionPrefix + topicLevel(runID) }

// Subscriptions are the filters a consumer of every run subscribes to.
func Subscriptions() []rabbitmq.Subscription {
	return []rabbitmq.Subscription{
		{Topic: MeasurementPrefix + "+", QoS: MeasurementQoS},
		{Topic: ActionPrefix + "+", QoS: ActionQoS},
	}
}

// topicLevel makes runID usable as a single topic level.
func topicLevel(runID string) string {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(runID)
}

// runFromTopic returns the level after prefix, or "" when topic does not carry one.
func runFromTopic(topic, prefix string) string {
	suffix := strings.TrimPrefix(topic, prefix)
	if suffix == topic || suffix == "" {
		return ""
	}
	return strings.SplitN(suffix, "/", 2)[0]
}
