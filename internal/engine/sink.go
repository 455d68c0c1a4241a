package engine

import "go.uber.org/zap"

// Observation event names emitted through the sink.
const (
	ObsBoardCreated        = "board:created"
	ObsCardCreated         = "card:created"
	ObsCardUpdated         = "card:updated"
	ObsCardMoved           = "card:moved"
	ObsWIPLimitExceeded    = "wip_limit:exceeded"
	ObsAutomationTriggered = "automation:triggered"
	ObsConditionError      = "automation:condition_error"
	ObsCascadeLimit        = "automation:cascade_limit"
	ObsFlowAnomaly         = "metrics:flow_anomaly"
)

// Sink receives fire-and-forget observations and notifications. The engine
// never blocks on a sink and never fails a mutation because of one.
type Sink interface {
	Emit(event string, payload map[string]any)
	Notify(recipients []string, message string, data map[string]any)
}

// LogSink writes observations to the process logger. It is the default sink
// when no other collaborator is wired in.
type LogSink struct{}

func (LogSink) Emit(event string, payload map[string]any) {
	zap.L().Info("Observation", zap.String("event", event), zap.Any("payload", payload))
}

func (LogSink) Notify(recipients []string, message string, data map[string]any) {
	zap.L().Info("Notification",
		zap.Strings("recipients", recipients),
		zap.String("message", message),
		zap.Any("data", data))
}

// MultiSink fans out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(event string, payload map[string]any) {
	for _, s := range m {
		s.Emit(event, payload)
	}
}

func (m MultiSink) Notify(recipients []string, message string, data map[string]any) {
	for _, s := range m {
		s.Notify(recipients, message, data)
	}
}
