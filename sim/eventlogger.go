package sim

import (
	"reflect"

	log "github.com/sirupsen/logrus"
)

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	Logger log.FieldLogger
}

// NewEventLogger returns an EventLogger that writes to logger at trace level.
func NewEventLogger(logger log.FieldLogger) *EventLogger {
	return &EventLogger{Logger: logger}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.Logger.
		WithField("time", float64(evt.Time())).
		WithField("event", reflect.TypeOf(evt).String()).
		WithField("handler", reflect.TypeOf(evt.Handler()).String()).
		Trace("event")
}
