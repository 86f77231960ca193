package log

import "github.com/rs/zerolog"

// ZerologAdapter writes protocol events through a zerolog.Logger,
// structured the same way SlogAdapter structures events for log/slog.
// This is the default sink a server wires up for production use.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a ZerologAdapter writing to logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event as a structured debug-level zerolog entry.
func (a *ZerologAdapter) Log(event Event) {
	e := a.logger.Debug().
		Str("conn_id", event.ConnectionID).
		Str("direction", event.Direction.String()).
		Str("layer", event.Layer.String()).
		Str("category", event.Category.String())

	switch {
	case event.Frame != nil:
		e = e.Int("frame_size", event.Frame.Size).Bool("truncated", event.Frame.Truncated)
		if event.Frame.CanID != nil {
			e = e.Uint32("can_id", *event.Frame.CanID)
		}
	case event.Message != nil:
		e = e.Str("msg_type", event.Message.Type.String())
		if event.Message.Verb != nil {
			e = e.Str("verb", event.Message.Verb.String())
		}
		if event.Message.Endpoint != "" {
			e = e.Str("endpoint", event.Message.Endpoint)
		}
		if event.Message.Status != nil {
			e = e.Str("status", event.Message.Status.String())
		}
		if event.Message.ProcessingTime != nil {
			e = e.Dur("processing_time", *event.Message.ProcessingTime)
		}
	case event.StateChange != nil:
		e = e.Str("entity", event.StateChange.Entity.String()).
			Str("old_state", event.StateChange.OldState).
			Str("new_state", event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			e = e.Str("reason", event.StateChange.Reason)
		}
	case event.Error != nil:
		e = e.Str("error_layer", event.Error.Layer.String()).Str("error_msg", event.Error.Message)
		if event.Error.Status != nil {
			e = e.Str("status", event.Error.Status.String())
		}
		if event.Error.Context != "" {
			e = e.Str("error_context", event.Error.Context)
		}
	}

	e.Msg("protocol")
}

// Compile-time interface satisfaction check.
var _ Logger = (*ZerologAdapter)(nil)
