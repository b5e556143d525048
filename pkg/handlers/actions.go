package handlers

import (
	"context"

	"navportal/pkg/envelope"
	"navportal/pkg/validator"
)

// RegisterActions wires page events arriving over /ws to the validator.
func (h *Handler) RegisterActions() {
	h.Hub.On("page.visible", h.pageCheck(validator.TriggerVisible))
	h.Hub.On("page.focus", h.pageCheck(validator.TriggerFocus))
}

func (h *Handler) pageCheck(trigger validator.Trigger) func(envelope.Envelope) (any, error) {
	return func(envelope.Envelope) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
		defer cancel()
		state := h.Validator.Check(ctx, trigger)
		return map[string]string{"state": state.String()}, nil
	}
}

func validatorTrigger(s string) validator.Trigger {
	switch t := validator.Trigger(s); t {
	case validator.TriggerStartup, validator.TriggerInterval, validator.TriggerVisible, validator.TriggerFocus:
		return t
	default:
		return validator.TriggerManual
	}
}
