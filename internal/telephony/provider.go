package telephony

import (
	"context"
	"errors"
)

// Dialer is the provider-agnostic call control surface used by business logic.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Request/response types stay provider-agnostic.
type Dialer interface {
	PlaceCall(ctx context.Context, req CallRequest) (CallInfo, error)
	FetchCall(ctx context.Context, callID string) (CallInfo, error)
	EndCall(ctx context.Context, callID string) error
}

// StatusEvents are the lifecycle events requested on every outbound leg.
var StatusEvents = []string{"initiated", "ringing", "answered", "completed"}

var ErrNotConfigured = errors.New("telephony: provider not configured")

// CallRequest places one outbound leg. Exactly one of URL or Twiml drives the
// call once answered.
type CallRequest struct {
	To   string `json:"to"`
	From string `json:"from"`

	URL   string `json:"url,omitempty"`
	Twiml string `json:"twiml,omitempty"`

	StatusCallback string   `json:"status_callback,omitempty"`
	StatusEvents   []string `json:"status_events,omitempty"`

	// MachineDetection enables answering machine detection; the result arrives
	// as AnsweredBy on the answer webhook.
	MachineDetection bool `json:"machine_detection"`
}

// CallInfo is the provider's view of one leg.
type CallInfo struct {
	CallID          string `json:"call_id"`
	Status          string `json:"status"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	Direction       string `json:"direction,omitempty"`
	AnsweredBy      string `json:"answered_by,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}
