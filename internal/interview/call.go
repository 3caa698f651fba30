package interview

import (
	"strings"
	"time"
)

// CallStatus is the provider-reported lifecycle status of one telephony leg.
type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusAnswered   CallStatus = "answered"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

// ParseCallStatus normalizes provider spellings ("no answer", "cancelled",
// "in_progress") to the canonical set.
func ParseCallStatus(raw string) CallStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	switch s {
	case "no answer":
		return CallStatusNoAnswer
	case "cancelled":
		return CallStatusCanceled
	case "in progress":
		return CallStatusInProgress
	}
	return CallStatus(s)
}

// Terminal reports whether no further progress events are expected.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusBusy, CallStatusNoAnswer, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// Missed reports statuses that warrant a voicemail-style callback.
func (s CallStatus) Missed() bool {
	switch s {
	case CallStatusNoAnswer, CallStatusBusy, CallStatusFailed:
		return true
	default:
		return false
	}
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// CallAttempt is one ring-to-hangup leg owned by a session.
type CallAttempt struct {
	CallID         string     `json:"call_id"`
	Direction      Direction  `json:"direction"`
	To             string     `json:"to"`
	From           string     `json:"from"`
	Status         CallStatus `json:"status"`
	ProviderUsed   string     `json:"provider_used,omitempty"`
	ProviderReason string     `json:"provider_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EffectiveStatus is the status a reader should observe: a non-terminal
// attempt that has not been touched for longer than ttl reads as no-answer.
func (a CallAttempt) EffectiveStatus(now time.Time, ttl time.Duration) CallStatus {
	if a.Status.Terminal() || ttl <= 0 || a.UpdatedAt.IsZero() {
		return a.Status
	}
	if now.Sub(a.UpdatedAt) > ttl {
		return CallStatusNoAnswer
	}
	return a.Status
}
