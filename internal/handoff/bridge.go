package handoff

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"screening-agent/internal/telephony"
)

var ErrNoOperator = errors.New("handoff: operator number not configured")

// Bridge dials the operator into a conference room the candidate is about to
// join.
type Bridge struct {
	Dialer   telephony.Dialer
	Operator string
	From     string
	BaseURL  string
}

// Connect places the operator leg and returns the room name.
func (b *Bridge) Connect(ctx context.Context, sessionID string) (room, callID string, err error) {
	if b == nil || b.Dialer == nil {
		return "", "", telephony.ErrNotConfigured
	}
	if strings.TrimSpace(b.Operator) == "" {
		return "", "", ErrNoOperator
	}
	room = RoomName(sessionID)
	q := url.Values{"room": {room}, "session_id": {sessionID}}
	info, err := b.Dialer.PlaceCall(ctx, telephony.CallRequest{
		To:   b.Operator,
		From: b.From,
		URL:  strings.TrimRight(b.BaseURL, "/") + "/twilio/operator/join?" + q.Encode(),
	})
	if err != nil {
		return room, "", fmt.Errorf("handoff: dial operator: %w", err)
	}
	return room, info.CallID, nil
}

// RoomName is screening-<first ten characters of the session id>-<uuid prefix>.
func RoomName(sessionID string) string {
	short := sessionID
	if len(short) > 10 {
		short = short[:10]
	}
	return "screening-" + short + "-" + uuid.NewString()[:8]
}
