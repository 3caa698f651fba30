package telephony

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"screening-agent/internal/faults"
)

// TwilioClient is the Dialer backed by the Twilio REST API.
type TwilioClient struct {
	rest *twilio.RestClient
}

// NewTwilioClient returns a ConfigurationError when credentials are missing.
func NewTwilioClient(accountSID, authToken string) (*TwilioClient, error) {
	var missing []string
	if accountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if authToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if len(missing) > 0 {
		return nil, &faults.ConfigurationError{Missing: missing}
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioClient{rest: rest}, nil
}

func (t *TwilioClient) PlaceCall(ctx context.Context, req CallRequest) (CallInfo, error) {
	if t == nil || t.rest == nil {
		return CallInfo{}, ErrNotConfigured
	}
	if req.To == "" || req.From == "" {
		return CallInfo{}, errors.New("telephony: to and from are required")
	}
	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	switch {
	case req.Twiml != "":
		params.SetTwiml(req.Twiml)
	case req.URL != "":
		params.SetUrl(req.URL)
		params.SetMethod("POST")
	default:
		return CallInfo{}, errors.New("telephony: url or twiml is required")
	}
	if req.StatusCallback != "" {
		params.SetStatusCallback(req.StatusCallback)
		params.SetStatusCallbackMethod("POST")
		events := req.StatusEvents
		if len(events) == 0 {
			events = StatusEvents
		}
		params.SetStatusCallbackEvent(events)
	}
	if req.MachineDetection {
		params.SetMachineDetection("Enable")
	}

	call, err := withContext(ctx, func() (*api.ApiV2010Call, error) { return t.rest.Api.CreateCall(params) })
	if err != nil {
		return CallInfo{}, faults.Provider("twilio", fmt.Errorf("create call: %w", err))
	}
	return callInfo(call), nil
}

func (t *TwilioClient) FetchCall(ctx context.Context, callID string) (CallInfo, error) {
	if t == nil || t.rest == nil {
		return CallInfo{}, ErrNotConfigured
	}
	call, err := withContext(ctx, func() (*api.ApiV2010Call, error) {
		return t.rest.Api.FetchCall(callID, &api.FetchCallParams{})
	})
	if err != nil {
		return CallInfo{}, faults.Provider("twilio", fmt.Errorf("fetch call %s: %w", callID, err))
	}
	return callInfo(call), nil
}

// EndCall asks the provider to complete a live leg.
func (t *TwilioClient) EndCall(ctx context.Context, callID string) error {
	if t == nil || t.rest == nil {
		return ErrNotConfigured
	}
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	_, err := withContext(ctx, func() (*api.ApiV2010Call, error) { return t.rest.Api.UpdateCall(callID, params) })
	if err != nil {
		return faults.Provider("twilio", fmt.Errorf("end call %s: %w", callID, err))
	}
	return nil
}

// withContext bounds a blocking SDK call by ctx. The SDK call itself keeps
// running in the background if ctx ends first.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func callInfo(c *api.ApiV2010Call) CallInfo {
	if c == nil {
		return CallInfo{}
	}
	info := CallInfo{
		CallID:     deref(c.Sid),
		Status:     deref(c.Status),
		From:       deref(c.From),
		To:         deref(c.To),
		Direction:  deref(c.Direction),
		AnsweredBy: deref(c.AnsweredBy),
	}
	if d, err := strconv.Atoi(deref(c.Duration)); err == nil {
		info.DurationSeconds = d
	}
	return info
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
