package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// WebhookForm captures the subset of voice webhook fields the call flow reads.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml
type WebhookForm struct {
	CallSid      string
	AccountSid   string
	From         string
	To           string
	Direction    string
	CallStatus   string
	AnsweredBy   string
	SpeechResult string
	Confidence   float64
	Digits       string
	CallDuration int
}

func ParseWebhook(r *http.Request) (WebhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return WebhookForm{}, err
	}
	f := WebhookForm{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		AnsweredBy:   strings.ToLower(strings.TrimSpace(r.PostFormValue("AnsweredBy"))),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
		Digits:       strings.TrimSpace(r.PostFormValue("Digits")),
	}
	if v := r.PostFormValue("Confidence"); v != "" {
		f.Confidence, _ = strconv.ParseFloat(v, 64)
	}
	if v := r.PostFormValue("CallDuration"); v != "" {
		f.CallDuration, _ = strconv.Atoi(v)
	}
	return f, nil
}

// Inbound reports whether the leg was started by the caller.
func (f WebhookForm) Inbound() bool {
	return strings.EqualFold(f.Direction, "inbound")
}

// CallerPhone is the candidate's number for either direction.
func (f WebhookForm) CallerPhone() string {
	if f.Inbound() {
		return f.From
	}
	return f.To
}

// formParams flattens the posted form for signature validation.
func formParams(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
