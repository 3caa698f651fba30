package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseWebhook(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=%2B15551234567&To=%2B15557654321&Direction=outbound-api" +
		"&CallStatus=In-Progress&AnsweredBy=Machine_Start&SpeechResult=+yes+please+&Confidence=0.91&CallDuration=17")
	r := httptest.NewRequest(http.MethodPost, "/twilio/voice", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseWebhook(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.CallStatus != "in-progress" || form.AnsweredBy != "machine_start" {
		t.Fatalf("unexpected status fields: %q %q", form.CallStatus, form.AnsweredBy)
	}
	if form.SpeechResult != "yes please" || form.Confidence != 0.91 || form.CallDuration != 17 {
		t.Fatalf("unexpected speech fields: %+v", form)
	}
	if form.Inbound() || form.CallerPhone() != "+15557654321" {
		t.Fatalf("outbound caller phone should be To, got %q", form.CallerPhone())
	}
}

func TestInboundCallerPhoneIsFrom(t *testing.T) {
	f := WebhookForm{Direction: "inbound", From: "+1555", To: "+1666"}
	if f.CallerPhone() != "+1555" {
		t.Fatalf("got %q", f.CallerPhone())
	}
}
