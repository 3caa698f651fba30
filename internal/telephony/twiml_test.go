package telephony

import (
	"strings"
	"testing"
)

func TestGatherWrapsPrompt(t *testing.T) {
	out, err := NewResponse().Gather("https://x.test/twilio/process?session_id=s1", Speech{AudioURL: "https://x.test/audio/tts_a.mp3"}).String()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Gather input="speech dtmf"`,
		`speechTimeout="3"`,
		`timeout="5"`,
		`actionOnEmptyResult="true"`,
		`language="en-US"`,
		`<Play>https://x.test/audio/tts_a.mp3</Play>`,
		`session_id=s1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in xml: %s", want, out)
		}
	}
}

func TestSayEscapesText(t *testing.T) {
	out, err := NewResponse().Say("Tom & Jerry <3", "Polly.Joanna").Hangup().String()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<Say voice="Polly.Joanna" language="en-US">Tom &amp; Jerry &lt;3</Say>`) {
		t.Fatalf("unexpected xml: %s", out)
	}
	if !strings.Contains(out, "<Hangup></Hangup>") {
		t.Fatalf("expected hangup: %s", out)
	}
}

func TestConference(t *testing.T) {
	out, err := NewResponse().Pause(2).Conference("screening-abc-1234", true, false).String()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<Conference startConferenceOnEnter="true" endConferenceOnExit="false" beep="false">screening-abc-1234</Conference>`) {
		t.Fatalf("unexpected xml: %s", out)
	}
	if !strings.Contains(out, `<Pause length="2"></Pause>`) {
		t.Fatalf("expected pause: %s", out)
	}
}

func TestEmptySpeechIsSkipped(t *testing.T) {
	out, _ := NewResponse().Speak(Speech{}).Hangup().String()
	if strings.Contains(out, "<Say") || strings.Contains(out, "<Play") {
		t.Fatalf("unexpected prompt: %s", out)
	}
}

func TestFallback(t *testing.T) {
	out := Fallback("Sorry.", "Polly.Matthew")
	if !strings.Contains(out, "<Say") || !strings.Contains(out, "<Hangup") {
		t.Fatalf("unexpected xml: %s", out)
	}
}
