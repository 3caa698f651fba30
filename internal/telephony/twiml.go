package telephony

import (
	"bytes"
	"encoding/xml"
	"strconv"
)

// Response is a minimal Twilio Markup Language document builder. Only the verbs
// the call flow needs are modeled.
type Response struct {
	verbs []any
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr"`
	Action              string   `xml:"action,attr"`
	Method              string   `xml:"method,attr"`
	SpeechTimeout       string   `xml:"speechTimeout,attr"`
	Timeout             string   `xml:"timeout,attr"`
	ActionOnEmptyResult string   `xml:"actionOnEmptyResult,attr"`
	Language            string   `xml:"language,attr"`
	Verbs               []any    `xml:",any"`
}

type twimlDial struct {
	XMLName    xml.Name         `xml:"Dial"`
	Conference *twimlConference `xml:"Conference,omitempty"`
}

type twimlConference struct {
	StartOnEnter string `xml:"startConferenceOnEnter,attr"`
	EndOnExit    string `xml:"endConferenceOnExit,attr"`
	Beep         string `xml:"beep,attr,omitempty"`
	Room         string `xml:",chardata"`
}

// Speech is one spoken prompt: cached audio when available, otherwise text
// read by a built-in voice.
type Speech struct {
	AudioURL string
	Text     string
	Voice    string
}

func (s Speech) verb() any {
	if s.AudioURL != "" {
		return twimlPlay{URL: s.AudioURL}
	}
	return twimlSay{Voice: s.Voice, Language: "en-US", Text: s.Text}
}

func (s Speech) empty() bool { return s.AudioURL == "" && s.Text == "" }

func NewResponse() *Response { return &Response{} }

func (r *Response) Speak(s Speech) *Response {
	if !s.empty() {
		r.verbs = append(r.verbs, s.verb())
	}
	return r
}

func (r *Response) Say(text, voice string) *Response {
	return r.Speak(Speech{Text: text, Voice: voice})
}

func (r *Response) Play(url string) *Response {
	return r.Speak(Speech{AudioURL: url})
}

func (r *Response) Pause(seconds int) *Response {
	r.verbs = append(r.verbs, twimlPause{Length: seconds})
	return r
}

func (r *Response) Hangup() *Response {
	r.verbs = append(r.verbs, twimlHangup{})
	return r
}

func (r *Response) Redirect(url string) *Response {
	r.verbs = append(r.verbs, twimlRedirect{Method: "POST", URL: url})
	return r
}

// Gather collects speech or DTMF and posts it to action. An empty result is
// posted too so the call flow decides what happens on silence.
func (r *Response) Gather(action string, prompt Speech) *Response {
	g := twimlGather{
		Input:               "speech dtmf",
		Action:              action,
		Method:              "POST",
		SpeechTimeout:       "3",
		Timeout:             "5",
		ActionOnEmptyResult: "true",
		Language:            "en-US",
	}
	if !prompt.empty() {
		g.Verbs = append(g.Verbs, prompt.verb())
	}
	r.verbs = append(r.verbs, g)
	return r
}

// Conference bridges the leg into a named room.
func (r *Response) Conference(room string, startOnEnter, endOnExit bool) *Response {
	r.verbs = append(r.verbs, twimlDial{Conference: &twimlConference{
		StartOnEnter: strconv.FormatBool(startOnEnter),
		EndOnExit:    strconv.FormatBool(endOnExit),
		Beep:         "false",
		Room:         room,
	}})
	return r
}

func (r *Response) String() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(twimlResponse{Verbs: r.verbs}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Fallback is a document that renders without error for any input; handlers
// use it when building the real response fails.
func Fallback(text, voice string) string {
	out, err := NewResponse().Say(text, voice).Hangup().String()
	if err != nil {
		return xml.Header + "<Response><Hangup></Hangup></Response>"
	}
	return out
}
