package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"screening-agent/internal/conversation"
	"screening-agent/internal/faults"
	"screening-agent/internal/interview"
	"screening-agent/internal/reconcile"
	"screening-agent/internal/telephony"
	"screening-agent/internal/tts"
	"screening-agent/pkg/logger"
)

const (
	troubleText     = "We're having trouble right now. We'll call you back shortly. Goodbye."
	unresolvedText  = "Sorry, we could not find your screening. Please wait for a recruiter to contact you. Goodbye."
	operatorText    = "You are now being connected to the candidate."
	operatorMissing = "This conference is no longer available. Goodbye."
)

// Webhooks answers the telephony provider. Every handler replies with a
// document Twilio can play, so a call never hangs on an error.
type Webhooks struct {
	Registry   *interview.Registry
	Machine    *conversation.Machine
	Reconciler *reconcile.Reconciler
	Speaker    *tts.Speaker
	Audio      tts.AudioStore
	BaseURL    string
}

func (h *Webhooks) fallbackVoice() string {
	if h.Speaker != nil && h.Speaker.FallbackVoice != "" {
		return h.Speaker.FallbackVoice
	}
	return "Polly.Matthew"
}

// guard turns a panic anywhere below into a spoken apology and hang-up.
func (h *Webhooks) guard(c *gin.Context) {
	if r := recover(); r != nil {
		logger.FromGin(c).Error("webhook panicked", "path", c.Request.URL.Path, "panic", r)
		telephony.WriteTwiML(c, telephony.Fallback(troubleText, h.fallbackVoice()))
	}
}

func (h *Webhooks) hook(path string, q url.Values) string {
	return strings.TrimRight(h.BaseURL, "/") + path + "?" + q.Encode()
}

// Voice handles the answer webhook for outbound legs and inbound callbacks.
func (h *Webhooks) Voice(c *gin.Context) {
	defer h.guard(c)
	ctx := c.Request.Context()

	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		telephony.WriteTwiML(c, telephony.Fallback(troubleText, h.fallbackVoice()))
		return
	}
	log := logger.Enrich(c, "call_sid", form.CallSid, "direction", form.Direction)

	s, res, err := h.Registry.Resolve(ctx, c.Query("session_id"), form.CallerPhone())
	if err != nil {
		log.Warn("voice webhook unresolved", "err", err, "caller", form.CallerPhone())
		telephony.WriteTwiML(c, telephony.Fallback(unresolvedText, h.fallbackVoice()))
		return
	}
	log = logger.Enrich(c, "session_id", s.ID)
	ctx = c.Request.Context()

	if form.CallSid != "" {
		if form.Inbound() {
			_, err = h.Registry.RecordInbound(ctx, s.ID, form.CallSid, form.From, form.To)
		} else {
			_, err = h.Registry.RecordCall(ctx, s.ID, form.CallSid, form.To, interview.CallStatusInProgress)
		}
		if err != nil {
			log.Warn("record call attempt failed", "err", err)
		}
	}

	var out conversation.Reply
	updated, err := h.Registry.Update(ctx, s.ID, func(s *interview.Session) error {
		out = h.Machine.Open(ctx, s, conversation.Turn{CallID: form.CallSid, AnsweredBy: form.AnsweredBy})
		return nil
	})
	if err != nil {
		log.Error("open call failed", "err", err)
		telephony.WriteTwiML(c, telephony.Fallback(troubleText, h.fallbackVoice()))
		return
	}
	if res.Callback && form.Inbound() && h.Reconciler != nil {
		h.Reconciler.CallbackReceived(ctx, updated, form.CallSid)
	}
	log.Info("call opened", "phase", updated.Phase, "action", out.Action,
		"callback", res.Callback, "rehydrated", res.Rehydrated, "derived", res.Derived)
	h.respond(c, updated.ID, out, 0)
	h.settle(ctx, updated, form.CallSid, out)
}

// Process applies one speech or DTMF result.
func (h *Webhooks) Process(c *gin.Context) {
	defer h.guard(c)
	h.turn(c, 0)
}

// Listen is the silent re-gather loop. Speech arriving here is a normal turn.
func (h *Webhooks) Listen(c *gin.Context) {
	defer h.guard(c)
	n, _ := strconv.Atoi(c.Query("n"))
	if n < 1 {
		n = 1
	}
	h.turn(c, n)
}

func (h *Webhooks) turn(c *gin.Context, round int) {
	ctx := c.Request.Context()
	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		telephony.WriteTwiML(c, telephony.Fallback(troubleText, h.fallbackVoice()))
		return
	}
	log := logger.Enrich(c, "call_sid", form.CallSid)

	s, err := h.lookup(ctx, c.Query("session_id"), form.CallSid)
	if err != nil {
		log.Warn("turn webhook unresolved", "err", err)
		telephony.WriteTwiML(c, telephony.Fallback(unresolvedText, h.fallbackVoice()))
		return
	}
	log = logger.Enrich(c, "session_id", s.ID)
	ctx = c.Request.Context()

	t := conversation.Turn{CallID: form.CallSid, Speech: form.SpeechResult, Digits: form.Digits}
	silent := t.Speech == "" && t.Digits == ""

	var out conversation.Reply
	updated, err := h.Registry.Update(ctx, s.ID, func(s *interview.Session) error {
		if round > 0 && silent {
			out = h.Machine.Silence(ctx, s, form.CallSid, round)
			return nil
		}
		out = h.Machine.Advance(ctx, s, t)
		return nil
	})
	if err != nil {
		log.Error("turn update failed", "err", err)
		telephony.WriteTwiML(c, telephony.Fallback(troubleText, h.fallbackVoice()))
		return
	}
	if !silent {
		log.Info("turn", "phase", updated.Phase, "action", out.Action, "provider", out.Provider,
			"reason", out.Reason, "speech", logger.Truncate(t.Speech, 200))
		round = 0
	}
	h.respond(c, updated.ID, out, round)
	h.settle(ctx, updated, form.CallSid, out)
}

func (h *Webhooks) lookup(ctx context.Context, sessionID, callID string) (interview.Session, error) {
	if sessionID != "" {
		s, err := h.Registry.Get(ctx, sessionID)
		if err == nil || !errors.Is(err, interview.ErrNotFound) {
			return s, err
		}
	}
	return h.Registry.FindByCall(ctx, callID)
}

// settle runs the side effects of a turn after the session lock is released.
func (h *Webhooks) settle(ctx context.Context, s interview.Session, callID string, out conversation.Reply) {
	switch {
	case out.Finalized && out.Missed && h.Reconciler != nil:
		h.Reconciler.Settle(ctx, s, callID, interview.CallStatusNoAnswer, 0, true)
	default:
		h.Registry.Persist(ctx, s)
	}
	if out.HandoffRequested && h.Reconciler != nil {
		h.Reconciler.HandoffRequested(ctx, s, callID)
	}
}

// respond renders a reply. round > 0 keeps an empty gather inside the listen
// loop so the silence counter keeps climbing.
func (h *Webhooks) respond(c *gin.Context, sessionID string, out conversation.Reply, round int) {
	ctx := c.Request.Context()
	var speech telephony.Speech
	if h.Speaker != nil {
		speech = h.Speaker.Speak(ctx, out.Text, out.Profile.VoiceID, out.Profile.FallbackVoice)
	} else if out.Text != "" {
		speech = telephony.Speech{Text: out.Text, Voice: h.fallbackVoice()}
	}

	q := url.Values{"session_id": {sessionID}}
	listen := func(n int) string {
		lq := url.Values{"session_id": {sessionID}, "n": {strconv.Itoa(n)}}
		return h.hook("/twilio/listen", lq)
	}

	doc := telephony.NewResponse()
	switch out.Action {
	case conversation.ActionGather:
		if round > 0 && out.Text == "" {
			doc.Gather(listen(round+1), speech)
		} else {
			doc.Gather(h.hook("/twilio/process", q), speech)
		}
	case conversation.ActionListen:
		doc.Gather(listen(round+1), speech)
	case conversation.ActionConference:
		doc.Speak(speech).Conference(out.Room, true, true)
	default:
		doc.Speak(speech).Hangup()
	}

	body, err := doc.String()
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		body = telephony.Fallback(troubleText, h.fallbackVoice())
	}
	telephony.WriteTwiML(c, body)
}

// Status reconciles a call lifecycle event. The provider always gets a 200;
// a non-2xx would only trigger retries of an event we already logged.
func (h *Webhooks) Status(c *gin.Context) {
	form, err := telephony.ParseWebhook(c.Request)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": "invalid form"})
		return
	}
	log := logger.Enrich(c, "call_sid", form.CallSid, "status", form.CallStatus)

	ev := reconcile.Event{
		SessionID:  c.Query("session_id"),
		CallID:     form.CallSid,
		Status:     interview.ParseCallStatus(form.CallStatus),
		To:         form.To,
		From:       form.From,
		AnsweredBy: form.AnsweredBy,
		Duration:   form.CallDuration,
	}
	out, err := h.Reconciler.Apply(c.Request.Context(), ev)
	if err != nil {
		log.Warn("status event not applied", "kind", faults.Kind(err), "err", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":       err == nil,
		"applied":  out.Applied,
		"conflict": out.Conflict,
		"terminal": out.Terminal,
		"ignored":  out.Ignored,
	})
}

// OperatorJoin is the TwiML for the operator leg of a hand-off bridge.
func (h *Webhooks) OperatorJoin(c *gin.Context) {
	defer h.guard(c)
	room := strings.TrimSpace(c.Query("room"))
	if room == "" {
		telephony.WriteTwiML(c, telephony.Fallback(operatorMissing, h.fallbackVoice()))
		return
	}
	logger.Enrich(c, "room", room, "session_id", c.Query("session_id")).Info("operator joining")
	body, err := telephony.NewResponse().
		Say(operatorText, h.fallbackVoice()).
		Conference(room, true, false).
		String()
	if err != nil {
		body = telephony.Fallback(operatorMissing, h.fallbackVoice())
	}
	telephony.WriteTwiML(c, body)
}

// ServeAudio serves a cached synthesis result by file name.
func (h *Webhooks) ServeAudio(c *gin.Context) {
	name := c.Param("name")
	if !tts.ValidName(name) || h.Audio == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	rc, size, err := h.Audio.Open(c.Request.Context(), name)
	if errors.Is(err, tts.ErrNotFound) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, size, "audio/mpeg", rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}
