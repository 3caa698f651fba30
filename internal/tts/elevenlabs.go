// Package tts synthesizes spoken prompts and caches the audio by content.
package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"screening-agent/internal/faults"
)

const elevenLabsDefaultWSBase = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// ElevenLabs streams text over the stream-input websocket and collects the
// returned MP3 chunks.
type ElevenLabs struct {
	apiKey    string
	wsBaseURL string
	model     string
	format    string
	timeout   time.Duration
}

func NewElevenLabs(apiKey string, timeout time.Duration) *ElevenLabs {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &ElevenLabs{
		apiKey:    strings.TrimSpace(apiKey),
		wsBaseURL: elevenLabsDefaultWSBase,
		model:     "eleven_turbo_v2_5",
		format:    "mp3_44100_128",
		timeout:   timeout,
	}
}

func (e *ElevenLabs) WithWSBaseURL(base string) *ElevenLabs {
	if base = strings.TrimSpace(base); base != "" {
		e.wsBaseURL = base
	}
	return e
}

func (e *ElevenLabs) Configured() bool { return e != nil && e.apiKey != "" }

func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if !e.Configured() {
		return nil, faults.Provider("elevenlabs", errors.New("api key is required"))
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return nil, errors.New("tts: voice id is required")
	}
	wsURL, err := e.streamURL(voiceID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, faults.Provider("elevenlabs", fmt.Errorf("dial: %w", err))
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
	}

	messages := []map[string]any{
		{"text": " ", "voice_settings": map[string]any{"stability": 0.5, "similarity_boost": 0.8}},
		{"text": strings.TrimSpace(text) + " ", "flush": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			return nil, faults.Provider("elevenlabs", fmt.Errorf("write: %w", err))
		}
	}

	var out []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if len(out) > 0 && websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return out, nil
			}
			return nil, faults.Provider("elevenlabs", fmt.Errorf("read: %w", err))
		}
		var msg struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return nil, faults.Provider("elevenlabs", errors.New(msg.Error))
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err == nil {
				out = append(out, chunk...)
			}
		}
		if msg.IsFinal {
			break
		}
	}
	if len(out) == 0 {
		return nil, faults.Provider("elevenlabs", errors.New("no audio returned"))
	}
	return out, nil
}

func (e *ElevenLabs) streamURL(voiceID string) (string, error) {
	base := strings.ReplaceAll(e.wsBaseURL, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("tts: invalid elevenlabs ws url: %w", err)
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", e.model)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", e.format)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
