package tts

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"screening-agent/internal/faults"
	"screening-agent/internal/telephony"
)

const maxSayChars = 800

// Speaker turns reply text into a TwiML prompt: cached audio when synthesis
// works, the provider's built-in voice otherwise.
type Speaker struct {
	Cache         *Cache
	BaseURL       string
	DefaultVoice  string
	FallbackVoice string
	Log           *slog.Logger
}

func (s *Speaker) Speak(ctx context.Context, text, voiceID, fallbackVoice string) telephony.Speech {
	text = Normalize(text)
	if text == "" {
		return telephony.Speech{}
	}
	if fallbackVoice == "" {
		fallbackVoice = s.FallbackVoice
	}
	if fallbackVoice == "" {
		fallbackVoice = "Polly.Matthew"
	}
	if voiceID == "" {
		voiceID = s.DefaultVoice
	}
	if s.Cache != nil && voiceID != "" {
		name, err := s.Cache.Get(ctx, text, voiceID)
		if err == nil {
			return telephony.Speech{AudioURL: strings.TrimRight(s.BaseURL, "/") + "/audio/" + name}
		}
		s.logger().Warn("speech synthesis fallback", "kind", faults.Kind(err), "err", err)
	}
	return telephony.Speech{Text: clipRunes(text, maxSayChars), Voice: fallbackVoice}
}

func (s *Speaker) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
