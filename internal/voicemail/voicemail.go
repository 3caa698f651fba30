// Package voicemail recognizes calls answered by a machine instead of the
// candidate.
package voicemail

import "strings"

var machineAnswers = map[string]bool{
	"machine_start":       true,
	"machine_end_beep":    true,
	"machine_end_silence": true,
	"machine_end_other":   true,
	"fax":                 true,
}

// MachineAnswered reports whether an AnsweredBy value came from answering
// machine detection. "human" and "unknown" are not machines.
func MachineAnswered(answeredBy string) bool {
	return machineAnswers[strings.ToLower(strings.TrimSpace(answeredBy))]
}

var greetingPhrases = []string{
	"leave your name",
	"leave a message",
	"at the tone",
	"after the tone",
	"beep",
	"mailbox",
	"can't take your call",
	"cannot take your call",
	"not available",
	"get back to you",
}

// LooksLikeGreeting matches transcribed speech against common voicemail
// greeting phrases.
func LooksLikeGreeting(speech string) bool {
	t := strings.ToLower(strings.Join(strings.Fields(speech), " "))
	t = strings.ReplaceAll(t, "’", "'")
	if t == "" {
		return false
	}
	for _, p := range greetingPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
