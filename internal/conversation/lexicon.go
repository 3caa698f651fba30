package conversation

import (
	"strings"
	"unicode"
)

type intent int

const (
	intentNone intent = iota
	intentYes
	intentNo
)

var (
	negativePhrases = []string{
		"not now", "not right now", "not a good time", "bad time", "not really", "no thanks", "no thank you",
		"call me later", "call back later", "don't have time", "do not have time", "that's all", "that is all",
		"no more questions", "nothing else", "i'm good", "i am good", "not sure", "not okay", "not ok",
		"not yet",
	}
	// Leading "no" readings that still mean yes.
	noButYes = []string{"no problem", "no worries", "no problem at all"}
	affirmativePhrases = []string{
		"yes", "yeah", "yep", "yup", "sure", "okay", "ok", "of course", "absolutely", "go ahead",
		"definitely", "certainly", "i do", "i have", "i can", "sounds good", "let's go", "let's start", "correct", "right",
	}
	negativeWords = []string{"no", "nope", "nah", "not"}
	leadingNo     = map[string]bool{"no": true, "nope": true, "nah": true}

	endPhrases = []string{
		"end the call", "end this call", "end call", "hang up", "goodbye", "good bye", "bye bye", "stop the call",
		"stop the interview", "stop calling",
	}
	repeatPhrases = []string{
		"repeat", "say that again", "say it again", "pardon", "come again", "didn't catch", "did not catch",
		"didn't hear", "did not hear", "what was the question",
	}
	interrogatives = map[string]bool{
		"can": true, "could": true, "what": true, "why": true, "how": true, "when": true, "where": true,
		"who": true, "do": true, "does": true, "is": true, "are": true, "will": true, "would": true,
	}
)

// normalize lowercases and strips punctuation other than apostrophes.
func normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func hasPhrase(norm string, phrases []string) bool {
	padded := " " + norm + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// classify maps an utterance to yes/no. DTMF 1 is yes and 2 is no. Negative
// phrases win over affirmative words so "not right now" is a no, and an
// utterance that opens with "no" is a no unless it is "no problem".
func classify(utterance, digits string) intent {
	switch strings.TrimSpace(digits) {
	case "1":
		return intentYes
	case "2":
		return intentNo
	}
	norm := normalize(utterance)
	switch {
	case norm == "":
		return intentNone
	case hasPhrase(norm, negativePhrases):
		return intentNo
	case strings.HasPrefix(norm+" ", "no ") && hasPhrase(norm, noButYes):
		return intentYes
	case leadingNo[strings.Fields(norm)[0]]:
		return intentNo
	case hasPhrase(norm, affirmativePhrases):
		return intentYes
	case hasPhrase(norm, negativeWords):
		return intentNo
	}
	return intentNone
}

func wantsToEnd(utterance string) bool { return hasPhrase(normalize(utterance), endPhrases) }

func wantsRepeat(utterance string) bool { return hasPhrase(normalize(utterance), repeatPhrases) }

// isQuestion reports a "?" or a leading interrogative word.
func isQuestion(utterance string) bool {
	if strings.Contains(utterance, "?") {
		return true
	}
	f := strings.Fields(normalize(utterance))
	return len(f) > 0 && interrogatives[f[0]]
}
