package candidates

import (
	"regexp"
	"strings"
)

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe    = regexp.MustCompile(`(?:\+?1[\s.-]?)?(?:\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4})`)
	linkedInRe = regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/[^\s)]+`)
	phoneStrip = regexp.MustCompile(`[^+\d]`)
)

// Contact is what could be pulled out of free resume text.
type Contact struct {
	FullName string
	Email    string
	Phone    string
	LinkedIn string
}

// ExtractContact scans resume text for a name line, email, phone and LinkedIn URL.
func ExtractContact(resume string) Contact {
	var c Contact
	for _, line := range strings.Split(strings.ReplaceAll(resume, "\r", ""), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if n := len(strings.Fields(line)); n >= 2 && n <= 5 && len(line) <= 80 && !strings.Contains(line, "@") {
			c.FullName = line
		}
		break
	}
	c.Email = emailRe.FindString(resume)
	c.Phone = phoneRe.FindString(resume)
	c.LinkedIn = linkedInRe.FindString(resume)
	return c
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps digits and a leading plus.
func NormalizePhone(phone string) string {
	return phoneStrip.ReplaceAllString(strings.TrimSpace(phone), "")
}

// SamePhone compares two numbers ignoring formatting and an optional +1 prefix.
func SamePhone(a, b string) bool {
	a, b = NormalizePhone(a), NormalizePhone(b)
	if a == "" || b == "" {
		return false
	}
	return tail10(a) == tail10(b)
}

// PhoneKey is the comparison key SamePhone uses, suitable for an indexed
// column.
func PhoneKey(phone string) string { return tail10(NormalizePhone(phone)) }

func tail10(p string) string {
	p = strings.TrimPrefix(p, "+")
	if len(p) > 10 {
		return p[len(p)-10:]
	}
	return p
}
