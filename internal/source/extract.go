package source

import (
	"regexp"
	"strings"
	"unicode"

	"chatwatch/internal/domain"
)

// blob is the raw per-message payload pulled out of the page in one JS
// evaluation. Parsing it into a RawMessage happens in Go so the heuristics
// stay testable without a browser.
type blob struct {
	Outgoing    bool   `json:"outgoing"`
	Text        string `json:"text"`        // span.selectable-text content
	PrePlain    string `json:"prePlain"`    // data-pre-plain-text attribute
	PhoneButton string `json:"phoneButton"` // phone chip next to unknown senders
	InnerText   string `json:"innerText"`   // full element text, fallback source
}

var (
	timestampPattern = regexp.MustCompile(`\[?(\d{1,2}:\d{2})\]?`)
	// data-pre-plain-text looks like "[18:05, 11/10/2025] Dana Levy: "
	prePlainPattern  = regexp.MustCompile(`\]\s*([^:]+):`)
	phoneLikeOnly    = regexp.MustCompile(`^[\d\s\-+()]+$`)
	leadingTimestamp = regexp.MustCompile(`^\d{1,2}:\d{2}`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+972[-\s]?\d{1,2}[-\s]?\d{3}[-\s]?\d{4}`),
		regexp.MustCompile(`0\d{1,2}[-\s]?\d{3}[-\s]?\d{4}`),
		regexp.MustCompile(`\d{10}`),
	}
)

// parseBlobs turns scraped message payloads into RawMessages, dropping the
// user's own messages and anything without body text.
func parseBlobs(blobs []blob) []domain.RawMessage {
	var msgs []domain.RawMessage
	for i := range blobs {
		b := &blobs[i]
		if b.Outgoing {
			continue
		}
		text := strings.TrimSpace(b.Text)
		if text == "" {
			text = strings.TrimSpace(b.InnerText)
		}
		if text == "" {
			continue
		}
		msgs = append(msgs, domain.RawMessage{
			Sender:    extractSender(b),
			Text:      text,
			Timestamp: extractTimestamp(b.InnerText),
			Phone:     extractPhone(b, text),
		})
	}
	return msgs
}

// extractSender resolves a display name: the pre-plain-text attribution
// first, then a scan of the element's visible lines. Returns "Unknown" when
// nothing plausible is found.
func extractSender(b *blob) string {
	if m := prePlainPattern.FindStringSubmatch(b.PrePlain); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" && !phoneLikeOnly.MatchString(name) {
			return name
		}
	}

	for _, line := range strings.Split(b.InnerText, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 2 || len(line) >= 50 {
			continue
		}
		if leadingTimestamp.MatchString(line) {
			continue
		}
		if phoneLikeOnly.MatchString(line) {
			continue
		}
		if b.Text != "" && strings.Contains(b.Text, line) {
			continue // body line, not an attribution
		}
		if hasLetter(line) {
			return line
		}
	}
	return "Unknown"
}

// extractTimestamp finds the last HH:MM occurrence in the element text;
// WhatsApp renders the send time after the body.
func extractTimestamp(innerText string) string {
	matches := timestampPattern.FindAllStringSubmatch(innerText, -1)
	if len(matches) == 0 {
		return "Unknown"
	}
	return matches[len(matches)-1][1]
}

// extractPhone resolves a sender phone number: the phone chip, the
// pre-plain-text attribution when it is numeric, then any number mentioned
// in the body.
func extractPhone(b *blob, text string) string {
	if p := normalizePhone(b.PhoneButton); p != "" {
		return p
	}
	if m := prePlainPattern.FindStringSubmatch(b.PrePlain); m != nil {
		candidate := strings.TrimSpace(m[1])
		if phoneLikeOnly.MatchString(candidate) {
			if p := normalizePhone(candidate); p != "" {
				return p
			}
		}
	}
	for _, pat := range phonePatterns {
		if m := pat.FindString(text); m != "" {
			return normalizePhone(m)
		}
	}
	return "N/A"
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	if s == "" || !phoneLikeOnly.MatchString(s) {
		return ""
	}
	return s
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
