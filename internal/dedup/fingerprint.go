// Package dedup tracks which messages of a live chat have already been seen
// across repeated extractions, and decides which ones are new. Identity is a
// lossy fingerprint derived from unstable scraped fields; collisions between
// distinct real messages that share sender, timestamp, and leading text are
// an accepted trade-off.
package dedup

import (
	"hash/fnv"

	"chatwatch/internal/domain"
)

// textPrefixLen bounds how much of the message body participates in the
// fingerprint. Edits and re-renders beyond this prefix do not change identity.
const textPrefixLen = 50

// fieldSep keeps "ab"+"c" and "a"+"bc" from fingerprinting identically.
const fieldSep = "\x1f"

// Fingerprint is the derived identity of a message. Deterministic within a
// process; never persisted, so stability across runs is not required.
type Fingerprint uint64

// FingerprintOf derives the fingerprint of a message from its sender, the
// first 50 characters of its text, and its timestamp. Placeholder values
// ("Unknown", "N/A") participate like any other field content.
func FingerprintOf(msg domain.RawMessage) Fingerprint {
	h := fnv.New64a()
	h.Write([]byte(msg.Sender))
	h.Write([]byte(fieldSep))
	h.Write([]byte(textPrefix(msg.Text)))
	h.Write([]byte(fieldSep))
	h.Write([]byte(msg.Timestamp))
	return Fingerprint(h.Sum64())
}

func textPrefix(text string) string {
	runes := []rune(text)
	if len(runes) <= textPrefixLen {
		return text
	}
	return string(runes[:textPrefixLen])
}
