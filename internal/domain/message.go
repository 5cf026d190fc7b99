package domain

import "time"

// RawMessage is one message as extracted from a chat source. Every field is
// free text taken from a scraped DOM: the source may yield placeholder values
// ("Unknown", "N/A") and re-yield identical-looking messages on every
// extraction. No field combination is guaranteed unique.
type RawMessage struct {
	Sender    string // display name, "Unknown" when not resolvable
	Text      string // message body, never empty (source filters blanks)
	Timestamp string // free text, typically "HH:MM", "Unknown" when absent
	Phone     string // free text or "N/A"
}

// Confidence is the three-level verdict every scenario result exposes.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Insight is one surfaced classification result: the message context plus the
// structured verdict produced under a scenario. Created once, never mutated.
type Insight struct {
	ID         string     `json:"id"`
	Group      string     `json:"group"`
	Sender     string     `json:"sender"`
	Timestamp  string     `json:"timestamp"`
	Phone      string     `json:"phone"`
	Text       string     `json:"text"`
	Scenario   string     `json:"scenario"`
	Confidence Confidence `json:"confidence,omitempty"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Fields     Result     `json:"analysis"`
	ObservedAt time.Time  `json:"observed_at"`
}
