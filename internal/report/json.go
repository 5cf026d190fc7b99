package report

import (
	"encoding/json"
	"io"

	"chatwatch/internal/domain"
)

// WriteJSON writes the insight list as an indented JSON array. An empty scan
// still produces a valid document.
func WriteJSON(w io.Writer, insights []domain.Insight) error {
	if insights == nil {
		insights = []domain.Insight{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(insights)
}
