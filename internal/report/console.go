// Package report renders surfaced insights: a colorized console view
// mirroring the classic match-tracker table, machine-readable JSON, and a
// progress bar for long classification batches.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"chatwatch/internal/domain"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

const rule = "================================================================================"

// SchemaResolver returns the scenario governing an insight so fields can be
// printed in schema order. Satisfied by scenario.Dispatch.ByName.
type SchemaResolver interface {
	ByName(name string) (*domain.Scenario, bool)
}

// Console renders insights as human-readable blocks. It doubles as an
// InsightSink so live monitoring can print matches the moment they surface.
type Console struct {
	w        io.Writer
	color    bool
	resolver SchemaResolver
}

func NewConsole(w io.Writer, color bool, resolver SchemaResolver) *Console {
	return &Console{w: w, color: color, resolver: resolver}
}

// SetResolver installs the schema resolver after construction, for callers
// that build the console before the scenarios are loaded.
func (c *Console) SetResolver(resolver SchemaResolver) {
	c.resolver = resolver
}

// Emit implements domain.InsightSink.
func (c *Console) Emit(ctx context.Context, ins domain.Insight) error {
	c.PrintInsight(ins)
	return nil
}

// Banner prints the application header.
func (c *Console) Banner(title string) {
	fmt.Fprintf(c.w, "\n%s\n%s\n%s\n\n",
		c.paint(ansiCyan, rule),
		c.paint(ansiCyan, center(title, len(rule))),
		c.paint(ansiCyan, rule))
}

// PrintInsight renders one insight block: context line, message preview,
// then every schema field in declaration order.
func (c *Console) PrintInsight(ins domain.Insight) {
	conf := string(ins.Confidence)
	if conf == "" {
		conf = "N/A"
	}
	fmt.Fprintf(c.w, "%s %s  %s (%s)  %s\n",
		c.paint(confidenceColor(ins.Confidence), confidenceSymbol(ins.Confidence)),
		c.paint(confidenceColor(ins.Confidence), conf),
		ins.Sender, ins.Timestamp,
		c.paint(ansiCyan, ins.Group))

	fmt.Fprintf(c.w, "  %s\n", preview(ins.Text, 70))
	if ins.Phone != "" && ins.Phone != "N/A" {
		fmt.Fprintf(c.w, "  phone: %s\n", ins.Phone)
	}

	for _, name := range c.fieldOrder(ins) {
		val, ok := ins.Fields[name]
		if !ok {
			continue
		}
		fmt.Fprintf(c.w, "  %s: %v\n", name, val)
	}
	if ins.Reasoning != "" {
		fmt.Fprintf(c.w, "  %s\n", c.paint(ansiGray, ins.Reasoning))
	}
	fmt.Fprintln(c.w)
}

// PrintSummary prints the closing count line, always, even when every item
// failed.
func (c *Console) PrintSummary(insights []domain.Insight) {
	var high, medium, low int
	for _, ins := range insights {
		switch ins.Confidence {
		case domain.ConfidenceHigh:
			high++
		case domain.ConfidenceMedium:
			medium++
		case domain.ConfidenceLow:
			low++
		}
	}

	fmt.Fprintln(c.w, c.paint(ansiCyan, strings.Repeat("-", len(rule))))
	fmt.Fprintf(c.w, "Total insights: %d (%s, %s, %s)\n",
		len(insights),
		c.paint(ansiGreen, fmt.Sprintf("%d HIGH", high)),
		c.paint(ansiYellow, fmt.Sprintf("%d MEDIUM", medium)),
		c.paint(ansiRed, fmt.Sprintf("%d LOW", low)))
}

func (c *Console) fieldOrder(ins domain.Insight) []string {
	if c.resolver != nil {
		if sc, ok := c.resolver.ByName(ins.Scenario); ok {
			names := make([]string, 0, len(sc.Schema.Fields))
			for i := range sc.Schema.Fields {
				names = append(names, sc.Schema.Fields[i].Name)
			}
			return names
		}
	}
	names := make([]string, 0, len(ins.Fields))
	for name := range ins.Fields {
		names = append(names, name)
	}
	return names
}

func (c *Console) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + ansiReset
}

func confidenceColor(conf domain.Confidence) string {
	switch conf {
	case domain.ConfidenceHigh:
		return ansiGreen
	case domain.ConfidenceMedium:
		return ansiYellow
	case domain.ConfidenceLow:
		return ansiRed
	}
	return ansiGray
}

func confidenceSymbol(conf domain.Confidence) string {
	switch conf {
	case domain.ConfidenceHigh:
		return "✓"
	case domain.ConfidenceMedium:
		return "~"
	case domain.ConfidenceLow:
		return "✗"
	}
	return "?"
}

func preview(text string, max int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
