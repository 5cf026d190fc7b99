// Package notify pushes surfaced insights to external channels. Delivery is
// best-effort: a failed notification is logged, never fatal to a scan.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatwatch/internal/config"
	"chatwatch/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// confidenceRank orders confidence levels for threshold checks.
var confidenceRank = map[domain.Confidence]int{
	domain.ConfidenceLow:    1,
	domain.ConfidenceMedium: 2,
	domain.ConfidenceHigh:   3,
}

// Telegram delivers insights to a Telegram chat. Implements domain.InsightSink.
type Telegram struct {
	chatID  int64
	minConf domain.Confidence

	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

func NewTelegram(cfg config.TelegramConfig, logger *slog.Logger) (*Telegram, error) {
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat ID is not set")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	logger.Info("telegram notifier connected", "username", bot.Self.UserName)

	return &Telegram{
		chatID:  cfg.ChatID,
		minConf: domain.Confidence(strings.ToUpper(cfg.MinConfidence)),
		bot:     bot,
		logger:  logger,
	}, nil
}

// Emit implements domain.InsightSink. Insights below the configured
// confidence threshold are dropped silently.
func (t *Telegram) Emit(ctx context.Context, ins domain.Insight) error {
	if !meetsThreshold(ins.Confidence, t.minConf) {
		return nil
	}
	t.sendMessage(formatInsight(ins))
	return nil
}

// meetsThreshold reports whether conf is at or above min. An empty or
// unrecognized min admits everything; an unrecognized conf only passes
// when no threshold is set.
func meetsThreshold(conf, min domain.Confidence) bool {
	minRank, ok := confidenceRank[min]
	if !ok {
		return true
	}
	return confidenceRank[conf] >= minRank
}

func formatInsight(ins domain.Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *%s* match in %s\n\n", ins.Scenario, ins.Group)
	fmt.Fprintf(&b, "From: %s", ins.Sender)
	if ins.Timestamp != "" {
		fmt.Fprintf(&b, " (%s)", ins.Timestamp)
	}
	b.WriteString("\n")
	if ins.Phone != "" && ins.Phone != "N/A" {
		fmt.Fprintf(&b, "Phone: %s\n", ins.Phone)
	}
	fmt.Fprintf(&b, "Confidence: %s\n\n%s", ins.Confidence, ins.Text)
	if ins.Reasoning != "" {
		fmt.Fprintf(&b, "\n\n_%s_", ins.Reasoning)
	}
	return b.String()
}

// sendMessage splits oversized messages, Telegram rejects anything over
// 4096 chars.
func (t *Telegram) sendMessage(text string) {
	for len(text) > 0 {
		cut := splitIndex(text)
		t.sendChunk(text[:cut])
		text = text[cut:]
	}
}

// splitIndex returns the byte index to cut text at for one message:
// preferably a newline in the back half of the window, otherwise the last
// rune boundary at or below the limit, never splitting a rune.
func splitIndex(text string) int {
	if len(text) <= telegramMaxMsgLen {
		return len(text)
	}
	if cut := strings.LastIndex(text[:telegramMaxMsgLen], "\n"); cut >= telegramMaxMsgLen/2 {
		return cut
	}
	cut := telegramMaxMsgLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		return telegramMaxMsgLen
	}
	return cut
}

// sendChunk sends one chunk: Markdown first, plain text on parse errors,
// backoff on rate limits and transient failures.
func (t *Telegram) sendChunk(text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(t.chatID, text)
		if attempt == 0 {
			msg.ParseMode = "Markdown"
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt == 0 && strings.Contains(errStr, "can't parse entities") {
			plainMsg := tgbotapi.NewMessage(t.chatID, text)
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries",
			"err", err, "attempts", telegramMaxSendRetries+1)
	}
}
