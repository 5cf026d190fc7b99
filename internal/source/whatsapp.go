// Package source scrapes messages out of WhatsApp Web through a
// headless-Chrome session. It is a full-extraction source: every call
// returns whatever is currently in the DOM, with no ordering or uniqueness
// guarantees; dedup is the scan controller's job.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"chatwatch/internal/config"
	"chatwatch/internal/domain"
)

const whatsappURL = "https://web.whatsapp.com"

// collectJS gathers the raw payload of every visible message element in one
// round trip; parsing happens Go-side (see extract.go).
const collectJS = `
(() => {
	let nodes = document.querySelectorAll('[data-testid="msg-container"]');
	if (nodes.length === 0) {
		nodes = document.querySelectorAll('div[data-id]');
	}
	const out = [];
	for (const el of nodes) {
		const cls = el.getAttribute('class') || '';
		const outgoing = cls.includes('message-out') ||
			el.querySelector('[data-icon="msg-check"],[data-icon="msg-dblcheck"]') !== null;
		const textEl = el.querySelector('span.selectable-text');
		const copyEl = el.querySelector('[data-pre-plain-text]');
		const phoneEl = el.querySelector('span[role="button"]');
		out.push({
			outgoing: outgoing,
			text: textEl ? textEl.innerText : '',
			prePlain: copyEl ? (copyEl.getAttribute('data-pre-plain-text') || '') : '',
			phoneButton: phoneEl ? phoneEl.innerText : '',
			innerText: el.innerText || ''
		});
	}
	return out;
})()`

// WhatsApp implements domain.MessageSource on top of a persistent chromedp
// session. Not safe for concurrent use: one browser tab, one chat at a time.
type WhatsApp struct {
	cfg    config.SourceConfig
	logger *slog.Logger

	browserCtx context.Context
	cancel     context.CancelFunc
}

func NewWhatsApp(cfg config.SourceConfig, logger *slog.Logger) *WhatsApp {
	return &WhatsApp{cfg: cfg, logger: logger}
}

// Start launches Chrome with the persistent session profile, opens WhatsApp
// Web, and waits for either a restored session or a QR-code login.
func (w *WhatsApp) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.SessionDir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(w.cfg.SessionDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)
	if w.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	w.browserCtx = taskCtx
	w.cancel = func() {
		taskCancel()
		allocCancel()
	}

	w.logger.Info("opening WhatsApp Web", "session", w.cfg.SessionDir)
	navCtx, navCancel := context.WithTimeout(taskCtx, w.navTimeout())
	defer navCancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(whatsappURL),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("open WhatsApp Web: %w", err)
	}

	return w.waitForLogin(taskCtx)
}

// waitForLogin polls until the chat list renders. A canvas element means a
// QR code is on screen and the user has to scan it with their phone.
func (w *WhatsApp) waitForLogin(ctx context.Context) error {
	deadline := time.Now().Add(time.Duration(w.cfg.LoginWaitSeconds) * time.Second)
	qrAnnounced := false

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}

		var chatListCount, qrCount int
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`document.querySelectorAll('[data-testid="chat-list"], [aria-label="Chat list"]').length`, &chatListCount),
			chromedp.Evaluate(`document.querySelectorAll('canvas').length`, &qrCount),
		)
		if err != nil {
			return fmt.Errorf("poll login state: %w", err)
		}

		if chatListCount > 0 {
			w.logger.Info("WhatsApp Web session ready")
			// Give the chat list a moment to settle before navigating.
			time.Sleep(2 * time.Second)
			return nil
		}
		if qrCount > 0 && !qrAnnounced {
			qrAnnounced = true
			w.logger.Info("QR code detected, scan it with your phone to log in")
		}
	}
	return fmt.Errorf("timed out waiting for WhatsApp Web login after %ds", w.cfg.LoginWaitSeconds)
}

// ExtractVisible returns the messages currently rendered in the chat.
func (w *WhatsApp) ExtractVisible(ctx context.Context, chatID string) ([]domain.RawMessage, error) {
	runCtx, cancel := w.runContext(ctx)
	defer cancel()

	if err := w.openChat(runCtx, chatID); err != nil {
		return nil, err
	}
	return w.extract(runCtx, chatID)
}

// LoadHistory scrolls back before extracting, loading a bounded window of
// older messages into the DOM.
func (w *WhatsApp) LoadHistory(ctx context.Context, chatID string, scrolls int) ([]domain.RawMessage, error) {
	runCtx, cancel := w.runContext(ctx)
	defer cancel()

	if err := w.openChat(runCtx, chatID); err != nil {
		return nil, err
	}

	w.logger.Debug("scrolling to load history", "chat", chatID, "scrolls", scrolls)
	for i := 0; i < scrolls; i++ {
		if err := chromedp.Run(runCtx,
			chromedp.KeyEvent(kb.PageUp),
			chromedp.Sleep(time.Second),
		); err != nil {
			return nil, fmt.Errorf("scroll history: %w", err)
		}
	}
	return w.extract(runCtx, chatID)
}

// Close tears down the browser. Safe to call after a failed Start.
func (w *WhatsApp) Close() error {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return nil
}

// runContext scopes one source operation: it descends from the browser
// context (chromedp requires it) but honors the caller's cancellation and
// the configured navigation timeout.
func (w *WhatsApp) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(w.browserCtx, w.navTimeout())
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (w *WhatsApp) navTimeout() time.Duration {
	return time.Duration(w.cfg.NavTimeoutSeconds) * time.Second
}

// openChat brings the named chat into view: a direct chat-list click when it
// is visible, otherwise a search. Failure to land in a conversation view is
// ErrChatNotFound, which callers treat as a per-chat skip.
func (w *WhatsApp) openChat(ctx context.Context, chatID string) error {
	var inList int
	titleSel := fmt.Sprintf(`span[title=%q]`, chatID)
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, titleSel), &inList),
	); err != nil {
		return fmt.Errorf("inspect chat list: %w", err)
	}

	if inList > 0 {
		if err := chromedp.Run(ctx,
			chromedp.Click(titleSel, chromedp.ByQuery),
			chromedp.Sleep(2*time.Second),
		); err != nil {
			return fmt.Errorf("click chat %q: %w", chatID, err)
		}
	} else if err := w.searchChat(ctx, chatID); err != nil {
		return err
	}

	// Confirm we are in a conversation view: message elements, or at least
	// the compose box for an empty chat.
	var msgCount, composeCount int
	if err := chromedp.Run(ctx,
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`document.querySelectorAll('div[data-id]').length`, &msgCount),
		chromedp.Evaluate(`document.querySelectorAll('[data-testid="conversation-compose-box-input"], [aria-label="Type a message"]').length`, &composeCount),
	); err != nil {
		return fmt.Errorf("verify chat view: %w", err)
	}
	if msgCount == 0 && composeCount == 0 {
		return fmt.Errorf("chat %q did not load: %w", chatID, domain.ErrChatNotFound)
	}

	w.logger.Debug("chat opened", "chat", chatID, "visible_messages", msgCount)
	return nil
}

func (w *WhatsApp) searchChat(ctx context.Context, chatID string) error {
	w.logger.Debug("chat not in visible list, searching", "chat", chatID)

	searchSelectors := []string{
		`[data-testid="chat-list-search"]`,
		`div[contenteditable="true"]`,
		`[title="Search input textbox"]`,
	}
	clicked := false
	for _, sel := range searchSelectors {
		var count int
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, sel), &count),
		); err != nil {
			return fmt.Errorf("probe search box: %w", err)
		}
		if count == 0 {
			continue
		}
		if err := chromedp.Run(ctx,
			chromedp.Click(sel, chromedp.ByQuery),
			chromedp.Sleep(500*time.Millisecond),
		); err != nil {
			return fmt.Errorf("focus search box: %w", err)
		}
		clicked = true
		break
	}
	if !clicked {
		return fmt.Errorf("no search box found: %w", domain.ErrChatNotFound)
	}

	// Clear stale input, type the chat name, wait for results.
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(`(() => { const el = document.querySelector('div[contenteditable="true"]'); if (el) el.textContent = ''; })()`, nil),
		chromedp.SendKeys(`div[contenteditable="true"]`, chatID, chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
	); err != nil {
		return fmt.Errorf("type search query: %w", err)
	}

	var noResults bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(`document.body.innerText.includes('No chats, contacts or messages found')`, &noResults),
	); err != nil {
		return fmt.Errorf("inspect search results: %w", err)
	}
	if noResults {
		return fmt.Errorf("no search results for %q: %w", chatID, domain.ErrChatNotFound)
	}

	titleSel := fmt.Sprintf(`span[title=%q]`, chatID)
	var resultCount int
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, titleSel), &resultCount),
	); err != nil {
		return fmt.Errorf("inspect search results: %w", err)
	}
	if resultCount > 0 {
		if err := chromedp.Run(ctx,
			chromedp.Click(titleSel, chromedp.ByQuery),
			chromedp.Sleep(2*time.Second),
		); err != nil {
			return fmt.Errorf("open search result: %w", err)
		}
		return nil
	}

	// Fallback: Enter opens the first result.
	if err := chromedp.Run(ctx,
		chromedp.KeyEvent(kb.Enter),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return fmt.Errorf("open first result: %w", err)
	}
	return nil
}

func (w *WhatsApp) extract(ctx context.Context, chatID string) ([]domain.RawMessage, error) {
	var blobs []blob
	if err := chromedp.Run(ctx, chromedp.Evaluate(collectJS, &blobs)); err != nil {
		return nil, fmt.Errorf("collect messages from %q: %w", chatID, err)
	}

	msgs := parseBlobs(blobs)
	w.logger.Debug("extracted messages",
		"chat", chatID, "elements", len(blobs), "kept", len(msgs))
	return msgs, nil
}
