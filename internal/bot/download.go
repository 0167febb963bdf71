package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coah80/telegrab/internal/services"
	"github.com/coah80/telegrab/internal/util"
)

const (
	accessDeniedText = "⛔ <b>Access Denied</b>\n\n" +
		"You don't have permission to use this bot.\n" +
		"Please contact the administrator for access."

	unsupportedURLText = "⚠️ <b>Unsupported URL</b>\n\nCurrently only YouTube links are supported."

	chooseFormatText = "🎬 <b>Choose Download Format</b>\n\nSelect the format you want to download:"

	downloadStartedText = "🔄 <b>Download started</b>\n\n" +
		"Format: <b>%s</b>\n" +
		"URL: %s\n\n" +
		"Please wait while your file is being downloaded..."

	queuedText = "📋 <b>Queued</b>\n\n" +
		"Format: <b>%s</b>\n" +
		"URL: %s\n\n" +
		"Your download is number %d in the queue.\n" +
		"Please wait for the downloads ahead to finish..."
)

// handleURL answers a bare link message with the format keyboard. The
// URL itself is parked in the cache; callback payloads only carry the
// short token.
func (b *Bot) handleURL(msg *tgbotapi.Message) {
	ctx := context.Background()
	url := strings.TrimSpace(msg.Text)

	if !b.isAuthorized(ctx, msg.From.ID) {
		b.reply(msg.Chat.ID, accessDeniedText)
		return
	}
	log.Printf("[Bot] Received URL from user %d: %s", msg.From.ID, url)

	if !util.IsYouTubeURL(url) {
		b.reply(msg.Chat.ID, unsupportedURLText)
		return
	}

	token := b.cache.Store(url)
	if _, err := b.sender.SendButtons(msg.Chat.ID, chooseFormatText, formatKeyboard(token)); err != nil {
		log.Printf("[Bot] Failed to send format keyboard to chat %d: %v", msg.Chat.ID, err)
		b.cache.Remove(token)
		return
	}
	log.Printf("[Bot] Sent format selection keyboard to user %d", msg.From.ID)
}

// formatKeyboard lays the selectable formats out two buttons per row.
func formatKeyboard(token string) [][]Button {
	var rows [][]Button
	var row []Button
	for _, f := range services.FormatOptions() {
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
		row = append(row, Button{Text: f.Label, Data: "fmt:" + f.ID + ":" + token})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// handleCallback resolves a format selection and hands the task to the
// queue. Format identifiers contain the payload delimiter themselves,
// so the payload is parsed as prefix, token, and everything in between
// rejoined as the format id.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	if !strings.HasPrefix(cb.Data, "fmt:") {
		return
	}

	parts := strings.Split(cb.Data, ":")
	if len(parts) < 3 {
		log.Printf("[Bot] Invalid format selection: %d parts, expected at least 3", len(parts))
		b.answer(cb.ID, "Invalid format selection")
		return
	}
	token := parts[len(parts)-1]
	formatID := strings.Join(parts[1:len(parts)-1], ":")

	url, ok := b.cache.Get(token)
	if !ok {
		log.Printf("[Bot] URL not found for token: %s", token)
		b.answer(cb.ID, "URL not found or expired")
		return
	}

	format, ok := services.FormatByID(formatID)
	if !ok {
		log.Printf("[Bot] Format not found: %s", formatID)
		b.answer(cb.ID, "Selected format not found")
		return
	}

	log.Printf("[Bot] User %d selected format %s for URL: %s", cb.From.ID, format.Label, url)
	b.cache.SetFormat(token, format.ID)

	task := &services.DownloadTask{
		ChatID:          cb.Message.Chat.ID,
		URL:             url,
		FormatID:        format.ID,
		FormatSpec:      format.Spec,
		StatusMessageID: cb.Message.MessageID,
		Token:           token,
	}
	position, err := b.queue.Enqueue(task)
	if err != nil {
		b.answer(cb.ID, "Cannot start download right now")
		b.edit(cb.Message.Chat.ID, cb.Message.MessageID, services.UserMessage(err))
		// The task will never reach the worker, so nothing else would
		// clear the cache entry.
		b.cache.Remove(token)
		return
	}

	b.answer(cb.ID, fmt.Sprintf("Starting download in %s format...", format.Label))
	if position > 1 {
		b.edit(cb.Message.Chat.ID, cb.Message.MessageID,
			fmt.Sprintf(queuedText, format.Label, html.EscapeString(url), position))
		return
	}
	b.edit(cb.Message.Chat.ID, cb.Message.MessageID,
		fmt.Sprintf(downloadStartedText, format.Label, html.EscapeString(url)))
}
