package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coah80/telegrab/internal/services"
)

// Button is one inline keyboard button: a label and the callback payload
// delivered back when it is pressed.
type Button struct {
	Text string
	Data string
}

// sender is everything the handlers need from the chat surface. It
// extends the download pipeline's transport with keyboard support so
// tests can fake the whole bot without a Telegram connection.
type sender interface {
	services.Transport
	SendButtons(chatID int64, text string, rows [][]Button) (int, error)
}

// tgTransport adapts the Telegram client to the sender interface. All
// user-facing messages use HTML parse mode; callers escape any dynamic
// values they interpolate.
type tgTransport struct {
	api *tgbotapi.BotAPI
}

func newTGTransport(api *tgbotapi.BotAPI) *tgTransport {
	return &tgTransport{api: api}
}

func (t *tgTransport) SendMessage(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending message to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// SendPlain skips parse mode. Operator alerts carry raw error strings
// that would trip the HTML parser.
func (t *tgTransport) SendPlain(chatID int64, text string) error {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending message to chat %d: %w", chatID, err)
	}
	return nil
}

func (t *tgTransport) EditMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(edit); err != nil {
		return fmt.Errorf("editing message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (t *tgTransport) AnswerCallback(callbackID, text string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answering callback %s: %w", callbackID, err)
	}
	return nil
}

func (t *tgTransport) SendDocument(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("sending document to chat %d: %w", chatID, err)
	}
	return nil
}

func (t *tgTransport) SendButtons(chatID int64, text string, rows [][]Button) (int, error) {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		keyboard = append(keyboard, buttons)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending keyboard to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}
