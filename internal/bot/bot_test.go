package bot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coah80/telegrab/internal/alerts"
	"github.com/coah80/telegrab/internal/services"
	"github.com/coah80/telegrab/internal/store"
)

const testAdminID int64 = 999

type sentMsg struct {
	chatID int64
	id     int
	text   string
}

type sentKeyboard struct {
	chatID int64
	id     int
	text   string
	rows   [][]Button
}

type sentDoc struct {
	chatID  int64
	path    string
	caption string
}

// fakeSender records every outbound interaction so tests can assert on
// exactly what the user saw.
type fakeSender struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMsg
	edits     []sentMsg
	acks      []string
	keyboards []sentKeyboard
	docs      []sentDoc
}

func (f *fakeSender) SendMessage(chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMsg{chatID: chatID, id: f.nextID, text: text})
	return f.nextID, nil
}

func (f *fakeSender) EditMessage(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMsg{chatID: chatID, id: messageID, text: text})
	return nil
}

func (f *fakeSender) AnswerCallback(callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, text)
	return nil
}

func (f *fakeSender) SendDocument(chatID int64, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDoc{chatID: chatID, path: path, caption: caption})
	return nil
}

func (f *fakeSender) SendButtons(chatID int64, text string, rows [][]Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.keyboards = append(f.keyboards, sentKeyboard{chatID: chatID, id: f.nextID, text: text, rows: rows})
	return f.nextID, nil
}

func (f *fakeSender) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.text
	}
	return out
}

func (f *fakeSender) editTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.edits))
	for i, m := range f.edits {
		out[i] = m.text
	}
	return out
}

func (f *fakeSender) ackTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acks...)
}

func (f *fakeSender) docCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeSender) doc(i int) sentDoc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[i]
}

func (f *fakeSender) keyboardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keyboards)
}

func (f *fakeSender) keyboard(i int) sentKeyboard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keyboards[i]
}

// stubEngine fakes the media engine. When block is set, Probe parks
// until the channel is closed, which lets tests hold the queue worker
// in place.
type stubEngine struct {
	mu        sync.Mutex
	title     string
	probeSize int64
	files     map[string]int64
	probeErr  error
	fetchErr  error
	block     chan struct{}
}

func (e *stubEngine) Probe(ctx context.Context, url, formatSpec string) (*services.VideoInfo, error) {
	e.mu.Lock()
	block := e.block
	e.mu.Unlock()
	if block != nil {
		<-block
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.probeErr != nil {
		return nil, e.probeErr
	}
	return &services.VideoInfo{Title: e.title, Filesize: e.probeSize}, nil
}

func (e *stubEngine) Fetch(ctx context.Context, url, formatSpec, destDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fetchErr != nil {
		return e.fetchErr
	}
	for name, size := range e.files {
		if err := os.WriteFile(filepath.Join(destDir, name), bytes.Repeat([]byte("x"), int(size)), 0644); err != nil {
			return err
		}
	}
	return nil
}

func newTestBot(t *testing.T) (*Bot, *fakeSender, *stubEngine) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "bot.db"), testAdminID)
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fs := &fakeSender{nextID: 100}
	eng := &stubEngine{title: "Demo", probeSize: 2048, files: map[string]int64{"Demo.mp4": 2048}}
	cache := services.NewLinkCache(time.Hour, 100)
	notifier := alerts.New(0, nil)

	b := &Bot{
		sender:    fs,
		store:     st,
		cache:     cache,
		notifier:  notifier,
		adminID:   testAdminID,
		username:  "telegrab_bot",
		startedAt: time.Now(),
	}
	b.downloader = services.NewDownloader(fs, eng, notifier, cache, 2<<30, 50<<20, 5*time.Second, t.TempDir())
	b.queue = services.NewQueue(50, 5, b.process)
	return b, fs, eng
}

func textUpdate(userID, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func commandUpdate(userID, chatID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		cmdLen = i
	}
	u := textUpdate(userID, chatID, text)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return u
}

func callbackUpdate(userID, chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func containsText(texts []string, substr string) bool {
	for _, s := range texts {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", msg)
}

func queueDrained(q *services.Queue) func() bool {
	return func() bool {
		st := q.Status()
		return st.Pending == 0 && !st.Processing
	}
}
