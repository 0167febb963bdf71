package alerts

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coah80/telegrab/internal/config"
)

// SendFunc delivers one plain-text message to a chat. The bot package
// plugs its transport in here so alerts never touch the chat client
// directly.
type SendFunc func(chatID int64, text string) error

type kv struct {
	key   string
	value string
}

// Notifier pushes operational alerts into the admin chat. Noisy
// categories carry a per-category cooldown so one broken video cannot
// flood the admin.
type Notifier struct {
	mu        sync.Mutex
	cooldowns map[string]time.Time

	adminID int64
	send    SendFunc
}

func New(adminID int64, send SendFunc) *Notifier {
	return &Notifier{
		cooldowns: make(map[string]time.Time),
		adminID:   adminID,
		send:      send,
	}
}

func (n *Notifier) notify(category string, cooldown time.Duration, level, message string, fields []kv) {
	if n == nil || n.send == nil || n.adminID == 0 {
		log.Printf("[Alerts] (disabled) %s: %s", level, message)
		return
	}

	n.mu.Lock()
	now := time.Now()
	if cooldown > 0 {
		if last, ok := n.cooldowns[category]; ok && now.Sub(last) < cooldown {
			n.mu.Unlock()
			return
		}
	}
	n.cooldowns[category] = now
	n.mu.Unlock()

	text := "⚠️ " + level + " ⚠️\n\n" + message
	if len(fields) > 0 {
		text += "\n\nAdditional data:"
		for _, f := range fields {
			if f.value == "" {
				continue
			}
			text += "\n- " + f.key + ": " + truncate(f.value, 500)
		}
	}

	go func() {
		if err := n.send(n.adminID, text); err != nil {
			log.Printf("[Alerts] send failed: %v", err)
		}
	}()
}

func (n *Notifier) BotStarted() {
	n.notify("bot-start", 0, "INFO", fmt.Sprintf("telegrab %s is up and polling for updates.", config.Version), nil)
}

func (n *Notifier) BotStopping() {
	n.notify("bot-stop", 0, "INFO", "telegrab is shutting down.", nil)
}

func (n *Notifier) DownloadFailed(kind, url string, err error) {
	n.notify("download", 5*time.Second, "ERROR", "Download failed: "+truncate(url, 200), []kv{
		{"Kind", kind},
		{"URL", truncate(url, 200)},
		{"Error", err.Error()},
	})
}

func (n *Notifier) StoreError(op string, err error) {
	n.notify("store", 60*time.Second, "ERROR", "Database operation failed.", []kv{
		{"Operation", op},
		{"Error", err.Error()},
	})
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
