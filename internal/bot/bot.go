// Package bot wires the Telegram update stream to the download
// pipeline: command handlers, the URL/format selection flow, and the
// queue worker's delivery callbacks.
package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coah80/telegrab/internal/alerts"
	"github.com/coah80/telegrab/internal/config"
	"github.com/coah80/telegrab/internal/services"
	"github.com/coah80/telegrab/internal/store"
	"github.com/coah80/telegrab/internal/util"
)

type Config struct {
	Token   string
	AdminID int64
	Store   *store.Store
	Cache   *services.LinkCache
}

type Bot struct {
	api     *tgbotapi.BotAPI
	updates tgbotapi.UpdatesChannel

	sender     sender
	store      *store.Store
	cache      *services.LinkCache
	queue      *services.Queue
	downloader *services.Downloader
	notifier   *alerts.Notifier

	adminID   int64
	username  string
	startedAt time.Time
}

func New(cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w", err)
	}
	log.Printf("[Bot] Authorized as @%s", api.Self.UserName)

	transport := newTGTransport(api)
	notifier := alerts.New(cfg.AdminID, transport.SendPlain)

	b := &Bot{
		api:       api,
		sender:    transport,
		store:     cfg.Store,
		cache:     cfg.Cache,
		notifier:  notifier,
		adminID:   cfg.AdminID,
		username:  api.Self.UserName,
		startedAt: time.Now(),
	}
	b.downloader = services.NewDownloader(transport, services.NewYtdlpEngine(), notifier, cfg.Cache,
		config.MaxFileSize, config.UploadLimit, config.DownloadTimeout, config.DownloadDir)
	b.queue = services.NewQueue(config.QueueCapacity, config.UserQueueLimit, b.process)
	return b, nil
}

// Queue exposes the download queue for the HTTP status surface.
func (b *Bot) Queue() *services.Queue {
	return b.queue
}

func (b *Bot) Notifier() *alerts.Notifier {
	return b.notifier
}

func (b *Bot) Start() error {
	menu := menuCommands()
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(menu...)); err != nil {
		log.Printf("[Bot] Failed to register command menu: %v", err)
	} else {
		log.Printf("[Bot] Registered %d menu commands", len(menu))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	b.updates = b.api.GetUpdatesChan(u)
	go b.run()

	b.notifier.BotStarted()
	log.Printf("[Bot] Polling for updates as @%s", b.username)
	return nil
}

// Stop ends the polling loop. Delivery of the shutdown alert is best
// effort.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	b.notifier.BotStopping()
	log.Println("[Bot] Stopped polling")
}

func menuCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Start the bot and see the welcome message"},
		{Command: "help", Description: "Show available commands"},
		{Command: "invite", Description: "Generate a one-time invite link"},
		{Command: "adduser", Description: "Add a user by ID (admin only)"},
		{Command: "cancel", Description: "Cancel your queued downloads"},
	}
}

func (b *Bot) run() {
	for update := range b.updates {
		b.handleUpdate(update)
	}
}

// handleUpdate routes one update. A panicking handler must not take the
// polling loop down with it.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Bot] Panic handling update: %v", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case util.IsHTTPURL(strings.TrimSpace(msg.Text)):
		b.handleURL(msg)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(msg)
	case "help":
		b.handleHelp(msg)
	case "invite":
		b.handleInvite(msg)
	case "adduser":
		b.handleAddUser(msg)
	case "cancel":
		b.handleCancel(msg)
	case "status":
		b.handleStatus(msg)
	case "users":
		b.handleUsers(msg)
	case "deactivate":
		b.handleDeactivate(msg)
	}
}

// process is the queue worker's callback: run the download, then count
// the delivery. It runs on the single worker goroutine, so the counter
// read and write never race.
func (b *Bot) process(t *services.DownloadTask) error {
	if err := b.downloader.Process(t); err != nil {
		return err
	}
	b.bumpDownloadsTotal()
	return nil
}

const downloadsTotalKey = "downloads_total"

func (b *Bot) bumpDownloadsTotal() {
	ctx := context.Background()
	value, _, err := b.store.GetSetting(ctx, downloadsTotalKey)
	if err != nil {
		log.Printf("[Bot] Failed to read %s: %v", downloadsTotalKey, err)
		b.notifier.StoreError("read "+downloadsTotalKey, err)
		return
	}
	n, _ := strconv.Atoi(value)
	if err := b.store.SetSetting(ctx, downloadsTotalKey, strconv.Itoa(n+1)); err != nil {
		log.Printf("[Bot] Failed to update %s: %v", downloadsTotalKey, err)
		b.notifier.StoreError("update "+downloadsTotalKey, err)
	}
}

// isAuthorized swallows store errors into a deny: a broken database
// must not open the bot up.
func (b *Bot) isAuthorized(ctx context.Context, userID int64) bool {
	ok, err := b.store.IsAuthorized(ctx, userID)
	if err != nil {
		log.Printf("[Bot] Authorization check failed for %d: %v", userID, err)
		b.notifier.StoreError("authorization check", err)
		return false
	}
	return ok
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.sender.SendMessage(chatID, text); err != nil {
		log.Printf("[Bot] Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if err := b.sender.EditMessage(chatID, messageID, text); err != nil {
		log.Printf("[Bot] Failed to edit message %d in chat %d: %v", messageID, chatID, err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if err := b.sender.AnswerCallback(callbackID, text); err != nil {
		log.Printf("[Bot] Failed to answer callback: %v", err)
	}
}
