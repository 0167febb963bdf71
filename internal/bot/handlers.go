package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coah80/telegrab/internal/config"
	"github.com/coah80/telegrab/internal/util"
)

const (
	welcomeText = "👋 <b>Welcome to telegrab!</b>\n\n" +
		"I can help you download videos and audio from YouTube.\n\n" +
		"<b>How to use:</b>\n" +
		"1. Send me a YouTube link\n" +
		"2. Choose the format you want to download\n" +
		"3. Wait for the download to complete\n\n" +
		"Use /help to see all available commands."

	accessRestrictedStartText = "⚠️ <b>Access Restricted</b>\n\n" +
		"You are not authorized to use this bot. Please contact the administrator " +
		"or use an invite link to get access."

	accessRestrictedText = "⚠️ <b>Access Restricted</b>\n\nYou are not authorized to use this bot."

	adminOnlyText = "⚠️ <b>Admin Only</b>\n\nThis command is only available to the bot administrator."

	helpText = "📚 <b>telegrab Help</b>\n\n" +
		"<b>Available commands:</b>\n" +
		"/start - Start the bot and see welcome message\n" +
		"/help - Show this help message\n" +
		"/invite - Generate an invite link (for authorized users)\n" +
		"/adduser - Add a new user (admin only)\n" +
		"/cancel - Cancel your active downloads\n\n" +
		"<b>How to download:</b>\n" +
		"Simply send a YouTube link, and I'll provide format options.\n\n" +
		"<b>Supported formats:</b>\n" +
		"• Video: SD (480p), HD (720p), Full HD (1080p), Original\n" +
		"• Audio: MP3 (320kbps)\n\n" +
		"<b>File size limit:</b> 2GB"

	adminHelpText = "\n\n<b>Admin commands:</b>\n" +
		"/status - Queue, cache and disk status\n" +
		"/users - List authorized users\n" +
		"/deactivate - Deactivate a user by ID"

	inviteText = "🔗 <b>Invite Link Generated</b>\n\n" +
		"<code>%s</code>\n\n" +
		"This link can be used once to get access to the bot.\n" +
		"⚠️ <b>Note:</b> Anyone with this link can use the bot, " +
		"so share it only with people you trust."
)

// handleStart greets authorized users and redeems invite codes carried
// as the /start payload of a deep link.
func (b *Bot) handleStart(msg *tgbotapi.Message) {
	ctx := context.Background()
	userID := msg.From.ID

	if !b.isAuthorized(ctx, userID) {
		if code := strings.TrimSpace(msg.CommandArguments()); code != "" {
			used, err := b.store.UseInvite(ctx, code, userID)
			if err != nil {
				log.Printf("[Bot] Failed to redeem invite %s: %v", code, err)
				b.notifier.StoreError("redeem invite", err)
			}
			if used {
				log.Printf("[Bot] User %d joined via invite %s", userID, code)
				b.reply(msg.Chat.ID, welcomeText)
				return
			}
		}
		log.Printf("[Bot] Unauthorized access attempt: %d (@%s)", userID, msg.From.UserName)
		b.reply(msg.Chat.ID, accessRestrictedStartText)
		return
	}

	log.Printf("[Bot] Start command from user: %d (@%s)", userID, msg.From.UserName)
	b.reply(msg.Chat.ID, welcomeText)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	if !b.requireAuth(msg) {
		return
	}
	text := helpText
	if msg.From.ID == b.adminID {
		text += adminHelpText
	}
	b.reply(msg.Chat.ID, text)
}

func (b *Bot) handleInvite(msg *tgbotapi.Message) {
	if !b.requireAuth(msg) {
		return
	}

	code, err := b.store.CreateInvite(context.Background(), msg.From.ID)
	if err != nil {
		log.Printf("[Bot] Failed to create invite for user %d: %v", msg.From.ID, err)
		b.notifier.StoreError("create invite", err)
		b.reply(msg.Chat.ID, "❌ <b>Error</b>\n\nCould not generate invite link. Please try again later.")
		return
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", b.username, code)
	b.reply(msg.Chat.ID, fmt.Sprintf(inviteText, link))
}

// handleAddUser authorizes a user by numeric ID. Telegram offers no
// username-to-ID lookup for accounts the bot has never talked to, so
// username targets only get an explanation.
func (b *Bot) handleAddUser(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}

	target := strings.TrimSpace(msg.CommandArguments())
	if target == "" {
		b.reply(msg.Chat.ID, "⚠️ <b>Usage Error</b>\n\n"+
			"Please provide a username or user ID.\n"+
			"Example: <code>/adduser username</code> or <code>/adduser 123456789</code>")
		return
	}

	if id, err := strconv.ParseInt(target, 10, 64); err == nil && id > 0 {
		created, err := b.store.AddUser(context.Background(), id, "", msg.From.ID)
		if err != nil {
			log.Printf("[Bot] Failed to add user %d: %v", id, err)
			b.notifier.StoreError("add user", err)
			b.reply(msg.Chat.ID, "❌ <b>Error</b>\n\nCould not add the user. Please try again later.")
			return
		}
		if created {
			log.Printf("[Bot] Admin added user by ID: %d", id)
			b.reply(msg.Chat.ID, fmt.Sprintf("✅ <b>User Added</b>\n\n"+
				"User with ID <code>%d</code> has been added to the authorized users list.", id))
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("ℹ️ <b>User Already Exists</b>\n\n"+
			"User with ID <code>%d</code> is already in the authorized users list.", id))
		return
	}

	username := strings.TrimPrefix(target, "@")
	log.Printf("[Bot] Admin attempted to add user by username: @%s", username)
	b.reply(msg.Chat.ID, fmt.Sprintf("ℹ️ <b>User Cannot Be Added Directly by Username</b>\n\n"+
		"Due to Telegram API limitations, the user <b>@%s</b> needs to start a chat "+
		"with the bot first. Then, they can be authorized using their user ID.\n\n"+
		"Please ask the user to send a message to the bot first, then use their user ID.",
		html.EscapeString(username)))
}

func (b *Bot) handleCancel(msg *tgbotapi.Message) {
	if !b.requireAuth(msg) {
		return
	}

	if !b.queue.IsUserQueued(msg.Chat.ID) {
		b.reply(msg.Chat.ID, "ℹ️ <b>No Active Downloads</b>\n\nYou don't have any downloads in the queue to cancel.")
		return
	}

	removed := b.queue.CancelAll(msg.Chat.ID)
	plural := "s"
	if removed == 1 {
		plural = ""
	}
	log.Printf("[Bot] User %d cancelled %d downloads", msg.From.ID, removed)
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ <b>Downloads Cancelled</b>\n\n"+
		"Successfully cancelled %d download%s from the queue.", removed, plural))
}

func (b *Bot) handleStatus(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}

	st := b.queue.Status()
	processing := "no"
	if st.Processing {
		processing = "yes"
	}

	total := "0"
	if v, ok, err := b.store.GetSetting(context.Background(), downloadsTotalKey); err != nil {
		log.Printf("[Bot] Failed to read %s: %v", downloadsTotalKey, err)
	} else if ok {
		total = v
	}

	disk := "unavailable"
	if space, err := util.GetDiskSpace(config.DownloadDir); err == nil {
		disk = fmt.Sprintf("%.1fGB free of %.1fGB", space.AvailGB, space.TotalGB)
	}

	b.reply(msg.Chat.ID, fmt.Sprintf("📊 <b>Bot Status</b>\n\n"+
		"Version: %s\n"+
		"Uptime: %s\n\n"+
		"Queue: %d waiting\n"+
		"Processing: %s\n"+
		"Cached links: %d\n"+
		"Downloads delivered: %s\n"+
		"Disk: %s",
		config.Version, time.Since(b.startedAt).Round(time.Second),
		st.Pending, processing, b.cache.Len(), total, disk))
}

func (b *Bot) handleUsers(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}

	users, err := b.store.AllUsers(context.Background())
	if err != nil {
		log.Printf("[Bot] Failed to list users: %v", err)
		b.notifier.StoreError("list users", err)
		b.reply(msg.Chat.ID, "❌ <b>Error</b>\n\nCould not load the user list. Please try again later.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 <b>Authorized Users</b> (%d)\n\n", len(users))
	for _, u := range users {
		mark := "✅"
		if !u.IsActive {
			mark = "🚫"
		}
		name := "no username"
		if u.Username != "" {
			name = "@" + html.EscapeString(u.Username)
		}
		fmt.Fprintf(&sb, "%s <code>%d</code> %s, added %s\n", mark, u.ID, name, u.AddedAt.Format("2006-01-02"))
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleDeactivate(msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}

	target := strings.TrimSpace(msg.CommandArguments())
	id, err := strconv.ParseInt(target, 10, 64)
	if target == "" || err != nil || id <= 0 {
		b.reply(msg.Chat.ID, "⚠️ <b>Usage Error</b>\n\n"+
			"Please provide a numeric user ID.\n"+
			"Example: <code>/deactivate 123456789</code>")
		return
	}
	if id == b.adminID {
		b.reply(msg.Chat.ID, "⚠️ <b>Not Allowed</b>\n\nThe administrator account cannot be deactivated.")
		return
	}

	if err := b.store.Deactivate(context.Background(), id); err != nil {
		log.Printf("[Bot] Failed to deactivate user %d: %v", id, err)
		b.notifier.StoreError("deactivate user", err)
		b.reply(msg.Chat.ID, "❌ <b>Error</b>\n\nCould not deactivate the user. Please try again later.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("✅ <b>User Deactivated</b>\n\n"+
		"User with ID <code>%d</code> can no longer use the bot.", id))
}

func (b *Bot) requireAuth(msg *tgbotapi.Message) bool {
	if b.isAuthorized(context.Background(), msg.From.ID) {
		return true
	}
	b.reply(msg.Chat.ID, accessRestrictedText)
	return false
}

func (b *Bot) requireAdmin(msg *tgbotapi.Message) bool {
	if msg.From.ID == b.adminID {
		return true
	}
	log.Printf("[Bot] Admin command attempt by non-admin: %d", msg.From.ID)
	b.reply(msg.Chat.ID, adminOnlyText)
	return false
}
