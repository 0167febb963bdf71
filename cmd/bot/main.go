package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coah80/telegrab/internal/alerts"
	"github.com/coah80/telegrab/internal/bot"
	"github.com/coah80/telegrab/internal/config"
	"github.com/coah80/telegrab/internal/middleware"
	"github.com/coah80/telegrab/internal/server"
	"github.com/coah80/telegrab/internal/services"
	"github.com/coah80/telegrab/internal/store"
	"github.com/coah80/telegrab/internal/util"
)

func main() {
	godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("BOT_TOKEN is required")
	}
	adminStr := os.Getenv("ADMIN_ID")
	if adminStr == "" {
		log.Fatal("ADMIN_ID is required")
	}
	adminID, err := strconv.ParseInt(adminStr, 10, 64)
	if err != nil || adminID <= 0 {
		log.Fatal("ADMIN_ID must be a numeric Telegram user ID")
	}

	config.Load()
	server.PrintBanner()

	if err := util.CheckDependencies(); err != nil {
		log.Fatalf("Dependency check failed: %v", err)
	}
	if err := util.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	util.ClearDownloadDir()

	st, err := store.Open(config.DBPath, adminID)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	cache := services.NewLinkCache(config.CacheTTL, config.CacheMaxEntries)

	b, err := bot.New(bot.Config{
		Token:   token,
		AdminID: adminID,
		Store:   st,
		Cache:   cache,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	srv := server.New(b.Queue(), cache)
	go func() {
		log.Printf("✓ Status API listening on :%s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Status API failed: %v", err)
		}
	}()

	util.StartCleanupInterval()
	middleware.StartRateLimitCleanup()
	alerts.WatchDisk(b.Notifier(), config.DownloadDir, float64(config.DiskSpaceMinGB), 60*time.Second)

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	fmt.Println("Bot is running. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down bot...")
	b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Status API shutdown: %v", err)
	}

	fmt.Println("Bot stopped.")
}
