package util

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/coah80/telegrab/internal/config"
)

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
var multiSpaceRe = regexp.MustCompile(`\s+`)

func EnsureDirs() error {
	dirs := []string{config.DownloadDir, filepath.Dir(config.DBPath)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func ClearDownloadDir() {
	entries, err := os.ReadDir(config.DownloadDir)
	if err != nil {
		os.MkdirAll(config.DownloadDir, 0755)
		return
	}
	for _, e := range entries {
		os.RemoveAll(filepath.Join(config.DownloadDir, e.Name()))
	}
	fmt.Println("✓ Cleared download directory")
}

// CleanupTempFiles removes download-directory entries older than the
// retention window: work directories orphaned by a crash or kill, and
// finished files deliberately kept past their task (oversized for
// upload).
func CleanupTempFiles() {
	now := time.Now()
	entries, err := os.ReadDir(config.DownloadDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > config.FileRetention {
			os.RemoveAll(filepath.Join(config.DownloadDir, e.Name()))
			log.Printf("[Cleanup] Removed stale temp: %s", e.Name())
		}
	}

	if ds, err := GetDiskSpace(config.TempDir); err == nil {
		log.Printf("[DiskSpace] %.1fGB free / %.1fGB total (%.1fGB used)", ds.AvailGB, ds.TotalGB, ds.UsedGB)
		if ds.AvailGB < float64(config.DiskSpaceMinGB) {
			log.Printf("[DiskSpace] WARNING: Only %.1fGB free, below %dGB threshold!", ds.AvailGB, config.DiskSpaceMinGB)
		}
	}
}

func SanitizeFilename(filename string) string {
	s := unsafeFilenameRe.ReplaceAllString(filename, "_")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "Unknown"
	}
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	if bytes < 1024*1024*1024 {
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
	return fmt.Sprintf("%.2f GB", float64(bytes)/(1024*1024*1024))
}

func StartCleanupInterval() {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		for range ticker.C {
			CleanupTempFiles()
		}
	}()
}
