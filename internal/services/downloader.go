package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coah80/telegrab/internal/alerts"
	"github.com/coah80/telegrab/internal/util"
)

// Transport is the chat surface the download pipeline reports through.
// Implemented over the Telegram client in internal/bot; tests use a
// recording fake.
type Transport interface {
	SendMessage(chatID int64, text string) (int, error)
	EditMessage(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string) error
	SendDocument(chatID int64, path, caption string) error
}

// Downloader runs one task end to end: status message, probe, size
// guards, fetch, delivery, cleanup. It is the queue's process func.
type Downloader struct {
	transport Transport
	engine    Engine
	notifier  *alerts.Notifier
	cache     *LinkCache

	maxFileSize int64
	uploadLimit int64
	timeout     time.Duration
	tempRoot    string
}

func NewDownloader(transport Transport, engine Engine, notifier *alerts.Notifier, cache *LinkCache,
	maxFileSize, uploadLimit int64, timeout time.Duration, tempRoot string) *Downloader {
	return &Downloader{
		transport:   transport,
		engine:      engine,
		notifier:    notifier,
		cache:       cache,
		maxFileSize: maxFileSize,
		uploadLimit: uploadLimit,
		timeout:     timeout,
		tempRoot:    tempRoot,
	}
}

func (d *Downloader) Process(t *DownloadTask) error {
	// The correlation entry dies with the task, wherever the task ends up.
	defer d.cache.Remove(t.Token)

	log.Printf("[Download] Starting: %s for chat %d", t.URL, t.ChatID)

	statusID := d.ensureStatusMessage(t)

	workDir, err := os.MkdirTemp(d.tempRoot, "dl-")
	if err != nil {
		err = fmt.Errorf("failed to create working directory: %w", err)
		d.reportFailure(t, statusID, err)
		return err
	}
	defer func() {
		if remErr := os.RemoveAll(workDir); remErr != nil {
			log.Printf("[Download] Failed to clean up %s: %v", workDir, remErr)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	info, err := d.engine.Probe(ctx, t.URL, t.FormatSpec)
	if err != nil {
		err = classifyEngineError(phaseProbe, t.URL, err)
		d.reportFailure(t, statusID, err)
		return err
	}

	if info.Filesize > 0 && info.Filesize > d.maxFileSize {
		err := &VideoTooLargeError{Size: info.Filesize, Limit: d.maxFileSize}
		d.reportFailure(t, statusID, err)
		return err
	}

	if err := d.engine.Fetch(ctx, t.URL, t.FormatSpec, workDir); err != nil {
		err = classifyEngineError(phaseFetch, t.URL, err)
		d.reportFailure(t, statusID, err)
		return err
	}

	filePath, size, err := findDownloadedFile(workDir)
	if err != nil {
		d.reportFailure(t, statusID, err)
		return err
	}

	if size > d.maxFileSize {
		os.Remove(filePath)
		err := &VideoTooLargeError{Size: size, Limit: d.maxFileSize}
		d.reportFailure(t, statusID, err)
		return err
	}

	if statusID != 0 {
		d.transport.EditMessage(t.ChatID, statusID, fmt.Sprintf(
			"✅ <b>Download completed</b>\n\nFile: %s\nSize: %.1f MB\n\nNow sending file...",
			html.EscapeString(filepath.Base(filePath)), toMB(size)))
	}

	if size > d.uploadLimit {
		// The work directory is removed on every exit path. The finished
		// file moves out and stays until the retention sweep collects it.
		kept := filepath.Join(d.tempRoot, t.Token+"-"+util.SanitizeFilename(filepath.Base(filePath)))
		if renameErr := os.Rename(filePath, kept); renameErr != nil {
			log.Printf("[Download] Failed to keep oversized file: %v", renameErr)
		} else {
			log.Printf("[Download] Kept oversized file until cleanup: %s", kept)
		}
		err := &UploadTooLargeError{Size: size, Limit: d.uploadLimit}
		d.reportFailure(t, statusID, err)
		return err
	}

	// Titles routinely contain & and <, which HTML parse mode chokes on.
	caption := fmt.Sprintf("📥 <b>%s</b>\n\nDownloaded from YouTube",
		html.EscapeString(OrDefault(info.Title, "Video")))
	if err := d.transport.SendDocument(t.ChatID, filePath, caption); err != nil {
		if isEntityTooLarge(err) {
			err = &UploadTooLargeError{Size: size, Limit: d.uploadLimit}
		}
		d.reportFailure(t, statusID, err)
		return err
	}

	if statusID != 0 {
		d.transport.EditMessage(t.ChatID, statusID,
			"✅ <b>Download completed</b>\n\nFile sent successfully!")
	}

	log.Printf("[Download] Sent to chat %d: %s (%s)", t.ChatID, filepath.Base(filePath), util.FormatSize(size))
	return nil
}

// ensureStatusMessage updates the message the format selection was
// confirmed on, or sends a fresh one when the task arrived without a
// message to reuse. Returns 0 when no status message could be placed.
func (d *Downloader) ensureStatusMessage(t *DownloadTask) int {
	text := fmt.Sprintf("⏳ <b>Download started</b>\n\nProcessing your request for %s", html.EscapeString(t.URL))

	if t.StatusMessageID != 0 {
		if err := d.transport.EditMessage(t.ChatID, t.StatusMessageID, text); err == nil {
			return t.StatusMessageID
		}
	}
	id, err := d.transport.SendMessage(t.ChatID, text)
	if err != nil {
		log.Printf("[Download] Failed to place status message for chat %d: %v", t.ChatID, err)
		return 0
	}
	return id
}

// reportFailure delivers exactly one user-facing notice per failed task
// and alerts the operator with the technical detail.
func (d *Downloader) reportFailure(t *DownloadTask, statusID int, err error) {
	log.Printf("[Download] %s failed for chat %d: %v", t.URL, t.ChatID, err)

	text := UserMessage(err)
	delivered := false
	if statusID != 0 {
		delivered = d.transport.EditMessage(t.ChatID, statusID, text) == nil
	}
	if !delivered {
		if _, sendErr := d.transport.SendMessage(t.ChatID, text); sendErr != nil {
			log.Printf("[Download] Failed to notify chat %d: %v", t.ChatID, sendErr)
		}
	}

	if ShouldNotifyOperator(err) {
		d.notifier.DownloadFailed(FailureKind(err), t.URL, err)
	}
}

func findDownloadedFile(dir string) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read working directory: %w", err)
	}

	var files []os.DirEntry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, ".part") || strings.Contains(name, ".part-Frag") {
			continue
		}
		files = append(files, e)
	}

	if len(files) == 0 {
		return "", 0, fmt.Errorf("download completed but no files found")
	}
	if len(files) > 1 {
		return "", 0, fmt.Errorf("download produced %d files, expected one", len(files))
	}

	info, err := files[0].Info()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat downloaded file: %w", err)
	}
	return filepath.Join(dir, files[0].Name()), info.Size(), nil
}

func isEntityTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "entity too large") || strings.Contains(msg, "too large")
}

func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
