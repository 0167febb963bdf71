package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type VideoNotFoundError struct {
	URL    string
	Reason string
}

func (e *VideoNotFoundError) Error() string {
	return "video not found or unavailable: " + e.Reason
}

type UnsupportedFormatError struct {
	URL    string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return "video format not supported: " + e.Reason
}

type NetworkError struct {
	URL    string
	Reason string
}

func (e *NetworkError) Error() string {
	return e.Reason
}

type VideoTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *VideoTooLargeError) Error() string {
	return fmt.Sprintf("file size %d exceeds limit %d", e.Size, e.Limit)
}

type UploadTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *UploadTooLargeError) Error() string {
	return fmt.Sprintf("file size %d exceeds the upload ceiling %d", e.Size, e.Limit)
}

type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue is full (capacity %d)", e.Capacity)
}

type UserQueueLimitError struct {
	ChatID int64
	Limit  int
}

func (e *UserQueueLimitError) Error() string {
	return fmt.Sprintf("user %d reached the pending-download limit (%d)", e.ChatID, e.Limit)
}

const (
	phaseProbe = "probe"
	phaseFetch = "fetch"
)

// classifyEngineError maps raw yt-dlp failures onto the taxonomy. Probe
// failures carry the most signal (yt-dlp explains why a link is bad when
// extracting info); fetch failures past that point are almost always
// transfer problems.
func classifyEngineError(phase, url string, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout") {
		return &NetworkError{URL: url, Reason: networkReason(phase, err)}
	}

	if phase == phaseProbe {
		if strings.Contains(msg, "not available") ||
			strings.Contains(msg, "video not found") ||
			strings.Contains(msg, "video unavailable") ||
			strings.Contains(msg, "private video") ||
			strings.Contains(msg, "http error 404") ||
			strings.Contains(msg, "404 not found") {
			return &VideoNotFoundError{URL: url, Reason: err.Error()}
		}
		if strings.Contains(msg, "unsupported url") ||
			strings.Contains(msg, "unsupported format") ||
			strings.Contains(msg, "requested format not available") ||
			strings.Contains(msg, "no video formats") {
			return &UnsupportedFormatError{URL: url, Reason: err.Error()}
		}
	}

	return &NetworkError{URL: url, Reason: networkReason(phase, err)}
}

func networkReason(phase string, err error) string {
	if phase == phaseProbe {
		return "network error during video info extraction: " + err.Error()
	}
	return "network error during video download: " + err.Error()
}

// UserMessage renders a failure as the single chat notice the affected
// user sees. Operator alerts carry the raw detail instead.
func UserMessage(err error) string {
	var notFound *VideoNotFoundError
	var unsupported *UnsupportedFormatError
	var network *NetworkError
	var tooLarge *VideoTooLargeError
	var uploadLarge *UploadTooLargeError
	var queueFull *QueueFullError
	var userLimit *UserQueueLimitError

	switch {
	case errors.As(err, &notFound):
		return "❌ <b>Video Not Found</b>\n\nThe video is unavailable, private or has been removed.\nPlease check the link and try again."
	case errors.As(err, &unsupported):
		return "❌ <b>Unsupported Format</b>\n\nThis video cannot be downloaded in the requested format.\nPlease try a different format."
	case errors.As(err, &network):
		return "❌ <b>Network Error</b>\n\nA network problem interrupted the download.\nPlease try again later."
	case errors.As(err, &tooLarge):
		return fmt.Sprintf(
			"❌ <b>File Too Large</b>\n\nFile size: %.1f MB\nMaximum allowed: %.1f MB\n\nPlease try a lower quality format (SD or HD) or a shorter video.",
			toMB(tooLarge.Size), toMB(tooLarge.Limit))
	case errors.As(err, &uploadLarge):
		return fmt.Sprintf(
			"❌ <b>Upload Failed</b>\n\nFile size: %.1f MB\nTelegram rejected the upload due to size limits.\n\nPlease try a lower quality format (SD or HD).",
			toMB(uploadLarge.Size))
	case errors.As(err, &queueFull):
		return "⚠️ <b>Queue Full</b>\n\nThe download queue is full right now.\nPlease try again in a few minutes."
	case errors.As(err, &userLimit):
		return fmt.Sprintf(
			"⚠️ <b>Too Many Downloads</b>\n\nYou already have %d downloads waiting.\nPlease wait for them to finish before adding more.",
			userLimit.Limit)
	default:
		return "❌ <b>Download Failed</b>\n\nSomething went wrong while processing your request.\nPlease try again later."
	}
}

// ShouldNotifyOperator filters out the capacity guards: a full queue is an
// expected user-facing condition, not an incident.
func ShouldNotifyOperator(err error) bool {
	var queueFull *QueueFullError
	var userLimit *UserQueueLimitError
	return !errors.As(err, &queueFull) && !errors.As(err, &userLimit)
}

// FailureKind names the taxonomy bucket for logs and operator alerts.
func FailureKind(err error) string {
	var notFound *VideoNotFoundError
	var unsupported *UnsupportedFormatError
	var network *NetworkError
	var tooLarge *VideoTooLargeError
	var uploadLarge *UploadTooLargeError
	var queueFull *QueueFullError
	var userLimit *UserQueueLimitError

	switch {
	case errors.As(err, &notFound):
		return "VideoNotFound"
	case errors.As(err, &unsupported):
		return "UnsupportedFormat"
	case errors.As(err, &network):
		return "NetworkError"
	case errors.As(err, &tooLarge):
		return "VideoTooLarge"
	case errors.As(err, &uploadLarge):
		return "UploadTooLarge"
	case errors.As(err, &queueFull):
		return "QueueFull"
	case errors.As(err, &userLimit):
		return "UserQueueLimitExceeded"
	default:
		return "Unclassified"
	}
}

func toMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}
