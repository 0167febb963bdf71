package util

import (
	"os"
	"strings"

	"github.com/coah80/telegrab/internal/config"
)

var botDetectionErrors = []string{
	"Sign in to confirm you",
	"confirm your age",
	"Sign in to confirm your age",
	"This video is unavailable",
	"Private video",
}

func HasCookiesFile() bool {
	if config.CookiesFile == "" {
		return false
	}
	_, err := os.Stat(config.CookiesFile)
	return err == nil
}

// NeedsCookiesRetry reports whether stderr looks like YouTube refusing an
// anonymous client rather than a genuinely missing video.
func NeedsCookiesRetry(errorOutput string) bool {
	for _, e := range botDetectionErrors {
		if strings.Contains(errorOutput, e) {
			return true
		}
	}
	return false
}

func GetCookiesArgs() []string {
	if !HasCookiesFile() {
		return nil
	}
	return []string{"--cookies", config.CookiesFile}
}
