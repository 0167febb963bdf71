package util

import (
	"net/url"
	"strings"

	"github.com/coah80/telegrab/internal/config"
)

var youtubeHosts = []string{
	"youtube.com",
	"m.youtube.com",
	"music.youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
}

// IsHTTPURL reports whether a message body looks like a link at all.
// Anything else is routed to the command/ignore paths.
func IsHTTPURL(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

func IsYouTubeURL(rawURL string) bool {
	if rawURL == "" || len(rawURL) > config.MaxURLLength {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return config.Contains(youtubeHosts, host)
}
