package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var Version = "dev"

var (
	Port string

	DBPath      string
	TempDir     string
	DownloadDir string

	CookiesFile string
	ProxyURL    string

	MaxFileSize     int64
	DownloadTimeout time.Duration
	QueueCapacity   int
	UserQueueLimit  int

	CacheTTL        time.Duration
	CacheMaxEntries int
)

const (
	// Hard ceiling for bot document uploads. Telegram rejects anything
	// bigger regardless of what MAX_FILE_SIZE allows.
	UploadLimit = 50 * 1024 * 1024

	SocketTimeoutSec = 30
	EngineRetries    = 2

	DiskSpaceMinGB  = 2
	FileRetention   = 20 * time.Minute
	RateLimitWindow = 60 * time.Second
	RateLimitMax    = 60
	MaxURLLength    = 2048
)

func Load() {
	Port = envOrDefault("PORT", "3001")

	DBPath = envOrDefault("DB_PATH", "data/bot.db")
	TempDir = envOrDefault("TEMP_DIR", "/var/tmp/telegrab")
	DownloadDir = filepath.Join(TempDir, "downloads")

	CookiesFile = envOrDefault("COOKIES_FILE", "cookies.txt")
	ProxyURL = os.Getenv("PROXY_URL")

	maxSize, _ := strconv.ParseInt(envOrDefault("MAX_FILE_SIZE", "2147483648"), 10, 64)
	if maxSize < 1 {
		maxSize = 2 * 1024 * 1024 * 1024
	}
	MaxFileSize = maxSize

	timeoutSec, _ := strconv.Atoi(envOrDefault("DOWNLOAD_TIMEOUT_SEC", "300"))
	if timeoutSec < 1 {
		timeoutSec = 300
	}
	DownloadTimeout = time.Duration(timeoutSec) * time.Second

	QueueCapacity, _ = strconv.Atoi(envOrDefault("QUEUE_CAPACITY", "50"))
	if QueueCapacity < 1 {
		QueueCapacity = 50
	}
	UserQueueLimit, _ = strconv.Atoi(envOrDefault("USER_QUEUE_LIMIT", "5"))
	if UserQueueLimit < 1 {
		UserQueueLimit = 5
	}

	ttlSec, _ := strconv.Atoi(envOrDefault("CACHE_TTL_SEC", "3600"))
	if ttlSec < 1 {
		ttlSec = 3600
	}
	CacheTTL = time.Duration(ttlSec) * time.Second

	CacheMaxEntries, _ = strconv.Atoi(envOrDefault("CACHE_MAX_ENTRIES", "1000"))
	if CacheMaxEntries < 1 {
		CacheMaxEntries = 1000
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
