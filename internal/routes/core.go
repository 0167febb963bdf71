// Package routes exposes the read-only operational API: health,
// queue state and the configured limits. The bot itself never goes
// through HTTP; this surface exists for monitoring.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coah80/telegrab/internal/config"
	"github.com/coah80/telegrab/internal/services"
)

// Deps carries the live pieces the handlers report on.
type Deps struct {
	Queue *services.Queue
	Cache *services.LinkCache
}

func CoreRoutes(r chi.Router, d Deps) {
	r.Get("/health", d.handleHealth)
	r.Get("/api/queue-status", d.handleQueueStatus)
	r.Get("/api/limits", d.handleLimits)
}

func (d Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, 200, map[string]interface{}{
		"status":       "ok",
		"version":      config.Version,
		"queue":        d.Queue.Status(),
		"cacheEntries": d.Cache.Len(),
	})
}

func (d Deps) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, 200, d.Queue.Status())
}

func (d Deps) handleLimits(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, 200, map[string]interface{}{
		"maxFileSize":        config.MaxFileSize,
		"uploadLimit":        int64(config.UploadLimit),
		"queueCapacity":      config.QueueCapacity,
		"userQueueLimit":     config.UserQueueLimit,
		"downloadTimeoutSec": int(config.DownloadTimeout / time.Second),
	})
}
