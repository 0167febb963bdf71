package alerts

import (
	"fmt"
	"log"
	"time"

	"github.com/coah80/telegrab/internal/util"
)

type diskWatcher struct {
	notifier  *Notifier
	path      string
	minFreeGB float64
	lastLow   *bool
}

// WatchDisk polls free space under path and alerts the admin on
// transitions between OK and low. Runs for the life of the process.
func WatchDisk(n *Notifier, path string, minFreeGB float64, interval time.Duration) {
	w := &diskWatcher{notifier: n, path: path, minFreeGB: minFreeGB}
	go func() {
		// initial check after short delay
		time.Sleep(5 * time.Second)
		w.tick()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			w.tick()
		}
	}()
	log.Printf("[DiskWatch] Started, checking every %s", interval)
}

func (w *diskWatcher) tick() {
	space, err := util.GetDiskSpace(w.path)
	if err != nil {
		log.Printf("[DiskWatch] Check failed: %v", err)
		return
	}
	low := space.AvailGB < w.minFreeGB

	if w.lastLow == nil {
		// first check, just record state
		w.lastLow = &low
		state := "OK"
		if low {
			state = "LOW"
			w.notifier.DiskLow(space.AvailGB, space.TotalGB)
		}
		log.Printf("[DiskWatch] Initial state: %s (%.1fGB free)", state, space.AvailGB)
		return
	}

	if low == *w.lastLow {
		return
	}
	w.lastLow = &low
	log.Printf("[DiskWatch] State changed: low=%v (%.1fGB free)", low, space.AvailGB)
	if low {
		w.notifier.DiskLow(space.AvailGB, space.TotalGB)
	} else {
		w.notifier.DiskRecovered(space.AvailGB)
	}
}

func (n *Notifier) DiskLow(availGB, totalGB float64) {
	n.notify("disk", 0, "WARNING",
		fmt.Sprintf("Low disk space: %.1fGB free of %.1fGB total. Downloads may start failing.", availGB, totalGB), nil)
}

func (n *Notifier) DiskRecovered(availGB float64) {
	n.notify("disk", 0, "INFO", fmt.Sprintf("Disk space recovered: %.1fGB free.", availGB), nil)
}
