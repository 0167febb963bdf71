package services

import (
	"strings"
	"testing"
)

func TestFormatOptionsOrder(t *testing.T) {
	options := FormatOptions()
	if len(options) != 5 {
		t.Fatalf("Expected 5 formats, got %d", len(options))
	}

	// Video options first, then audio.
	audioSeen := false
	for _, f := range options {
		if f.Kind == KindAudio {
			audioSeen = true
		}
		if f.Kind == KindVideo && audioSeen {
			t.Errorf("Expected all video formats before audio, got %s after audio", f.ID)
		}
	}

	if options[0].ID != "video:SD" {
		t.Errorf("Expected video:SD first, got %s", options[0].ID)
	}
	if options[len(options)-1].ID != "audio:MP3" {
		t.Errorf("Expected audio:MP3 last, got %s", options[len(options)-1].ID)
	}
}

func TestFormatByID(t *testing.T) {
	tests := []struct {
		id    string
		spec  string
		label string
	}{
		{"video:SD", "best[height<=480]", "SD (480p)"},
		{"video:HD", "best[height<=720]", "HD (720p)"},
		{"video:FHD", "best[height<=1080]", "Full HD (1080p)"},
		{"video:ORIGINAL", "best", "Original (Max Quality)"},
		{"audio:MP3", "bestaudio/best", "MP3 (320kbps)"},
	}

	for _, test := range tests {
		f, ok := FormatByID(test.id)
		if !ok {
			t.Fatalf("Expected format %s to resolve", test.id)
		}
		if f.Spec != test.spec {
			t.Errorf("Expected spec %q for %s, got %q", test.spec, test.id, f.Spec)
		}
		if f.Label != test.label {
			t.Errorf("Expected label %q for %s, got %q", test.label, test.id, f.Label)
		}
		if !strings.Contains(f.ID, ":") {
			t.Errorf("Expected ID %s to contain a colon", f.ID)
		}
	}

	if _, ok := FormatByID("video:8K"); ok {
		t.Error("Expected unknown format ID to be a miss")
	}
	if _, ok := FormatByID(""); ok {
		t.Error("Expected empty format ID to be a miss")
	}
}
