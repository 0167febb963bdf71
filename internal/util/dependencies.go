package util

import (
	"fmt"
	"os/exec"
)

// CheckDependencies prints a startup checklist for the external tools the
// engine shells out to. yt-dlp is mandatory; ffmpeg only matters when a
// format selector forces a merge, so it is reported but not required.
func CheckDependencies() error {
	deps := []struct {
		name     string
		required bool
	}{
		{"yt-dlp", true},
		{"ffmpeg", false},
		{"ffprobe", false},
	}

	var missing []string
	for _, dep := range deps {
		path, err := exec.LookPath(dep.name)
		if err != nil {
			if dep.required {
				fmt.Printf("✗ %s not found (REQUIRED)\n", dep.name)
				missing = append(missing, dep.name)
			} else {
				fmt.Printf("- %s not found (optional)\n", dep.name)
			}
		} else {
			fmt.Printf("✓ %s found: %s\n", dep.name, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required dependencies: %v", missing)
	}
	return nil
}
