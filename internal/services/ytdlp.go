package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/coah80/telegrab/internal/config"
	"github.com/coah80/telegrab/internal/util"
)

var ytdlpErrorRe = regexp.MustCompile(`(?i)ERROR[:\s]+(.+?)(?:\n|$)`)

// Some player responses require a browser-looking client before YouTube
// hands out signatures.
const engineUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36"

type VideoInfo struct {
	Title    string
	Filesize int64
}

// Engine is the media-fetch backend. The orchestrator only ever talks to
// this interface, so tests swap in a fake instead of shelling out.
type Engine interface {
	Probe(ctx context.Context, url, formatSpec string) (*VideoInfo, error)
	Fetch(ctx context.Context, url, formatSpec, destDir string) error
}

// YtdlpEngine shells out to yt-dlp on PATH.
type YtdlpEngine struct{}

func NewYtdlpEngine() *YtdlpEngine {
	return &YtdlpEngine{}
}

func baseArgs(formatSpec string) []string {
	args := append([]string{}, util.GetCookiesArgs()...)
	args = append(args, util.GetProxyArgs()...)
	args = append(args,
		"-f", formatSpec,
		"--no-playlist",
		"--socket-timeout", strconv.Itoa(config.SocketTimeoutSec),
		"--retries", strconv.Itoa(config.EngineRetries),
		"--user-agent", engineUserAgent,
	)
	return args
}

// Probe extracts title and expected size without downloading. The format
// selector is passed through so the reported size matches what Fetch
// would actually pull.
func (e *YtdlpEngine) Probe(ctx context.Context, url, formatSpec string) (*VideoInfo, error) {
	args := append(baseArgs(formatSpec), "-J", url)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			errMsg := "failed to extract video info"
			stderr := string(exitErr.Stderr)
			if m := ytdlpErrorRe.FindStringSubmatch(stderr); len(m) > 1 {
				errMsg = strings.TrimSpace(m[1])
			}
			logCookiesHint(url, stderr)
			return nil, fmt.Errorf("%s", errMsg)
		}
		return nil, err
	}

	var raw struct {
		Title          string `json:"title"`
		Filesize       int64  `json:"filesize"`
		FilesizeApprox int64  `json:"filesize_approx"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse video info")
	}

	size := raw.Filesize
	if size == 0 {
		size = raw.FilesizeApprox
	}
	return &VideoInfo{Title: raw.Title, Filesize: size}, nil
}

// Fetch downloads into destDir using the title output template. The
// caller owns destDir and discovers the produced file itself.
func (e *YtdlpEngine) Fetch(ctx context.Context, url, formatSpec, destDir string) error {
	args := append(baseArgs(formatSpec),
		"--no-warnings",
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
		url,
	)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var stderrOutput strings.Builder
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			stderrOutput.WriteString(scanner.Text() + "\n")
		}
	}()

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errMsg := "download failed"
		output := stderrOutput.String()
		if m := ytdlpErrorRe.FindStringSubmatch(output); len(m) > 1 {
			errMsg = strings.TrimSpace(m[1])
		}
		logCookiesHint(url, output)
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

func logCookiesHint(url, stderr string) {
	if util.NeedsCookiesRetry(stderr) && !util.HasCookiesFile() {
		log.Printf("[Engine] Bot detection suspected for %s; set COOKIES_FILE to authenticate", url)
	}
}
