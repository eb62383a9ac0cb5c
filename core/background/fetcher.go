package background

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"storyreel/logger"
	"storyreel/model"
)

// Fetcher downloads a new clip for a category into dir and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, category, dir string) (string, error)
}

// YTDLP downloads clips listed in a Catalog with yt-dlp.
type YTDLP struct {
	path    string
	catalog *Catalog
	rng     *rand.Rand
}

// NewYTDLP creates a fetcher using the yt-dlp binary at path.
func NewYTDLP(path string, catalog *Catalog, rng *rand.Rand) *YTDLP {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &YTDLP{path: path, catalog: catalog, rng: rng}
}

func (y *YTDLP) args(url, dir string) []string {
	return []string{
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--no-overwrites",
		"--no-playlist",
		"--restrict-filenames",
		"-o", filepath.Join(dir, "%(title).40s-%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		url,
	}
}

// Fetch implements Fetcher.
func (y *YTDLP) Fetch(ctx context.Context, category, dir string) (string, error) {
	urls := y.catalog.URLs(category)
	if len(urls) == 0 {
		return "", &model.ResourceMissingError{Kind: "background source URL", Path: category}
	}
	url := urls[y.rng.Intn(len(urls))]

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create category folder %s: %w", dir, err)
	}

	logger.Info("Downloading background clip",
		logger.String("category", category),
		logger.String("url", url))

	cmd := exec.CommandContext(ctx, y.path, y.args(url, dir)...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &model.ExternalToolError{Tool: "yt-dlp", Err: err, Diagnostic: strings.TrimSpace(stderr.String())}
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("yt-dlp did not report a downloaded file for %s", url)
	}
	if _, err := os.Stat(path); err != nil {
		return "", &model.ResourceMissingError{Kind: "downloaded clip", Path: path}
	}
	return path, nil
}
