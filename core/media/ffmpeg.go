package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"storyreel/logger"
	"storyreel/model"
)

// VideoInfo is what the compositor needs to know about a source clip.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
}

// Prober reads media metadata.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ProbeVideo(ctx context.Context, path string) (VideoInfo, error)
}

// FFmpeg runs ffmpeg and ffprobe.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg runner.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) probe(ctx context.Context, path string, args ...string) (*ffprobeOutput, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &model.ResourceMissingError{Kind: "media file", Path: path}
	}
	args = append([]string{"-v", "error"}, args...)
	args = append(args, "-of", "json", path)

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &model.ExternalToolError{Tool: "ffprobe", Err: err, Diagnostic: tail(stderr.String(), 512)}
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", path, err)
	}
	return &probeData, nil
}

func parseDuration(raw, path string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", path)
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q for %s: %w", raw, path, err)
	}
	return d, nil
}

// ProbeDuration returns the container duration in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	data, err := f.probe(ctx, path, "-show_entries", "format=duration")
	if err != nil {
		return 0, err
	}
	return parseDuration(data.Format.Duration, path)
}

// ProbeVideo returns frame size and duration of the first video stream.
func (f *FFmpeg) ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	data, err := f.probe(ctx, path,
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height:format=duration")
	if err != nil {
		return VideoInfo{}, err
	}
	if len(data.Streams) == 0 || data.Streams[0].Width == 0 || data.Streams[0].Height == 0 {
		return VideoInfo{}, fmt.Errorf("no video stream found in %s", path)
	}
	d, err := parseDuration(data.Format.Duration, path)
	if err != nil {
		return VideoInfo{}, err
	}
	return VideoInfo{Width: data.Streams[0].Width, Height: data.Streams[0].Height, Duration: d}, nil
}

// ConcatAudio joins inputs in order into out using the concat demuxer.
func (f *FFmpeg) ConcatAudio(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no audio inputs to concatenate")
	}
	listFile, err := os.CreateTemp(filepath.Dir(out), "concat-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listFile.Name())

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		fmt.Fprintf(listFile, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := listFile.Close(); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listFile.Name(), "-c", "copy", out}
	return f.Run(ctx, args, 0, nil)
}

// Run executes ffmpeg. When onProgress is set and totalSeconds > 0, ffmpeg
// reports through -progress and onProgress receives the rendered fraction.
func (f *FFmpeg) Run(ctx context.Context, args []string, totalSeconds float64, onProgress func(float64)) error {
	full := append([]string{"-hide_banner", "-nostdin"}, args...)
	track := onProgress != nil && totalSeconds > 0
	if track {
		full = append([]string{"-progress", "pipe:1", "-nostats"}, full...)
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Executing FFmpeg command",
		logger.String("path", f.ffmpegPath),
		logger.String("args", strings.Join(full, " ")))

	if !track {
		if err := cmd.Run(); err != nil {
			return &model.ExternalToolError{Tool: "ffmpeg", Err: err, Diagnostic: tail(stderr.String(), 1024)}
		}
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach ffmpeg progress pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &model.ExternalToolError{Tool: "ffmpeg", Err: err}
	}
	ReadProgress(stdout, totalSeconds, onProgress)
	if err := cmd.Wait(); err != nil {
		return &model.ExternalToolError{Tool: "ffmpeg", Err: err, Diagnostic: tail(stderr.String(), 1024)}
	}
	onProgress(1)
	return nil
}

// ReadProgress parses ffmpeg -progress key=value output until r is drained.
// Reported fractions never decrease and are capped at 1.
func ReadProgress(r io.Reader, totalSeconds float64, onProgress func(float64)) {
	scanner := bufio.NewScanner(r)
	last := 0.0
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		var seconds float64
		switch key {
		case "out_time_us", "out_time_ms":
			// out_time_ms is microseconds as well
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				continue
			}
			seconds = float64(us) / 1e6
		case "progress":
			if value == "end" {
				seconds = totalSeconds
			} else {
				continue
			}
		default:
			continue
		}
		frac := seconds / totalSeconds
		if frac > 1 {
			frac = 1
		}
		if frac > last {
			last = frac
			onProgress(frac)
		}
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
