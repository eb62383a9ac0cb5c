package video

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"storyreel/core/media"
	"storyreel/model"
)

// Runner executes an ffmpeg command, reporting the rendered fraction.
type Runner interface {
	Run(ctx context.Context, args []string, totalSeconds float64, onProgress func(float64)) error
}

// Compositor renders a CompositionJob to a video file.
type Compositor struct {
	prober media.Prober
	runner Runner
	layout Layout
	log    *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCompositor creates a new Compositor. A nil rng uses a time-seeded source.
func NewCompositor(prober media.Prober, runner Runner, layout Layout, rng *rand.Rand, log *zap.Logger) *Compositor {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Compositor{prober: prober, runner: runner, layout: layout, rng: rng, log: log}
}

// Layout returns the compositor's layout.
func (c *Compositor) Layout() Layout {
	return c.layout
}

// Compose renders job and returns the output path. The output appears only
// when rendering succeeded; intermediate files are removed either way.
func (c *Compositor) Compose(ctx context.Context, job *model.CompositionJob) (string, error) {
	if job.Narration == nil || job.Narration.Path == "" {
		return "", &model.InputError{Field: "narration", Reason: "missing"}
	}
	if job.OutputPath == "" {
		return "", &model.InputError{Field: "output path", Reason: "empty"}
	}
	log := c.log.With(zap.String("output", job.OutputPath))

	// load
	audioDur, err := c.prober.ProbeDuration(ctx, job.Narration.Path)
	if err != nil {
		return "", fmt.Errorf("load narration: %w", err)
	}
	if audioDur <= 0 {
		return "", fmt.Errorf("load narration: %s has no audio", job.Narration.Path)
	}
	bg, err := c.prober.ProbeVideo(ctx, job.Background.Path)
	if err != nil {
		return "", fmt.Errorf("load background: %w", err)
	}

	var introPath string
	var introDur float64
	var title *model.TitleOverlay
	if job.Title != nil {
		introDur = job.Title.Duration
		if introDur <= 0 {
			introDur = c.layout.TitleDuration
		}
		title = &model.TitleOverlay{Text: job.Title.Text, Duration: introDur}
		introPath = c.layout.IntroImage
		if _, err := os.Stat(introPath); err != nil {
			return "", &model.ResourceMissingError{Kind: "intro image", Path: introPath}
		}
	}

	// reconcile
	c.mu.Lock()
	plan := Reconcile(bg.Duration, audioDur, c.rng)
	c.mu.Unlock()

	// aspect
	crop := CropFor(bg.Width, bg.Height)

	log.Info("composing video",
		zap.Float64("audioDuration", audioDur),
		zap.Float64("backgroundDuration", bg.Duration),
		zap.Float64("backgroundStart", plan.Start),
		zap.Bool("loop", plan.Loop),
		zap.Int("captions", len(job.Captions)),
		zap.Bool("title", job.Title != nil))

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	workDir, err := os.MkdirTemp(filepath.Dir(job.OutputPath), ".compose-*")
	if err != nil {
		return "", fmt.Errorf("failed to create render work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("failed to remove render work dir", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	// intro + captions
	graph, texts := c.layout.BuildFilterGraph(FilterInput{
		Crop:     crop,
		Captions: job.Captions,
		Title:    title,
		TextDir:  workDir,
	})
	for _, t := range texts {
		if err := os.WriteFile(t.Path, []byte(t.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write overlay text: %w", err)
		}
	}
	scriptPath := filepath.Join(workDir, "filter.txt")
	if err := os.WriteFile(scriptPath, []byte(graph), 0644); err != nil {
		return "", fmt.Errorf("failed to write filter script: %w", err)
	}

	// mux and render
	rendered := filepath.Join(workDir, "render.mp4")
	args := c.layout.renderArgs(plan, job.Background.Path, job.Narration.Path, introPath, introDur, scriptPath, rendered)
	if err := c.runner.Run(ctx, args, plan.Duration, progressMapper(job)); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	if err := os.Rename(rendered, job.OutputPath); err != nil {
		return "", fmt.Errorf("failed to move rendered video into place: %w", err)
	}

	log.Info("video rendered")
	return job.OutputPath, nil
}

func (l Layout) renderArgs(plan Plan, background, narration, intro string, introDur float64, script, out string) []string {
	args := []string{"-y"}
	args = append(args, plan.InputArgs(background)...)
	args = append(args, "-i", narration)
	if intro != "" {
		args = append(args, "-loop", "1", "-t", seconds(introDur), "-i", intro)
	}
	return append(args,
		"-filter_complex_script", script,
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a:0", inputNarration),
		"-c:v", l.VideoCodec,
		"-preset", l.Preset,
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", l.FPS),
		"-c:a", l.AudioCodec,
		"-b:a", l.AudioBitrate,
		"-t", seconds(plan.Duration),
		"-movflags", "+faststart",
		"-f", "mp4",
		out,
	)
}

// progressMapper maps a render fraction into the job's reserved progress range.
func progressMapper(job *model.CompositionJob) func(float64) {
	if job.OnProgress == nil {
		return nil
	}
	span := float64(job.ProgressTo - job.ProgressFrom)
	last := -1
	return func(frac float64) {
		p := job.ProgressFrom + int(frac*span)
		if p > last {
			last = p
			job.OnProgress(p)
		}
	}
}
