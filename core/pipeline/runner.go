// Package pipeline runs one story-to-video job through its stages:
// normalize, synthesize, background, align, chunk and compose.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"storyreel/core/background"
	"storyreel/core/caption"
	"storyreel/core/text"
	"storyreel/model"
)

// Progress checkpoints. Rendering fills RenderStart..Complete.
const (
	ProgressStarted     = 5
	ProgressTextReady   = 10
	ProgressNormalized  = 15
	ProgressSynthesized = 30
	ProgressBackground  = 50
	ProgressRenderStart = 80
	ProgressComplete    = 100
)

// Synthesizer turns text into a narration track.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile model.VoiceProfile, outPath string) (*model.NarrationTrack, error)
}

// AudioJoiner concatenates audio files.
type AudioJoiner interface {
	ConcatAudio(ctx context.Context, inputs []string, out string) error
}

// BackgroundSelector picks a background clip for a category.
type BackgroundSelector interface {
	Select(ctx context.Context, category string) (model.BackgroundClip, error)
}

// Aligner returns word timings for audio, shifted by offset.
type Aligner interface {
	Align(ctx context.Context, audioPath string, offset float64) ([]model.Segment, error)
}

// Compositor renders the final video.
type Compositor interface {
	Compose(ctx context.Context, job *model.CompositionJob) (string, error)
}

// Scraper fetches posts to narrate.
type Scraper interface {
	Scrape(ctx context.Context, url string, count int, sort string) ([]model.Post, error)
}

// Deps are the capabilities a Runner is built from. Aligner and Scraper are
// optional: without an aligner captions are estimated from chunk durations.
type Deps struct {
	Synthesizer Synthesizer
	Audio       AudioJoiner
	Backgrounds BackgroundSelector
	Aligner     Aligner
	Compositor  Compositor
	Scraper     Scraper

	WorkDir    string // parent of per-job temp dirs
	OutputDir  string // used when a request has no output path
	IntroImage string // checked before any expensive stage; empty skips the check
	Logger     *zap.Logger
}

// Request describes one video to produce. Exactly one of Text and RedditURL
// is expected.
type Request struct {
	JobID string
	// Text is the story; its first line is the title.
	Text      string
	RedditURL string
	NumPosts  int
	Sort      string
	// Title overrides the title taken from the text.
	Title      string
	Voice      model.VoiceProfile
	Category   string
	OutputPath string
}

// Result describes a finished video.
type Result struct {
	OutputPath string               `json:"outputPath"`
	Title      string               `json:"title"`
	Duration   float64              `json:"duration"`
	Masked     bool                 `json:"masked"`
	Background model.BackgroundClip `json:"background"`
	Captions   int                  `json:"captions"`
	Voice      model.VoiceConfig    `json:"voice"`
}

// Runner executes jobs. It holds no per-job state and may run jobs
// concurrently.
type Runner struct {
	deps Deps
	log  *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(deps Deps) *Runner {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.WorkDir == "" {
		deps.WorkDir = os.TempDir()
	}
	return &Runner{deps: deps, log: log}
}

// Run executes req, reporting to sink. Every error names its stage, and is
// also reported to sink as the terminal report. Intermediate audio created
// by the job is gone when Run returns.
func (r *Runner) Run(ctx context.Context, req Request, sink Sink) (*Result, error) {
	if sink == nil {
		sink = Discard
	}
	sink = NewMonotonic(sink)
	log := r.log.With(zap.String("jobId", req.JobID))

	res, err := r.run(ctx, req, sink, log)
	if err != nil {
		log.Error("video generation failed", zap.String("stage", model.StageOf(err)), zap.Error(err))
		sink.Report(Progress{Err: err})
		return nil, err
	}
	log.Info("video generation complete", zap.String("output", res.OutputPath))
	sink.Report(Progress{Percent: ProgressComplete, Message: "Video generated", Done: true})
	return res, nil
}

func (r *Runner) run(ctx context.Context, req Request, sink Sink, log *zap.Logger) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, model.InStage(model.StageNormalize, err)
	}
	log.Info("starting video generation",
		zap.String("voice", string(req.Voice)),
		zap.String("category", req.Category))
	sink.Report(Progress{Percent: ProgressStarted, Message: "Starting"})

	raw := req.Text
	if req.RedditURL != "" {
		var err error
		if raw, err = r.scrape(ctx, req); err != nil {
			return nil, model.InStage(model.StageScrape, err)
		}
	}
	sink.Report(Progress{Percent: ProgressTextReady, Message: "Text loaded"})

	var story text.Story
	if t := strings.TrimSpace(req.Title); t != "" {
		title, body := text.Normalize(t), text.Normalize(raw)
		story = text.Story{Title: title.Text, Body: body.Text, Masked: title.Masked || body.Masked}
		if story.Title == "" {
			story.Title = text.DefaultTitle
		}
	} else {
		story = text.SplitStory(raw)
	}
	if strings.TrimSpace(story.Body) == "" {
		return nil, model.InStage(model.StageNormalize, &model.InputError{Field: "text", Reason: "nothing left to narrate after cleaning"})
	}
	sink.Report(Progress{Percent: ProgressNormalized, Message: "Text cleaned"})

	outPath := req.OutputPath
	if outPath == "" {
		outPath = filepath.Join(r.deps.OutputDir, fmt.Sprintf("%s_%s.mp4", outputName(story.Title), req.JobID))
	}

	if err := os.MkdirAll(r.deps.WorkDir, 0755); err != nil {
		return nil, model.InStage(model.StageSynthesize, fmt.Errorf("failed to create work dir: %w", err))
	}
	jobDir, err := os.MkdirTemp(r.deps.WorkDir, "job-"+text.SafeFilename(req.JobID, 40)+"-*")
	if err != nil {
		return nil, model.InStage(model.StageSynthesize, fmt.Errorf("failed to create job dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			log.Warn("failed to remove job audio", zap.String("dir", jobDir), zap.Error(err))
		}
	}()

	// narration = title audio followed by body audio; the title length is
	// both the caption offset and the intro card duration
	titleTrack, err := r.deps.Synthesizer.Synthesize(ctx, story.Title, req.Voice, filepath.Join(jobDir, "title.mp3"))
	if err != nil {
		return nil, model.InStage(model.StageSynthesize, fmt.Errorf("title: %w", err))
	}
	bodyTrack, err := r.deps.Synthesizer.Synthesize(ctx, story.Body, req.Voice, filepath.Join(jobDir, "body.mp3"))
	if err != nil {
		return nil, model.InStage(model.StageSynthesize, fmt.Errorf("body: %w", err))
	}
	narrationPath := filepath.Join(jobDir, "narration.mp3")
	if err := r.deps.Audio.ConcatAudio(ctx, []string{titleTrack.Path, bodyTrack.Path}, narrationPath); err != nil {
		return nil, model.InStage(model.StageSynthesize, fmt.Errorf("join narration: %w", err))
	}
	narration := &model.NarrationTrack{
		Path:           narrationPath,
		Duration:       titleTrack.Duration + bodyTrack.Duration,
		Voice:          bodyTrack.Voice,
		ChunkTexts:     append(append([]string{}, titleTrack.ChunkTexts...), bodyTrack.ChunkTexts...),
		ChunkDurations: append(append([]float64{}, titleTrack.ChunkDurations...), bodyTrack.ChunkDurations...),
	}
	titleDur := titleTrack.Duration
	log.Info("narration synthesized",
		zap.Float64("titleDuration", titleDur),
		zap.Float64("duration", narration.Duration))
	sink.Report(Progress{Percent: ProgressSynthesized, Message: "Narration synthesized"})

	if r.deps.IntroImage != "" {
		if _, err := os.Stat(r.deps.IntroImage); err != nil {
			return nil, model.InStage(model.StageCompose, &model.ResourceMissingError{Kind: "intro image", Path: r.deps.IntroImage})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, model.InStage(model.StageBackground, err)
	}

	clip, err := r.deps.Backgrounds.Select(ctx, req.Category)
	if err != nil {
		return nil, model.InStage(model.StageBackground, err)
	}
	log.Info("background selected", zap.String("path", clip.Path))
	sink.Report(Progress{Percent: ProgressBackground, Message: "Background selected"})

	segments, err := r.align(ctx, story.Body, bodyTrack, titleDur, log)
	if err != nil {
		return nil, model.InStage(model.StageAlign, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, model.InStage(model.StageChunk, err)
	}
	captions := caption.Chunk(segments, caption.DefaultGroupSize)
	if len(captions) == 0 {
		return nil, model.InStage(model.StageChunk, errors.New("no captions produced"))
	}
	sink.Report(Progress{Percent: ProgressRenderStart, Message: "Captions ready"})

	if err := ctx.Err(); err != nil {
		return nil, model.InStage(model.StageCompose, err)
	}
	job := &model.CompositionJob{
		ID:           req.JobID,
		Narration:    narration,
		Captions:     captions,
		Background:   clip,
		Title:        &model.TitleOverlay{Text: story.Title, Duration: titleDur},
		OutputPath:   outPath,
		ProgressFrom: ProgressRenderStart,
		ProgressTo:   ProgressComplete,
		OnProgress: func(p int) {
			// 100 is reserved for the terminal report
			if p < ProgressComplete {
				sink.Report(Progress{Percent: p, Message: "Rendering"})
			}
		},
	}
	out, err := r.deps.Compositor.Compose(ctx, job)
	if err != nil {
		return nil, model.InStage(model.StageCompose, err)
	}

	return &Result{
		OutputPath: out,
		Title:      story.Title,
		Duration:   narration.Duration,
		Masked:     story.Masked,
		Background: clip,
		Captions:   len(captions),
		Voice:      narration.Voice,
	}, nil
}

// outputName slugs the prettified title, falling back to the raw title when
// prettifying leaves nothing.
func outputName(title string) string {
	if name := text.SafeFilename(text.PrettifyTitle(title), 50); name != "" {
		return name
	}
	return text.SafeFilename(title, 50)
}

func validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.RedditURL) == "" {
		return &model.InputError{Field: "text", Reason: "no text or reddit url given"}
	}
	return background.ValidateCategory(req.Category)
}

func (r *Runner) scrape(ctx context.Context, req Request) (string, error) {
	if r.deps.Scraper == nil {
		return "", &model.InputError{Field: "reddit url", Reason: "scraping is not configured"}
	}
	n := req.NumPosts
	if n <= 0 {
		n = 1
	}
	posts, err := r.deps.Scraper.Scrape(ctx, req.RedditURL, n, req.Sort)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		return "", &model.ResourceMissingError{Kind: "text post", Path: req.RedditURL}
	}
	// first post's title, every post's text
	bodies := make([]string, 0, len(posts))
	for _, p := range posts {
		if t := strings.TrimSpace(p.Text); t != "" {
			bodies = append(bodies, t)
		}
	}
	return posts[0].Title + "\n" + strings.Join(bodies, " "), nil
}

// align uses the aligner when configured, and otherwise (or when it finds
// no words) estimates timings from the synthesized chunks, or from the whole
// body when the synthesizer reported no chunks.
func (r *Runner) align(ctx context.Context, bodyText string, body *model.NarrationTrack, offset float64, log *zap.Logger) ([]model.Segment, error) {
	if r.deps.Aligner != nil {
		segments, err := r.deps.Aligner.Align(ctx, body.Path, offset)
		if err != nil {
			return nil, err
		}
		for _, s := range segments {
			if len(s.Words) > 0 {
				return segments, nil
			}
		}
		log.Warn("aligner returned no words, estimating caption timing")
	}
	if len(body.ChunkTexts) == 0 {
		return caption.Shift(caption.EstimateSegments(bodyText, body.Duration), offset), nil
	}
	return caption.Shift(caption.EstimateFromChunks(body.ChunkTexts, body.ChunkDurations), offset), nil
}
