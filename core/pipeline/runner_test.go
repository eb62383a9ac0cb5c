package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/model"
)

type fakeSynth struct {
	mu     sync.Mutex
	texts  []string
	failOn string
	cancel context.CancelFunc
	// noChunks leaves out per-chunk timing
	noChunks bool
}

// Synthesize writes a file and reports half a second per word.
func (f *fakeSynth) Synthesize(_ context.Context, text string, profile model.VoiceProfile, outPath string) (*model.NarrationTrack, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, &model.ExternalToolError{Tool: "edge-tts", Err: errors.New("exit status 1"), Diagnostic: "No audio was received"}
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return nil, err
	}
	if f.cancel != nil {
		f.cancel()
	}
	d := 0.5 * float64(len(strings.Fields(text)))
	track := &model.NarrationTrack{Path: outPath, Duration: d, Voice: profile.Config()}
	if !f.noChunks {
		track.ChunkTexts = []string{text}
		track.ChunkDurations = []float64{d}
	}
	return track, nil
}

type fakeJoiner struct{}

func (fakeJoiner) ConcatAudio(_ context.Context, inputs []string, out string) error {
	var data []byte
	for _, in := range inputs {
		b, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		data = append(data, b...)
	}
	return os.WriteFile(out, data, 0644)
}

type fakeBackgrounds struct {
	err error
}

func (f fakeBackgrounds) Select(_ context.Context, category string) (model.BackgroundClip, error) {
	if f.err != nil {
		return model.BackgroundClip{}, f.err
	}
	return model.BackgroundClip{Path: "/library/" + category + "/a.mp4", Category: category}, nil
}

type fakeAligner struct {
	offset float64
	words  []model.TimedWord
}

func (f *fakeAligner) Align(_ context.Context, _ string, offset float64) ([]model.Segment, error) {
	f.offset = offset
	words := make([]model.TimedWord, len(f.words))
	for i, w := range f.words {
		words[i] = model.TimedWord{Text: w.Text, Start: w.Start + offset, End: w.End + offset}
	}
	return []model.Segment{{Words: words}}, nil
}

type fakeCompositor struct {
	job             *model.CompositionJob
	narrationExists bool
	err             error
}

func (f *fakeCompositor) Compose(_ context.Context, job *model.CompositionJob) (string, error) {
	f.job = job
	_, statErr := os.Stat(job.Narration.Path)
	f.narrationExists = statErr == nil
	if f.err != nil {
		return "", f.err
	}
	for _, p := range []int{85, 90, 100} {
		job.OnProgress(p)
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return "", err
	}
	return job.OutputPath, os.WriteFile(job.OutputPath, []byte("video"), 0644)
}

type fakeScraper struct {
	posts []model.Post
}

func (f fakeScraper) Scrape(context.Context, string, int, string) ([]model.Post, error) {
	return f.posts, nil
}

const story = "My title\nFirst line of the body.\nSecond sentence here."

type fixture struct {
	runner     *Runner
	synth      *fakeSynth
	compositor *fakeCompositor
	workDir    string
	outputDir  string
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		synth:      &fakeSynth{},
		compositor: &fakeCompositor{},
		workDir:    filepath.Join(t.TempDir(), "work"),
		outputDir:  filepath.Join(t.TempDir(), "videos"),
	}
	deps := Deps{
		Synthesizer: f.synth,
		Audio:       fakeJoiner{},
		Backgrounds: fakeBackgrounds{},
		Compositor:  f.compositor,
		WorkDir:     f.workDir,
		OutputDir:   f.outputDir,
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.runner = NewRunner(deps)
	return f
}

func (f *fixture) assertNoAudioLeft(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "job audio must be removed")
}

func TestRunProducesVideo(t *testing.T) {
	f := newFixture(t, nil)
	rec := &recordSink{}

	res, err := f.runner.Run(context.Background(), Request{
		JobID:    "job-1",
		Text:     story,
		Voice:    model.VoiceMale,
		Category: "minecraft",
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 10, 15, 30, 50, 80, 85, 90, 100}, rec.percents())
	assert.True(t, rec.last().Done)

	assert.Equal(t, "My title", res.Title)
	assert.Equal(t, filepath.Join(f.outputDir, "my_title_job-1.mp4"), res.OutputPath)
	assert.FileExists(t, res.OutputPath)
	assert.Equal(t, 5.0, res.Duration)
	assert.Equal(t, "en-US-GuyNeural", res.Voice.Voice)
	assert.Equal(t, []string{"My title", "First line of the body. Second sentence here."}, f.synth.texts)

	job := f.compositor.job
	assert.True(t, f.compositor.narrationExists)
	require.NotNil(t, job.Title)
	assert.Equal(t, 1.0, job.Title.Duration)
	assert.Equal(t, 80, job.ProgressFrom)
	assert.Equal(t, 100, job.ProgressTo)

	// estimated timings start after the title
	require.Len(t, job.Captions, 2)
	assert.InDelta(t, 1.0, job.Captions[0].Start, 1e-9)
	assert.InDelta(t, 2.0, job.Captions[0].Duration, 1e-9)
	assert.Equal(t, "First line of the", job.Captions[0].Text)
	assert.InDelta(t, 5.0, job.Captions[1].End(), 1e-9)

	f.assertNoAudioLeft(t)
}

func TestRunUsesAlignerWithTitleOffset(t *testing.T) {
	aligner := &fakeAligner{words: []model.TimedWord{
		{Text: "First", Start: 0, End: 0.3},
		{Text: "line", Start: 0.4, End: 0.7},
	}}
	f := newFixture(t, func(d *Deps) { d.Aligner = aligner })

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: story, Category: "minecraft"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, aligner.offset)
	require.Len(t, f.compositor.job.Captions, 1)
	assert.InDelta(t, 1.0, f.compositor.job.Captions[0].Start, 1e-9)
	assert.InDelta(t, 0.7, f.compositor.job.Captions[0].Duration, 1e-9)
}

func TestRunComposeFailureCleansUp(t *testing.T) {
	f := newFixture(t, nil)
	f.compositor.err = &model.ExternalToolError{Tool: "ffmpeg", Err: errors.New("exit status 1"), Diagnostic: "moov atom not found"}
	rec := &recordSink{}

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: story, Category: "minecraft"}, rec)
	require.Error(t, err)
	assert.Equal(t, model.StageCompose, model.StageOf(err))
	assert.True(t, errors.Is(err, model.ErrExternalTool))
	assert.True(t, strings.HasPrefix(err.Error(), "compose: "))
	assert.Contains(t, err.Error(), "moov atom not found")
	assert.Equal(t, err, rec.last().Err)

	f.assertNoAudioLeft(t)
}

func TestRunSynthesisFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.synth.failOn = "Second"

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: story, Category: "minecraft"}, nil)
	assert.Equal(t, model.StageSynthesize, model.StageOf(err))
	assert.True(t, errors.Is(err, model.ErrExternalTool))
	assert.Nil(t, f.compositor.job)
	f.assertNoAudioLeft(t)
}

func TestRunRejectsBadInputBeforeWork(t *testing.T) {
	for name, req := range map[string]Request{
		"no text":      {JobID: "j", Category: "minecraft"},
		"bad category": {JobID: "j", Text: story, Category: "../etc"},
		"empty":        {JobID: "j", Text: "  \n ", Category: "minecraft"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.runner.Run(context.Background(), req, nil)
			assert.True(t, errors.Is(err, model.ErrInput), "got %v", err)
			assert.Equal(t, model.StageNormalize, model.StageOf(err))
			assert.Empty(t, f.synth.texts)
		})
	}
}

func TestRunMissingBackground(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Backgrounds = fakeBackgrounds{err: &model.ResourceMissingError{Kind: "background clip", Path: "/library/subway"}}
	})

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: story, Category: "subway"}, nil)
	assert.True(t, errors.Is(err, model.ErrResourceMissing))
	assert.Equal(t, model.StageBackground, model.StageOf(err))
	f.assertNoAudioLeft(t)
}

func TestRunMissingIntroImage(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.IntroImage = filepath.Join(t.TempDir(), "IntroPicture.png") })

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: story, Category: "minecraft"}, nil)
	assert.True(t, errors.Is(err, model.ErrResourceMissing))
	assert.Nil(t, f.compositor.job)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, nil)
	f.synth.cancel = cancel

	_, err := f.runner.Run(ctx, Request{JobID: "j", Text: story, Category: "minecraft"}, nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, f.compositor.job)
	f.assertNoAudioLeft(t)
}

func TestRunFromReddit(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Scraper = fakeScraper{posts: []model.Post{{Title: "TIFU by testing", Text: "It went **fine** in the end."}}}
	})

	res, err := f.runner.Run(context.Background(), Request{
		JobID:     "j",
		RedditURL: "https://www.reddit.com/r/tifu",
		Category:  "minecraft",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "TIFU by testing", res.Title)
	assert.Equal(t, []string{"TIFU by testing", "It went fine in the end."}, f.synth.texts)
}

func TestRunNarratesEveryScrapedPost(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Scraper = fakeScraper{posts: []model.Post{
			{Title: "First", Text: "one body"},
			{Title: "Second", Text: "two body"},
			{Title: "Third", Text: "three body"},
		}}
	})

	res, err := f.runner.Run(context.Background(), Request{
		JobID:     "j",
		RedditURL: "https://www.reddit.com/r/tifu",
		NumPosts:  3,
		Category:  "minecraft",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "First", res.Title)
	assert.Equal(t, []string{"First", "one body two body three body"}, f.synth.texts)
}

func TestRunEstimatesWithoutChunkTimings(t *testing.T) {
	f := newFixture(t, nil)
	f.synth.noChunks = true

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: story, Category: "minecraft"}, nil)
	require.NoError(t, err)
	captions := f.compositor.job.Captions
	require.NotEmpty(t, captions)
	assert.InDelta(t, 1.0, captions[0].Start, 1e-9)
	assert.InDelta(t, 5.0, captions[len(captions)-1].End(), 1e-9)
}

func TestRunNamesOutputFromPrettifiedTitle(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.runner.Run(context.Background(), Request{JobID: "j", Text: "my CAT, my rules!!\nShe sat on the keyboard.", Category: "minecraft"}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.outputDir, "my_cat_my_rules_j.mp4"), res.OutputPath)
}

func TestRunRedditWithoutScraper(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.runner.Run(context.Background(), Request{JobID: "j", RedditURL: "https://www.reddit.com/r/tifu", Category: "minecraft"}, nil)
	assert.Equal(t, model.StageScrape, model.StageOf(err))
}

func TestRunTitleOverride(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.runner.Run(context.Background(), Request{
		JobID:    "j",
		Title:    "Custom &amp; title",
		Text:     "Whole text is the body.",
		Category: "minecraft",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Custom & title", res.Title)
	assert.Equal(t, []string{"Custom & title", "Whole text is the body."}, f.synth.texts)
}
