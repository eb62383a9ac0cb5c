package cmd

import (
	"fmt"

	"storyreel/config"
	"storyreel/core/background"
	"storyreel/core/caption"
	"storyreel/core/media"
	"storyreel/core/pipeline"
	"storyreel/core/scraper"
	"storyreel/core/speech"
	"storyreel/core/video"
	"storyreel/logger"
)

// toolchain is the set of components built from config that every
// rendering command shares.
type toolchain struct {
	ffmpeg      *media.FFmpeg
	synthesizer *speech.Synthesizer
	library     *background.Library
	fetcher     *background.YTDLP
	selector    *background.Selector
	aligner     *caption.Aligner
	compositor  *video.Compositor
	scraper     *scraper.Client
}

// layoutFor applies the configurable parts of the layout.
func layoutFor(cfg *config.Config) video.Layout {
	layout := video.DefaultLayout()
	if cfg.CaptionFont != "" {
		layout.CaptionFont = cfg.CaptionFont
	}
	if cfg.TitleFont != "" {
		layout.TitleFont = cfg.TitleFont
	}
	layout.IntroImage = cfg.IntroImage
	return layout
}

func buildToolchain(cfg *config.Config) (*toolchain, error) {
	catalog, err := background.LoadCatalog(cfg.BackgroundCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load background catalog: %w", err)
	}

	log := logger.L()
	ff := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	t := &toolchain{
		ffmpeg:      ff,
		synthesizer: speech.NewSynthesizer(speech.NewEdgeTTS(cfg.EdgeTTSPath), ff, log.Named("speech")),
		library:     background.NewLibrary(cfg.BackgroundDir, nil),
		compositor:  video.NewCompositor(ff, ff, layoutFor(cfg), nil, log.Named("video")),
		scraper:     scraper.NewClient(cfg.RedditUserAgent),
	}
	if cfg.YTDLPPath != "" {
		t.fetcher = background.NewYTDLP(cfg.YTDLPPath, catalog, nil)
		t.selector = background.NewSelector(t.library, t.fetcher)
	} else {
		t.selector = background.NewSelector(t.library, nil)
	}
	if cfg.WhisperPath != "" && cfg.WhisperPath != "none" {
		t.aligner = caption.NewAligner(caption.NewWhisper(cfg.WhisperPath, cfg.WhisperModel))
	}
	return t, nil
}

// runner builds the pipeline. Optional components are only set when
// present so the interfaces stay nil.
func (t *toolchain) runner(cfg *config.Config) *pipeline.Runner {
	deps := pipeline.Deps{
		Synthesizer: t.synthesizer,
		Audio:       t.ffmpeg,
		Backgrounds: t.selector,
		Compositor:  t.compositor,
		Scraper:     t.scraper,
		WorkDir:     cfg.WorkDir,
		OutputDir:   cfg.OutputDir,
		IntroImage:  cfg.IntroImage,
		Logger:      logger.L().Named("pipeline"),
	}
	if t.aligner != nil {
		deps.Aligner = t.aligner
	}
	return pipeline.NewRunner(deps)
}
