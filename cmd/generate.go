package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storyreel/core/pipeline"
	"storyreel/logger"
	"storyreel/model"
)

// generateFlags are the inputs of one CLI job.
type generateFlags struct {
	jobID      string
	textFile   string
	text       string
	redditURL  string
	numPosts   int
	sort       string
	voice      string
	background string
	outputPath string
	title      string
}

var genFlags generateFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成一个视频",
	Long: `Render one video and report progress on stdout as PROGRESS:<n> lines.
On failure a single ERROR:<message> line is printed and the exit status is 1.`,
	Example: `  storyreel generate --text-file story.txt --voice-type male --background-type minecraft
  storyreel generate --reddit-url https://www.reddit.com/r/tifu --sort top --background-type subway`,
	Run: func(cmd *cobra.Command, args []string) {
		sink := pipeline.NewLineSink(os.Stdout)

		req, err := genFlags.request()
		if err != nil {
			sink.Report(pipeline.Progress{Err: err})
			os.Exit(1)
		}

		tools, err := buildToolchain(cfg)
		if err != nil {
			sink.Report(pipeline.Progress{Err: err})
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// the runner reports the terminal ERROR line itself
		res, err := tools.runner(cfg).Run(ctx, req, sink)
		if err != nil {
			logger.Sync()
			os.Exit(1)
		}
		logger.Info("video written",
			logger.String("jobId", req.JobID),
			logger.String("output", res.OutputPath),
			logger.Float64("duration", res.Duration))
	},
}

// request validates the flags and turns them into a pipeline request.
func (f *generateFlags) request() (pipeline.Request, error) {
	sources := 0
	for _, s := range []string{f.textFile, f.text, f.redditURL} {
		if strings.TrimSpace(s) != "" {
			sources++
		}
	}
	if sources != 1 {
		return pipeline.Request{}, &model.InputError{Field: "input", Reason: "use exactly one of --text-file, --text or --reddit-url"}
	}

	text := f.text
	if f.textFile != "" {
		data, err := os.ReadFile(f.textFile)
		if err != nil {
			return pipeline.Request{}, &model.InputError{Field: "text file", Reason: err.Error()}
		}
		text = string(data)
	}

	jobID := strings.TrimSpace(f.jobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return pipeline.Request{
		JobID:      jobID,
		Text:       text,
		RedditURL:  strings.TrimSpace(f.redditURL),
		NumPosts:   f.numPosts,
		Sort:       f.sort,
		Title:      f.title,
		Voice:      model.ParseVoiceProfile(f.voice),
		Category:   f.background,
		OutputPath: f.outputPath,
	}, nil
}

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.StringVar(&genFlags.jobID, "job-id", "", "job identifier (generated when empty)")
	flags.StringVar(&genFlags.textFile, "text-file", "", "file holding the story; its first line is the title")
	flags.StringVar(&genFlags.text, "text", "", "story text; its first line is the title")
	flags.StringVar(&genFlags.redditURL, "reddit-url", "", "subreddit or post URL to narrate")
	flags.IntVar(&genFlags.numPosts, "num-posts", 1, "posts to scrape from a subreddit")
	flags.StringVar(&genFlags.sort, "sort", "hot", fmt.Sprintf("subreddit listing order (%s)", strings.Join(sortNames(), ", ")))
	flags.StringVar(&genFlags.voice, "voice-type", string(model.DefaultVoice), "narration voice")
	flags.StringVar(&genFlags.background, "background-type", "minecraft", "background category folder")
	flags.StringVar(&genFlags.outputPath, "output-path", "", "where to write the video (defaults to OUTPUT_DIR)")
	flags.StringVar(&genFlags.title, "title", "", "title overriding the first line of the text")
}
