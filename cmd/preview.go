package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"storyreel/core/media"
	"storyreel/core/speech"
	"storyreel/logger"
	"storyreel/model"
)

// PreviewText is narrated by the preview command.
const PreviewText = "This is a sample of my voice."

var (
	previewVoice  string
	previewOutput string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "试听配音",
	Long:  `Synthesize a short sample with one of the narration voices.`,
	Run: func(cmd *cobra.Command, args []string) {
		profile := model.ParseVoiceProfile(previewVoice)
		out := previewOutput
		if out == "" {
			out = fmt.Sprintf("preview_%s.mp3", profile)
		}

		ff := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
		synth := speech.NewSynthesizer(speech.NewEdgeTTS(cfg.EdgeTTSPath), ff, logger.L().Named("speech"))
		track, err := synth.Synthesize(cmd.Context(), PreviewText, profile, out)
		if err != nil {
			log.Fatalf("试听生成失败: %v", err)
		}
		fmt.Printf("%s (%s %s, %.1fs)\n", track.Path, track.Voice.Voice, track.Voice.Rate, track.Duration)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVarP(&previewVoice, "voice-type", "v", string(model.DefaultVoice), "voice to preview")
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "output mp3 (default preview_<voice>.mp3)")
}
