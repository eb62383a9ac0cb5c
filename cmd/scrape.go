package cmd

import (
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/cobra"

	"storyreel/core/scraper"
)

var (
	scrapeCount int
	scrapeSort  string
)

func sortNames() []string {
	return scraper.Sorts
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <reddit-url>",
	Short: "抓取 Reddit 帖子",
	Long:  `Fetch text posts from a subreddit or a single post URL and print them as JSON.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := scraper.NewClient(cfg.RedditUserAgent)
		posts, err := client.Scrape(cmd.Context(), args[0], scrapeCount, scrapeSort)
		if err != nil {
			log.Fatalf("抓取失败: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(posts); err != nil {
			log.Fatalf("输出失败: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().IntVarP(&scrapeCount, "count", "n", 5, "number of posts")
	scrapeCmd.Flags().StringVarP(&scrapeSort, "sort", "s", "hot", "listing order")
}
