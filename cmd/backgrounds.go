package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"storyreel/core/background"
)

var backgroundFetch string

var backgroundsCmd = &cobra.Command{
	Use:   "backgrounds",
	Short: "背景视频库管理",
	Long:  `List background categories and their clip counts, or download a new clip for a category.`,
	Example: `  storyreel backgrounds
  storyreel backgrounds --fetch minecraft`,
	Run: func(cmd *cobra.Command, args []string) {
		tools, err := buildToolchain(cfg)
		if err != nil {
			log.Fatalf("初始化失败: %v", err)
		}

		if backgroundFetch != "" {
			if err := background.ValidateCategory(backgroundFetch); err != nil {
				log.Fatal(err)
			}
			if tools.fetcher == nil {
				log.Fatal("YTDLP_PATH is not set")
			}
			path, err := tools.fetcher.Fetch(cmd.Context(), backgroundFetch, tools.library.CategoryDir(backgroundFetch))
			if err != nil {
				log.Fatalf("下载失败: %v", err)
			}
			fmt.Println(path)
			return
		}

		categories, err := tools.library.Categories()
		if err != nil {
			log.Fatalf("读取背景库失败: %v", err)
		}
		fmt.Printf("背景库: %s\n", tools.library.Root())
		if len(categories) == 0 {
			fmt.Println("  (empty)")
		}
		for _, c := range categories {
			fmt.Printf("  %-20s %d clips\n", c.Name, c.Clips)
		}
	},
}

func init() {
	rootCmd.AddCommand(backgroundsCmd)
	backgroundsCmd.Flags().StringVar(&backgroundFetch, "fetch", "", "download one clip for this category")
}
