package cmd

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storyreel/cache"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "查看任务状态",
	Long:  `Print a job's status from Redis, or the most recent jobs when no id is given.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer cache.CloseRedis()
		jobCache := cache.NewJobCache(cache.RedisClient, time.Duration(cfg.JobStatusTTL)*time.Minute)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(args) == 1 {
			status, err := jobCache.Get(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("查询任务失败: %v", err)
			}
			enc.Encode(status)
			return
		}
		statuses, err := jobCache.Recent(cmd.Context(), jobsLimit)
		if err != nil {
			log.Fatalf("查询任务失败: %v", err)
		}
		enc.Encode(statuses)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "number of recent jobs")
}
