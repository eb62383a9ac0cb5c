package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"storyreel/storage"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的视频，支持列出文件、查看统计信息、删除目录等功能。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)
		store, err := storage.NewVideoStore(cfg)
		if err != nil {
			log.Fatalf("创建MinIO客户端失败: %v", err)
		}
		ctx := cmd.Context()

		switch {
		case minioDelete:
			if minioPrefix == "" || minioPrefix == storage.VideoPrefix {
				log.Fatal("删除操作需要指定具体的目录前缀")
			}
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				log.Fatalf("删除目录失败: %v", err)
			}
			fmt.Printf("已删除 %d 个对象\n", n)

		case minioStats:
			stats, err := store.Stats(ctx, minioPrefix)
			if err != nil {
				log.Fatalf("获取存储桶统计信息失败: %v", err)
			}
			fmt.Printf("存储桶: %s\n", stats.Bucket)
			fmt.Printf("对象总数: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			for ext, n := range stats.ByExtension {
				fmt.Printf("  .%s: %d\n", ext, n)
			}

		default:
			objects, err := store.List(ctx, minioPrefix)
			if err != nil {
				log.Fatalf("列出文件失败: %v", err)
			}
			for _, o := range objects {
				fmt.Printf("%-60s %10s  %s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("\n共 %d 个文件\n", len(objects))
		}
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.VideoPrefix, "按前缀过滤文件或指定要操作的目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 列出所有视频
  storyreel minio

  # 显示存储桶统计信息
  storyreel minio -s

  # 删除某个任务的视频
  storyreel minio -d -p "videos/<job-id>/"`
}
