package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storyreel/cache"
	"storyreel/config"
	"storyreel/core/auth"
	"storyreel/core/background"
	"storyreel/core/jobs"
	"storyreel/db"
	"storyreel/logger"
	"storyreel/model"
	"storyreel/repository"
	"storyreel/server"
	"storyreel/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动视频生成服务",
	Long:  `Start the HTTP job service: queue videos, follow their progress over websockets and share the results.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServer(cfg); err != nil {
			logger.Fatal("server stopped with error", logger.ErrorField(err))
		}
	},
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools, err := buildToolchain(cfg)
	if err != nil {
		return err
	}

	// Redis 保存任务状态，不可用时退回内存
	var store jobs.StatusStore
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, job status kept in memory", logger.ErrorField(err))
		store = jobs.NewMemoryStore()
	} else {
		defer cache.CloseRedis()
		store = cache.NewJobCache(cache.RedisClient, time.Duration(cfg.JobStatusTTL)*time.Minute)
		logger.Info("Successfully connected to Redis", logger.String("addr", cfg.RedisAddr()))
	}

	var videos repository.VideoRepository
	if cfg.DBHost != "" {
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(&model.Video{}); err != nil {
			return err
		}
		videos = repository.NewVideoRepository(db.GormDB)
	}

	opts := server.Options{
		Library:   tools.library,
		Scraper:   tools.scraper,
		Videos:    videos,
		Keys:      auth.NewKeyChecker(cfg.APIKeyHash),
		OutputDir: cfg.OutputDir,
	}

	jobOpts := jobs.Options{
		Workers: cfg.WorkerCount,
		Store:   store,
		Videos:  videos,
		Logger:  logger.L().Named("jobs"),
	}
	if cfg.MinioEndpoint != "" {
		videoStore, err := storage.NewVideoStore(cfg)
		if err != nil {
			return err
		}
		if err := videoStore.EnsureBucket(ctx); err != nil {
			return err
		}
		jobOpts.Uploader = videoStore
		opts.Presigner = videoStore
	}
	if cfg.ShareTokenSecret != "" {
		shares, err := auth.NewShareTokens(cfg.ShareTokenSecret, time.Duration(cfg.ShareTokenTTLMinutes)*time.Minute)
		if err != nil {
			return err
		}
		opts.Shares = shares
	}

	hub := jobs.NewHub()
	go hub.Run()
	defer hub.Stop()
	jobOpts.Hub = hub
	opts.Hub = hub

	manager := jobs.NewManager(tools.runner(cfg), jobOpts)
	manager.Start(ctx)
	opts.Jobs = manager

	handler := server.NewAPIHandler(opts)
	go func() {
		if err := background.Watch(ctx, cfg.BackgroundDir, time.Second, handler.InvalidateBackgrounds); err != nil {
			logger.Warn("background library watcher stopped", logger.ErrorField(err))
		}
	}()

	serveErr := server.Start(ctx, cfg.ServerAddr, handler)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs still running at shutdown", logger.ErrorField(err))
	}
	return serveErr
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
