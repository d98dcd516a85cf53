package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/handler"
	"feed-ai-go/internal/pipeline"
	"feed-ai-go/internal/repository"
	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/cache"
	"feed-ai-go/pkg/database"
	"feed-ai-go/pkg/kafka"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/newsapi"
	"feed-ai-go/pkg/sentiment"
	"feed-ai-go/pkg/storage"
	"feed-ai-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. 初始化配置、日志与数据库
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(database.DB, models...); err != nil {
			return err
		}
	}

	// 2. 缓存：启用 Redis 时用于黑名单与新闻缓存，否则使用进程内缓存
	store, err := newCacheStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	// 3. 情感模型只加载一次，所有请求共享
	m, err := sentiment.Load(cfg.Sentiment.ModelPath)
	if err != nil {
		return fmt.Errorf("load sentiment model: %w", err)
	}
	log.Infof("情感模型加载成功: %s (%d labels, %d terms)", cfg.Sentiment.ModelPath, len(m.Labels), len(m.Vocabulary))
	processor := pipeline.NewProcessor(pipeline.NewCleaner(m.StopWords), m)

	// 4. 可选的外部依赖
	var archiver storage.Archiver
	if cfg.MinIO.Enabled {
		archiver, err = storage.NewMinIOArchiver(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
	}
	var publisher kafka.Publisher
	if cfg.Kafka.Enabled {
		publisher = kafka.NewProducer(cfg.Kafka)
		defer publisher.Close()
	}

	// 5. 初始化 Repository 与 Service
	userRepo := repository.NewUserRepository(database.DB)
	feedbackRepo := repository.NewFeedbackRepository(database.DB, cfg.Ingest.InsertBatch)

	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	newsClient := newsapi.NewCachedClient(newsapi.NewClient(cfg.NewsAPI), store, cfg.NewsAPI.CacheTTL)

	userService := service.NewUserService(userRepo, jwtManager, store, cfg.Admin.Email)
	feedbackService := service.NewFeedbackService(feedbackRepo, processor, archiver, publisher, cfg.Ingest)
	newsService := service.NewNewsService(feedbackRepo, newsClient, processor, publisher, cfg.NewsAPI)

	// 6. 种子管理员
	if _, _, err := userService.EnsureSeedAdmin(ctx, cfg.Admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterDeps{
		JWTManager:      jwtManager,
		UserService:     userService,
		FeedbackService: feedbackService,
		NewsService:     newsService,
		MaxUploadBytes:  cfg.Ingest.MaxUploadBytes,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("接收到停机信号，正在关闭服务...")
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务监听失败: %w", err)
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
	}

	if database.RDB != nil {
		_ = database.RDB.Close()
	}
	log.Info("服务已优雅关闭")
	return nil
}

func newCacheStore(ctx context.Context, cfg config.RedisConfig) (cache.Store, error) {
	if !cfg.Enabled {
		log.Info("Redis 未启用，使用进程内缓存")
		return cache.NewMemoryStore(10*time.Minute, time.Minute), nil
	}
	if err := database.InitRedis(ctx, cfg); err != nil {
		return nil, err
	}
	return cache.NewRedisStore(database.RDB, "feedai:"), nil
}
