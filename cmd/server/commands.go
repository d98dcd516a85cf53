package main

import (
	"fmt"

	"feed-ai-go/internal/repository"
	"feed-ai-go/internal/service"
	"feed-ai-go/pkg/cache"
	"feed-ai-go/pkg/database"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/token"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := bootstrap(); err != nil {
			return err
		}
		defer log.Sync()

		if err := database.Migrate(database.DB, models...); err != nil {
			return err
		}
		log.Info("数据库迁移完成")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the configured admin account when it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		// 创建管理员不涉及登出，黑名单用不到 Redis
		userService := service.NewUserService(
			repository.NewUserRepository(database.DB),
			token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours),
			cache.NewMemoryStore(0, 0),
			cfg.Admin.Email,
		)
		admin, created, err := userService.EnsureSeedAdmin(cmd.Context(), cfg.Admin)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			log.Infof("管理员 %s 已创建", admin.Email)
		} else {
			log.Infof("管理员 %s 已存在，跳过", admin.Email)
		}
		return nil
	},
}
