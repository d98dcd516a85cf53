// Package main 是应用程序的入口点。
package main

import (
	"fmt"
	"os"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/model"
	"feed-ai-go/pkg/database"
	"feed-ai-go/pkg/log"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "feedai",
	Short: "Feed AI classifies customer feedback and news articles by sentiment",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	// 不带子命令时直接启动服务
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./configs/config.yaml", "Path to config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// models 是需要建表的全部实体。
var models = []interface{}{&model.User{}, &model.FeedbackResult{}, &model.BatchTag{}}

// bootstrap 加载配置、初始化日志并连接数据库，所有子命令共用。
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	config.Conf = cfg

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	log.Info("日志记录器初始化成功")

	database.InitDB(cfg.Database)
	return &config.Conf, nil
}
