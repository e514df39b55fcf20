package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := model.InitDB(cfg.Database, cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrated", zap.String("driver", cfg.Database.Driver))
		return model.Close(db)
	},
}
