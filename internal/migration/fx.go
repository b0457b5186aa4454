package migration

import (
	"github.com/smallbiznis/redress/internal/config"
	"github.com/smallbiznis/redress/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			log.Named("migrations").Info("schema migration disabled")
			return nil
		}

		if !db.IsPostgres(conn) {
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
