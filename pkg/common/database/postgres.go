package database

import (
	"sync"

	"github.com/synaptica-ai/risk-gateway/pkg/common/config"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db     *gorm.DB
	dbErr  error
	dbOnce sync.Once
)

func GetPostgres(cfg *config.Config) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if dbErr != nil {
			logger.Log.WithError(dbErr).Error("Failed to connect to PostgreSQL")
			return
		}

		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.PostgresHost,
			"db":   cfg.PostgresDB,
		}).Info("Connected to PostgreSQL")
	})

	return db, dbErr
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
