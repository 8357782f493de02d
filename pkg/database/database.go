package database

import (
	"exam_engine_backend/internal/config"
	"exam_engine_backend/internal/model"
	applog "exam_engine_backend/pkg/logger"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	}
	return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
}

// InitDB 建立连接并等待数据库就绪，migrate 为 true 时执行表结构迁移
func InitDB(cfg *config.DatabaseConfig, debug, migrate bool) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := ping(db); err != nil {
		return nil, err
	}
	applog.Log.Info("Database connection established", zap.String("driver", cfg.Driver))

	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		applog.Log.Info("Database migration completed")
	}

	return db, nil
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB")
	}

	for i := 1; ; i++ {
		err = sqlDB.Ping()
		if err == nil {
			return nil
		}
		if i == pingAttempts {
			return errors.Wrapf(err, "ping database after %d attempts", i)
		}
		applog.Log.Warn("数据库未就绪，稍后重试", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(pingBackoff)
	}
}

// Migrate 付费来源表和题库表由其他服务维护，这里迁移只保证本地开发环境可用
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Exam{},
		&model.ExamSlot{},
		&model.ExamRegistration{},
		&model.ExamAttempt{},
		&model.ExamPaymentAttempt{},
		&model.CoursePayment{},
		&model.ExamPayment{},
		&model.Enrollment{},
		&model.Question{},
	)
	return errors.Wrap(err, "auto migrate")
}
