package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/magland/runpack/internal/envutil"
	"github.com/magland/runpack/internal/logger"
)

// Config holds the database connection parameters, loaded from the
// environment.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		Host:     envutil.String("DATABASE_HOST", "localhost", log),
		Port:     envutil.String("DATABASE_PORT", "5432", log),
		User:     envutil.String("DATABASE_USER", "postgres", log),
		Password: envutil.String("DATABASE_PASSWORD", "", log),
		Name:     envutil.String("DATABASE_NAME", "runpack", log),
		SSLMode:  envutil.String("DATABASE_SSLMODE", "disable", log),
	}
}

func (c Config) dsn() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Open connects to Postgres and runs AutoMigrate for the Jobs and Runners
// relations.
func Open(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		stdLogger(),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	if log != nil {
		log.Info("connected to postgres", "host", cfg.Host, "db", cfg.Name)
	}
	return db, nil
}

// AutoMigrate creates/updates the Jobs and Runners tables and their
// indexes. Split out from Open so tests can call it against an in-memory
// sqlite handle.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Job{}, &Runner{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func stdLogger() *log.Logger {
	return log.New(os.Stdout, "\r\n", log.LstdFlags)
}
