package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/soloking1412/Unicorn-Launchpad/internal/models"
)

type Database struct {
	Host            string
	Port            uint16
	User            string
	Password        string
	Name            string
	SslMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("Database.Host", "127.0.0.1")
	v.SetDefault("Database.Port", "5432")
	v.SetDefault("Database.User", "postgres")
	v.SetDefault("Database.Password", "postgres")
	v.SetDefault("Database.Name", "unicorn")
	v.SetDefault("Database.SslMode", "disable")
	v.SetDefault("Database.TimeZone", "UTC")
	v.SetDefault("Database.MaxIdleConns", 10)
	v.SetDefault("Database.MaxOpenConns", 50)
	v.SetDefault("Database.ConnMaxLifetime", "1h")
	v.SetDefault("Database.MigrationsDir", "migrations")
}

func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SslMode, d.TimeZone)
}

// OpenDB connects to postgres and auto-migrates the snapshot models.
func OpenDB(d Database) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(d.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(d.MaxIdleConns)
	sqlDB.SetMaxOpenConns(d.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(d.ConnMaxLifetime)

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logrus.WithFields(logrus.Fields{"host": d.Host, "name": d.Name}).Info("Connected to database")
	return db, nil
}
