// Package sqlite stores users, tasks and the activity trail in a SQLite file
// through gorm.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRow struct {
	ID           string    `gorm:"primarykey;size:36"`
	Username     string    `gorm:"size:64;not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false"`
}

func (userRow) TableName() string { return "users" }

type taskRow struct {
	ID          string    `gorm:"primarykey;size:36"`
	UserID      string    `gorm:"size:36;not null;index:idx_tasks_owner_created,priority:1"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Completed   bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false;index:idx_tasks_owner_created,priority:2"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (taskRow) TableName() string { return "tasks" }

type activityRow struct {
	ID         uint      `gorm:"primarykey;autoIncrement"`
	TaskID     string    `gorm:"size:36;not null;index"`
	OwnerID    string    `gorm:"size:36;not null"`
	Action     string    `gorm:"size:16;not null"`
	Completed  bool      `gorm:"not null"`
	OccurredAt time.Time `gorm:"not null"`
}

func (activityRow) TableName() string { return "task_activity" }

// DB is an open SQLite database with the schema migrated.
type DB struct {
	gorm *gorm.DB
}

// Open connects to the database at path and runs migrations.
func Open(path string, debug bool) (*DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	if err := db.AutoMigrate(&userRow{}, &taskRow{}, &activityRow{}); err != nil {
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}

	return &DB{gorm: db}, nil
}

// Ping verifies the underlying connection.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (d *DB) Close(context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
