package db

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes schema changes across processes sharing one
// database.
type MigrationLocker interface {
	// WithLock executes fn while holding the migration lock.
	// It blocks until the lock is acquired, then releases it after fn returns.
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker creates a MigrationLocker appropriate for the database
// dialect. PostgreSQL uses advisory locks; other databases use a table-based
// fallback whose table is created immediately.
func NewMigrationLocker(gdb *gorm.DB) MigrationLocker {
	if gdb == nil {
		return noopMigrationLock{}
	}
	if gdb.Dialector.Name() == "postgres" {
		return &pgAdvisoryLock{
			db:     gdb,
			lockID: int64(crc32.ChecksumIEEE([]byte("adomirror-migration"))),
		}
	}
	_ = gdb.AutoMigrate(&migrationLockRecord{})
	return &tableMigrationLock{
		db:            gdb,
		retries:       30,
		retryInterval: time.Second,
		staleAge:      5 * time.Minute,
	}
}

type noopMigrationLock struct{}

func (noopMigrationLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

type pgAdvisoryLock struct {
	db     *gorm.DB
	lockID int64
}

func (l *pgAdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	// Advisory locks belong to a session, so lock and unlock on one connection.
	return l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", l.lockID).Error; err != nil {
			return fmt.Errorf("acquire migration advisory lock: %w", err)
		}
		defer conn.Exec("SELECT pg_advisory_unlock(?)", l.lockID)
		return fn()
	})
}

type migrationLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableMigrationLock holds the lock by owning the single row of
// migration_lock. Rows older than staleAge are taken over, so a crashed holder
// does not block forever.
type tableMigrationLock struct {
	db            *gorm.DB
	retries       int
	retryInterval time.Duration
	staleAge      time.Duration
}

const migrationLockID = "migration"

func (l *tableMigrationLock) WithLock(ctx context.Context, fn func() error) error {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	var lastErr error
	acquired := false
	for i := 0; i < l.retries; i++ {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", migrationLockID, time.Now().UTC().Add(-l.staleAge)).
			Delete(&migrationLockRecord{})

		row := migrationLockRecord{ID: migrationLockID, LockedAt: time.Now().UTC(), LockedBy: hostname}
		if lastErr = l.db.WithContext(ctx).Create(&row).Error; lastErr == nil {
			acquired = true
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	if !acquired {
		if lastErr == nil {
			lastErr = errors.New("lock held")
		}
		return fmt.Errorf("acquire migration lock after %d attempts: %w", l.retries, lastErr)
	}

	defer l.db.Where("id = ?", migrationLockID).Delete(&migrationLockRecord{})
	return fn()
}
