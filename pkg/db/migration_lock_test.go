package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLockDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(sqliteDSN(t)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return gdb
}

func lockRows(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&migrationLockRecord{}).Count(&n).Error)
	return n
}

func TestMigrationLocker_NilDB(t *testing.T) {
	called := false
	err := NewMigrationLocker(nil).WithLock(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTableMigrationLock_ReleasesAfterRun(t *testing.T) {
	gdb := setupLockDB(t)
	locker := NewMigrationLocker(gdb)

	called := false
	require.NoError(t, locker.WithLock(context.Background(), func() error {
		called = true
		assert.Equal(t, int64(1), lockRows(t, gdb))
		return nil
	}))
	assert.True(t, called)
	assert.Zero(t, lockRows(t, gdb))
}

func TestTableMigrationLock_ReleasesAfterError(t *testing.T) {
	gdb := setupLockDB(t)
	boom := errors.New("migration failed")

	err := NewMigrationLocker(gdb).WithLock(context.Background(), func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, lockRows(t, gdb))
}

func TestTableMigrationLock_Serializes(t *testing.T) {
	gdb := setupLockDB(t)
	locker := &tableMigrationLock{db: gdb, retries: 100, retryInterval: 5 * time.Millisecond, staleAge: time.Minute}
	require.NoError(t, gdb.AutoMigrate(&migrationLockRecord{}))

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, locker.WithLock(context.Background(), func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestTableMigrationLock_TakesOverStaleLock(t *testing.T) {
	gdb := setupLockDB(t)
	locker := NewMigrationLocker(gdb)
	stale := migrationLockRecord{ID: migrationLockID, LockedAt: time.Now().UTC().Add(-time.Hour), LockedBy: "crashed"}
	require.NoError(t, gdb.Create(&stale).Error)

	called := false
	require.NoError(t, locker.WithLock(context.Background(), func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestTableMigrationLock_ContextCanceled(t *testing.T) {
	gdb := setupLockDB(t)
	locker := NewMigrationLocker(gdb)

	require.NoError(t, locker.WithLock(context.Background(), func() error {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := locker.WithLock(ctx, func() error {
			t.Error("lock acquired twice")
			return nil
		})
		assert.Error(t, err)
		return nil
	}))
}
