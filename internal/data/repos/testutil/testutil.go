package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fundtracer/fundtracer-backend/internal/data/db"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	sqliteSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database. Each call gets a fresh in-memory SQLite
// database unless TEST_POSTGRES_DSN points at a Postgres instance, in which
// case one shared connection pool is reused and callers should isolate with Tx.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		return postgresDB(tb, dsn)
	}
	return SQLite(tb)
}

// Postgres reports whether DB is backed by Postgres.
func Postgres() bool {
	return os.Getenv("TEST_POSTGRES_DSN") != ""
}

func SQLite(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:ledgertest%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	gdb, err := db.OpenSQLite(dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	gdb.Logger = gormLogger.Default.LogMode(gormLogger.Silent)
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// SQLiteConcurrent returns a file-backed SQLite database in WAL mode with a
// pool of conns connections, so transactions genuinely interleave.
func SQLiteConcurrent(tb testing.TB, conns int) *gorm.DB {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	gdb, err := db.OpenSQLite(dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	gdb.Logger = gormLogger.Default.LogMode(gormLogger.Silent)
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sqlite pool: %v", err)
	}
	if conns < 2 {
		conns = 2
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func postgresDB(tb testing.TB, dsn string) *gorm.DB {
	tb.Helper()
	pgOnce.Do(func() {
		var err error
		pgDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			pgErr = err
			return
		}
		if err := db.AutoMigrateAll(pgDB); err != nil {
			pgErr = err
			return
		}
		pgErr = db.EnsureLedgerConstraints(pgDB)
	})
	if pgErr != nil {
		tb.Fatalf("failed to init test db: %v", pgErr)
	}
	return pgDB
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
