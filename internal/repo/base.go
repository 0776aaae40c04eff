// Package repo holds the gorm helpers shared by SQL-backed stores.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base wraps the gorm connection a repository runs against.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Upsert inserts value or, when conflictColumn already holds the same key,
// overwrites updateColumns.
func (b Base) Upsert(ctx context.Context, value any, conflictColumn string, updateColumns ...string) error {
	return b.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: conflictColumn}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(value).
		Error
}

// Ping checks the underlying database connection.
func (b Base) Ping(ctx context.Context) error {
	if b.db == nil {
		return errors.New("repo: nil database")
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
