package localstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/farmcart-sync/internal/repo"
)

// LocalEntry is one persisted document in the local_entries table.
type LocalEntry struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (LocalEntry) TableName() string { return "local_entries" }

// GormStore persists documents through gorm (sqlite on device, postgres on shared setups).
type GormStore struct {
	repo.Base
	now func() time.Time
}

// NewGormStore constructs a store bound to the provided gorm DB. The
// local_entries table is created by pkg/migrate.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{Base: repo.NewBase(db), now: time.Now}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry LocalEntry
	err := s.DB(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	entry := LocalEntry{Key: key, Value: string(value), UpdatedAt: s.now().UTC()}
	return s.Upsert(ctx, &entry, "key", "value", "updated_at")
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	return s.DB(ctx).Where("key = ?", key).Delete(&LocalEntry{}).Error
}
