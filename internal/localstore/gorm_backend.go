package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bookworm-storefront/pkg/migrate"
)

// ProfileEntry is one persisted value for a device profile.
type ProfileEntry struct {
	ProfileID string    `gorm:"column:profile_id;primaryKey;size:128"`
	EntryKey  string    `gorm:"column:entry_key;primaryKey;size:128"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (ProfileEntry) TableName() string { return "profile_entries" }

// GormBackend stores entries in the profile database (sqlite on device, postgres
// when profiles are hosted).
type GormBackend struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &GormBackend{db: db, now: time.Now}, nil
}

// Migrate applies the profile database migrations for the connection's dialect.
func (b *GormBackend) Migrate(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if _, err := migrate.Up(ctx, sqlDB, b.db.Dialector.Name()); err != nil {
		return err
	}
	return nil
}

func (b *GormBackend) Get(ctx context.Context, profileID, key string) (string, error) {
	var entry ProfileEntry
	err := b.db.WithContext(ctx).
		Where("profile_id = ? AND entry_key = ?", profileID, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (b *GormBackend) Set(ctx context.Context, profileID, key, value string) error {
	entry := ProfileEntry{
		ProfileID: profileID,
		EntryKey:  key,
		Value:     value,
		UpdatedAt: b.now().UTC(),
	}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (b *GormBackend) Delete(ctx context.Context, profileID, key string) error {
	return b.db.WithContext(ctx).
		Where("profile_id = ? AND entry_key = ?", profileID, key).
		Delete(&ProfileEntry{}).Error
}
