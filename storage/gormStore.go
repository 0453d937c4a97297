package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/savefood/backoffice_core/appctx"
	"github.com/savefood/backoffice_core/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists drafts to the drafts table. It is the durable shared
// backend for the draft-sync service; the draft-cleanup tool purges expired
// rows since the database has no native TTL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row models.DraftRow
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(row.Payload), true, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	row := models.DraftRow{
		StorageKey: key,
		Payload:    string(value),
		SavedAt:    time.Now(),
	}
	if owner, ok := ctxOwner(ctx); ok {
		row.OwnerId = owner
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("storage_key IN ?", keys).Delete(&models.DraftRow{}).Error
}

func (s *GormStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&models.DraftRow{}).
		Where("storage_key LIKE ?", escapeLike(prefix)+"%").
		Pluck("storage_key", &keys).Error
	return keys, err
}

func ctxOwner(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyUserId)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
