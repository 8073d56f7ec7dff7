package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"autoformat-service/backend/internal/persist"
)

// DocumentSnapshot 只追加不修改；同一 slot 取 revision 最大的一行
type DocumentSnapshot struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Slot      string `gorm:"type:varchar(128);not null;uniqueIndex:idx_slot_revision,priority:1"`
	Revision  uint64 `gorm:"not null;uniqueIndex:idx_slot_revision,priority:2"`
	Content   []byte `gorm:"type:mediumblob;not null"`
	CreatedAt time.Time
}

func (DocumentSnapshot) TableName() string { return "document_snapshots" }

// 并发写同一个 revision 时重试的次数
const maxRevisionRetry = 3

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, slot string, data []byte) error {
	var err error
	for i := 0; i < maxRevisionRetry; i++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last uint64
			if err := tx.Model(&DocumentSnapshot{}).
				Where("slot = ?", slot).
				Select("COALESCE(MAX(revision), 0)").
				Scan(&last).Error; err != nil {
				return err
			}
			return tx.Create(&DocumentSnapshot{Slot: slot, Revision: last + 1, Content: data}).Error
		})
		if !isDuplicateKey(err) {
			return err
		}
		// 别的写者抢先占了这个 revision，重新读一次 MAX 再试
	}
	return fmt.Errorf("save snapshot %s: %w", slot, err)
}

func (s *GormStore) Load(ctx context.Context, slot string) ([]byte, error) {
	var snap DocumentSnapshot
	err := s.db.WithContext(ctx).
		Where("slot = ?", slot).
		Order("revision DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persist.ErrSlotEmpty
		}
		return nil, err
	}
	return snap.Content, nil
}

// Revisions 某个 slot 已经写过多少个版本
func (s *GormStore) Revisions(ctx context.Context, slot string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&DocumentSnapshot{}).Where("slot = ?", slot).Count(&n).Error
	return n, err
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

var _ persist.Store = (*GormStore)(nil)
