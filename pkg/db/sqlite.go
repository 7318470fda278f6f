package db

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type SQLiteStore struct {
	db *gorm.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(200 * time.Millisecond),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("db: error while opening sqlite database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Message{}, &ScheduledMessage{}); err != nil {
		return nil, fmt.Errorf("db: error while migrating sqlite database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg Message) error {
	msg = prepareMessage(msg)
	return s.db.WithContext(ctx).Create(&msg).Error
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, bot string, channelID snowflake.ID, limit int) ([]Message, error) {
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("bot = ? AND channel_id = ?", bot, int64(channelID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return newestFirst(messages), nil
}

func (s *SQLiteStore) SaveScheduled(ctx context.Context, msg ScheduledMessage) error {
	msg = prepareScheduled(msg)
	return s.db.WithContext(ctx).Create(&msg).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
