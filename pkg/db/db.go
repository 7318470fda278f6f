package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ai-zoo-bot/pkg/config"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// Message is one chat message seen or sent by a bot.
type Message struct {
	ID        string       `db:"id" gorm:"primaryKey"`
	Bot       string       `db:"bot" gorm:"index:idx_messages_bot_channel,priority:1;not null"`
	ChannelID snowflake.ID `db:"channel_id" gorm:"index:idx_messages_bot_channel,priority:2;not null"`
	Author    string       `db:"author" gorm:"not null"`
	Content   string       `db:"content" gorm:"not null"`
	IsSelf    bool         `db:"is_self" gorm:"not null"`
	CreatedAt time.Time    `db:"created_at" gorm:"index;not null"`
}

// ScheduledMessage records a greeting posted by the scheduled sender.
type ScheduledMessage struct {
	ID        string       `db:"id" gorm:"primaryKey"`
	ChannelID snowflake.ID `db:"channel_id" gorm:"not null"`
	Content   string       `db:"content" gorm:"not null"`
	SentAt    time.Time    `db:"sent_at" gorm:"not null"`
}

type Store interface {
	SaveMessage(ctx context.Context, msg Message) error
	// RecentMessages returns up to limit messages, oldest first.
	RecentMessages(ctx context.Context, bot string, channelID snowflake.ID, limit int) ([]Message, error)
	SaveScheduled(ctx context.Context, msg ScheduledMessage) error
	Close() error
}

// Open connects to the configured database. It returns a nil Store for the
// "none" driver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("db: unsupported database driver %q", cfg.DatabaseDriver)
}

func prepareMessage(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg
}

func prepareScheduled(msg ScheduledMessage) ScheduledMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	msg.SentAt = msg.SentAt.UTC()
	return msg
}

// newestFirst turns a newest-first result into chronological order.
func newestFirst(messages []Message) []Message {
	slices.Reverse(messages)
	return messages
}
