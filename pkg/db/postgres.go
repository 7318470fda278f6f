package db

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createMessagesQuery = `CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	bot TEXT NOT NULL,
	channel_id BIGINT NOT NULL,
	author TEXT NOT NULL,
	content TEXT NOT NULL,
	is_self BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	createMessagesIndexQuery  = "CREATE INDEX IF NOT EXISTS idx_messages_bot_channel ON messages (bot, channel_id, created_at);"
	createScheduledQuery      = "CREATE TABLE IF NOT EXISTS scheduled_messages (id UUID PRIMARY KEY, channel_id BIGINT NOT NULL, content TEXT NOT NULL, sent_at TIMESTAMPTZ NOT NULL);"
	insertMessageQuery        = "INSERT INTO messages (id, bot, channel_id, author, content, is_self, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7);"
	selectRecentMessagesQuery = "SELECT id::text AS id, bot, channel_id, author, content, is_self, created_at FROM messages WHERE bot = $1 AND channel_id = $2 ORDER BY created_at DESC LIMIT $3;"
	insertScheduledQuery      = "INSERT INTO scheduled_messages (id, channel_id, content, sent_at) VALUES ($1, $2, $3, $4);"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db: error while connecting to postgres: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, query := range []string{createMessagesQuery, createMessagesIndexQuery, createScheduledQuery} {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("db: error while creating tables: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, msg Message) error {
	msg = prepareMessage(msg)
	_, err := s.pool.Exec(ctx, insertMessageQuery, msg.ID, msg.Bot, int64(msg.ChannelID), msg.Author, msg.Content, msg.IsSelf, msg.CreatedAt)
	return err
}

func (s *PostgresStore) RecentMessages(ctx context.Context, bot string, channelID snowflake.ID, limit int) ([]Message, error) {
	rows, _ := s.pool.Query(ctx, selectRecentMessagesQuery, bot, int64(channelID), limit)
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByName[Message])
	if err != nil {
		return nil, err
	}
	return newestFirst(messages), nil
}

func (s *PostgresStore) SaveScheduled(ctx context.Context, msg ScheduledMessage) error {
	msg = prepareScheduled(msg)
	_, err := s.pool.Exec(ctx, insertScheduledQuery, msg.ID, int64(msg.ChannelID), msg.Content, msg.SentAt)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
