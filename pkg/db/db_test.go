package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-zoo-bot/pkg/config"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channelID = snowflake.ID(1234567890123456789)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, s.SaveMessage(ctx, Message{
			Bot:       "leo",
			ChannelID: channelID,
			Author:    "alice",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: start.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.SaveMessage(ctx, Message{Bot: "mimi", ChannelID: channelID, Author: "bob", Content: "other bot"}))
	require.NoError(t, s.SaveMessage(ctx, Message{Bot: "leo", ChannelID: 42, Author: "bob", Content: "other channel"}))

	messages, err := s.RecentMessages(ctx, "leo", channelID, 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "message 2", messages[0].Content)
	assert.Equal(t, "message 4", messages[2].Content)
	assert.Equal(t, channelID, messages[0].ChannelID)
	assert.NotEmpty(t, messages[0].ID)
	assert.True(t, messages[2].CreatedAt.Equal(start.Add(4*time.Minute)))

	require.NoError(t, s.SaveScheduled(ctx, ScheduledMessage{ChannelID: channelID, Content: "おはようございます！"}))
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "zoo.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}
	s, err := OpenPostgres(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.pool.Exec(context.Background(), "TRUNCATE messages, scheduled_messages;")
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.Config{DatabaseDriver: config.DriverNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(context.Background(), config.Config{DatabaseDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "zoo.db")})
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.Config{DatabaseDriver: "mysql"})
	require.Error(t, err)
}
