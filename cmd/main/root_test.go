package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"ai-zoo-bot/pkg/config"
	"ai-zoo-bot/pkg/notion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	for _, key := range []string{"DISCORD_TOKEN_BOT1", "DISCORD_TOKEN_BOT2", "CHANNEL_ID", "NOTION_API_KEY", "NOTION_DATABASE_ID", "DATABASE_DRIVER", "TZ"} {
		t.Setenv(key, "")
	}
	t.Setenv("NOTION_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	return cmd.ExecuteContext(context.Background())
}

func TestSubcommands(t *testing.T) {
	var names []string
	for _, cmd := range newRootCmd().Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"main", "secondary", "all", "scheduled", "cron", "characters"}, names)
}

func TestBotRequiresToken(t *testing.T) {
	err := execute(t, "main")
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN_BOT1")

	err = execute(t, "secondary")
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN_BOT2")
}

func TestScheduledRequiresChannel(t *testing.T) {
	t.Setenv("DISCORD_TOKEN_BOT1", "token")
	err := execute(t, "scheduled")
	require.ErrorIs(t, err, config.ErrMissing)
}

func TestCharactersWithoutNotion(t *testing.T) {
	err := execute(t, "characters")
	require.ErrorIs(t, err, notion.ErrNotConfigured)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("RESPONSE_PROBABILITY", "1.5")
	require.Error(t, execute(t, "characters"))
}
