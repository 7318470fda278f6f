package zoo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-zoo-bot/pkg/character"
	"ai-zoo-bot/pkg/config"
	"ai-zoo-bot/pkg/db"
	"ai-zoo-bot/pkg/delay"
	"ai-zoo-bot/pkg/llm"
	"ai-zoo-bot/pkg/notion"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	zooChannel = snowflake.ID(100)
	selfID     = snowflake.ID(1)
)

type sent struct {
	channelID snowflake.ID
	content   string
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sent
	typing  int
	sendErr error
}

func (f *fakeMessenger) SendMessage(_ context.Context, channelID snowflake.ID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{channelID: channelID, content: content})
	return nil
}

func (f *fakeMessenger) SendTyping(_ context.Context, _ snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeMessenger) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeCharacters struct {
	character character.Character
	found     bool
	err       error
	refreshes int
}

func (f *fakeCharacters) Character(_ context.Context, _ string) (character.Character, bool, error) {
	return f.character, f.found, f.err
}

func (f *fakeCharacters) Refresh(_ context.Context) error {
	f.refreshes++
	return f.err
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []llm.Request
	text     string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.text, f.err
}

type instantPacer struct {
	lengths []int
}

func (p *instantPacer) Delay(ctx context.Context) error {
	return ctx.Err()
}

func (p *instantPacer) Type(ctx context.Context, typer delay.Typer, channelID snowflake.ID, length int) error {
	p.lengths = append(p.lengths, length)
	return typer.SendTyping(ctx, channelID)
}

type memoryStore struct {
	mu        sync.Mutex
	messages  []db.Message
	scheduled []db.ScheduledMessage
}

func (m *memoryStore) SaveMessage(_ context.Context, msg db.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryStore) RecentMessages(_ context.Context, bot string, channelID snowflake.ID, limit int) ([]db.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Message
	for _, msg := range m.messages {
		if msg.Bot == bot && msg.ChannelID == channelID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryStore) SaveScheduled(_ context.Context, msg db.ScheduledMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, msg)
	return nil
}

func (m *memoryStore) Close() error { return nil }

type fixture struct {
	bot        *Bot
	messenger  *fakeMessenger
	characters *fakeCharacters
	generator  *fakeGenerator
	store      *memoryStore
}

func leo() character.Character {
	return character.Character{
		Name:        "Leo",
		Personality: "Proud",
		Model:       "gpt-4o",
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		messenger:  &fakeMessenger{},
		characters: &fakeCharacters{character: leo(), found: true},
		generator:  &fakeGenerator{text: "がおー"},
		store:      &memoryStore{},
	}
	if cfg.Name == "" {
		cfg.Name = "Leo"
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 10
	}
	f.bot = New(cfg, Deps{
		Messenger:  f.messenger,
		Characters: f.characters,
		Generator:  f.generator,
		Pacer:      &instantPacer{},
		Store:      f.store,
	})
	return f
}

func userMessage(content string) Message {
	return Message{ChannelID: zooChannel, AuthorID: 2, Author: "alice", Content: content}
}

func TestReadySendsIntroductionOnce(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.Ready(context.Background(), selfID)
	f.bot.Ready(context.Background(), selfID)

	sent := f.messenger.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, zooChannel, sent[0].channelID)
	assert.True(t, strings.HasPrefix(sent[0].content, "こんにちは！私はLeoです。"))
	assert.Equal(t, "gpt-4o", f.bot.Character().Model)
}

func TestStartIsWaitedFor(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.Start(context.Background(), selfID)
	f.bot.Wait()

	require.Len(t, f.messenger.messages(), 1)
}

func TestReadyWithoutChannel(t *testing.T) {
	f := newFixture(t, Config{})
	f.bot.Ready(context.Background(), selfID)
	assert.Empty(t, f.messenger.messages())
}

func TestReadyFallbacks(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.characters.found = false
	f.bot.Ready(context.Background(), selfID)
	assert.Equal(t, character.Fallback("Leo"), f.bot.Character())
	assert.Equal(t, character.Fallback("Leo").SystemPrompt(), f.bot.systemPrompt)

	f = newFixture(t, Config{ChannelID: zooChannel})
	f.characters.err = errors.New("notion down")
	f.bot.Ready(context.Background(), selfID)
	assert.Equal(t, character.FallbackPrompt("Leo"), f.bot.systemPrompt)
}

func TestReadyWithoutNotion(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.deps.Characters = notion.New(config.DefaultNotion(""), nil)
	f.bot.Ready(context.Background(), selfID)

	assert.Equal(t, character.Fallback("Leo"), f.bot.Character())
	assert.Equal(t, character.Fallback("Leo").SystemPrompt(), f.bot.systemPrompt)
	assert.Contains(t, f.bot.systemPrompt, "stay in character")
	require.Len(t, f.messenger.messages(), 1)
}

func TestSecondaryIntroduction(t *testing.T) {
	f := newFixture(t, Config{Policy: NewProbability(0.7)})
	f.bot.Ready(context.Background(), selfID)
	intro := f.bot.Introduction()
	assert.Contains(t, intro, "応答確率: 70%")
	assert.True(t, strings.HasSuffix(intro, "応答確率: 70%\n気軽に話しかけてください！"))
}

func TestHandleMessageResponds(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel, BotNames: []string{"mimi"}})
	f.bot.Ready(context.Background(), selfID)

	f.bot.HandleMessage(context.Background(), userMessage("hello"))
	f.bot.Wait()

	sent := f.messenger.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "がおー", sent[1].content)
	assert.Equal(t, 1, f.messenger.typing)

	require.Len(t, f.generator.requests, 1)
	req := f.generator.requests[0]
	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "alice: hello", req.Messages[1].Content)

	status := f.bot.Status()
	assert.Equal(t, 2, status.HistorySize)
	assert.Equal(t, 1, status.Turns)

	require.Len(t, f.store.messages, 2)
	assert.False(t, f.store.messages[0].IsSelf)
	assert.True(t, f.store.messages[1].IsSelf)
	assert.Equal(t, "Leo", f.store.messages[1].Author)
}

func TestHandleMessageAnthropicPrompt(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.characters.character.Model = "claude-3-haiku-20240307"
	f.bot.Ready(context.Background(), selfID)

	f.bot.HandleMessage(context.Background(), userMessage("hello"))
	f.bot.Wait()

	require.Len(t, f.generator.requests, 1)
	req := f.generator.requests[0]
	assert.Empty(t, req.Messages)
	assert.True(t, strings.HasSuffix(req.Prompt, "Human (alice): hello\n\nAssistant: "))
}

func TestHandleMessageFilters(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.Ready(context.Background(), selfID)

	f.bot.HandleMessage(context.Background(), Message{ChannelID: zooChannel, AuthorID: selfID, Author: "Leo", Content: "mine"})
	f.bot.HandleMessage(context.Background(), Message{ChannelID: 999, AuthorID: 2, Author: "alice", Content: "elsewhere"})
	f.bot.HandleMessage(context.Background(), userMessage("!status"))
	f.bot.Wait()

	assert.Empty(t, f.generator.requests)
	assert.Equal(t, 0, f.bot.Status().HistorySize)
}

func TestHandleMessageAnyChannelWhenUnset(t *testing.T) {
	f := newFixture(t, Config{})
	f.bot.Ready(context.Background(), selfID)
	f.bot.HandleMessage(context.Background(), Message{ChannelID: 999, AuthorID: 2, Author: "alice", Content: "hi"})
	f.bot.Wait()

	sent := f.messenger.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, snowflake.ID(999), sent[0].channelID)
}

func TestHandleMessagePolicyDeclines(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel, Policy: Probability{P: 0.7, rand: func() float64 { return 0.9 }}})
	f.bot.Ready(context.Background(), selfID)

	f.bot.HandleMessage(context.Background(), userMessage("hello"))
	f.bot.Wait()

	assert.Empty(t, f.generator.requests)
	assert.Equal(t, 1, f.bot.Status().HistorySize)
}

func TestCooldown(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel, MaxTurns: 2})
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	f.bot.now = func() time.Time { return now }
	f.bot.cooldown = func() time.Duration { return 10 * time.Minute }
	f.bot.Ready(context.Background(), selfID)

	f.bot.HandleMessage(context.Background(), userMessage("one"))
	f.bot.Wait()
	require.Len(t, f.generator.requests, 1)

	// the second turn reaches the limit
	f.bot.HandleMessage(context.Background(), userMessage("two"))
	f.bot.Wait()
	require.Len(t, f.generator.requests, 1)

	status := f.bot.Status()
	assert.True(t, status.CoolingDown)
	require.NotNil(t, status.CooldownUntil)
	assert.Equal(t, now.Add(10*time.Minute), *status.CooldownUntil)
	assert.Equal(t, 0, status.Turns)

	now = now.Add(5 * time.Minute)
	f.bot.HandleMessage(context.Background(), userMessage("ignored"))
	f.bot.Wait()
	assert.Len(t, f.generator.requests, 1)
	assert.Equal(t, 3, f.bot.Status().HistorySize)

	now = now.Add(6 * time.Minute)
	f.bot.HandleMessage(context.Background(), userMessage("back"))
	f.bot.Wait()
	assert.Len(t, f.generator.requests, 2)
	assert.False(t, f.bot.Status().CoolingDown)
}

func TestRandomCooldownRange(t *testing.T) {
	for range 100 {
		d := randomCooldown()
		assert.GreaterOrEqual(t, d, 5*time.Minute)
		assert.LessOrEqual(t, d, 15*time.Minute)
	}
}

func TestRespondGenerationError(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.generator.err = llm.ErrEmptyResponse
	f.bot.Ready(context.Background(), selfID)

	f.bot.HandleMessage(context.Background(), userMessage("hello"))
	f.bot.Wait()

	assert.Len(t, f.messenger.messages(), 1)
	assert.Equal(t, 1, f.bot.Status().HistorySize)
}

func TestRespondCancelled(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.Ready(context.Background(), selfID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.bot.HandleMessage(ctx, userMessage("hello"))
	f.bot.Wait()
	assert.Empty(t, f.generator.requests)
}

func TestRestoreHistory(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	require.NoError(t, f.store.SaveMessage(context.Background(), db.Message{Bot: "Leo", ChannelID: zooChannel, Author: "alice", Content: "earlier"}))
	f.bot.Ready(context.Background(), selfID)

	status := f.bot.Status()
	assert.Equal(t, 1, status.HistorySize)
	assert.Equal(t, 0, status.Turns)
}

func TestSendScheduled(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.Ready(context.Background(), selfID)
	require.NoError(t, f.bot.SendScheduled(context.Background(), "おはようございます！"))

	sent := f.messenger.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "おはようございます！", sent[1].content)
	assert.Equal(t, 1, f.bot.Status().HistorySize)

	f = newFixture(t, Config{})
	require.ErrorIs(t, f.bot.SendScheduled(context.Background(), "hi"), ErrNoChannel)
}

func TestReloadAndClear(t *testing.T) {
	f := newFixture(t, Config{ChannelID: zooChannel})
	f.bot.Ready(context.Background(), selfID)
	f.bot.HandleMessage(context.Background(), userMessage("hello"))
	f.bot.Wait()

	f.characters.character.Model = "claude-3-opus-20240229"
	require.NoError(t, f.bot.Reload(context.Background()))
	assert.Equal(t, 1, f.characters.refreshes)
	assert.Equal(t, "claude-3-opus-20240229", f.bot.Status().Model)

	f.bot.ClearHistory()
	assert.Equal(t, 0, f.bot.Status().HistorySize)

	f.characters.err = errors.New("notion down")
	require.Error(t, f.bot.Reload(context.Background()))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	chunks := SplitMessage(strings.Repeat("あ", 25), 10)
	assert.Equal(t, []string{strings.Repeat("あ", 10), strings.Repeat("あ", 10), strings.Repeat("あ", 5)}, chunks)

	chunks = SplitMessage("line one\nline two is long", 12)
	assert.Equal(t, []string{"line one\n", "line two is ", "long"}, chunks)
}

func TestProbabilityPolicy(t *testing.T) {
	p := Probability{P: 0.5, rand: func() float64 { return 0.4 }}
	assert.True(t, p.ShouldRespond())
	p.rand = func() float64 { return 0.6 }
	assert.False(t, p.ShouldRespond())

	assert.False(t, NewProbability(0).ShouldRespond())
	assert.True(t, NewProbability(1).ShouldRespond())
	assert.Empty(t, Always{}.IntroductionNote())
}
